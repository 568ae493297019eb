package util

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims 会话 cookie 的载荷：只携带服务端会话记录的 id，
// 签名保证 cookie 不可伪造，会话状态本身都在 Redis 里。
type SessionClaims struct {
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

func GenerateSessionToken(sessionID, secret string, expiration time.Duration) (string, error) {
	expirationTime := time.Now().Add(expiration)

	claims := &SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseSessionToken(tokenString, secret string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrTokenInvalidClaims
}
