package service

import (
	"context"
	"encoding/json"
	"time"

	"course_form_backend/internal/config"
	"course_form_backend/internal/flow"
	"course_form_backend/internal/repository"
	"course_form_backend/internal/util"
	"course_form_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const sessionKeyPrefix = "session:"

// 会话记录的 Redis 保留时长。超过空闲阈值只是把 authenticated 置为
// false，记录本身保留到这个时限，已保存的答案缓存随之可供续填。
const sessionRecordTTL = 24 * time.Hour

// SessionContext 一次已登录会话的全部状态：身份、目标表单、登录
// 时间和答案缓存。显式作为句柄传进各 handler，不挂全局变量。
type SessionContext struct {
	SessionID     string         `json:"sessionId"`
	UserID        uint           `json:"userId"`
	FormID        uint           `json:"formId"`
	Authenticated bool           `json:"authenticated"`
	LoginTime     time.Time      `json:"loginTime"`
	Answers       flow.AnswerMap `json:"answers"`
}

type SessionService struct {
	Redis      *redis.Client
	AnswerRepo *repository.AnswerRepository
	Cfg        *config.Config
}

func NewSessionService(rdb *redis.Client, answerRepo *repository.AnswerRepository, cfg *config.Config) *SessionService {
	return &SessionService{
		Redis:      rdb,
		AnswerRepo: answerRepo,
		Cfg:        cfg,
	}
}

func (s *SessionService) key(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

// Create 登录时创建会话：从持久层合并出答案缓存，整份记录落 Redis。
func (s *SessionService) Create(ctx context.Context, userID, formID uint) (*SessionContext, error) {
	answers, err := s.AnswerRepo.ReadAll(userID, formID)
	if err != nil {
		return nil, err
	}

	sess := &SessionContext{
		SessionID:     uuid.New().String(),
		UserID:        userID,
		FormID:        formID,
		Authenticated: true,
		LoginTime:     time.Now(),
		Answers:       answers,
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get 取回会话并同步做过期判定：now-loginTime 超过空闲阈值时把
// authenticated 翻为 false 并写回，但不删除记录——持久化的答案和
// 缓存都要留给之后的续填。
func (s *SessionService) Get(ctx context.Context, sessionID string) (*SessionContext, error) {
	val, err := s.Redis.Get(ctx, s.key(sessionID)).Result()
	if err == redis.Nil {
		return nil, util.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	var sess SessionContext
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return nil, err
	}

	if sess.Authenticated && time.Since(sess.LoginTime) > s.Cfg.SessionIdleTimeout() {
		sess.Authenticated = false
		if err := s.save(ctx, &sess); err != nil {
			logger.Log.Error("failed to persist session expiry",
				zap.String("sessionId", sess.SessionID), zap.Error(err))
		}
	}
	return &sess, nil
}

// Touch 认证请求通过后刷新活跃时间，空闲计时从头算。
func (s *SessionService) Touch(ctx context.Context, sess *SessionContext) error {
	sess.LoginTime = time.Now()
	return s.save(ctx, sess)
}

// Answers 返回会话的答案缓存；缓存为空时从持久层重算并回填
// （read-through）。
func (s *SessionService) Answers(ctx context.Context, sess *SessionContext) (flow.AnswerMap, error) {
	if len(sess.Answers) > 0 {
		return sess.Answers, nil
	}

	answers, err := s.AnswerRepo.ReadAll(sess.UserID, sess.FormID)
	if err != nil {
		return nil, err
	}
	sess.Answers = answers
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return answers, nil
}

// UpdateAnswer 自动保存成功后就地更新缓存里的单个条目
// （write-through，不做整体失效重载）。
func (s *SessionService) UpdateAnswer(ctx context.Context, sess *SessionContext, questionID string, value flow.AnswerValue) error {
	if sess.Answers == nil {
		sess.Answers = make(flow.AnswerMap)
	}
	sess.Answers[questionID] = value
	return s.save(ctx, sess)
}

// RefreshAnswers 整体提交后按持久层重建答案缓存。
func (s *SessionService) RefreshAnswers(ctx context.Context, sess *SessionContext) error {
	answers, err := s.AnswerRepo.ReadAll(sess.UserID, sess.FormID)
	if err != nil {
		return err
	}
	sess.Answers = answers
	return s.save(ctx, sess)
}

// Invalidate 登出时删除会话记录。
func (s *SessionService) Invalidate(ctx context.Context, sessionID string) error {
	return s.Redis.Del(ctx, s.key(sessionID)).Err()
}

func (s *SessionService) save(ctx context.Context, sess *SessionContext) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.Redis.Set(ctx, s.key(sess.SessionID), data, sessionRecordTTL).Err()
}
