package service

import (
	"context"
	"errors"

	"course_form_backend/internal/config"
	"course_form_backend/internal/model"
	"course_form_backend/internal/repository"
	"course_form_backend/internal/util"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService struct {
	UserRepo *repository.UserRepository
	Sessions *SessionService
	Forms    *FormService
	Cfg      *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, sessions *SessionService, forms *FormService, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo: userRepo,
		Sessions: sessions,
		Forms:    forms,
		Cfg:      cfg,
	}
}

func (s *AuthService) Register(user *model.User) error {
	_, err := s.UserRepo.FindByEmail(user.Email)
	if err == nil {
		return util.ErrEmailRegistered
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.Password = string(hashedPassword)
	return s.UserRepo.Create(user)
}

type LoginResult struct {
	Token       string `json:"token"`
	UserID      uint   `json:"userId"`
	FormID      uint   `json:"formId"`
	ResumeIndex int    `json:"resumeIndex"`
}

// Login 校验口令后建立会话：答案缓存随会话生成，续填位置一并算好
// 返回，客户端落地即到位。
func (s *AuthService) Login(ctx context.Context, email, password string, formID uint) (*LoginResult, error) {
	user, err := s.UserRepo.FindByEmail(email)
	if err != nil {
		return nil, util.ErrInvalidCredentials
	}
	if user.Disabled {
		return nil, util.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, util.ErrInvalidCredentials
	}

	form, err := s.Forms.GetForm(formID)
	if err != nil {
		return nil, err
	}
	if !form.IsPublished {
		return nil, util.ErrFormNotPublished
	}

	sess, err := s.Sessions.Create(ctx, user.ID, formID)
	if err != nil {
		return nil, err
	}

	resumeIndex, err := s.Forms.ResumeIndex(formID, sess.Answers)
	if err != nil {
		return nil, err
	}

	token, err := util.GenerateSessionToken(sess.SessionID, s.Cfg.Session.Secret, sessionRecordTTL)
	if err != nil {
		return nil, err
	}

	// 登录时间戳尽力而为，失败不影响登录
	_ = s.UserRepo.UpdateLastLogin(user.ID)

	return &LoginResult{
		Token:       token,
		UserID:      user.ID,
		FormID:      formID,
		ResumeIndex: resumeIndex,
	}, nil
}

type SessionStatus struct {
	Authenticated  bool `json:"authenticated"`
	SessionExpired bool `json:"session_expired"`
	ResumeIndex    int  `json:"resume_index"`
}

// CheckSession 回访检查：会话过期只翻认证标记，不销毁记录；
// 未过期时顺带刷新活跃时间并重算续填位置。
func (s *AuthService) CheckSession(ctx context.Context, sessionID string) (*SessionStatus, error) {
	sess, err := s.Sessions.Get(ctx, sessionID)
	if errors.Is(err, util.ErrSessionNotFound) {
		return &SessionStatus{Authenticated: false, SessionExpired: true}, nil
	}
	if err != nil {
		return nil, err
	}

	if !sess.Authenticated {
		return &SessionStatus{Authenticated: false, SessionExpired: true}, nil
	}

	answers, err := s.Sessions.Answers(ctx, sess)
	if err != nil {
		return nil, err
	}
	resumeIndex, err := s.Forms.ResumeIndex(sess.FormID, answers)
	if err != nil {
		return nil, err
	}

	if err := s.Sessions.Touch(ctx, sess); err != nil {
		return nil, err
	}

	return &SessionStatus{
		Authenticated: true,
		ResumeIndex:   resumeIndex,
	}, nil
}

func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.Sessions.Invalidate(ctx, sessionID)
}
