package util

import "errors"

var (
	ErrEmailRegistered    = errors.New("该邮箱已被注册")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrFormNotFound       = errors.New("form not found")
	ErrFormNotPublished   = errors.New("form not published")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
	ErrEmptySubmission    = errors.New("submission payload is empty")
	ErrMissingQuestionID  = errors.New("question id is missing")
)
