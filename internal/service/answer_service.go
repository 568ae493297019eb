package service

import (
	"context"

	"course_form_backend/internal/flow"
	"course_form_backend/internal/repository"
	"course_form_backend/internal/util"
	"course_form_backend/pkg/logger"

	"go.uber.org/zap"
)

// AnswerService 答案持久化的写入侧：自动保存走单行 upsert，
// 整体提交走事务批量。
type AnswerService struct {
	AnswerRepo *repository.AnswerRepository
	Sessions   *SessionService
}

func NewAnswerService(answerRepo *repository.AnswerRepository, sessions *SessionService) *AnswerService {
	return &AnswerService{
		AnswerRepo: answerRepo,
		Sessions:   sessions,
	}
}

// 多选类题型答案序列化进 answer_json，其余写 answer_value。
func multiValued(questionType string) bool {
	switch questionType {
	case "checkbox", "multi_select", "multiple_choice":
		return true
	}
	return false
}

// normalizeAnswer 按题型把请求里的原始值整形成目标列形态：
// 多选题强制为列表（标量包装成单元素列表），单值题强制为标量
// （列表退化为逗号拼接的字符串形式）。
func normalizeAnswer(value flow.AnswerValue, questionType string) flow.AnswerValue {
	if multiValued(questionType) {
		if value.IsList {
			return value
		}
		if value.Scalar == "" {
			return flow.ListAnswer(nil)
		}
		return flow.ListAnswer([]string{value.Scalar})
	}
	if value.IsList {
		return flow.ScalarAnswer(value.String())
	}
	return value
}

type AnswerItem struct {
	QuestionID   string           `json:"questionId" binding:"required"`
	QuestionType string           `json:"questionType"`
	Value        flow.AnswerValue `json:"value"`
}

// AutoSave 单行写入 + 缓存 write-through。持久化失败对交互流程
// 非致命：错误报给调用方，但缓存中的未保存值保留，等下一次
// 自动保存或最终提交落库。
func (s *AnswerService) AutoSave(ctx context.Context, sess *SessionContext, item AnswerItem) error {
	if item.QuestionID == "" {
		return util.ErrMissingQuestionID
	}

	value := normalizeAnswer(item.Value, item.QuestionType)

	if err := s.AnswerRepo.Upsert(sess.UserID, item.QuestionID, sess.FormID, value); err != nil {
		logger.Log.Error("auto-save persistence failed",
			zap.Uint("userId", sess.UserID),
			zap.String("questionId", item.QuestionID),
			zap.Error(err))
		// 缓存仍然更新：内存里的值不能因为一次落库失败而丢掉
		if cacheErr := s.Sessions.UpdateAnswer(ctx, sess, item.QuestionID, value); cacheErr != nil {
			logger.Log.Error("auto-save cache update failed", zap.Error(cacheErr))
		}
		return err
	}

	return s.Sessions.UpdateAnswer(ctx, sess, item.QuestionID, value)
}

// Submit 整批提交：载荷为空或缺题目 id 属于校验错误，原样报给
// 调用方；批内任何一条写入失败，整个事务回滚，不存在半提交。
// 成功后按持久层整体重建会话缓存。
func (s *AnswerService) Submit(ctx context.Context, sess *SessionContext, items []AnswerItem) error {
	if len(items) == 0 {
		return util.ErrEmptySubmission
	}

	batch := make([]repository.SubmittedAnswer, 0, len(items))
	for _, item := range items {
		if item.QuestionID == "" {
			return util.ErrMissingQuestionID
		}
		batch = append(batch, repository.SubmittedAnswer{
			QuestionID: item.QuestionID,
			Value:      normalizeAnswer(item.Value, item.QuestionType),
		})
	}

	if err := s.AnswerRepo.SubmitBatch(sess.UserID, sess.FormID, batch); err != nil {
		return err
	}
	return s.Sessions.RefreshAnswers(ctx, sess)
}
