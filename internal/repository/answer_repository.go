package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"course_form_backend/internal/flow"
	"course_form_backend/internal/model"
	"course_form_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AnswerRepository struct {
	DB *gorm.DB
}

func NewAnswerRepository(db *gorm.DB) *AnswerRepository {
	return &AnswerRepository{DB: db}
}

// SubmittedAnswer 提交批次里的一条答案。
type SubmittedAnswer struct {
	QuestionID string
	Value      flow.AnswerValue
}

// Upsert 以 (user_id, question_id, form_id) 唯一键写入一行答案。
// 多选答案序列化进 answer_json 并清空 answer_value，单值答案反之；
// 冲突时覆盖对应列、刷新 updated_at/submitted_at，另一列始终显式
// 置空，不允许留下陈旧的双列数据。
func (r *AnswerRepository) Upsert(userID uint, questionID string, formID uint, value flow.AnswerValue) error {
	return r.upsert(r.DB, userID, questionID, formID, value)
}

func (r *AnswerRepository) upsert(tx *gorm.DB, userID uint, questionID string, formID uint, value flow.AnswerValue) error {
	now := time.Now()
	row := model.FormAnswer{
		UserID:      userID,
		QuestionID:  questionID,
		FormID:      formID,
		SubmittedAt: &now,
	}

	if value.IsList {
		data, err := json.Marshal(value.List)
		if err != nil {
			return fmt.Errorf("serialize answer for question %s: %w", questionID, err)
		}
		encoded := string(data)
		row.AnswerJson = &encoded
	} else {
		scalar := value.Scalar
		row.AnswerValue = &scalar
	}

	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "question_id"}, {Name: "form_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"answer_value": row.AnswerValue,
			"answer_json":  row.AnswerJson,
			"updated_at":   now,
			"submitted_at": now,
		}),
	}).Create(&row).Error
}

// SubmitBatch 在单个事务里写入整批答案：任何一条失败即整体回滚，
// 不允许部分提交。失败的题目 id 只进日志，不向上层暴露。
func (r *AnswerRepository) SubmitBatch(userID uint, formID uint, answers []SubmittedAnswer) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		for _, ans := range answers {
			if err := r.upsert(tx, userID, ans.QuestionID, formID, ans.Value); err != nil {
				logger.Log.Error("submit batch aborted",
					zap.Uint("userId", userID),
					zap.Uint("formId", formID),
					zap.String("questionId", ans.QuestionID),
					zap.Error(err))
				return err
			}
		}
		return nil
	})
}

// ReadAll 读出用户在一份表单下的全部答案并合并成 AnswerMap。
// 一行同时存在两列时优先 answer_json（兼容历史脏数据）；json 列
// 既可能是结构化数组也可能是字符串，视生产方而定。
func (r *AnswerRepository) ReadAll(userID uint, formID uint) (flow.AnswerMap, error) {
	var rows []model.FormAnswer
	err := r.DB.Where("user_id = ? AND form_id = ?", userID, formID).Find(&rows).Error
	if err != nil {
		return nil, err
	}

	answers := make(flow.AnswerMap, len(rows))
	for _, row := range rows {
		answers[row.QuestionID] = decodeAnswerRow(row)
	}
	return answers, nil
}

func decodeAnswerRow(row model.FormAnswer) flow.AnswerValue {
	if row.AnswerJson != nil && *row.AnswerJson != "" {
		raw := *row.AnswerJson

		var list []string
		if err := json.Unmarshal([]byte(raw), &list); err == nil {
			return flow.ListAnswer(list)
		}
		var scalar string
		if err := json.Unmarshal([]byte(raw), &scalar); err == nil {
			return flow.ScalarAnswer(scalar)
		}
		// 既不是数组也不是字符串时原样透传
		return flow.ScalarAnswer(raw)
	}

	if row.AnswerValue != nil {
		return flow.ScalarAnswer(*row.AnswerValue)
	}
	return flow.ScalarAnswer("")
}

// CountForUser 诊断用：用户在该表单下已持久化的答案行数。
func (r *AnswerRepository) CountForUser(userID uint, formID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.FormAnswer{}).
		Where("user_id = ? AND form_id = ?", userID, formID).
		Count(&count).Error
	return count, err
}
