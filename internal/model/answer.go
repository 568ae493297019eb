package model

import "time"

// FormAnswer 每个 (用户, 题目, 表单) 至多一行，由唯一索引加 upsert
// 保证，绝不靠读取端去重。任意一次写入后 answer_value / answer_json
// 恰有一列非空，另一列必须被显式置空。
// swagger:model FormAnswer
type FormAnswer struct {
	BaseModel
	UserID      uint       `gorm:"not null;uniqueIndex:uq_user_question_form,priority:1" json:"userId"`
	QuestionID  string     `gorm:"size:64;not null;uniqueIndex:uq_user_question_form,priority:2" json:"questionId"`
	FormID      uint       `gorm:"not null;uniqueIndex:uq_user_question_form,priority:3" json:"formId"`
	AnswerValue *string    `gorm:"type:text" json:"answerValue,omitempty"` // 单值答案
	AnswerJson  *string    `gorm:"type:json" json:"answerJson,omitempty"`  // 多选答案，JSON 数组
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
}

func (FormAnswer) TableName() string {
	return "form_answers"
}
