package model

import (
	"encoding/json"
	"time"
)

// Form 一份入学/课程表单。块树由编辑端维护，本服务只读。
// swagger:model Form
type Form struct {
	BaseModel
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	IsPublished bool       `gorm:"default:false" json:"isPublished"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

func (Form) TableName() string {
	return "forms"
}

// FormBlock 表单定义树的一个节点，扁平存储，节点间靠 id 引用。
// children/content 作为 JSON 列原样保存，引擎侧再解码。
// swagger:model FormBlock
type FormBlock struct {
	BaseModel
	BlockID  string          `gorm:"size:64;not null;uniqueIndex:uq_form_block" json:"blockId"`
	FormID   uint            `gorm:"index;type:bigint unsigned;not null;uniqueIndex:uq_form_block" json:"formId"`
	Type     string          `gorm:"size:20;not null" json:"type"` // section, text, question, condition
	ParentID string          `gorm:"size:64" json:"parentId,omitempty"`
	Children json.RawMessage `gorm:"type:json" json:"children,omitempty"` // JSON: []string
	Content  json.RawMessage `gorm:"type:json" json:"content,omitempty"`
	Order    int             `gorm:"default:0" json:"order"` // 作者排列顺序
}

func (FormBlock) TableName() string {
	return "form_blocks"
}
