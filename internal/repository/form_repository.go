package repository

import (
	"course_form_backend/internal/flow"
	"course_form_backend/internal/model"
	"encoding/json"

	"gorm.io/gorm"
)

type FormRepository struct {
	DB *gorm.DB
}

func NewFormRepository(db *gorm.DB) *FormRepository {
	return &FormRepository{DB: db}
}

func (r *FormRepository) FindByID(id uint) (*model.Form, error) {
	var f model.Form
	err := r.DB.First(&f, id).Error
	return &f, err
}

func (r *FormRepository) ListPublished(page, limit int) ([]model.Form, int64, error) {
	var fs []model.Form
	var total int64

	query := r.DB.Model(&model.Form{}).Where("is_published = ?", true)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&fs).Error
	return fs, total, err
}

// LoadBlockTree 按作者排列顺序加载一份表单的块树。
// 本服务对块树只读，排序只认 `order` 列，不按 id 重排。
func (r *FormRepository) LoadBlockTree(formID uint) (*flow.BlockTree, error) {
	var rows []model.FormBlock
	err := r.DB.Where("form_id = ?", formID).
		Order("`order` asc, created_at asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	blocks := make([]flow.Block, 0, len(rows))
	for _, row := range rows {
		b := flow.Block{
			ID:       row.BlockID,
			Type:     flow.BlockType(row.Type),
			ParentID: row.ParentID,
			Content:  row.Content,
		}
		if len(row.Children) > 0 {
			// children 列是 JSON 数组；解析失败按无子节点处理
			_ = json.Unmarshal(row.Children, &b.Children)
		}
		blocks = append(blocks, b)
	}
	return flow.NewBlockTree(blocks), nil
}
