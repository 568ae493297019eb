package service

import (
	"errors"

	"course_form_backend/internal/flow"
	"course_form_backend/internal/model"
	"course_form_backend/internal/repository"
	"course_form_backend/internal/util"

	"gorm.io/gorm"
)

// FormService 表单流引擎的服务端入口：加载块树、扁平化、求可见
// 步骤和导航位置。扁平化与条件求值只有这一份实现，客户端拿到的
// 已经是解析好的可见步骤列表。
type FormService struct {
	FormRepo *repository.FormRepository
}

func NewFormService(formRepo *repository.FormRepository) *FormService {
	return &FormService{FormRepo: formRepo}
}

func (s *FormService) GetForm(formID uint) (*model.Form, error) {
	form, err := s.FormRepo.FindByID(formID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrFormNotFound
	}
	if err != nil {
		return nil, err
	}
	return form, nil
}

// ListPublished 分页列出已发布的表单。
func (s *FormService) ListPublished(page, limit int) (*util.PageResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	forms, total, err := s.FormRepo.ListPublished(page, limit)
	if err != nil {
		return nil, err
	}
	return &util.PageResponse{
		List:  forms,
		Total: total,
		Page:  page,
		Limit: limit,
	}, nil
}

// Steps 加载块树并扁平化成有序步骤列表。块树对引擎只读，每次
// 按需重算，不缓存派生结果。
func (s *FormService) Steps(formID uint) ([]flow.Step, error) {
	if _, err := s.GetForm(formID); err != nil {
		return nil, err
	}
	tree, err := s.FormRepo.LoadBlockTree(formID)
	if err != nil {
		return nil, err
	}
	return flow.Flatten(tree)
}

// VisibleSteps 当前答案下的可见步骤子集。
func (s *FormService) VisibleSteps(formID uint, answers flow.AnswerMap) ([]flow.Step, error) {
	steps, err := s.Steps(formID)
	if err != nil {
		return nil, err
	}
	return flow.VisibleSteps(steps, answers), nil
}

// NextStep 从 from 起的下一个可见步骤下标，连续隐藏步骤整段跳过。
func (s *FormService) NextStep(formID uint, answers flow.AnswerMap, from int) (int, error) {
	steps, err := s.Steps(formID)
	if err != nil {
		return -1, err
	}
	return flow.NextVisibleIndex(steps, answers, from), nil
}

// VisibleResumeIndex 续填位置在可见步骤列表坐标系下的下标，
// 与 VisibleSteps 的结果一起下发时必须用它而不是 ResumeIndex。
func (s *FormService) VisibleResumeIndex(formID uint, answers flow.AnswerMap) (int, error) {
	steps, err := s.Steps(formID)
	if err != nil {
		return 0, err
	}
	return flow.VisibleResumeIndex(steps, answers), nil
}

// ResumeIndex 回访用户的续填位置，全量步骤列表坐标系
// （login/check_session 用）。
func (s *FormService) ResumeIndex(formID uint, answers flow.AnswerMap) (int, error) {
	steps, err := s.Steps(formID)
	if err != nil {
		return 0, err
	}
	return flow.ResumeIndex(steps, answers), nil
}

// StructureReport 块树结构诊断结果。
type StructureReport struct {
	StepCount       int      `json:"stepCount"`
	Cyclic          bool     `json:"cyclic"`
	MissingChildren []string `json:"missingChildren,omitempty"`
}

// Validate 对块树做结构诊断：悬空子引用按兼容策略容忍但列出来，
// 环是硬性结构错误。
func (s *FormService) Validate(formID uint) (*StructureReport, error) {
	if _, err := s.GetForm(formID); err != nil {
		return nil, err
	}
	tree, err := s.FormRepo.LoadBlockTree(formID)
	if err != nil {
		return nil, err
	}

	report := &StructureReport{
		MissingChildren: tree.MissingChildren(),
	}

	steps, err := flow.Flatten(tree)
	if errors.Is(err, flow.ErrCyclicBlockTree) {
		report.Cyclic = true
		return report, nil
	}
	if err != nil {
		return nil, err
	}
	report.StepCount = len(steps)
	return report, nil
}
