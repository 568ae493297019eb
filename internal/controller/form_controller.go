package controller

import (
	"errors"
	"net/http"
	"strconv"

	"course_form_backend/internal/flow"
	"course_form_backend/internal/middleware"
	"course_form_backend/internal/service"
	"course_form_backend/internal/util"
	"course_form_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

type FormController struct {
	Forms   *service.FormService
	Answers *service.AnswerService
}

func NewFormController(forms *service.FormService, answers *service.AnswerService) *FormController {
	return &FormController{Forms: forms, Answers: answers}
}

// @Summary 已发布表单列表
// @Description 分页列出可填写的表单
// @Tags 表单
// @Produce json
// @Param page query int false "页码"
// @Param limit query int false "每页条数"
// @Success 200 {object} util.Response
// @Router /forms [get]
func (c *FormController) ListForms(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	result, err := c.Forms.ListPublished(page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 获取可见步骤列表
// @Description 服务端完成扁平化与条件求值，返回当前答案下已解析的可见步骤
// @Tags 表单
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "表单ID"
// @Success 200 {object} util.Response
// @Router /forms/{id}/questions [get]
func (c *FormController) GetQuestions(ctx *gin.Context) {
	sess := middleware.GetSessionFromContext(ctx)
	formID := util.MustParseUint(ctx.Param("id"))
	if sess == nil || formID == 0 || formID != sess.FormID {
		util.BadRequest(ctx, "invalid form id")
		return
	}

	answers, err := c.Answers.Sessions.Answers(ctx.Request.Context(), sess)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	steps, err := c.Forms.VisibleSteps(formID, answers)
	if err != nil {
		c.formError(ctx, err)
		return
	}

	// steps 是可见子集，下标必须换算到同一坐标系
	resumeIndex, err := c.Forms.VisibleResumeIndex(formID, answers)
	if err != nil {
		c.formError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{
		"steps":       steps,
		"resumeIndex": resumeIndex,
	})
}

// @Summary 下一个可见步骤
// @Description 从 from 起跳过被条件隐藏的步骤，返回下一个可见步骤下标；没有则为 -1
// @Tags 表单
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "表单ID"
// @Param from query int false "起始下标"
// @Success 200 {object} util.Response
// @Router /forms/{id}/next-step [get]
func (c *FormController) NextStep(ctx *gin.Context) {
	sess := middleware.GetSessionFromContext(ctx)
	formID := util.MustParseUint(ctx.Param("id"))
	if sess == nil || formID == 0 || formID != sess.FormID {
		util.BadRequest(ctx, "invalid form id")
		return
	}

	from := 0
	if fromStr := ctx.Query("from"); fromStr != "" {
		parsed, err := strconv.Atoi(fromStr)
		if err != nil {
			util.BadRequest(ctx, "invalid from index")
			return
		}
		from = parsed
	}

	answers, err := c.Answers.Sessions.Answers(ctx.Request.Context(), sess)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	next, err := c.Forms.NextStep(formID, answers, from)
	if err != nil {
		c.formError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"nextIndex": next})
}

// @Summary 自动保存单个答案
// @Description 单行 upsert；落库失败不丢内存值，报错后等下次保存或提交
// @Tags 表单
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "表单ID"
// @Param body body service.AnswerItem true "答案"
// @Success 200 {object} util.Response
// @Router /forms/{id}/answers [post]
func (c *FormController) AutoSave(ctx *gin.Context) {
	sess := middleware.GetSessionFromContext(ctx)
	formID := util.MustParseUint(ctx.Param("id"))
	if sess == nil || formID == 0 || formID != sess.FormID {
		util.BadRequest(ctx, "invalid form id")
		return
	}

	var item service.AnswerItem
	if err := ctx.ShouldBindJSON(&item); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.Answers.AutoSave(ctx.Request.Context(), sess, item); err != nil {
		if errors.Is(err, util.ErrMissingQuestionID) {
			util.BadRequest(ctx, err.Error())
			return
		}
		// 自动保存失败对交互非致命，响应里说明保存状态即可
		monitoring.AutoSaveCounter.WithLabelValues("error").Inc()
		util.Success(ctx, gin.H{"saved": false})
		return
	}
	monitoring.AutoSaveCounter.WithLabelValues("ok").Inc()
	util.Success(ctx, gin.H{"saved": true})
}

type SubmitRequest struct {
	Answers []service.AnswerItem `json:"answers"`
}

// @Summary 整体提交
// @Description 所有答案在一个事务里提交，任何一条失败整体回滚
// @Tags 表单
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "表单ID"
// @Param body body SubmitRequest true "提交载荷"
// @Success 200 {object} util.Response
// @Router /forms/{id}/submit [post]
func (c *FormController) Submit(ctx *gin.Context) {
	sess := middleware.GetSessionFromContext(ctx)
	formID := util.MustParseUint(ctx.Param("id"))
	if sess == nil || formID == 0 || formID != sess.FormID {
		util.BadRequest(ctx, "invalid form id")
		return
	}

	var req SubmitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.Answers.Submit(ctx.Request.Context(), sess, req.Answers); err != nil {
		switch {
		case errors.Is(err, util.ErrEmptySubmission), errors.Is(err, util.ErrMissingQuestionID):
			util.BadRequest(ctx, err.Error())
		default:
			// 具体失败的题目 id 只进日志，不对外暴露
			monitoring.SubmitCounter.WithLabelValues("error").Inc()
			util.LogInternalError(ctx, err)
		}
		return
	}
	monitoring.SubmitCounter.WithLabelValues("ok").Inc()
	util.Success(ctx, gin.H{"submitted": true})
}

// @Summary 块树结构诊断
// @Description 列出悬空子引用并检测环；环属于硬性结构错误
// @Tags 表单
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "表单ID"
// @Success 200 {object} util.Response
// @Router /forms/{id}/validate [get]
func (c *FormController) Validate(ctx *gin.Context) {
	formID := util.MustParseUint(ctx.Param("id"))
	if formID == 0 {
		util.BadRequest(ctx, "invalid form id")
		return
	}

	report, err := c.Forms.Validate(formID)
	if err != nil {
		c.formError(ctx, err)
		return
	}
	util.Success(ctx, report)
}

func (c *FormController) formError(ctx *gin.Context, err error) {
	if errors.Is(err, util.ErrFormNotFound) {
		util.NotFound(ctx)
		return
	}
	// 块树成环属于无法自动恢复的结构错误
	if errors.Is(err, flow.ErrCyclicBlockTree) {
		util.Error(ctx, http.StatusUnprocessableEntity, "form structure invalid")
		return
	}
	util.LogInternalError(ctx, err)
}
