package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"bu-reg/backend/internal/dto"
	"bu-reg/backend/internal/service"
	"bu-reg/backend/pkg/response"
)

// SemesterHandler 学期模块 HTTP 处理器
type SemesterHandler struct {
	semesterSvc service.SemesterService
}

func NewSemesterHandler(semesterSvc service.SemesterService) *SemesterHandler {
	return &SemesterHandler{semesterSvc: semesterSvc}
}

// ListSemesters GET /api/v1/semesters
func (h *SemesterHandler) ListSemesters(c *gin.Context) {
	semesters, err := h.semesterSvc.List(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, gin.H{"list": semesters})
}

// GetSemester GET /api/v1/semesters/:id
func (h *SemesterHandler) GetSemester(c *gin.Context) {
	semester, err := h.semesterSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleSemesterError(c, err)
		return
	}
	response.OK(c, semester)
}

// GetCurrentSemester 当前活动学期，无活动学期时 404/14002
// GET /api/v1/semesters/current
func (h *SemesterHandler) GetCurrentSemester(c *gin.Context) {
	semester, err := h.semesterSvc.GetCurrent(c.Request.Context())
	if err != nil {
		h.handleSemesterError(c, err)
		return
	}
	response.OK(c, semester)
}

// CreateSemester POST /api/v1/semesters
func (h *SemesterHandler) CreateSemester(c *gin.Context) {
	var req dto.CreateSemesterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.InvalidParams(c, err)
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	semester, err := h.semesterSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleSemesterError(c, err)
		return
	}
	response.Created(c, semester)
}

// UpdateSemester 部分更新；截止时间传空字符串表示清除
// PUT /api/v1/semesters/:id
func (h *SemesterHandler) UpdateSemester(c *gin.Context) {
	var req dto.UpdateSemesterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.InvalidParams(c, err)
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	semester, err := h.semesterSvc.Update(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		h.handleSemesterError(c, err)
		return
	}
	response.OK(c, semester)
}

// ActivateSemester 设为当前学期，原活动学期自动停用
// PUT /api/v1/semesters/:id/activate
func (h *SemesterHandler) ActivateSemester(c *gin.Context) {
	h.mutate(c, h.semesterSvc.Activate)
}

// DeactivateSemester PUT /api/v1/semesters/:id/deactivate
func (h *SemesterHandler) DeactivateSemester(c *gin.Context) {
	h.mutate(c, h.semesterSvc.Deactivate)
}

// DeleteSemester 活动学期或已有注册记录的学期不可删除
// DELETE /api/v1/semesters/:id
func (h *SemesterHandler) DeleteSemester(c *gin.Context) {
	h.mutate(c, h.semesterSvc.Delete)
}

// mutate 执行以路径 id 和调用者为参数、无返回体的学期操作
func (h *SemesterHandler) mutate(c *gin.Context, op func(ctx context.Context, id, callerID string) error) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	if err := op(c.Request.Context(), c.Param("id"), callerID); err != nil {
		h.handleSemesterError(c, err)
		return
	}
	response.OK(c, nil)
}

// handleSemesterError 业务错误的提示文案直接取自 error
func (h *SemesterHandler) handleSemesterError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSemesterNotFound):
		response.NotFound(c, 14001, err.Error())
	case errors.Is(err, service.ErrNoActiveSemester):
		response.NotFound(c, 14002, err.Error())
	case errors.Is(err, service.ErrSemesterDateInvalid):
		response.BadRequest(c, 14003, err.Error())
	case errors.Is(err, service.ErrSemesterDeadlineInvalid):
		response.BadRequest(c, 14004, err.Error())
	case errors.Is(err, service.ErrSemesterNameExists):
		response.Conflict(c, 14005, err.Error())
	case errors.Is(err, service.ErrSemesterActive):
		response.Conflict(c, 14006, err.Error())
	case errors.Is(err, service.ErrSemesterHasRegistrations):
		response.Conflict(c, 14007, err.Error())
	case errors.Is(err, service.ErrSemesterActivateConflict):
		response.Conflict(c, 14008, err.Error())
	default:
		response.InternalError(c)
	}
}
