package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bu-reg/backend/internal/dto"
	"bu-reg/backend/internal/service"
	"bu-reg/backend/pkg/response"
)

// RegistrationHandler 选课注册模块 HTTP 处理器
type RegistrationHandler struct {
	regSvc service.RegistrationService
}

// NewRegistrationHandler 创建 RegistrationHandler
func NewRegistrationHandler(regSvc service.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{regSvc: regSvc}
}

// ────────────────────── 学生 ──────────────────────

// AddCourse 学生选课
// POST /api/v1/registrations/courses
func (h *RegistrationHandler) AddCourse(c *gin.Context) {
	var req dto.AddCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.InvalidParams(c, err)
		return
	}

	studentID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.regSvc.AddCourse(c.Request.Context(), studentID, &req)
	if err != nil {
		h.handleRegistrationError(c, err)
		return
	}

	response.Created(c, result)
}

// RemoveCourse 撤销选课
// DELETE /api/v1/registrations/courses/:id
func (h *RegistrationHandler) RemoveCourse(c *gin.Context) {
	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	if err := h.regSvc.RemoveCourse(c.Request.Context(), callerID, role, c.Param("id")); err != nil {
		h.handleRegistrationError(c, err)
		return
	}

	response.OK(c, nil)
}

// ListMyRegistrations 我的注册记录
// GET /api/v1/registrations/me?semester_id=
func (h *RegistrationHandler) ListMyRegistrations(c *gin.Context) {
	studentID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	list, err := h.regSvc.ListMyRegistrations(c.Request.Context(), studentID, c.Query("semester_id"))
	if err != nil {
		h.handleRegistrationError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// GetMyCard 我的注册卡
// GET /api/v1/registrations/me/card?semester_id=
func (h *RegistrationHandler) GetMyCard(c *gin.Context) {
	studentID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	card, err := h.regSvc.GetMyCard(c.Request.Context(), studentID, c.Query("semester_id"))
	if err != nil {
		h.handleRegistrationError(c, err)
		return
	}

	response.OK(c, card)
}

// ────────────────────── 查询 ──────────────────────

// GetRegistration 注册详情（本人或教职工）
// GET /api/v1/registrations/:id
func (h *RegistrationHandler) GetRegistration(c *gin.Context) {
	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	reg, err := h.regSvc.GetRegistration(c.Request.Context(), callerID, role, c.Param("id"))
	if err != nil {
		h.handleRegistrationError(c, err)
		return
	}

	response.OK(c, reg)
}

// ListRegistrations 注册列表
// GET /api/v1/registrations
func (h *RegistrationHandler) ListRegistrations(c *gin.Context) {
	var req dto.RegistrationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.InvalidParams(c, err)
		return
	}

	list, total, err := h.regSvc.ListRegistrations(c.Request.Context(), &req)
	if err != nil {
		h.handleRegistrationError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// ListCourseUploads 选课审批队列
// GET /api/v1/course-uploads
func (h *RegistrationHandler) ListCourseUploads(c *gin.Context) {
	var req dto.CourseUploadListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.InvalidParams(c, err)
		return
	}

	list, total, err := h.regSvc.ListCourseUploads(c.Request.Context(), &req)
	if err != nil {
		h.handleRegistrationError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// ────────────────────── 审批 ──────────────────────

// ReviewCourseUpload 审批单门课程
// POST /api/v1/course-uploads/:id/review
func (h *RegistrationHandler) ReviewCourseUpload(c *gin.Context) {
	var req dto.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.InvalidParams(c, err)
		return
	}

	reviewerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.regSvc.ReviewCourseUpload(c.Request.Context(), reviewerID, c.Param("id"), &req)
	if err != nil {
		h.handleRegistrationError(c, err)
		return
	}

	response.OK(c, result)
}

// ReviewRegistration 整体审批注册下全部待审课程
// POST /api/v1/registrations/:id/review
func (h *RegistrationHandler) ReviewRegistration(c *gin.Context) {
	var req dto.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.InvalidParams(c, err)
		return
	}

	reviewerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.regSvc.ReviewRegistration(c.Request.Context(), reviewerID, c.Param("id"), &req)
	if err != nil {
		h.handleRegistrationError(c, err)
		return
	}

	response.OK(c, result)
}

// ────────────────────── 注册卡 ──────────────────────

// GetCardByNumber 按卡号核验注册卡
// GET /api/v1/cards/:number
func (h *RegistrationHandler) GetCardByNumber(c *gin.Context) {
	card, err := h.regSvc.GetCardByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.handleRegistrationError(c, err)
		return
	}

	response.OK(c, card)
}

// ListCards 学期注册卡列表
// GET /api/v1/cards?semester_id=
func (h *RegistrationHandler) ListCards(c *gin.Context) {
	var page dto.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		response.InvalidParams(c, err)
		return
	}

	list, total, err := h.regSvc.ListCards(c.Request.Context(), c.Query("semester_id"), &page)
	if err != nil {
		h.handleRegistrationError(c, err)
		return
	}

	response.OKPage(c, list, total, page.GetPage(), page.GetPageSize())
}

// handleRegistrationError 统一处理选课注册模块业务错误
func (h *RegistrationHandler) handleRegistrationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRegistrationNotFound):
		response.NotFound(c, 16001, "注册记录不存在")
	case errors.Is(err, service.ErrCourseUploadNotFound):
		response.NotFound(c, 16002, "选课记录不存在")
	case errors.Is(err, service.ErrDuplicateRegistration):
		response.Conflict(c, 16003, "本学期已选过该课程")
	case errors.Is(err, service.ErrRegistrationClosed):
		response.BadRequest(c, 16004, "本学期选课已截止")
	case errors.Is(err, service.ErrCourseCreditsTooLow):
		response.BadRequest(c, 16005, "课程学分低于最低要求")
	case errors.Is(err, service.ErrCreditLimitExceeded):
		response.BadRequest(c, 16006, "本学期学分超出上限")
	case errors.Is(err, service.ErrUploadAlreadyApproved):
		response.BadRequest(c, 16007, "已审批通过的课程不能撤销")
	case errors.Is(err, service.ErrUploadAlreadyReviewed):
		response.Conflict(c, 16008, "该课程已审批")
	case errors.Is(err, service.ErrNoPendingUploads):
		response.BadRequest(c, 16009, "没有待审批的课程")
	case errors.Is(err, service.ErrInvalidReviewDecision):
		response.BadRequest(c, 16010, "审批结果只能为 APPROVED 或 REJECTED")
	case errors.Is(err, service.ErrCardNumberExhausted):
		response.Error(c, http.StatusServiceUnavailable, 16011, "注册卡号生成失败，请重试")
	case errors.Is(err, service.ErrCardNotFound):
		response.NotFound(c, 19001, "注册卡不存在")
	case errors.Is(err, service.ErrCourseNotFound):
		response.NotFound(c, 15001, "课程不存在")
	case errors.Is(err, service.ErrCourseInactive):
		response.BadRequest(c, 15004, "课程已停开")
	case errors.Is(err, service.ErrSemesterNotFound):
		response.NotFound(c, 14001, "学期不存在")
	case errors.Is(err, service.ErrNoActiveSemester):
		response.NotFound(c, 14002, "当前没有活动学期")
	case errors.Is(err, service.ErrNoPermission):
		response.Forbidden(c, 10003, "无权操作")
	default:
		response.InternalError(c)
	}
}
