package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bu-reg/backend/internal/dto"
	"bu-reg/backend/internal/service"
	"bu-reg/backend/pkg/response"
)

// maxICSFileSize ICS 上传文件上限 2MB
const maxICSFileSize = 2 << 20

// TimetableHandler 课表模块 Handler
type TimetableHandler struct {
	svc service.TimetableService
	// fetchICS 可在测试中替换
	fetchICS func(rawURL string) (io.ReadCloser, error)
}

// NewTimetableHandler 创建 TimetableHandler 实例
func NewTimetableHandler(svc service.TimetableService) *TimetableHandler {
	return &TimetableHandler{svc: svc, fetchICS: service.FetchICSContent}
}

// ────────────────────── 课表 ──────────────────────

// ListTimetables 课表列表
// GET /api/v1/timetables
func (h *TimetableHandler) ListTimetables(c *gin.Context) {
	var req dto.TimetableListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.InvalidParams(c, err)
		return
	}

	list, err := h.svc.List(c.Request.Context(), &req)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// GetTimetable 课表详情（含时段）
// GET /api/v1/timetables/:id
func (h *TimetableHandler) GetTimetable(c *gin.Context) {
	resp, err := h.svc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, resp)
}

// CreateTimetable 创建课表
// POST /api/v1/timetables
func (h *TimetableHandler) CreateTimetable(c *gin.Context) {
	var req dto.CreateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.InvalidParams(c, err)
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	resp, err := h.svc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.Created(c, resp)
}

// UpdateTimetable 更新课表（重命名 / 发布）
// PUT /api/v1/timetables/:id
func (h *TimetableHandler) UpdateTimetable(c *gin.Context) {
	var req dto.UpdateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.InvalidParams(c, err)
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	resp, err := h.svc.Update(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, resp)
}

// DeleteTimetable 删除课表及其全部时段
// DELETE /api/v1/timetables/:id
func (h *TimetableHandler) DeleteTimetable(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), callerID); err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, nil)
}

// ────────────────────── 时段 ──────────────────────

// CreateSlot 添加时段
// POST /api/v1/timetables/:id/slots
func (h *TimetableHandler) CreateSlot(c *gin.Context) {
	var req dto.CreateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.InvalidParams(c, err)
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	resp, err := h.svc.CreateSlot(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.Created(c, resp)
}

// UpdateSlot 更新时段
// PUT /api/v1/timetable-slots/:id
func (h *TimetableHandler) UpdateSlot(c *gin.Context) {
	var req dto.UpdateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.InvalidParams(c, err)
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	resp, err := h.svc.UpdateSlot(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, resp)
}

// DeleteSlot 删除时段
// DELETE /api/v1/timetable-slots/:id
func (h *TimetableHandler) DeleteSlot(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.svc.DeleteSlot(c.Request.Context(), c.Param("id"), callerID); err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, nil)
}

// ImportICS 从 ICS 导入时段
// POST /api/v1/timetables/:id/import
//
// 支持两种方式：
//   - 文件上传: multipart/form-data, field="file"
//   - URL 导入: application/json, body={"url": "..."}
func (h *TimetableHandler) ImportICS(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	timetableID := c.Param("id")

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, ok := openUpload(c, maxICSFileSize)
		if !ok {
			return
		}
		defer file.Close()

		resp, err := h.svc.ImportICS(c.Request.Context(), timetableID, file, callerID)
		if err != nil {
			handleTimetableError(c, err)
			return
		}
		response.OK(c, resp)
		return
	}

	var req dto.ImportICSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "请上传 ICS 文件或提供 ICS URL")
		return
	}

	body, err := h.fetchICS(req.URL)
	if err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 17007, "ICS URL 获取失败", err.Error())
		return
	}
	defer body.Close()

	resp, err := h.svc.ImportICS(c.Request.Context(), timetableID, body, callerID)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, resp)
}

// GetMyTimetable 学生个人课表
// GET /api/v1/timetables/me?semester_id=
func (h *TimetableHandler) GetMyTimetable(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	resp, err := h.svc.GetStudentTimetable(c.Request.Context(), userID, c.Query("semester_id"))
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, resp)
}

// handleTimetableError 统一课表模块错误映射
func handleTimetableError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTimetableNotFound):
		response.NotFound(c, 17001, "课表不存在")
	case errors.Is(err, service.ErrSlotNotFound):
		response.NotFound(c, 17002, "课表时段不存在")
	case errors.Is(err, service.ErrSlotOverlap):
		response.ErrorWithDetails(c, http.StatusConflict, 17003, "该时段与同一天已有时段重叠", err.Error())
	case errors.Is(err, service.ErrInvalidTimeRange), errors.Is(err, service.ErrInvalidClock):
		response.BadRequest(c, 17004, "时间范围无效")
	case errors.Is(err, service.ErrInvalidDayOfWeek):
		response.BadRequest(c, 17005, "星期取值应为 1-7")
	case errors.Is(err, service.ErrLecturerNotFound):
		response.NotFound(c, 17006, "授课教师不存在")
	case errors.Is(err, service.ErrTimetableICSParseFailed):
		response.ErrorWithDetails(c, http.StatusBadRequest, 17008, "ICS 文件解析失败", err.Error())
	case errors.Is(err, service.ErrTimetableICSEmpty):
		response.BadRequest(c, 17009, "ICS 文件中无有效课程")
	case errors.Is(err, service.ErrCourseNotFound):
		response.NotFound(c, 15001, "课程不存在")
	case errors.Is(err, service.ErrDepartmentNotFound):
		response.NotFound(c, 13001, "院系不存在")
	case errors.Is(err, service.ErrSemesterNotFound):
		response.NotFound(c, 14001, "学期不存在")
	case errors.Is(err, service.ErrNoActiveSemester):
		response.NotFound(c, 14002, "当前没有活动学期")
	default:
		response.InternalError(c)
	}
}
