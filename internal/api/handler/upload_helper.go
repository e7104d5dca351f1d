package handler

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"bu-reg/backend/internal/service"
	"bu-reg/backend/pkg/response"
)

// openUpload 读取 multipart 字段 file，超出 maxSize 时返回 413
func openUpload(c *gin.Context, maxSize int64) (multipart.File, bool) {
	header, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, 10001, "请上传文件（字段名 file）")
		return nil, false
	}
	if header.Size > maxSize {
		response.Error(c, http.StatusRequestEntityTooLarge, 10005, "文件过大")
		return nil, false
	}

	file, err := header.Open()
	if err != nil {
		response.BadRequest(c, 10001, "无法读取上传文件")
		return nil, false
	}
	return file, true
}

// handleImportError Excel 解析错误（用户 / 课程导入共用）
func handleImportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrImportBadFile):
		response.BadRequest(c, 10006, "无法解析 Excel 文件")
	case errors.Is(err, service.ErrImportBadHeader):
		response.ErrorWithDetails(c, http.StatusBadRequest, 10007, "Excel 表头缺少必要列", err.Error())
	case errors.Is(err, service.ErrImportNoData):
		response.BadRequest(c, 10008, "Excel 文件无数据行")
	case errors.Is(err, service.ErrImportTooManyRows):
		response.BadRequest(c, 10009, err.Error())
	default:
		response.InternalError(c)
	}
}
