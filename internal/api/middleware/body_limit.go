package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bu-reg/backend/pkg/response"
)

// BodyLimit 限制请求体大小
// multipart 上传（Excel / ICS 导入）使用 uploadMax，其余请求使用 jsonMax
// Content-Length 已知超限时直接拒绝，未知长度由 MaxBytesReader 在读取时截断
func BodyLimit(jsonMax, uploadMax int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := jsonMax
		if strings.HasPrefix(c.ContentType(), "multipart/") {
			limit = uploadMax
		}

		if c.Request.ContentLength > limit {
			response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}

		c.Next()
	}
}
