package handler

import (
	"github.com/gin-gonic/gin"

	"bu-reg/backend/pkg/response"
)

// contextString 读取 JWTAuth 注入的字符串字段，缺失或为空时写入 401
func contextString(c *gin.Context, key string) (string, bool) {
	s, _ := c.Get(key)
	v, _ := s.(string)
	if v == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return v, true
}

// MustGetUserID 当前登录用户 ID；ok=false 时已写入响应，调用方直接 return
func MustGetUserID(c *gin.Context) (string, bool) {
	return contextString(c, "user_id")
}

// MustGetCaller 当前登录用户 ID 与角色，用于本人/教职工两类权限判断
func MustGetCaller(c *gin.Context) (userID, role string, ok bool) {
	if userID, ok = contextString(c, "user_id"); !ok {
		return "", "", false
	}
	if role, ok = contextString(c, "role"); !ok {
		return "", "", false
	}
	return userID, role, true
}
