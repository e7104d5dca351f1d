package dto

// ── 认证模块 DTO ──

// LoginRequest 登录请求（学号/工号 + 密码）
type LoginRequest struct {
	RegNo      string `json:"reg_no"   binding:"required"`
	Password   string `json:"password" binding:"required"`
	RememberMe bool   `json:"remember_me"`
}

// RefreshTokenRequest 刷新 Token 请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"` // 非 Cookie 模式时使用
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8,max=64"`
}

// TokenResponse 登录 / 刷新成功后的 Token 对
// RefreshToken 同时写入 HttpOnly Cookie，RefreshExpiresIn 仅供设置 Cookie 使用
type TokenResponse struct {
	AccessToken      string       `json:"access_token"`
	RefreshToken     string       `json:"refresh_token,omitempty"`
	ExpiresIn        int          `json:"expires_in"` // 秒
	RefreshExpiresIn int          `json:"-"`
	User             UserResponse `json:"user"`
}
