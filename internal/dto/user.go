package dto

// ── 用户模块 DTO ──

// CreateUserRequest 创建用户请求
type CreateUserRequest struct {
	Name         string  `json:"name"          binding:"required,min=2,max=100"`
	RegNo        string  `json:"reg_no"        binding:"required,min=3,max=30"`
	Email        string  `json:"email"         binding:"required,email"`
	Role         string  `json:"role"          binding:"required,oneof=student staff registrar admin"`
	DepartmentID *string `json:"department_id" binding:"omitempty,uuid"`
}

// CreateUserResponse 创建用户响应（含一次性临时密码）
type CreateUserResponse struct {
	User         *UserResponse `json:"user"`
	TempPassword string        `json:"temp_password"`
}

// UserListRequest 用户列表查询参数
type UserListRequest struct {
	PaginationRequest
	DepartmentID string `form:"department_id" binding:"omitempty,uuid"`
	Role         string `form:"role"          binding:"omitempty,oneof=student staff registrar admin"`
	Keyword      string `form:"keyword"       binding:"omitempty,max=50"`
}

// UpdateUserRequest 更新用户信息请求
type UpdateUserRequest struct {
	Name         *string `json:"name"          binding:"omitempty,min=2,max=100"`
	Email        *string `json:"email"         binding:"omitempty,email"`
	DepartmentID *string `json:"department_id" binding:"omitempty,uuid"`
}

// AssignRoleRequest 分配角色请求
type AssignRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=student staff registrar admin"`
}

// ResetPasswordResponse 重置密码响应
type ResetPasswordResponse struct {
	TempPassword string `json:"temp_password"`
}

// ImportResponse 批量导入响应（用户 / 课程共用）
type ImportResponse struct {
	Total   int           `json:"total"`
	Success int           `json:"success"`
	Failed  int           `json:"failed"`
	Errors  []ImportError `json:"errors,omitempty"`
}

// ImportError 导入错误详情
type ImportError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// UserResponse 对外暴露的用户信息，不含密码哈希
type UserResponse struct {
	ID                 string              `json:"id"`
	Name               string              `json:"name"`
	Email              string              `json:"email"`
	RegNo              string              `json:"reg_no"`
	Role               string              `json:"role"`
	Department         *DepartmentResponse `json:"department,omitempty"`
	MustChangePassword bool                `json:"must_change_password"`
}

// UserDetailResponse GET /auth/me，在 UserResponse 基础上附带创建时间
type UserDetailResponse struct {
	UserResponse
	CreatedAt string `json:"created_at"`
}

// DepartmentResponse 嵌入用户信息中的院系摘要
type DepartmentResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
