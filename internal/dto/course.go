package dto

// ── 课程模块 DTO ──

// CreateCourseRequest 创建课程请求
type CreateCourseRequest struct {
	Code         string `json:"code"          binding:"required,min=2,max=20"`
	Title        string `json:"title"         binding:"required,min=2,max=200"`
	Credits      int    `json:"credits"       binding:"required,min=1,max=30"`
	DepartmentID string `json:"department_id" binding:"required,uuid"`
	Description  string `json:"description"   binding:"omitempty,max=2000"`
}

// UpdateCourseRequest 更新课程请求
type UpdateCourseRequest struct {
	Title        *string `json:"title"         binding:"omitempty,min=2,max=200"`
	Credits      *int    `json:"credits"       binding:"omitempty,min=1,max=30"`
	DepartmentID *string `json:"department_id" binding:"omitempty,uuid"`
	Description  *string `json:"description"   binding:"omitempty,max=2000"`
	IsActive     *bool   `json:"is_active"`
	Version      int     `json:"version"       binding:"required,min=1"` // 乐观锁版本号
}

// CourseListRequest 课程列表查询参数
type CourseListRequest struct {
	PaginationRequest
	DepartmentID    string `form:"department_id" binding:"omitempty,uuid"`
	Keyword         string `form:"keyword"       binding:"omitempty,max=50"`
	IncludeInactive bool   `form:"include_inactive"`
}

// CourseResponse 课程信息响应
type CourseResponse struct {
	ID          string              `json:"id"`
	Code        string              `json:"code"`
	Title       string              `json:"title"`
	Credits     int                 `json:"credits"`
	Department  *DepartmentResponse `json:"department,omitempty"`
	Description string              `json:"description,omitempty"`
	IsActive    bool                `json:"is_active"`
	Version     int                 `json:"version"`
	CreatedAt   string              `json:"created_at"`
	UpdatedAt   string              `json:"updated_at"`
}

// CourseBrief 课程简要信息（嵌入选课 / 课表响应）
type CourseBrief struct {
	ID      string `json:"id"`
	Code    string `json:"code"`
	Title   string `json:"title"`
	Credits int    `json:"credits"`
}
