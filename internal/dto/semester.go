package dto

// ── 学期模块 DTO ──

// CreateSemesterRequest 创建学期请求
// 截止时间为 RFC3339 格式，可选
type CreateSemesterRequest struct {
	Name                 string  `json:"name"                   binding:"required,min=2,max=100"`
	StartDate            string  `json:"start_date"             binding:"required,datetime=2006-01-02"` // "2026-08-10"
	EndDate              string  `json:"end_date"               binding:"required,datetime=2006-01-02"` // "2026-12-18"
	RegistrationDeadline *string `json:"registration_deadline"  binding:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	CourseUploadDeadline *string `json:"course_upload_deadline" binding:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// UpdateSemesterRequest 更新学期请求
type UpdateSemesterRequest struct {
	Name                 *string `json:"name"                   binding:"omitempty,min=2,max=100"`
	StartDate            *string `json:"start_date"             binding:"omitempty,datetime=2006-01-02"`
	EndDate              *string `json:"end_date"               binding:"omitempty,datetime=2006-01-02"`
	RegistrationDeadline *string `json:"registration_deadline"  binding:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	CourseUploadDeadline *string `json:"course_upload_deadline" binding:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// SemesterResponse 学期信息响应
type SemesterResponse struct {
	ID                   string  `json:"id"`
	Name                 string  `json:"name"`
	StartDate            string  `json:"start_date"`
	EndDate              string  `json:"end_date"`
	RegistrationDeadline *string `json:"registration_deadline,omitempty"`
	CourseUploadDeadline *string `json:"course_upload_deadline,omitempty"`
	IsActive             bool    `json:"is_active"`
	CreatedAt            string  `json:"created_at"`
	UpdatedAt            string  `json:"updated_at"`
}

// SemesterBrief 学期简要信息（嵌入其他响应）
type SemesterBrief struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
