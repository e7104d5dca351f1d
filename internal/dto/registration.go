package dto

// ── 选课注册模块 DTO ──

// AddCourseRequest 学生选课请求
// SemesterID 为空时使用当前活动学期
type AddCourseRequest struct {
	CourseID   string `json:"course_id"   binding:"required,uuid"`
	SemesterID string `json:"semester_id" binding:"omitempty,uuid"`
}

// ReviewRequest 审批请求（单门课程 / 整体注册共用）
type ReviewRequest struct {
	Status  string `json:"status"  binding:"required,oneof=APPROVED REJECTED"`
	Remarks string `json:"remarks" binding:"omitempty,max=500"`
}

// RegistrationListRequest 注册列表查询参数（教务）
type RegistrationListRequest struct {
	PaginationRequest
	SemesterID   string `form:"semester_id"   binding:"omitempty,uuid"`
	Status       string `form:"status"        binding:"omitempty,oneof=PENDING APPROVED REJECTED"`
	DepartmentID string `form:"department_id" binding:"omitempty,uuid"`
}

// CourseUploadListRequest 待审批课程队列查询参数
type CourseUploadListRequest struct {
	PaginationRequest
	SemesterID string `form:"semester_id" binding:"omitempty,uuid"`
	Status     string `form:"status"      binding:"omitempty,oneof=PENDING APPROVED REJECTED"`
	CourseID   string `form:"course_id"   binding:"omitempty,uuid"`
}

// CourseUploadResponse 选课明细响应
type CourseUploadResponse struct {
	ID             string             `json:"id"`
	RegistrationID string             `json:"registration_id"`
	SemesterID     string             `json:"semester_id"`
	StudentID      string             `json:"student_id"`
	StudentName    string             `json:"student_name,omitempty"`
	Course         *CourseBrief       `json:"course,omitempty"`
	Status         string             `json:"status"`
	Approvals      []ApprovalResponse `json:"approvals,omitempty"`
	CreatedAt      string             `json:"created_at"`
	UpdatedAt      string             `json:"updated_at"`
}

// ApprovalResponse 审批记录响应
type ApprovalResponse struct {
	ID           string `json:"id"`
	ApproverID   string `json:"approver_id"`
	ApproverName string `json:"approver_name,omitempty"`
	Status       string `json:"status"`
	Remarks      string `json:"remarks,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// RegistrationResponse 学期注册响应
type RegistrationResponse struct {
	ID           string                 `json:"id"`
	StudentID    string                 `json:"student_id"`
	StudentName  string                 `json:"student_name,omitempty"`
	Semester     *SemesterBrief         `json:"semester,omitempty"`
	Status       string                 `json:"status"`
	TotalCredits int                    `json:"total_credits"` // PENDING + APPROVED 学分合计
	Courses      []CourseUploadResponse `json:"courses"`
	Card         *RegistrationCardBrief `json:"card,omitempty"`
	CreatedAt    string                 `json:"created_at"`
	UpdatedAt    string                 `json:"updated_at"`
}

// ReviewResult 审批结果
type ReviewResult struct {
	CourseUploadIDs    []string               `json:"course_upload_ids"`
	RegistrationID     string                 `json:"registration_id"`
	RegistrationStatus string                 `json:"registration_status"`
	Card               *RegistrationCardBrief `json:"card,omitempty"`
}

// RegistrationCardBrief 注册卡简要信息
type RegistrationCardBrief struct {
	CardNumber string `json:"card_number"`
	IssuedAt   string `json:"issued_at"`
}

// RegistrationCardResponse 注册卡详情
type RegistrationCardResponse struct {
	ID           string         `json:"id"`
	CardNumber   string         `json:"card_number"`
	StudentID    string         `json:"student_id"`
	StudentName  string         `json:"student_name,omitempty"`
	StudentRegNo string         `json:"student_reg_no,omitempty"`
	Semester     *SemesterBrief `json:"semester,omitempty"`
	IssuedAt     string         `json:"issued_at"`
}
