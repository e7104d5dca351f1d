package dto

// ── 课表模块 DTO ──

// CreateTimetableRequest 创建课表请求
type CreateTimetableRequest struct {
	Name         string  `json:"name"          binding:"required,min=2,max=100"`
	SemesterID   string  `json:"semester_id"   binding:"required,uuid"`
	DepartmentID *string `json:"department_id" binding:"omitempty,uuid"`
}

// UpdateTimetableRequest 更新课表请求
type UpdateTimetableRequest struct {
	Name        *string `json:"name"         binding:"omitempty,min=2,max=100"`
	IsPublished *bool   `json:"is_published"`
}

// TimetableListRequest 课表列表查询参数
type TimetableListRequest struct {
	SemesterID   string `form:"semester_id"   binding:"omitempty,uuid"`
	DepartmentID string `form:"department_id" binding:"omitempty,uuid"`
}

// TimetableResponse 课表响应
type TimetableResponse struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Semester     *SemesterBrief      `json:"semester,omitempty"`
	DepartmentID *string             `json:"department_id,omitempty"`
	IsPublished  bool                `json:"is_published"`
	Slots        []SlotResponse      `json:"slots,omitempty"`
	CreatedAt    string              `json:"created_at"`
	UpdatedAt    string              `json:"updated_at"`
}

// CreateSlotRequest 创建课表时段请求
type CreateSlotRequest struct {
	CourseID   string  `json:"course_id"   binding:"required,uuid"`
	LecturerID *string `json:"lecturer_id" binding:"omitempty,uuid"`
	DayOfWeek  int     `json:"day_of_week" binding:"required,min=1,max=7"`
	StartTime  string  `json:"start_time"  binding:"required,clock"` // "08:00"
	EndTime    string  `json:"end_time"    binding:"required,clock"` // "10:00"
	Room       string  `json:"room"        binding:"required,max=50"`
}

// UpdateSlotRequest 更新课表时段请求
type UpdateSlotRequest struct {
	CourseID   *string `json:"course_id"   binding:"omitempty,uuid"`
	LecturerID *string `json:"lecturer_id" binding:"omitempty,uuid"`
	DayOfWeek  *int    `json:"day_of_week" binding:"omitempty,min=1,max=7"`
	StartTime  *string `json:"start_time"  binding:"omitempty,clock"`
	EndTime    *string `json:"end_time"    binding:"omitempty,clock"`
	Room       *string `json:"room"        binding:"omitempty,max=50"`
}

// SlotResponse 课表时段响应
type SlotResponse struct {
	ID          string       `json:"id"`
	TimetableID string       `json:"timetable_id"`
	Course      *CourseBrief `json:"course,omitempty"`
	LecturerID  *string      `json:"lecturer_id,omitempty"`
	DayOfWeek   int          `json:"day_of_week"`
	StartTime   string       `json:"start_time"`
	EndTime     string       `json:"end_time"`
	Room        string       `json:"room"`
}

// ImportSlotsResponse ICS 导入结果
type ImportSlotsResponse struct {
	Total     int               `json:"total"`
	Created   int               `json:"created"`
	Conflicts []SlotImportError `json:"conflicts,omitempty"`
}

// SlotImportError 单个事件导入失败原因
type SlotImportError struct {
	Summary   string `json:"summary"`
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason"`
}

// StudentTimetableResponse 学生个人课表
type StudentTimetableResponse struct {
	Semester *SemesterBrief `json:"semester"`
	Slots    []SlotResponse `json:"slots"`
}

// ImportICSRequest 通过 URL 导入 ICS（文件上传走 multipart）
type ImportICSRequest struct {
	URL string `json:"url" binding:"required,max=2048"`
}
