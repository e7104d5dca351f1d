package model

import "time"

// Registration 学期注册表 对应 registrations
// 一个学生在一个学期至多一条；首次选课时创建，最后一门课被移除时删除
type Registration struct {
	RegistrationID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"registration_id"`
	StudentID      string `gorm:"type:uuid;not null"                             json:"student_id"`
	SemesterID     string `gorm:"type:uuid;not null"                             json:"semester_id"`
	Status         string `gorm:"type:varchar(20);not null;default:'PENDING'"    json:"status"` // PENDING | APPROVED | REJECTED
	BaseModel

	// 关联
	Student       *User          `gorm:"foreignKey:StudentID;references:UserID"        json:"student,omitempty"`
	Semester      *Semester      `gorm:"foreignKey:SemesterID;references:SemesterID"   json:"semester,omitempty"`
	CourseUploads []CourseUpload `gorm:"foreignKey:RegistrationID"                     json:"course_uploads,omitempty"`
}

// TableName 指定表名
func (Registration) TableName() string { return "registrations" }

// CourseUpload 选课明细表 对应 course_uploads
// (student_id, course_id, semester_id) 唯一
type CourseUpload struct {
	CourseUploadID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"course_upload_id"`
	StudentID      string `gorm:"type:uuid;not null"                             json:"student_id"`
	CourseID       string `gorm:"type:uuid;not null"                             json:"course_id"`
	SemesterID     string `gorm:"type:uuid;not null"                             json:"semester_id"`
	RegistrationID string `gorm:"type:uuid;not null"                             json:"registration_id"`
	Status         string `gorm:"type:varchar(20);not null;default:'PENDING'"    json:"status"`
	BaseModel

	// 关联
	Course    *Course    `gorm:"foreignKey:CourseID;references:CourseID"  json:"course,omitempty"`
	Student   *User      `gorm:"foreignKey:StudentID;references:UserID"   json:"student,omitempty"`
	Approvals []Approval `gorm:"foreignKey:CourseUploadID"                json:"approvals,omitempty"`
}

// TableName 指定表名
func (CourseUpload) TableName() string { return "course_uploads" }

// Approval 审批记录表 对应 approvals（纯审计日志，只增不改）
type Approval struct {
	ApprovalID     string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"approval_id"`
	CourseUploadID string    `gorm:"type:uuid;not null"                             json:"course_upload_id"`
	ApproverID     string    `gorm:"type:uuid;not null"                             json:"approver_id"`
	Status         string    `gorm:"type:varchar(20);not null"                      json:"status"`
	Remarks        string    `gorm:"type:varchar(500)"                              json:"remarks,omitempty"`
	CreatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`

	// 关联
	Approver *User `gorm:"foreignKey:ApproverID;references:UserID" json:"approver,omitempty"`
}

// TableName 指定表名
func (Approval) TableName() string { return "approvals" }

// RegistrationCard 注册卡表 对应 registration_cards
// (student_id, semester_id) 唯一，card_number 唯一
type RegistrationCard struct {
	CardID         string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"card_id"`
	StudentID      string    `gorm:"type:uuid;not null"                             json:"student_id"`
	SemesterID     string    `gorm:"type:uuid;not null"                             json:"semester_id"`
	RegistrationID string    `gorm:"type:uuid;not null"                             json:"registration_id"`
	CardNumber     string    `gorm:"type:varchar(40);not null"                      json:"card_number"`
	IssuedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"issued_at"`
	BaseModel

	// 关联
	Student  *User     `gorm:"foreignKey:StudentID;references:UserID"      json:"student,omitempty"`
	Semester *Semester `gorm:"foreignKey:SemesterID;references:SemesterID" json:"semester,omitempty"`
}

// TableName 指定表名
func (RegistrationCard) TableName() string { return "registration_cards" }
