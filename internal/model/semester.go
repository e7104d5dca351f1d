package model

import "time"

// Semester 学期表 对应 semesters
// 同一时刻至多一个 is_active=true（激活时在事务内清除其他学期，并由部分唯一索引兜底）
type Semester struct {
	SemesterID           string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"semester_id"`
	Name                 string     `gorm:"type:varchar(100);not null"                     json:"name"`
	StartDate            time.Time  `gorm:"type:date;not null"                             json:"start_date"`
	EndDate              time.Time  `gorm:"type:date;not null"                             json:"end_date"`
	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty"`
	CourseUploadDeadline *time.Time `json:"course_upload_deadline,omitempty"`
	IsActive             bool       `gorm:"not null;default:false"                         json:"is_active"`
	VersionedModel
}

// TableName 指定表名
func (Semester) TableName() string { return "semesters" }
