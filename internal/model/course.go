package model

// Course 课程表 对应 courses
// Credits 在定义时只要求为正数，3~24 学分约束在选课时校验
type Course struct {
	CourseID     string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"course_id"`
	Code         string `gorm:"type:varchar(20);not null"                      json:"code"`
	Title        string `gorm:"type:varchar(200);not null"                     json:"title"`
	Credits      int    `gorm:"type:smallint;not null"                         json:"credits"`
	DepartmentID string `gorm:"type:uuid;not null"                             json:"department_id"`
	Description  string `gorm:"type:text"                                      json:"description,omitempty"`
	IsActive     bool   `gorm:"not null;default:true"                          json:"is_active"`
	VersionedModel

	// 关联
	Department *Department `gorm:"foreignKey:DepartmentID;references:DepartmentID" json:"department,omitempty"`
}

// TableName 指定表名
func (Course) TableName() string { return "courses" }
