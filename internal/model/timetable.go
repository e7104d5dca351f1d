package model

// Timetable 课表 对应 timetables
type Timetable struct {
	TimetableID  string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"timetable_id"`
	SemesterID   string  `gorm:"type:uuid;not null"                             json:"semester_id"`
	DepartmentID *string `gorm:"type:uuid"                                      json:"department_id,omitempty"`
	Name         string  `gorm:"type:varchar(100);not null"                     json:"name"`
	IsPublished  bool    `gorm:"not null;default:false"                         json:"is_published"`
	SoftDeleteModel

	// 关联
	Semester   *Semester   `gorm:"foreignKey:SemesterID;references:SemesterID"     json:"semester,omitempty"`
	Department *Department `gorm:"foreignKey:DepartmentID;references:DepartmentID" json:"department,omitempty"`
}

// TableName 指定表名
func (Timetable) TableName() string { return "timetables" }

// TimetableSlot 课表时段 对应 timetable_slots
// 同一课表同一天内的 [start_time, end_time) 区间互不重叠
type TimetableSlot struct {
	SlotID      string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"slot_id"`
	TimetableID string  `gorm:"type:uuid;not null"                             json:"timetable_id"`
	CourseID    string  `gorm:"type:uuid;not null"                             json:"course_id"`
	LecturerID  *string `gorm:"type:uuid"                                      json:"lecturer_id,omitempty"`
	DayOfWeek   int     `gorm:"type:smallint;not null"                         json:"day_of_week"` // 1=周一 … 7=周日
	StartTime   string  `gorm:"type:time;not null"                             json:"start_time"`
	EndTime     string  `gorm:"type:time;not null"                             json:"end_time"`
	Room        string  `gorm:"type:varchar(50);not null"                      json:"room"`
	SoftDeleteModel

	// 关联
	Course   *Course `gorm:"foreignKey:CourseID;references:CourseID" json:"course,omitempty"`
	Lecturer *User   `gorm:"foreignKey:LecturerID;references:UserID" json:"lecturer,omitempty"`
}

// TableName 指定表名
func (TimetableSlot) TableName() string { return "timetable_slots" }
