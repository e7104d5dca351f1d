package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	User             UserRepository
	Department       DepartmentRepository
	Course           CourseRepository
	Semester         SemesterRepository
	Registration     RegistrationRepository
	CourseUpload     CourseUploadRepository
	Approval         ApprovalRepository
	RegistrationCard RegistrationCardRepository
	Timetable        TimetableRepository
	TimetableSlot    TimetableSlotRepository
	Notification     NotificationRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:               db,
		User:             NewUserRepo(db),
		Department:       NewDepartmentRepo(db),
		Course:           NewCourseRepo(db),
		Semester:         NewSemesterRepo(db),
		Registration:     NewRegistrationRepo(db),
		CourseUpload:     NewCourseUploadRepo(db),
		Approval:         NewApprovalRepo(db),
		RegistrationCard: NewRegistrationCardRepo(db),
		Timetable:        NewTimetableRepo(db),
		TimetableSlot:    NewTimetableSlotRepo(db),
		Notification:     NewNotificationRepo(db),
	}
}

// BeginTx 开启事务
// db 为 nil（单元测试注入 mock）时返回 nil 事务
func (r *Repository) BeginTx(ctx context.Context) (*gorm.DB, error) {
	if r.db == nil {
		return nil, nil
	}
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return tx, nil
}

// WithTx 返回绑定到事务连接的 Repository
// tx 为 nil 时原样返回，便于 mock 测试复用同一套流程
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return NewRepository(tx)
}

// Transaction 在事务中执行 fn，fn 返回错误或 panic 时回滚
// 在事务 Repository 上再次调用时使用 SAVEPOINT 嵌套
func (r *Repository) Transaction(ctx context.Context, fn func(txRepo *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}
