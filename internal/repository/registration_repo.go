package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bu-reg/backend/internal/model"
)

// RegistrationRepository 学期注册数据访问接口
type RegistrationRepository interface {
	Create(ctx context.Context, reg *model.Registration) error
	GetByID(ctx context.Context, id string) (*model.Registration, error)
	GetByStudentSemester(ctx context.Context, studentID, semesterID string) (*model.Registration, error)
	GetForUpdate(ctx context.Context, id string) (*model.Registration, error)
	GetOrCreateForUpdate(ctx context.Context, studentID, semesterID string) (*model.Registration, error)
	ListByStudent(ctx context.Context, studentID, semesterID string) ([]model.Registration, error)
	List(ctx context.Context, filter RegistrationFilter, offset, limit int) ([]model.Registration, int64, error)
	UpdateStatus(ctx context.Context, id, status string) error
	Delete(ctx context.Context, id string) error
}

// RegistrationFilter 注册列表过滤条件
type RegistrationFilter struct {
	SemesterID   string
	Status       string
	DepartmentID string // 学生所属院系
}

type registrationRepo struct {
	db *gorm.DB
}

// NewRegistrationRepo 创建 RegistrationRepository 实例
func NewRegistrationRepo(db *gorm.DB) RegistrationRepository {
	return &registrationRepo{db: db}
}

func (r *registrationRepo) Create(ctx context.Context, reg *model.Registration) error {
	return r.db.WithContext(ctx).Create(reg).Error
}

func (r *registrationRepo) GetByID(ctx context.Context, id string) (*model.Registration, error) {
	var reg model.Registration
	err := r.db.WithContext(ctx).
		Preload("Student").
		Preload("Semester").
		Preload("CourseUploads", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("CourseUploads.Course", includeDeleted).
		Preload("CourseUploads.Approvals", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("registration_id = ?", id).
		First(&reg).Error
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *registrationRepo) GetByStudentSemester(ctx context.Context, studentID, semesterID string) (*model.Registration, error) {
	var reg model.Registration
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND semester_id = ?", studentID, semesterID).
		First(&reg).Error
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// GetForUpdate 读取注册记录并加行锁，必须在事务内调用
func (r *registrationRepo) GetForUpdate(ctx context.Context, id string) (*model.Registration, error) {
	var reg model.Registration
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("registration_id = ?", id).
		First(&reg).Error
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// GetOrCreateForUpdate 获取（不存在则创建）学生在某学期的注册记录并加行锁
// 并发首次选课时由 (student_id, semester_id) 唯一约束 + ON CONFLICT DO NOTHING 保证只有一行
func (r *registrationRepo) GetOrCreateForUpdate(ctx context.Context, studentID, semesterID string) (*model.Registration, error) {
	reg := &model.Registration{
		StudentID:  studentID,
		SemesterID: semesterID,
		Status:     model.StatusPending,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "semester_id"}},
			DoNothing: true,
		}).
		Create(reg).Error
	if err != nil {
		return nil, err
	}

	var locked model.Registration
	err = r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("student_id = ? AND semester_id = ?", studentID, semesterID).
		First(&locked).Error
	if err != nil {
		return nil, err
	}
	return &locked, nil
}

// ListByStudent semesterID 为空时返回该学生全部学期的注册
func (r *registrationRepo) ListByStudent(ctx context.Context, studentID, semesterID string) ([]model.Registration, error) {
	var regs []model.Registration
	db := r.db.WithContext(ctx).Where("student_id = ?", studentID)
	if semesterID != "" {
		db = db.Where("semester_id = ?", semesterID)
	}
	err := db.
		Preload("Semester").
		Preload("CourseUploads", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("CourseUploads.Course", includeDeleted).
		Order("created_at DESC").
		Find(&regs).Error
	return regs, err
}

func (r *registrationRepo) List(ctx context.Context, filter RegistrationFilter, offset, limit int) ([]model.Registration, int64, error) {
	var regs []model.Registration
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Registration{})
	if filter.SemesterID != "" {
		db = db.Where("registrations.semester_id = ?", filter.SemesterID)
	}
	if filter.Status != "" {
		db = db.Where("registrations.status = ?", filter.Status)
	}
	if filter.DepartmentID != "" {
		db = db.Joins("JOIN users ON users.user_id = registrations.student_id").
			Where("users.department_id = ?", filter.DepartmentID)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.
		Preload("Student").
		Preload("Semester").
		Preload("CourseUploads").
		Preload("CourseUploads.Course", includeDeleted).
		Offset(offset).Limit(limit).
		Order("registrations.created_at DESC").
		Find(&regs).Error; err != nil {
		return nil, 0, err
	}

	return regs, total, nil
}

func (r *registrationRepo) UpdateStatus(ctx context.Context, id, status string) error {
	return r.db.WithContext(ctx).
		Model(&model.Registration{}).
		Where("registration_id = ?", id).
		Update("status", status).Error
}

// Delete 硬删除，course_uploads 通过外键级联删除
func (r *registrationRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("registration_id = ?", id).
		Delete(&model.Registration{}).Error
}
