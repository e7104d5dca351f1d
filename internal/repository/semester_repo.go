package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bu-reg/backend/internal/model"
)

// SemesterRepository 学期数据访问接口
type SemesterRepository interface {
	Create(ctx context.Context, semester *model.Semester) error
	GetByID(ctx context.Context, id string) (*model.Semester, error)
	GetByName(ctx context.Context, name string) (*model.Semester, error)
	GetCurrent(ctx context.Context) (*model.Semester, error)
	List(ctx context.Context) ([]model.Semester, error)
	Update(ctx context.Context, semester *model.Semester) error
	Delete(ctx context.Context, id string, deletedBy string) error
	LockAll(ctx context.Context) error
	ClearActive(ctx context.Context) error
	SetActive(ctx context.Context, id string, active bool, updatedBy string) error
	CountRegistrations(ctx context.Context, id string) (int64, error)
}

type semesterRepo struct {
	db *gorm.DB
}

// NewSemesterRepo 创建 SemesterRepository 实例
func NewSemesterRepo(db *gorm.DB) SemesterRepository {
	return &semesterRepo{db: db}
}

func (r *semesterRepo) Create(ctx context.Context, semester *model.Semester) error {
	return r.db.WithContext(ctx).Create(semester).Error
}

func (r *semesterRepo) GetByID(ctx context.Context, id string) (*model.Semester, error) {
	return firstWhere[model.Semester](ctx, r.db, "semester_id = ?", id)
}

func (r *semesterRepo) GetByName(ctx context.Context, name string) (*model.Semester, error) {
	return firstWhere[model.Semester](ctx, r.db, "name = ?", name)
}

// GetCurrent 唯一的 is_active 学期，由部分唯一索引保证至多一行
func (r *semesterRepo) GetCurrent(ctx context.Context) (*model.Semester, error) {
	return firstWhere[model.Semester](ctx, r.db, "is_active")
}

// List 最近的学期在前
func (r *semesterRepo) List(ctx context.Context) ([]model.Semester, error) {
	var semesters []model.Semester
	err := r.db.WithContext(ctx).Order("start_date DESC, name").Find(&semesters).Error
	return semesters, err
}

// Update 不触碰 is_active，激活状态只经由 SetActive 变更
func (r *semesterRepo) Update(ctx context.Context, semester *model.Semester) error {
	return r.db.WithContext(ctx).
		Model(&model.Semester{}).
		Where("semester_id = ?", semester.SemesterID).
		Updates(map[string]interface{}{
			"name":                   semester.Name,
			"start_date":             semester.StartDate,
			"end_date":               semester.EndDate,
			"registration_deadline":  semester.RegistrationDeadline,
			"course_upload_deadline": semester.CourseUploadDeadline,
			"updated_by":             semester.UpdatedBy,
			"version":                gorm.Expr("version + 1"),
		}).Error
}

func (r *semesterRepo) Delete(ctx context.Context, id string, deletedBy string) error {
	return softDelete[model.Semester](ctx, r.db, "semester_id", id, deletedBy)
}

// ── 激活切换（须在事务内调用） ──

// LockAll SELECT ... FOR UPDATE 锁住全部学期行，使并发激活串行执行
func (r *semesterRepo) LockAll(ctx context.Context) error {
	var ids []string
	return r.db.WithContext(ctx).
		Model(&model.Semester{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Pluck("semester_id", &ids).Error
}

func (r *semesterRepo) ClearActive(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Model(&model.Semester{}).
		Where("is_active").
		Update("is_active", false).Error
}

// SetActive 目标行不存在时返回 gorm.ErrRecordNotFound
func (r *semesterRepo) SetActive(ctx context.Context, id string, active bool, updatedBy string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Semester{}).
		Where("semester_id = ?", id).
		Updates(map[string]interface{}{"is_active": active, "updated_by": updatedBy})
	if result.Error == nil && result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return result.Error
}

func (r *semesterRepo) CountRegistrations(ctx context.Context, id string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Registration{}).Where("semester_id = ?", id).Count(&n).Error
	return n, err
}
