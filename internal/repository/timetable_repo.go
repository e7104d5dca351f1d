package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bu-reg/backend/internal/model"
)

// TimetableRepository 课表数据访问接口
type TimetableRepository interface {
	Create(ctx context.Context, tt *model.Timetable) error
	GetByID(ctx context.Context, id string) (*model.Timetable, error)
	LockForUpdate(ctx context.Context, id string) error
	List(ctx context.Context, semesterID, departmentID string) ([]model.Timetable, error)
	Update(ctx context.Context, tt *model.Timetable) error
	Delete(ctx context.Context, id string, deletedBy string) error
}

type timetableRepo struct {
	db *gorm.DB
}

// NewTimetableRepo 创建 TimetableRepository 实例
func NewTimetableRepo(db *gorm.DB) TimetableRepository {
	return &timetableRepo{db: db}
}

func (r *timetableRepo) Create(ctx context.Context, tt *model.Timetable) error {
	return r.db.WithContext(ctx).Create(tt).Error
}

func (r *timetableRepo) GetByID(ctx context.Context, id string) (*model.Timetable, error) {
	var tt model.Timetable
	err := r.db.WithContext(ctx).
		Preload("Semester").
		Where("timetable_id = ?", id).
		First(&tt).Error
	if err != nil {
		return nil, err
	}
	return &tt, nil
}

// LockForUpdate 锁定课表行，串行化同一课表的时段写入
func (r *timetableRepo) LockForUpdate(ctx context.Context, id string) error {
	var tt model.Timetable
	return r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("timetable_id").
		Where("timetable_id = ?", id).
		First(&tt).Error
}

func (r *timetableRepo) List(ctx context.Context, semesterID, departmentID string) ([]model.Timetable, error) {
	var tts []model.Timetable
	db := r.db.WithContext(ctx)
	if semesterID != "" {
		db = db.Where("semester_id = ?", semesterID)
	}
	if departmentID != "" {
		db = db.Where("department_id = ?", departmentID)
	}
	err := db.Preload("Semester").
		Order("created_at DESC").
		Find(&tts).Error
	return tts, err
}

func (r *timetableRepo) Update(ctx context.Context, tt *model.Timetable) error {
	return r.db.WithContext(ctx).Save(tt).Error
}

func (r *timetableRepo) Delete(ctx context.Context, id string, deletedBy string) error {
	return softDelete[model.Timetable](ctx, r.db, "timetable_id", id, deletedBy)
}
