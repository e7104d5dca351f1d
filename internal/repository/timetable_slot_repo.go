package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bu-reg/backend/internal/model"
)

// TimetableSlotRepository 课表时段数据访问接口
type TimetableSlotRepository interface {
	Create(ctx context.Context, slot *model.TimetableSlot) error
	GetByID(ctx context.Context, id string) (*model.TimetableSlot, error)
	ListByTimetable(ctx context.Context, timetableID string) ([]model.TimetableSlot, error)
	ListByTimetableDay(ctx context.Context, timetableID string, dayOfWeek int) ([]model.TimetableSlot, error)
	ListBySemesterCourses(ctx context.Context, semesterID string, courseIDs []string) ([]model.TimetableSlot, error)
	Update(ctx context.Context, slot *model.TimetableSlot) error
	Delete(ctx context.Context, id string, deletedBy string) error
	DeleteByTimetable(ctx context.Context, timetableID string, deletedBy string) error
}

type timetableSlotRepo struct {
	db *gorm.DB
}

// NewTimetableSlotRepo 创建 TimetableSlotRepository 实例
func NewTimetableSlotRepo(db *gorm.DB) TimetableSlotRepository {
	return &timetableSlotRepo{db: db}
}

func (r *timetableSlotRepo) Create(ctx context.Context, slot *model.TimetableSlot) error {
	return r.db.WithContext(ctx).Create(slot).Error
}

func (r *timetableSlotRepo) GetByID(ctx context.Context, id string) (*model.TimetableSlot, error) {
	var slot model.TimetableSlot
	err := r.db.WithContext(ctx).
		Preload("Course").
		Where("slot_id = ?", id).
		First(&slot).Error
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

func (r *timetableSlotRepo) ListByTimetable(ctx context.Context, timetableID string) ([]model.TimetableSlot, error) {
	var slots []model.TimetableSlot
	err := r.db.WithContext(ctx).
		Preload("Course").
		Where("timetable_id = ?", timetableID).
		Order("day_of_week ASC, start_time ASC").
		Find(&slots).Error
	return slots, err
}

// ListByTimetableDay 读取同一课表同一天的时段并加行锁，用于重叠校验
func (r *timetableSlotRepo) ListByTimetableDay(ctx context.Context, timetableID string, dayOfWeek int) ([]model.TimetableSlot, error) {
	var slots []model.TimetableSlot
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("timetable_id = ? AND day_of_week = ?", timetableID, dayOfWeek).
		Order("start_time ASC").
		Find(&slots).Error
	return slots, err
}

// ListBySemesterCourses 返回某学期已发布课表中指定课程的全部时段
func (r *timetableSlotRepo) ListBySemesterCourses(ctx context.Context, semesterID string, courseIDs []string) ([]model.TimetableSlot, error) {
	var slots []model.TimetableSlot
	if len(courseIDs) == 0 {
		return slots, nil
	}
	err := r.db.WithContext(ctx).
		Preload("Course").
		Joins("JOIN timetables ON timetables.timetable_id = timetable_slots.timetable_id AND timetables.deleted_at IS NULL").
		Where("timetables.semester_id = ? AND timetables.is_published = ?", semesterID, true).
		Where("timetable_slots.course_id IN ?", courseIDs).
		Order("timetable_slots.day_of_week ASC, timetable_slots.start_time ASC").
		Find(&slots).Error
	return slots, err
}

func (r *timetableSlotRepo) Update(ctx context.Context, slot *model.TimetableSlot) error {
	return r.db.WithContext(ctx).Save(slot).Error
}

func (r *timetableSlotRepo) Delete(ctx context.Context, id string, deletedBy string) error {
	return softDelete[model.TimetableSlot](ctx, r.db, "slot_id", id, deletedBy)
}

func (r *timetableSlotRepo) DeleteByTimetable(ctx context.Context, timetableID string, deletedBy string) error {
	return softDelete[model.TimetableSlot](ctx, r.db, "timetable_id", timetableID, deletedBy)
}
