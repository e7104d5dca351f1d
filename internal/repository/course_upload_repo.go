package repository

import (
	"context"

	"gorm.io/gorm"

	"bu-reg/backend/internal/model"
)

// CourseUploadRepository 选课明细数据访问接口
type CourseUploadRepository interface {
	Create(ctx context.Context, upload *model.CourseUpload) error
	GetByID(ctx context.Context, id string) (*model.CourseUpload, error)
	ListByRegistration(ctx context.Context, registrationID string) ([]model.CourseUpload, error)
	ListByStudentSemester(ctx context.Context, studentID, semesterID string) ([]model.CourseUpload, error)
	CountByCourse(ctx context.Context, courseID string) (int64, error)
	List(ctx context.Context, filter CourseUploadFilter, offset, limit int) ([]model.CourseUpload, int64, error)
	UpdateStatus(ctx context.Context, id, status, updatedBy string) error
	Delete(ctx context.Context, id string) error
}

// CourseUploadFilter 选课明细过滤条件
type CourseUploadFilter struct {
	SemesterID string
	Status     string
	CourseID   string
}

type courseUploadRepo struct {
	db *gorm.DB
}

// NewCourseUploadRepo 创建 CourseUploadRepository 实例
func NewCourseUploadRepo(db *gorm.DB) CourseUploadRepository {
	return &courseUploadRepo{db: db}
}

func (r *courseUploadRepo) Create(ctx context.Context, upload *model.CourseUpload) error {
	return r.db.WithContext(ctx).Create(upload).Error
}

func (r *courseUploadRepo) GetByID(ctx context.Context, id string) (*model.CourseUpload, error) {
	var upload model.CourseUpload
	err := r.db.WithContext(ctx).
		Preload("Course", includeDeleted).
		Where("course_upload_id = ?", id).
		First(&upload).Error
	if err != nil {
		return nil, err
	}
	return &upload, nil
}

func (r *courseUploadRepo) ListByRegistration(ctx context.Context, registrationID string) ([]model.CourseUpload, error) {
	var uploads []model.CourseUpload
	err := r.db.WithContext(ctx).
		Preload("Course", includeDeleted).
		Where("registration_id = ?", registrationID).
		Order("created_at ASC").
		Find(&uploads).Error
	return uploads, err
}

func (r *courseUploadRepo) ListByStudentSemester(ctx context.Context, studentID, semesterID string) ([]model.CourseUpload, error) {
	var uploads []model.CourseUpload
	err := r.db.WithContext(ctx).
		Preload("Course", includeDeleted).
		Where("student_id = ? AND semester_id = ?", studentID, semesterID).
		Order("created_at ASC").
		Find(&uploads).Error
	return uploads, err
}

func (r *courseUploadRepo) CountByCourse(ctx context.Context, courseID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.CourseUpload{}).
		Where("course_id = ?", courseID).
		Count(&n).Error
	return n, err
}

func (r *courseUploadRepo) List(ctx context.Context, filter CourseUploadFilter, offset, limit int) ([]model.CourseUpload, int64, error) {
	var uploads []model.CourseUpload
	var total int64

	db := r.db.WithContext(ctx).Model(&model.CourseUpload{})
	if filter.SemesterID != "" {
		db = db.Where("semester_id = ?", filter.SemesterID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.CourseID != "" {
		db = db.Where("course_id = ?", filter.CourseID)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.
		Preload("Course", includeDeleted).
		Preload("Student").
		Offset(offset).Limit(limit).
		Order("created_at ASC").
		Find(&uploads).Error; err != nil {
		return nil, 0, err
	}

	return uploads, total, nil
}

func (r *courseUploadRepo) UpdateStatus(ctx context.Context, id, status, updatedBy string) error {
	return r.db.WithContext(ctx).
		Model(&model.CourseUpload{}).
		Where("course_upload_id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_by": updatedBy,
		}).Error
}

// Delete 硬删除，approvals 通过外键级联删除
func (r *courseUploadRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("course_upload_id = ?", id).
		Delete(&model.CourseUpload{}).Error
}
