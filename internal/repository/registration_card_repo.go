package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bu-reg/backend/internal/model"
)

// RegistrationCardRepository 注册卡数据访问接口
type RegistrationCardRepository interface {
	CreateIfAbsent(ctx context.Context, card *model.RegistrationCard) (bool, error)
	GetByStudentSemester(ctx context.Context, studentID, semesterID string) (*model.RegistrationCard, error)
	GetByNumber(ctx context.Context, cardNumber string) (*model.RegistrationCard, error)
	ListBySemester(ctx context.Context, semesterID string, offset, limit int) ([]model.RegistrationCard, int64, error)
}

type registrationCardRepo struct {
	db *gorm.DB
}

// NewRegistrationCardRepo 创建 RegistrationCardRepository 实例
func NewRegistrationCardRepo(db *gorm.DB) RegistrationCardRepository {
	return &registrationCardRepo{db: db}
}

// CreateIfAbsent 插入注册卡；(student_id, semester_id) 已存在时不插入并返回 false
// card_number 冲突仍返回 gorm.ErrDuplicatedKey，由调用方换号重试
func (r *registrationCardRepo) CreateIfAbsent(ctx context.Context, card *model.RegistrationCard) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "semester_id"}},
			DoNothing: true,
		}).
		Create(card)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *registrationCardRepo) GetByStudentSemester(ctx context.Context, studentID, semesterID string) (*model.RegistrationCard, error) {
	var card model.RegistrationCard
	err := r.db.WithContext(ctx).
		Preload("Semester").
		Where("student_id = ? AND semester_id = ?", studentID, semesterID).
		First(&card).Error
	if err != nil {
		return nil, err
	}
	return &card, nil
}

func (r *registrationCardRepo) GetByNumber(ctx context.Context, cardNumber string) (*model.RegistrationCard, error) {
	var card model.RegistrationCard
	err := r.db.WithContext(ctx).
		Preload("Student").
		Preload("Semester").
		Where("card_number = ?", cardNumber).
		First(&card).Error
	if err != nil {
		return nil, err
	}
	return &card, nil
}

func (r *registrationCardRepo) ListBySemester(ctx context.Context, semesterID string, offset, limit int) ([]model.RegistrationCard, int64, error) {
	var cards []model.RegistrationCard
	var total int64

	db := r.db.WithContext(ctx).Model(&model.RegistrationCard{})
	if semesterID != "" {
		db = db.Where("semester_id = ?", semesterID)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.
		Preload("Student").
		Preload("Semester").
		Offset(offset).Limit(limit).
		Order("issued_at DESC").
		Find(&cards).Error; err != nil {
		return nil, 0, err
	}

	return cards, total, nil
}
