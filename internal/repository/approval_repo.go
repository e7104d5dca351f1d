package repository

import (
	"context"

	"gorm.io/gorm"

	"bu-reg/backend/internal/model"
)

// ApprovalRepository 审批记录数据访问接口（只增不改）
type ApprovalRepository interface {
	Create(ctx context.Context, approval *model.Approval) error
	ListByCourseUpload(ctx context.Context, courseUploadID string) ([]model.Approval, error)
}

type approvalRepo struct {
	db *gorm.DB
}

// NewApprovalRepo 创建 ApprovalRepository 实例
func NewApprovalRepo(db *gorm.DB) ApprovalRepository {
	return &approvalRepo{db: db}
}

func (r *approvalRepo) Create(ctx context.Context, approval *model.Approval) error {
	return r.db.WithContext(ctx).Create(approval).Error
}

func (r *approvalRepo) ListByCourseUpload(ctx context.Context, courseUploadID string) ([]model.Approval, error) {
	var approvals []model.Approval
	err := r.db.WithContext(ctx).
		Preload("Approver").
		Where("course_upload_id = ?", courseUploadID).
		Order("created_at ASC").
		Find(&approvals).Error
	return approvals, err
}
