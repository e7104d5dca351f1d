package repository

import (
	"context"

	"gorm.io/gorm"
)

// firstWhere 按条件取一行，未命中返回 gorm.ErrRecordNotFound
func firstWhere[T any](ctx context.Context, db *gorm.DB, query string, args ...interface{}) (*T, error) {
	var row T
	if err := db.WithContext(ctx).Where(query, args...).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// softDelete 写入 deleted_at / deleted_by，保留审计信息
func softDelete[T any](ctx context.Context, db *gorm.DB, pk, id, deletedBy string) error {
	return db.WithContext(ctx).
		Model(new(T)).
		Where(pk+" = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": gorm.Expr("NOW()"),
		}).Error
}

// includeDeleted 预加载时包含已软删除的行，历史选课仍需读取课程学分
func includeDeleted(db *gorm.DB) *gorm.DB {
	return db.Unscoped()
}
