package repository

import (
	"context"

	"gorm.io/gorm"

	"bu-reg/backend/internal/model"
)

// DepartmentRepository 院系数据访问接口
type DepartmentRepository interface {
	Create(ctx context.Context, dept *model.Department) error
	GetByID(ctx context.Context, id string) (*model.Department, error)
	GetByName(ctx context.Context, name string) (*model.Department, error)
	GetByCode(ctx context.Context, code string) (*model.Department, error)
	List(ctx context.Context) ([]model.Department, error)
	ListAll(ctx context.Context) ([]model.Department, error)
	Update(ctx context.Context, dept *model.Department) error
	Delete(ctx context.Context, id string, deletedBy string) error
	CountMembers(ctx context.Context, departmentID string) (int64, error)
	CountCourses(ctx context.Context, departmentID string) (int64, error)
	BatchCountMembers(ctx context.Context, departmentIDs []string) (map[string]int64, error)
	BatchCountCourses(ctx context.Context, departmentIDs []string) (map[string]int64, error)
}

type departmentRepo struct {
	db *gorm.DB
}

// NewDepartmentRepo 创建 DepartmentRepository 实例
func NewDepartmentRepo(db *gorm.DB) DepartmentRepository {
	return &departmentRepo{db: db}
}

func (r *departmentRepo) Create(ctx context.Context, dept *model.Department) error {
	return r.db.WithContext(ctx).Create(dept).Error
}

func (r *departmentRepo) GetByID(ctx context.Context, id string) (*model.Department, error) {
	return r.findOne(ctx, "department_id", id)
}

func (r *departmentRepo) GetByName(ctx context.Context, name string) (*model.Department, error) {
	return r.findOne(ctx, "name", name)
}

// GetByCode 代码匹配忽略大小写，课程导入文件中的代码大小写不统一
func (r *departmentRepo) GetByCode(ctx context.Context, code string) (*model.Department, error) {
	return firstWhere[model.Department](ctx, r.db, "UPPER(code) = UPPER(?)", code)
}

func (r *departmentRepo) findOne(ctx context.Context, column, value string) (*model.Department, error) {
	return firstWhere[model.Department](ctx, r.db, column+" = ?", value)
}

// List 仅返回启用的院系
func (r *departmentRepo) List(ctx context.Context) ([]model.Department, error) {
	return r.list(ctx, true)
}

func (r *departmentRepo) ListAll(ctx context.Context) ([]model.Department, error) {
	return r.list(ctx, false)
}

func (r *departmentRepo) list(ctx context.Context, activeOnly bool) ([]model.Department, error) {
	q := r.db.WithContext(ctx).Order("code ASC")
	if activeOnly {
		q = q.Where("is_active")
	}
	var depts []model.Department
	err := q.Find(&depts).Error
	return depts, err
}

// Update 只写可变字段，code 创建后不再变更
func (r *departmentRepo) Update(ctx context.Context, dept *model.Department) error {
	err := r.db.WithContext(ctx).
		Model(&model.Department{}).
		Where("department_id = ?", dept.DepartmentID).
		Updates(map[string]interface{}{
			"name":        dept.Name,
			"description": dept.Description,
			"is_active":   dept.IsActive,
			"updated_by":  dept.UpdatedBy,
			"version":     gorm.Expr("version + 1"),
		}).Error
	if err != nil {
		return err
	}
	dept.Version++
	return nil
}

func (r *departmentRepo) Delete(ctx context.Context, id string, deletedBy string) error {
	return softDelete[model.Department](ctx, r.db, "department_id", id, deletedBy)
}

// ── 关联计数 ──

func (r *departmentRepo) CountMembers(ctx context.Context, departmentID string) (int64, error) {
	counts, err := r.BatchCountMembers(ctx, []string{departmentID})
	return counts[departmentID], err
}

func (r *departmentRepo) CountCourses(ctx context.Context, departmentID string) (int64, error) {
	counts, err := r.BatchCountCourses(ctx, []string{departmentID})
	return counts[departmentID], err
}

func (r *departmentRepo) BatchCountMembers(ctx context.Context, departmentIDs []string) (map[string]int64, error) {
	return r.countGrouped(ctx, &model.User{}, departmentIDs)
}

func (r *departmentRepo) BatchCountCourses(ctx context.Context, departmentIDs []string) (map[string]int64, error) {
	return r.countGrouped(ctx, &model.Course{}, departmentIDs)
}

// countGrouped 按 department_id 分组计数，软删除行由 gorm 自动排除
func (r *departmentRepo) countGrouped(ctx context.Context, table interface{}, departmentIDs []string) (map[string]int64, error) {
	result := make(map[string]int64, len(departmentIDs))
	if len(departmentIDs) == 0 {
		return result, nil
	}

	var rows []struct {
		DepartmentID string
		N            int64
	}
	err := r.db.WithContext(ctx).
		Model(table).
		Select("department_id, COUNT(*) AS n").
		Where("department_id IN ?", departmentIDs).
		Group("department_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.DepartmentID] = row.N
	}
	return result, nil
}
