package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bu-reg/backend/internal/model"
)

// UserRepository 用户数据访问接口
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByRegNo(ctx context.Context, regNo string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, id string, deletedBy string) error
	List(ctx context.Context, filter UserFilter, offset, limit int) ([]model.User, int64, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.User, error)
	ListIDsByRole(ctx context.Context, role string) ([]string, error)
	ListStudentsWithoutRegistration(ctx context.Context, semesterID string) ([]model.User, error)
}

// UserFilter 用户列表过滤条件
type UserFilter struct {
	DepartmentID string
	Role         string
	Keyword      string // 姓名 / 学号模糊匹配
}

type userRepo struct {
	db *gorm.DB
}

// NewUserRepo 创建 UserRepository 实例
func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// withDepartment 预加载所属院系，用于返回用户详情
func (r *userRepo) withDepartment() *gorm.DB {
	return r.db.Preload("Department")
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	return firstWhere[model.User](ctx, r.withDepartment(), "user_id = ?", id)
}

// GetByRegNo 学号即登录名
func (r *userRepo) GetByRegNo(ctx context.Context, regNo string) (*model.User, error) {
	return firstWhere[model.User](ctx, r.withDepartment(), "reg_no = ?", regNo)
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return firstWhere[model.User](ctx, r.db, "LOWER(email) = LOWER(?)", email)
}

// Update 整行保存，关联的 Department 不随之写入
func (r *userRepo) Update(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(user).Error
}

func (r *userRepo) Delete(ctx context.Context, id string, deletedBy string) error {
	return softDelete[model.User](ctx, r.db, "user_id", id, deletedBy)
}

// List 按过滤条件分页；limit 为 -1 时不分页
func (r *userRepo) List(ctx context.Context, filter UserFilter, offset, limit int) ([]model.User, int64, error) {
	q := filter.apply(r.db.WithContext(ctx).Model(&model.User{}))

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []model.User
	err := q.Preload("Department").
		Order("reg_no ASC").
		Offset(offset).Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (f UserFilter) apply(db *gorm.DB) *gorm.DB {
	if f.DepartmentID != "" {
		db = db.Where("department_id = ?", f.DepartmentID)
	}
	if f.Role != "" {
		db = db.Where("role = ?", f.Role)
	}
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		pattern := "%" + likeEscaper.Replace(kw) + "%"
		db = db.Where("name ILIKE ? OR reg_no ILIKE ?", pattern, pattern)
	}
	return db
}

// likeEscaper 转义 LIKE 通配符，关键字按字面匹配
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func (r *userRepo) ListByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	var users []model.User
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).
		Where("user_id IN ?", ids).
		Find(&users).Error
	return users, err
}

// ListIDsByRole role 为空时返回全部用户 ID
func (r *userRepo) ListIDsByRole(ctx context.Context, role string) ([]string, error) {
	var ids []string
	db := r.db.WithContext(ctx).Model(&model.User{})
	if role != "" {
		db = db.Where("role = ?", role)
	}
	err := db.Pluck("user_id", &ids).Error
	return ids, err
}

// ListStudentsWithoutRegistration 返回在指定学期尚未提交任何选课的学生
func (r *userRepo) ListStudentsWithoutRegistration(ctx context.Context, semesterID string) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Where("role = ?", model.RoleStudent).
		Where("NOT EXISTS (?)",
			r.db.Model(&model.Registration{}).
				Select("1").
				Where("registrations.student_id = users.user_id AND registrations.semester_id = ?", semesterID),
		).
		Order("reg_no ASC").
		Find(&users).Error
	return users, err
}
