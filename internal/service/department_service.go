package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"bu-reg/backend/internal/dto"
	"bu-reg/backend/internal/model"
	"bu-reg/backend/internal/repository"
	pkgerrors "bu-reg/backend/pkg/errors"
)

// ── 院系模块业务错误 ──

var (
	ErrDepartmentNotFound   = errors.New("院系不存在")
	ErrDepartmentNameExists = errors.New("院系名称或代码已存在")
	ErrDepartmentHasMembers = errors.New("院系下存在成员，无法删除")
	ErrDepartmentHasCourses = errors.New("院系下存在课程，无法删除")
	ErrDepartmentInactive   = errors.New("院系已停用")
)

// DepartmentService 院系业务接口
type DepartmentService interface {
	Create(ctx context.Context, req *dto.CreateDepartmentRequest, callerID string) (*dto.DepartmentDetailResponse, error)
	GetByID(ctx context.Context, id string) (*dto.DepartmentDetailResponse, error)
	List(ctx context.Context, req *dto.DepartmentListRequest) ([]dto.DepartmentDetailResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateDepartmentRequest, callerID string) (*dto.DepartmentDetailResponse, error)
	Delete(ctx context.Context, id string, callerID string) error
	GetMembers(ctx context.Context, departmentID string) ([]dto.UserResponse, error)
}

type departmentService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewDepartmentService 创建 DepartmentService 实例
func NewDepartmentService(repo *repository.Repository, logger *zap.Logger) DepartmentService {
	return &departmentService{repo: repo, logger: logger}
}

// normalizeDeptCode 院系代码统一大写，课程导入按代码匹配院系
func normalizeDeptCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *departmentService) Create(ctx context.Context, req *dto.CreateDepartmentRequest, callerID string) (*dto.DepartmentDetailResponse, error) {
	name := strings.TrimSpace(req.Name)
	code := normalizeDeptCode(req.Code)
	if err := s.ensureUnique(ctx, name, code, ""); err != nil {
		return nil, err
	}

	dept := &model.Department{
		Name:        name,
		Code:        code,
		Description: req.Description,
		IsActive:    true,
	}
	dept.CreatedBy = &callerID
	dept.UpdatedBy = &callerID

	if err := s.repo.Department.Create(ctx, dept); err != nil {
		if pkgerrors.IsDuplicateKey(err) {
			return nil, ErrDepartmentNameExists
		}
		s.logger.Error("创建院系失败", zap.String("code", code), zap.Error(err))
		return nil, err
	}

	s.logger.Info("院系已创建", zap.String("id", dept.DepartmentID), zap.String("code", code), zap.String("by", callerID))
	return s.detail(ctx, dept), nil
}

func (s *departmentService) GetByID(ctx context.Context, id string) (*dto.DepartmentDetailResponse, error) {
	dept, err := s.loadDepartment(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, dept), nil
}

func (s *departmentService) List(ctx context.Context, req *dto.DepartmentListRequest) ([]dto.DepartmentDetailResponse, error) {
	list := s.repo.Department.List
	if req.IncludeInactive {
		list = s.repo.Department.ListAll
	}
	depts, err := list(ctx)
	if err != nil {
		s.logger.Error("列出院系失败", zap.Error(err))
		return nil, err
	}
	return s.withCounts(ctx, depts), nil
}

// Update 院系代码创建后不可修改
func (s *departmentService) Update(ctx context.Context, id string, req *dto.UpdateDepartmentRequest, callerID string) (*dto.DepartmentDetailResponse, error) {
	dept, err := s.loadDepartment(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name != dept.Name {
			if err := s.ensureUnique(ctx, name, "", dept.DepartmentID); err != nil {
				return nil, err
			}
			dept.Name = name
		}
	}
	if req.Description != nil {
		dept.Description = *req.Description
	}
	if req.IsActive != nil && *req.IsActive != dept.IsActive {
		dept.IsActive = *req.IsActive
		s.logger.Info("院系启用状态变更", zap.String("id", id), zap.Bool("active", dept.IsActive), zap.String("by", callerID))
	}
	dept.UpdatedBy = &callerID

	if err := s.repo.Department.Update(ctx, dept); err != nil {
		if pkgerrors.IsDuplicateKey(err) {
			return nil, ErrDepartmentNameExists
		}
		s.logger.Error("更新院系失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return s.detail(ctx, dept), nil
}

// Delete 仍有成员或课程的院系不可删除，需先迁移或停用
func (s *departmentService) Delete(ctx context.Context, id string, callerID string) error {
	if _, err := s.loadDepartment(ctx, id); err != nil {
		return err
	}

	checks := []struct {
		count func(context.Context, string) (int64, error)
		err   error
	}{
		{s.repo.Department.CountMembers, ErrDepartmentHasMembers},
		{s.repo.Department.CountCourses, ErrDepartmentHasCourses},
	}
	for _, chk := range checks {
		n, err := chk.count(ctx, id)
		if err != nil {
			s.logger.Error("统计院系关联数据失败", zap.String("id", id), zap.Error(err))
			return err
		}
		if n > 0 {
			return chk.err
		}
	}

	if err := s.repo.Department.Delete(ctx, id, callerID); err != nil {
		s.logger.Error("删除院系失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

func (s *departmentService) GetMembers(ctx context.Context, departmentID string) ([]dto.UserResponse, error) {
	if _, err := s.loadDepartment(ctx, departmentID); err != nil {
		return nil, err
	}

	users, _, err := s.repo.User.List(ctx, repository.UserFilter{DepartmentID: departmentID}, 0, -1)
	if err != nil {
		s.logger.Error("查询院系成员失败", zap.String("id", departmentID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		result = append(result, *toUserResponse(&users[i]))
	}
	return result, nil
}

// ── 内部辅助方法 ──

func (s *departmentService) loadDepartment(ctx context.Context, id string) (*model.Department, error) {
	dept, err := s.repo.Department.GetByID(ctx, id)
	if err == nil {
		return dept, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDepartmentNotFound
	}
	s.logger.Error("查询院系失败", zap.String("id", id), zap.Error(err))
	return nil, err
}

// ensureUnique 名称 / 代码与其他院系冲突时返回 ErrDepartmentNameExists；空值跳过
func (s *departmentService) ensureUnique(ctx context.Context, name, code, excludeID string) error {
	lookups := []struct {
		value string
		find  func(context.Context, string) (*model.Department, error)
	}{
		{name, s.repo.Department.GetByName},
		{code, s.repo.Department.GetByCode},
	}
	for _, l := range lookups {
		if l.value == "" {
			continue
		}
		existing, err := l.find(ctx, l.value)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			s.logger.Error("查询院系失败", zap.Error(err))
			return err
		}
		if existing.DepartmentID != excludeID {
			return ErrDepartmentNameExists
		}
	}
	return nil
}

func (s *departmentService) detail(ctx context.Context, dept *model.Department) *dto.DepartmentDetailResponse {
	return &s.withCounts(ctx, []model.Department{*dept})[0]
}

// withCounts 批量填充成员数与课程数，统计失败时按 0 返回
func (s *departmentService) withCounts(ctx context.Context, depts []model.Department) []dto.DepartmentDetailResponse {
	ids := make([]string, 0, len(depts))
	for i := range depts {
		ids = append(ids, depts[i].DepartmentID)
	}
	members, err := s.repo.Department.BatchCountMembers(ctx, ids)
	if err != nil {
		s.logger.Warn("批量统计成员数失败", zap.Error(err))
	}
	courses, err := s.repo.Department.BatchCountCourses(ctx, ids)
	if err != nil {
		s.logger.Warn("批量统计课程数失败", zap.Error(err))
	}

	result := make([]dto.DepartmentDetailResponse, 0, len(depts))
	for i := range depts {
		resp := toDepartmentDetail(&depts[i])
		resp.MemberCount = members[depts[i].DepartmentID]
		resp.CourseCount = courses[depts[i].DepartmentID]
		result = append(result, *resp)
	}
	return result
}

func toDepartmentDetail(dept *model.Department) *dto.DepartmentDetailResponse {
	return &dto.DepartmentDetailResponse{
		ID:          dept.DepartmentID,
		Name:        dept.Name,
		Code:        dept.Code,
		Description: dept.Description,
		IsActive:    dept.IsActive,
		CreatedAt:   dept.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   dept.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
