package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"bu-reg/backend/internal/dto"
	"bu-reg/backend/internal/model"
	"bu-reg/backend/internal/repository"
	pkgerrors "bu-reg/backend/pkg/errors"
)

// ── 课程模块业务错误 ──

var (
	ErrCourseNotFound   = errors.New("课程不存在")
	ErrCourseCodeExists = errors.New("课程代码已存在")
	ErrCourseInactive   = errors.New("课程已停开")
	ErrCourseConflict   = errors.New("课程已被其他操作修改，请刷新后重试")
	ErrCourseInUse      = errors.New("课程已有学生选课，无法删除")
)

// CourseService 课程业务接口
type CourseService interface {
	Create(ctx context.Context, req *dto.CreateCourseRequest, callerID string) (*dto.CourseResponse, error)
	GetByID(ctx context.Context, id string) (*dto.CourseResponse, error)
	List(ctx context.Context, req *dto.CourseListRequest) ([]dto.CourseResponse, int64, error)
	Update(ctx context.Context, id string, req *dto.UpdateCourseRequest, callerID string) (*dto.CourseResponse, error)
	Delete(ctx context.Context, id string, callerID string) error
	ParseImportFile(reader io.Reader) ([]ImportCourseRow, error)
	ImportCourses(ctx context.Context, rows []ImportCourseRow, callerID string) (*dto.ImportResponse, error)
}

// ImportCourseRow Excel 导入解析后的单行课程
type ImportCourseRow struct {
	Row            int
	Code           string
	Title          string
	Credits        string
	DepartmentCode string
	Description    string
}

type courseService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewCourseService 创建 CourseService 实例
func NewCourseService(repo *repository.Repository, logger *zap.Logger) CourseService {
	return &courseService{repo: repo, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *courseService) Create(ctx context.Context, req *dto.CreateCourseRequest, callerID string) (*dto.CourseResponse, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if _, err := s.repo.Course.GetByCode(ctx, code); err == nil {
		return nil, ErrCourseCodeExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询课程代码失败", zap.Error(err))
		return nil, err
	}

	if err := s.ensureDepartment(ctx, req.DepartmentID); err != nil {
		return nil, err
	}

	course := &model.Course{
		Code:         code,
		Title:        req.Title,
		Credits:      req.Credits,
		DepartmentID: req.DepartmentID,
		Description:  req.Description,
		IsActive:     true,
	}
	course.CreatedBy = &callerID
	course.UpdatedBy = &callerID

	if err := s.repo.Course.Create(ctx, course); err != nil {
		if pkgerrors.IsDuplicateKey(err) {
			return nil, ErrCourseCodeExists
		}
		s.logger.Error("创建课程失败", zap.Error(err))
		return nil, err
	}

	return s.GetByID(ctx, course.CourseID)
}

// ────────────────────── GetByID ──────────────────────

func (s *courseService) GetByID(ctx context.Context, id string) (*dto.CourseResponse, error) {
	course, err := s.repo.Course.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		s.logger.Error("查询课程失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return toCourseResponse(course), nil
}

// ────────────────────── List ──────────────────────

func (s *courseService) List(ctx context.Context, req *dto.CourseListRequest) ([]dto.CourseResponse, int64, error) {
	filter := repository.CourseFilter{
		DepartmentID:    req.DepartmentID,
		Keyword:         req.Keyword,
		IncludeInactive: req.IncludeInactive,
	}
	courses, total, err := s.repo.Course.List(ctx, filter, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出课程失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.CourseResponse, 0, len(courses))
	for i := range courses {
		result = append(result, *toCourseResponse(&courses[i]))
	}
	return result, total, nil
}

// ────────────────────── Update ──────────────────────

// Update 客户端携带读取时的 version，版本不一致返回 ErrCourseConflict
func (s *courseService) Update(ctx context.Context, id string, req *dto.UpdateCourseRequest, callerID string) (*dto.CourseResponse, error) {
	course, err := s.repo.Course.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		s.logger.Error("查询课程失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	if course.Version != req.Version {
		return nil, ErrCourseConflict
	}

	if req.Title != nil {
		course.Title = *req.Title
	}
	if req.Credits != nil {
		course.Credits = *req.Credits
	}
	if req.DepartmentID != nil && *req.DepartmentID != course.DepartmentID {
		if err := s.ensureDepartment(ctx, *req.DepartmentID); err != nil {
			return nil, err
		}
		course.DepartmentID = *req.DepartmentID
	}
	if req.Description != nil {
		course.Description = *req.Description
	}
	if req.IsActive != nil {
		course.IsActive = *req.IsActive
	}
	course.UpdatedBy = &callerID

	if err := s.repo.Course.Update(ctx, course); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, ErrCourseConflict
		}
		s.logger.Error("更新课程失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	return s.GetByID(ctx, id)
}

// ────────────────────── Delete ──────────────────────

func (s *courseService) Delete(ctx context.Context, id string, callerID string) error {
	if _, err := s.repo.Course.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCourseNotFound
		}
		s.logger.Error("查询课程失败", zap.String("id", id), zap.Error(err))
		return err
	}

	// 已有选课明细的课程不可删除，学分需继续计入上限
	n, err := s.repo.CourseUpload.CountByCourse(ctx, id)
	if err != nil {
		s.logger.Error("统计课程选课数失败", zap.String("id", id), zap.Error(err))
		return err
	}
	if n > 0 {
		return ErrCourseInUse
	}

	if err := s.repo.Course.Delete(ctx, id, callerID); err != nil {
		s.logger.Error("删除课程失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── Import ──────────────────────

var courseImportColumns = map[string][]string{
	"code":       {"课程代码", "code", "course_code"},
	"title":      {"课程名称", "title", "course_title"},
	"credits":    {"学分", "credits", "credit_hours"},
	"department": {"院系代码", "department", "department_code"},
}

var courseImportOptional = map[string][]string{
	"description": {"描述", "description"},
}

// ParseImportFile 解析课程导入 Excel
func (s *courseService) ParseImportFile(reader io.Reader) ([]ImportCourseRow, error) {
	sheet, err := readImportSheet(reader, courseImportColumns, courseImportOptional)
	if err != nil {
		return nil, err
	}

	var rows []ImportCourseRow
	for i, row := range sheet.rows {
		item := ImportCourseRow{
			Row:            i + 2,
			Code:           strings.ToUpper(sheet.cell(row, "code")),
			Title:          sheet.cell(row, "title"),
			Credits:        sheet.cell(row, "credits"),
			DepartmentCode: sheet.cell(row, "department"),
			Description:    sheet.cell(row, "description"),
		}
		if isBlankRow(item.Code, item.Title, item.Credits, item.DepartmentCode) {
			continue
		}
		rows = append(rows, item)
	}

	if len(rows) == 0 {
		return nil, ErrImportNoData
	}
	if len(rows) > maxImportRows {
		return nil, ErrImportTooManyRows
	}
	return rows, nil
}

// ImportCourses 两阶段导入：逐行校验后在单个事务内写入
func (s *courseService) ImportCourses(ctx context.Context, rows []ImportCourseRow, callerID string) (*dto.ImportResponse, error) {
	resp := &dto.ImportResponse{Total: len(rows)}

	departments, err := s.repo.Department.List(ctx)
	if err != nil {
		s.logger.Error("加载院系列表失败", zap.Error(err))
		return nil, err
	}
	deptByCode := make(map[string]string, len(departments))
	for _, d := range departments {
		deptByCode[d.Code] = d.DepartmentID
	}

	codes := make([]string, 0, len(rows))
	for _, r := range rows {
		codes = append(codes, r.Code)
	}
	existing, err := s.repo.Course.ListByCodes(ctx, codes)
	if err != nil {
		s.logger.Error("查询已有课程失败", zap.Error(err))
		return nil, err
	}
	taken := make(map[string]bool, len(existing))
	for _, c := range existing {
		taken[c.Code] = true
	}

	fail := func(row int, reason string) {
		resp.Failed++
		resp.Errors = append(resp.Errors, dto.ImportError{Row: row, Reason: reason})
	}

	var valid []model.Course
	for _, r := range rows {
		if r.Code == "" || r.Title == "" || r.Credits == "" || r.DepartmentCode == "" {
			fail(r.Row, "必填字段为空")
			continue
		}
		credits, err := strconv.Atoi(r.Credits)
		if err != nil || credits <= 0 {
			fail(r.Row, fmt.Sprintf("学分无效: %s", r.Credits))
			continue
		}
		deptID, ok := deptByCode[r.DepartmentCode]
		if !ok {
			fail(r.Row, fmt.Sprintf("院系不存在: %s", r.DepartmentCode))
			continue
		}
		if taken[r.Code] {
			fail(r.Row, fmt.Sprintf("课程代码已存在: %s", r.Code))
			continue
		}
		taken[r.Code] = true

		course := model.Course{
			Code:         r.Code,
			Title:        r.Title,
			Credits:      credits,
			DepartmentID: deptID,
			Description:  r.Description,
			IsActive:     true,
		}
		course.CreatedBy = &callerID
		valid = append(valid, course)
	}

	if len(valid) == 0 {
		return resp, nil
	}

	err = s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		for i := range valid {
			if err := txRepo.Course.Create(ctx, &valid[i]); err != nil {
				return fmt.Errorf("课程 %s 写入失败，已回滚全部导入: %w", valid[i].Code, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("导入课程写入失败，事务回滚", zap.Error(err))
		return nil, err
	}

	resp.Success = len(valid)
	return resp, nil
}

// ── 内部辅助方法 ──

func (s *courseService) ensureDepartment(ctx context.Context, id string) error {
	dept, err := s.repo.Department.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDepartmentNotFound
		}
		s.logger.Error("查询院系失败", zap.String("id", id), zap.Error(err))
		return err
	}
	if !dept.IsActive {
		return ErrDepartmentInactive
	}
	return nil
}

func toCourseBrief(c *model.Course) *dto.CourseBrief {
	if c == nil {
		return nil
	}
	return &dto.CourseBrief{ID: c.CourseID, Code: c.Code, Title: c.Title, Credits: c.Credits}
}

func toCourseResponse(c *model.Course) *dto.CourseResponse {
	resp := &dto.CourseResponse{
		ID:          c.CourseID,
		Code:        c.Code,
		Title:       c.Title,
		Credits:     c.Credits,
		Description: c.Description,
		IsActive:    c.IsActive,
		Version:     c.Version,
		CreatedAt:   c.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:   c.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if c.Department != nil {
		resp.Department = &dto.DepartmentResponse{ID: c.Department.DepartmentID, Name: c.Department.Name}
	}
	return resp
}
