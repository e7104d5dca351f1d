package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"bu-reg/backend/internal/dto"
	"bu-reg/backend/internal/model"
	"bu-reg/backend/internal/repository"
	pkgerrors "bu-reg/backend/pkg/errors"
	"bu-reg/backend/pkg/redis"
)

// ── 学期模块业务错误 ──

var (
	ErrSemesterNotFound         = errors.New("学期不存在")
	ErrNoActiveSemester         = errors.New("当前没有活动学期")
	ErrSemesterDateInvalid      = errors.New("学期结束日期必须晚于开始日期")
	ErrSemesterDeadlineInvalid  = errors.New("截止时间必须位于学期起止日期之间")
	ErrSemesterNameExists       = errors.New("学期名称已存在")
	ErrSemesterActive           = errors.New("不能删除活动学期")
	ErrSemesterHasRegistrations = errors.New("学期下已有注册记录，不能删除")
	ErrSemesterActivateConflict = errors.New("学期激活冲突，请重试")
)

const (
	currentSemesterCacheTTL = 10 * time.Minute
	dateLayout              = "2006-01-02"
)

// SemesterCache 当前学期缓存
type SemesterCache interface {
	GetCurrentSemester(ctx context.Context) ([]byte, error)
	SetCurrentSemester(ctx context.Context, payload []byte, ttl time.Duration) error
	InvalidateCurrentSemester(ctx context.Context) error
}

// SemesterService 学期业务接口
type SemesterService interface {
	Create(ctx context.Context, req *dto.CreateSemesterRequest, callerID string) (*dto.SemesterResponse, error)
	GetByID(ctx context.Context, id string) (*dto.SemesterResponse, error)
	GetCurrent(ctx context.Context) (*dto.SemesterResponse, error)
	List(ctx context.Context) ([]dto.SemesterResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateSemesterRequest, callerID string) (*dto.SemesterResponse, error)
	Activate(ctx context.Context, id string, callerID string) error
	Deactivate(ctx context.Context, id string, callerID string) error
	Delete(ctx context.Context, id string, callerID string) error
}

type semesterService struct {
	repo   *repository.Repository
	cache  SemesterCache // 可为 nil（未配置 Redis）
	logger *zap.Logger
}

// NewSemesterService 创建 SemesterService 实例
func NewSemesterService(repo *repository.Repository, cache SemesterCache, logger *zap.Logger) SemesterService {
	return &semesterService{repo: repo, cache: cache, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *semesterService) Create(ctx context.Context, req *dto.CreateSemesterRequest, callerID string) (*dto.SemesterResponse, error) {
	semester := &model.Semester{Name: req.Name}
	err := applySchedule(semester, &req.StartDate, &req.EndDate,
		deadlinePatch{set: true, value: req.RegistrationDeadline},
		deadlinePatch{set: true, value: req.CourseUploadDeadline})
	if err != nil {
		return nil, err
	}
	if err := s.ensureNameFree(ctx, req.Name); err != nil {
		return nil, err
	}

	semester.CreatedBy = &callerID
	semester.UpdatedBy = &callerID

	if err := s.repo.Semester.Create(ctx, semester); err != nil {
		if pkgerrors.IsDuplicateKey(err) {
			return nil, ErrSemesterNameExists
		}
		s.logger.Error("创建学期失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("学期已创建", zap.String("id", semester.SemesterID), zap.String("name", semester.Name))
	return toSemesterResponse(semester), nil
}

// ────────────────────── GetByID ──────────────────────

func (s *semesterService) GetByID(ctx context.Context, id string) (*dto.SemesterResponse, error) {
	semester, err := s.loadSemester(ctx, id)
	if err != nil {
		return nil, err
	}
	return toSemesterResponse(semester), nil
}

// ────────────────────── GetCurrent ──────────────────────

// GetCurrent 优先读取 Redis 缓存，缓存异常时回落到数据库
func (s *semesterService) GetCurrent(ctx context.Context) (*dto.SemesterResponse, error) {
	if s.cache != nil {
		payload, err := s.cache.GetCurrentSemester(ctx)
		switch {
		case err == nil:
			var cached dto.SemesterResponse
			if jsonErr := json.Unmarshal(payload, &cached); jsonErr == nil {
				return &cached, nil
			}
		case !errors.Is(err, redis.ErrCacheMiss):
			s.logger.Warn("读取当前学期缓存失败", zap.Error(err))
		}
	}

	semester, err := s.repo.Semester.GetCurrent(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveSemester
		}
		s.logger.Error("查询当前学期失败", zap.Error(err))
		return nil, err
	}

	resp := toSemesterResponse(semester)
	if s.cache != nil {
		if payload, err := json.Marshal(resp); err == nil {
			if err := s.cache.SetCurrentSemester(ctx, payload, currentSemesterCacheTTL); err != nil {
				s.logger.Warn("写入当前学期缓存失败", zap.Error(err))
			}
		}
	}

	return resp, nil
}

// ────────────────────── List ──────────────────────

func (s *semesterService) List(ctx context.Context) ([]dto.SemesterResponse, error) {
	semesters, err := s.repo.Semester.List(ctx)
	if err != nil {
		s.logger.Error("列出学期失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.SemesterResponse, 0, len(semesters))
	for i := range semesters {
		result = append(result, *toSemesterResponse(&semesters[i]))
	}

	return result, nil
}

// ────────────────────── Update ──────────────────────

func (s *semesterService) Update(ctx context.Context, id string, req *dto.UpdateSemesterRequest, callerID string) (*dto.SemesterResponse, error) {
	semester, err := s.loadSemester(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil && *req.Name != semester.Name {
		if err := s.ensureNameFree(ctx, *req.Name); err != nil {
			return nil, err
		}
		semester.Name = *req.Name
	}
	err = applySchedule(semester, req.StartDate, req.EndDate,
		deadlinePatch{set: req.RegistrationDeadline != nil, value: req.RegistrationDeadline},
		deadlinePatch{set: req.CourseUploadDeadline != nil, value: req.CourseUploadDeadline})
	if err != nil {
		return nil, err
	}

	semester.UpdatedBy = &callerID

	if err := s.repo.Semester.Update(ctx, semester); err != nil {
		if pkgerrors.IsDuplicateKey(err) {
			return nil, ErrSemesterNameExists
		}
		s.logger.Error("更新学期失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	if semester.IsActive {
		s.invalidateCurrent(ctx)
	}

	return toSemesterResponse(semester), nil
}

// ────────────────────── Activate ──────────────────────

// Activate 在同一事务内锁定全部学期行、清除其他活动学期并激活目标学期
// 并发激活被行锁串行化，部分唯一索引 uq_semesters_single_active 兜底
func (s *semesterService) Activate(ctx context.Context, id string, callerID string) error {
	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		if err := txRepo.Semester.LockAll(ctx); err != nil {
			return err
		}
		if _, err := txRepo.Semester.GetByID(ctx, id); err != nil {
			return err
		}
		if err := txRepo.Semester.ClearActive(ctx); err != nil {
			return err
		}
		return txRepo.Semester.SetActive(ctx, id, true, callerID)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSemesterNotFound
		}
		if pkgerrors.IsDuplicateKey(err) {
			return ErrSemesterActivateConflict
		}
		s.logger.Error("激活学期失败", zap.String("id", id), zap.Error(err))
		return err
	}

	s.invalidateCurrent(ctx)
	s.logger.Info("学期已激活", zap.String("id", id), zap.String("by", callerID))
	return nil
}

// ────────────────────── Deactivate ──────────────────────

func (s *semesterService) Deactivate(ctx context.Context, id string, callerID string) error {
	if err := s.repo.Semester.SetActive(ctx, id, false, callerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSemesterNotFound
		}
		s.logger.Error("停用学期失败", zap.String("id", id), zap.Error(err))
		return err
	}

	s.invalidateCurrent(ctx)
	return nil
}

// ────────────────────── Delete ──────────────────────

func (s *semesterService) Delete(ctx context.Context, id string, callerID string) error {
	semester, err := s.loadSemester(ctx, id)
	if err != nil {
		return err
	}
	if semester.IsActive {
		return ErrSemesterActive
	}

	count, err := s.repo.Semester.CountRegistrations(ctx, id)
	if err != nil {
		s.logger.Error("统计学期注册数失败", zap.String("id", id), zap.Error(err))
		return err
	}
	if count > 0 {
		return ErrSemesterHasRegistrations
	}

	if err := s.repo.Semester.Delete(ctx, id, callerID); err != nil {
		s.logger.Error("删除学期失败", zap.String("id", id), zap.Error(err))
		return err
	}

	return nil
}

// ── 内部辅助方法 ──

func (s *semesterService) loadSemester(ctx context.Context, id string) (*model.Semester, error) {
	semester, err := s.repo.Semester.GetByID(ctx, id)
	if err == nil {
		return semester, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSemesterNotFound
	}
	s.logger.Error("查询学期失败", zap.String("id", id), zap.Error(err))
	return nil, err
}

func (s *semesterService) ensureNameFree(ctx context.Context, name string) error {
	_, err := s.repo.Semester.GetByName(ctx, name)
	switch {
	case err == nil:
		return ErrSemesterNameExists
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		s.logger.Error("查询学期名称失败", zap.Error(err))
		return err
	}
}

func (s *semesterService) invalidateCurrent(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateCurrentSemester(ctx); err != nil {
		s.logger.Warn("清除当前学期缓存失败", zap.Error(err))
	}
}

// resolveSemester semesterID 为空时取当前活动学期
func resolveSemester(ctx context.Context, repo *repository.Repository, semesterID string) (*model.Semester, error) {
	if semesterID == "" {
		semester, err := repo.Semester.GetCurrent(ctx)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveSemester
		}
		return semester, err
	}
	semester, err := repo.Semester.GetByID(ctx, semesterID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSemesterNotFound
	}
	return semester, err
}

// deadlinePatch set=false 表示保持原值
type deadlinePatch struct {
	set   bool
	value *string
}

// applySchedule 写入起止日期与两个截止时间并整体校验；nil 日期保持原值
func applySchedule(semester *model.Semester, start, end *string, registration, upload deadlinePatch) error {
	for _, d := range []struct {
		raw *string
		dst *time.Time
	}{{start, &semester.StartDate}, {end, &semester.EndDate}} {
		if d.raw == nil {
			continue
		}
		t, err := time.Parse(dateLayout, *d.raw)
		if err != nil {
			return ErrSemesterDateInvalid
		}
		*d.dst = t
	}
	if !semester.EndDate.After(semester.StartDate) {
		return ErrSemesterDateInvalid
	}

	var err error
	if registration.set {
		if semester.RegistrationDeadline, err = parseDeadline(registration.value); err != nil {
			return err
		}
	}
	if upload.set {
		if semester.CourseUploadDeadline, err = parseDeadline(upload.value); err != nil {
			return err
		}
	}
	return validateDeadlines(semester)
}

// parseDeadline 空字符串表示清除截止时间
func parseDeadline(v *string) (*time.Time, error) {
	if v == nil || *v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *v)
	if err != nil {
		return nil, ErrSemesterDeadlineInvalid
	}
	return &t, nil
}

// validateDeadlines 截止时间须落在 [start_date, end_date 当天结束)
func validateDeadlines(semester *model.Semester) error {
	lo := semester.StartDate
	hi := semester.EndDate.AddDate(0, 0, 1)
	for _, d := range []*time.Time{semester.RegistrationDeadline, semester.CourseUploadDeadline} {
		if d == nil {
			continue
		}
		if d.Before(lo) || !d.Before(hi) {
			return ErrSemesterDeadlineInvalid
		}
	}
	return nil
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func toSemesterResponse(semester *model.Semester) *dto.SemesterResponse {
	return &dto.SemesterResponse{
		ID:                   semester.SemesterID,
		Name:                 semester.Name,
		StartDate:            semester.StartDate.Format(dateLayout),
		EndDate:              semester.EndDate.Format(dateLayout),
		RegistrationDeadline: formatOptionalTime(semester.RegistrationDeadline),
		CourseUploadDeadline: formatOptionalTime(semester.CourseUploadDeadline),
		IsActive:             semester.IsActive,
		CreatedAt:            semester.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:            semester.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
