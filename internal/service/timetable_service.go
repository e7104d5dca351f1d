package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"bu-reg/backend/internal/dto"
	"bu-reg/backend/internal/model"
	"bu-reg/backend/internal/repository"
)

// ── 课表模块业务错误 ──

var (
	ErrTimetableNotFound       = errors.New("课表不存在")
	ErrSlotNotFound            = errors.New("课表时段不存在")
	ErrSlotOverlap             = errors.New("该时段与同一天已有时段重叠")
	ErrInvalidTimeRange        = errors.New("结束时间必须晚于开始时间")
	ErrInvalidDayOfWeek        = errors.New("星期取值应为 1-7")
	ErrLecturerNotFound        = errors.New("授课教师不存在")
	ErrTimetableICSParseFailed = errors.New("ICS 文件解析失败")
	ErrTimetableICSEmpty       = errors.New("ICS 文件中未发现有效课程事件")
)

// TimetableService 课表模块业务接口
type TimetableService interface {
	// 课表
	Create(ctx context.Context, req *dto.CreateTimetableRequest, callerID string) (*dto.TimetableResponse, error)
	GetByID(ctx context.Context, id string) (*dto.TimetableResponse, error)
	List(ctx context.Context, req *dto.TimetableListRequest) ([]dto.TimetableResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateTimetableRequest, callerID string) (*dto.TimetableResponse, error)
	Delete(ctx context.Context, id string, callerID string) error

	// 时段
	CreateSlot(ctx context.Context, timetableID string, req *dto.CreateSlotRequest, callerID string) (*dto.SlotResponse, error)
	UpdateSlot(ctx context.Context, slotID string, req *dto.UpdateSlotRequest, callerID string) (*dto.SlotResponse, error)
	DeleteSlot(ctx context.Context, slotID string, callerID string) error
	ImportICS(ctx context.Context, timetableID string, reader io.Reader, callerID string) (*dto.ImportSlotsResponse, error)

	// 学生个人课表
	GetStudentTimetable(ctx context.Context, studentID, semesterID string) (*dto.StudentTimetableResponse, error)
}

type timetableService struct {
	repo   *repository.Repository
	loc    *time.Location
	logger *zap.Logger
}

// NewTimetableService 创建 TimetableService 实例
// loc 用于将 ICS 中的 UTC 时间换算为本地上课时间
func NewTimetableService(repo *repository.Repository, loc *time.Location, logger *zap.Logger) TimetableService {
	if loc == nil {
		loc = time.UTC
	}
	return &timetableService{repo: repo, loc: loc, logger: logger}
}

// ────────────────────── 课表 CRUD ──────────────────────

func (s *timetableService) Create(ctx context.Context, req *dto.CreateTimetableRequest, callerID string) (*dto.TimetableResponse, error) {
	if _, err := resolveSemester(ctx, s.repo, req.SemesterID); err != nil {
		return nil, err
	}
	if req.DepartmentID != nil && *req.DepartmentID != "" {
		if _, err := s.repo.Department.GetByID(ctx, *req.DepartmentID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrDepartmentNotFound
			}
			return nil, err
		}
	}

	tt := &model.Timetable{
		SemesterID:   req.SemesterID,
		DepartmentID: req.DepartmentID,
		Name:         strings.TrimSpace(req.Name),
	}
	tt.CreatedBy = &callerID
	tt.UpdatedBy = &callerID

	if err := s.repo.Timetable.Create(ctx, tt); err != nil {
		s.logger.Error("创建课表失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("创建课表", zap.String("id", tt.TimetableID), zap.String("name", tt.Name))
	return s.GetByID(ctx, tt.TimetableID)
}

func (s *timetableService) GetByID(ctx context.Context, id string) (*dto.TimetableResponse, error) {
	tt, err := s.getTimetable(ctx, id)
	if err != nil {
		return nil, err
	}

	slots, err := s.repo.TimetableSlot.ListByTimetable(ctx, id)
	if err != nil {
		s.logger.Error("查询课表时段失败", zap.String("timetable_id", id), zap.Error(err))
		return nil, err
	}

	resp := toTimetableResponse(tt)
	resp.Slots = toSlotResponses(slots)
	return resp, nil
}

func (s *timetableService) List(ctx context.Context, req *dto.TimetableListRequest) ([]dto.TimetableResponse, error) {
	tts, err := s.repo.Timetable.List(ctx, req.SemesterID, req.DepartmentID)
	if err != nil {
		s.logger.Error("列出课表失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.TimetableResponse, 0, len(tts))
	for i := range tts {
		result = append(result, *toTimetableResponse(&tts[i]))
	}
	return result, nil
}

func (s *timetableService) Update(ctx context.Context, id string, req *dto.UpdateTimetableRequest, callerID string) (*dto.TimetableResponse, error) {
	tt, err := s.getTimetable(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		tt.Name = strings.TrimSpace(*req.Name)
	}
	if req.IsPublished != nil {
		tt.IsPublished = *req.IsPublished
	}
	tt.UpdatedBy = &callerID
	tt.Semester = nil

	if err := s.repo.Timetable.Update(ctx, tt); err != nil {
		s.logger.Error("更新课表失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *timetableService) Delete(ctx context.Context, id string, callerID string) error {
	if _, err := s.getTimetable(ctx, id); err != nil {
		return err
	}

	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		if err := txRepo.TimetableSlot.DeleteByTimetable(ctx, id, callerID); err != nil {
			return err
		}
		return txRepo.Timetable.Delete(ctx, id, callerID)
	})
	if err != nil {
		s.logger.Error("删除课表失败", zap.String("id", id), zap.Error(err))
		return err
	}

	s.logger.Info("删除课表", zap.String("id", id), zap.String("by", callerID))
	return nil
}

// ────────────────────── 时段 ──────────────────────

// CreateSlot 新增时段
// 锁定课表行后读取同日时段做重叠校验，保证并发写入不会产生交叠区间
func (s *timetableService) CreateSlot(ctx context.Context, timetableID string, req *dto.CreateSlotRequest, callerID string) (*dto.SlotResponse, error) {
	if _, err := s.getTimetable(ctx, timetableID); err != nil {
		return nil, err
	}
	if req.DayOfWeek < 1 || req.DayOfWeek > 7 {
		return nil, ErrInvalidDayOfWeek
	}
	rng, err := ParseClockRange(req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	if err := s.ensureCourse(ctx, req.CourseID); err != nil {
		return nil, err
	}
	if err := s.ensureLecturer(ctx, req.LecturerID); err != nil {
		return nil, err
	}

	slot := &model.TimetableSlot{
		TimetableID: timetableID,
		CourseID:    req.CourseID,
		LecturerID:  req.LecturerID,
		DayOfWeek:   req.DayOfWeek,
		StartTime:   FormatClock(rng.Start),
		EndTime:     FormatClock(rng.End),
		Room:        strings.TrimSpace(req.Room),
	}
	slot.CreatedBy = &callerID
	slot.UpdatedBy = &callerID

	err = s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		existing, err := s.lockDay(ctx, txRepo, timetableID, req.DayOfWeek)
		if err != nil {
			return err
		}
		if c := FindSlotConflict(req.DayOfWeek, rng, existing, ""); c != nil {
			return ErrSlotOverlap
		}
		return txRepo.TimetableSlot.Create(ctx, slot)
	})
	if err != nil {
		if errors.Is(err, ErrSlotOverlap) {
			return nil, err
		}
		s.logger.Error("创建课表时段失败", zap.String("timetable_id", timetableID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("创建课表时段",
		zap.String("timetable_id", timetableID),
		zap.Int("day", slot.DayOfWeek),
		zap.String("start", slot.StartTime),
		zap.String("end", slot.EndTime))

	return s.getSlotResponse(ctx, slot.SlotID)
}

// UpdateSlot 修改时段，重叠校验时排除自身
func (s *timetableService) UpdateSlot(ctx context.Context, slotID string, req *dto.UpdateSlotRequest, callerID string) (*dto.SlotResponse, error) {
	slot, err := s.repo.TimetableSlot.GetByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSlotNotFound
		}
		s.logger.Error("查询课表时段失败", zap.String("id", slotID), zap.Error(err))
		return nil, err
	}

	if req.CourseID != nil {
		if err := s.ensureCourse(ctx, *req.CourseID); err != nil {
			return nil, err
		}
		slot.CourseID = *req.CourseID
	}
	if req.LecturerID != nil {
		if err := s.ensureLecturer(ctx, req.LecturerID); err != nil {
			return nil, err
		}
		slot.LecturerID = req.LecturerID
	}
	if req.DayOfWeek != nil {
		if *req.DayOfWeek < 1 || *req.DayOfWeek > 7 {
			return nil, ErrInvalidDayOfWeek
		}
		slot.DayOfWeek = *req.DayOfWeek
	}
	if req.StartTime != nil {
		slot.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		slot.EndTime = *req.EndTime
	}
	if req.Room != nil {
		slot.Room = strings.TrimSpace(*req.Room)
	}

	rng, err := ParseClockRange(slot.StartTime, slot.EndTime)
	if err != nil {
		return nil, err
	}
	slot.StartTime = FormatClock(rng.Start)
	slot.EndTime = FormatClock(rng.End)
	slot.UpdatedBy = &callerID
	slot.Course = nil

	err = s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		existing, err := s.lockDay(ctx, txRepo, slot.TimetableID, slot.DayOfWeek)
		if err != nil {
			return err
		}
		if c := FindSlotConflict(slot.DayOfWeek, rng, existing, slot.SlotID); c != nil {
			return ErrSlotOverlap
		}
		return txRepo.TimetableSlot.Update(ctx, slot)
	})
	if err != nil {
		if errors.Is(err, ErrSlotOverlap) {
			return nil, err
		}
		s.logger.Error("更新课表时段失败", zap.String("id", slotID), zap.Error(err))
		return nil, err
	}

	return s.getSlotResponse(ctx, slotID)
}

func (s *timetableService) DeleteSlot(ctx context.Context, slotID string, callerID string) error {
	if _, err := s.repo.TimetableSlot.GetByID(ctx, slotID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSlotNotFound
		}
		s.logger.Error("查询课表时段失败", zap.String("id", slotID), zap.Error(err))
		return err
	}

	if err := s.repo.TimetableSlot.Delete(ctx, slotID, callerID); err != nil {
		s.logger.Error("删除课表时段失败", zap.String("id", slotID), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── ImportICS ──────────────────────

// ImportICS 从 ICS 日历批量导入时段
// 每个事件逐一做课程匹配与重叠校验；无冲突的写入，冲突的逐条返回原因
func (s *timetableService) ImportICS(ctx context.Context, timetableID string, reader io.Reader, callerID string) (*dto.ImportSlotsResponse, error) {
	if _, err := s.getTimetable(ctx, timetableID); err != nil {
		return nil, err
	}

	events, err := ParseICS(reader, s.loc)
	if err != nil {
		s.logger.Warn("ICS 解析失败", zap.Error(err))
		return nil, ErrTimetableICSParseFailed
	}
	if len(events) == 0 {
		return nil, ErrTimetableICSEmpty
	}

	codes := make([]string, 0, len(events))
	for _, e := range events {
		codes = append(codes, e.CourseCode)
	}
	courses, err := s.repo.Course.ListByCodes(ctx, codes)
	if err != nil {
		s.logger.Error("按代码查询课程失败", zap.Error(err))
		return nil, err
	}
	courseByCode := make(map[string]*model.Course, len(courses))
	for i := range courses {
		courseByCode[strings.ToUpper(courses[i].Code)] = &courses[i]
	}

	resp := &dto.ImportSlotsResponse{Total: len(events)}
	err = s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		if err := txRepo.Timetable.LockForUpdate(ctx, timetableID); err != nil {
			return err
		}
		existing, err := txRepo.TimetableSlot.ListByTimetable(ctx, timetableID)
		if err != nil {
			return err
		}

		for _, e := range events {
			reject := func(reason string) {
				resp.Conflicts = append(resp.Conflicts, dto.SlotImportError{
					Summary:   e.Summary,
					DayOfWeek: e.DayOfWeek,
					StartTime: e.StartTime,
					EndTime:   e.EndTime,
					Reason:    reason,
				})
			}

			course, ok := courseByCode[e.CourseCode]
			if !ok {
				reject(fmt.Sprintf("课程代码 %s 不存在", e.CourseCode))
				continue
			}
			rng, err := ParseClockRange(e.StartTime, e.EndTime)
			if err != nil {
				reject(err.Error())
				continue
			}
			if c := FindSlotConflict(e.DayOfWeek, rng, existing, ""); c != nil {
				reject(fmt.Sprintf("与已有时段 %s-%s 重叠", NormalizeClock(c.StartTime), NormalizeClock(c.EndTime)))
				continue
			}

			slot := &model.TimetableSlot{
				TimetableID: timetableID,
				CourseID:    course.CourseID,
				DayOfWeek:   e.DayOfWeek,
				StartTime:   e.StartTime,
				EndTime:     e.EndTime,
				Room:        e.Room,
			}
			slot.CreatedBy = &callerID
			slot.UpdatedBy = &callerID
			if err := txRepo.TimetableSlot.Create(ctx, slot); err != nil {
				return err
			}
			existing = append(existing, *slot)
			resp.Created++
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTimetableNotFound
		}
		s.logger.Error("ICS 导入失败", zap.String("timetable_id", timetableID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("ICS 导入完成",
		zap.String("timetable_id", timetableID),
		zap.Int("total", resp.Total),
		zap.Int("created", resp.Created),
		zap.Int("conflicts", len(resp.Conflicts)))

	return resp, nil
}

// ────────────────────── 学生课表 ──────────────────────

// GetStudentTimetable 学生本学期已选（未被驳回）课程在已发布课表中的时段
func (s *timetableService) GetStudentTimetable(ctx context.Context, studentID, semesterID string) (*dto.StudentTimetableResponse, error) {
	semester, err := resolveSemester(ctx, s.repo, semesterID)
	if err != nil {
		return nil, err
	}

	uploads, err := s.repo.CourseUpload.ListByStudentSemester(ctx, studentID, semester.SemesterID)
	if err != nil {
		s.logger.Error("查询学生选课失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}

	courseIDs := make([]string, 0, len(uploads))
	for _, u := range uploads {
		if u.Status == model.StatusRejected {
			continue
		}
		courseIDs = append(courseIDs, u.CourseID)
	}

	slots, err := s.repo.TimetableSlot.ListBySemesterCourses(ctx, semester.SemesterID, courseIDs)
	if err != nil {
		s.logger.Error("查询学生课表失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}

	return &dto.StudentTimetableResponse{
		Semester: &dto.SemesterBrief{ID: semester.SemesterID, Name: semester.Name},
		Slots:    toSlotResponses(slots),
	}, nil
}

// ── 内部辅助方法 ──

func (s *timetableService) getTimetable(ctx context.Context, id string) (*model.Timetable, error) {
	tt, err := s.repo.Timetable.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTimetableNotFound
		}
		s.logger.Error("查询课表失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return tt, nil
}

// lockDay 锁定课表并读取指定星期的已有时段
func (s *timetableService) lockDay(ctx context.Context, txRepo *repository.Repository, timetableID string, day int) ([]model.TimetableSlot, error) {
	if err := txRepo.Timetable.LockForUpdate(ctx, timetableID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTimetableNotFound
		}
		return nil, err
	}
	return txRepo.TimetableSlot.ListByTimetableDay(ctx, timetableID, day)
}

func (s *timetableService) ensureCourse(ctx context.Context, courseID string) error {
	if _, err := s.repo.Course.GetByID(ctx, courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCourseNotFound
		}
		return err
	}
	return nil
}

func (s *timetableService) ensureLecturer(ctx context.Context, lecturerID *string) error {
	if lecturerID == nil || *lecturerID == "" {
		return nil
	}
	if _, err := s.repo.User.GetByID(ctx, *lecturerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrLecturerNotFound
		}
		return err
	}
	return nil
}

func (s *timetableService) getSlotResponse(ctx context.Context, id string) (*dto.SlotResponse, error) {
	slot, err := s.repo.TimetableSlot.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	resp := toSlotResponse(slot)
	return &resp, nil
}

func toTimetableResponse(tt *model.Timetable) *dto.TimetableResponse {
	resp := &dto.TimetableResponse{
		ID:           tt.TimetableID,
		Name:         tt.Name,
		DepartmentID: tt.DepartmentID,
		IsPublished:  tt.IsPublished,
		CreatedAt:    tt.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:    tt.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if tt.Semester != nil {
		resp.Semester = &dto.SemesterBrief{ID: tt.Semester.SemesterID, Name: tt.Semester.Name}
	}
	return resp
}

func toSlotResponse(slot *model.TimetableSlot) dto.SlotResponse {
	return dto.SlotResponse{
		ID:          slot.SlotID,
		TimetableID: slot.TimetableID,
		Course:      toCourseBrief(slot.Course),
		LecturerID:  slot.LecturerID,
		DayOfWeek:   slot.DayOfWeek,
		StartTime:   NormalizeClock(slot.StartTime),
		EndTime:     NormalizeClock(slot.EndTime),
		Room:        slot.Room,
	}
}

func toSlotResponses(slots []model.TimetableSlot) []dto.SlotResponse {
	result := make([]dto.SlotResponse, 0, len(slots))
	for i := range slots {
		result = append(result, toSlotResponse(&slots[i]))
	}
	return result
}
