package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"bu-reg/backend/config"
	"bu-reg/backend/internal/dto"
	"bu-reg/backend/internal/model"
	"bu-reg/backend/internal/repository"
	pkgerrors "bu-reg/backend/pkg/errors"
)

// ── 选课注册模块业务错误 ──

var (
	ErrRegistrationNotFound   = errors.New("注册记录不存在")
	ErrCourseUploadNotFound   = errors.New("选课记录不存在")
	ErrDuplicateRegistration  = errors.New("本学期已选过该课程")
	ErrRegistrationClosed     = errors.New("本学期选课已截止")
	ErrUploadAlreadyApproved  = errors.New("已审批通过的课程不能撤销")
	ErrUploadAlreadyReviewed  = errors.New("该课程已审批")
	ErrNoPendingUploads       = errors.New("没有待审批的课程")
	ErrCardNotFound           = errors.New("注册卡不存在")
	ErrCardNumberExhausted    = errors.New("注册卡号生成失败，请重试")
	ErrInvalidReviewDecision  = errors.New("审批结果只能为 APPROVED 或 REJECTED")
)

const maxCardNumberAttempts = 5

// RegistrationService 选课注册业务接口
type RegistrationService interface {
	// 学生
	AddCourse(ctx context.Context, studentID string, req *dto.AddCourseRequest) (*dto.RegistrationResponse, error)
	RemoveCourse(ctx context.Context, callerID, callerRole, uploadID string) error
	ListMyRegistrations(ctx context.Context, studentID, semesterID string) ([]dto.RegistrationResponse, error)
	GetMyCard(ctx context.Context, studentID, semesterID string) (*dto.RegistrationCardResponse, error)

	// 查询
	GetRegistration(ctx context.Context, callerID, callerRole, id string) (*dto.RegistrationResponse, error)
	ListRegistrations(ctx context.Context, req *dto.RegistrationListRequest) ([]dto.RegistrationResponse, int64, error)
	ListCourseUploads(ctx context.Context, req *dto.CourseUploadListRequest) ([]dto.CourseUploadResponse, int64, error)

	// 审批
	ReviewCourseUpload(ctx context.Context, reviewerID, uploadID string, req *dto.ReviewRequest) (*dto.ReviewResult, error)
	ReviewRegistration(ctx context.Context, reviewerID, registrationID string, req *dto.ReviewRequest) (*dto.ReviewResult, error)

	// 注册卡
	GetCardByNumber(ctx context.Context, cardNumber string) (*dto.RegistrationCardResponse, error)
	ListCards(ctx context.Context, semesterID string, page *dto.PaginationRequest) ([]dto.RegistrationCardResponse, int64, error)
}

type registrationService struct {
	repo       *repository.Repository
	notifier   NotificationService
	limits     CreditLimits
	cardPrefix string
	now        func() time.Time
	logger     *zap.Logger
}

// NewRegistrationService 创建 RegistrationService 实例
func NewRegistrationService(
	cfg *config.RegistrationConfig,
	repo *repository.Repository,
	notifier NotificationService,
	logger *zap.Logger,
) RegistrationService {
	return &registrationService{
		repo:     repo,
		notifier: notifier,
		limits: CreditLimits{
			MinCourseCredits: cfg.MinCourseCredits,
			MaxTermCredits:   cfg.MaxTermCredits,
		},
		cardPrefix: cfg.CardPrefix,
		now:        time.Now,
		logger:     logger,
	}
}

// cascadeResult 一次状态级联的结果，用于事务提交后发送通知
type cascadeResult struct {
	registration *model.Registration
	oldStatus    string
	card         *model.RegistrationCard
	cardIssued   bool
}

// ────────────────────── AddCourse ──────────────────────

// AddCourse 学生选课
// 在同一事务内：获取或创建注册记录并加锁 → 重复校验 → 学分准入 → 写入 PENDING 明细 → 重新汇总注册状态
func (s *registrationService) AddCourse(ctx context.Context, studentID string, req *dto.AddCourseRequest) (*dto.RegistrationResponse, error) {
	semester, err := s.resolveSemester(ctx, req.SemesterID)
	if err != nil {
		return nil, err
	}
	if semester.CourseUploadDeadline != nil && s.now().After(*semester.CourseUploadDeadline) {
		return nil, ErrRegistrationClosed
	}

	course, err := s.repo.Course.GetByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		s.logger.Error("查询课程失败", zap.String("course_id", req.CourseID), zap.Error(err))
		return nil, err
	}
	if !course.IsActive {
		return nil, ErrCourseInactive
	}

	var registrationID string
	err = s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		reg, err := txRepo.Registration.GetOrCreateForUpdate(ctx, studentID, semester.SemesterID)
		if err != nil {
			return err
		}
		registrationID = reg.RegistrationID

		uploads, err := txRepo.CourseUpload.ListByStudentSemester(ctx, studentID, semester.SemesterID)
		if err != nil {
			return err
		}
		if IsDuplicateUpload(uploads, studentID, semester.SemesterID, course.CourseID) {
			return ErrDuplicateRegistration
		}
		counted, err := CountedCredits(uploads)
		if err != nil {
			return err
		}
		if err := CheckCreditAdmission(counted, course.Credits, s.limits); err != nil {
			return err
		}

		upload := &model.CourseUpload{
			StudentID:      studentID,
			CourseID:       course.CourseID,
			SemesterID:     semester.SemesterID,
			RegistrationID: reg.RegistrationID,
			Status:         model.StatusPending,
		}
		upload.CreatedBy = &studentID
		if err := txRepo.CourseUpload.Create(ctx, upload); err != nil {
			return err
		}

		statuses := uploadStatuses(uploads)
		statuses = append(statuses, model.StatusPending)
		if next := DeriveRegistrationStatus(statuses); next != reg.Status {
			return txRepo.Registration.UpdateStatus(ctx, reg.RegistrationID, next)
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicateRegistration), pkgerrors.IsDuplicateKey(err):
			return nil, ErrDuplicateRegistration
		case errors.Is(err, ErrCourseCreditsTooLow), errors.Is(err, ErrCreditLimitExceeded):
			return nil, err
		}
		s.logger.Error("选课失败",
			zap.String("student_id", studentID),
			zap.String("course_id", req.CourseID),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("学生选课",
		zap.String("student_id", studentID),
		zap.String("course", course.Code),
		zap.String("semester_id", semester.SemesterID))

	return s.loadRegistration(ctx, registrationID)
}

// ────────────────────── RemoveCourse ──────────────────────

// RemoveCourse 撤销选课
// 学生只能撤销本人未通过审批的课程且受截止时间限制；教务 / 管理员可撤销任意课程
// 撤销最后一门课程时删除注册记录（已发卡则保留并回到 PENDING），否则重新汇总状态（可能触发通过与发卡）
func (s *registrationService) RemoveCourse(ctx context.Context, callerID, callerRole, uploadID string) error {
	upload, err := s.repo.CourseUpload.GetByID(ctx, uploadID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCourseUploadNotFound
		}
		s.logger.Error("查询选课记录失败", zap.String("id", uploadID), zap.Error(err))
		return err
	}

	privileged := isRegistryRole(callerRole)
	if !privileged {
		if upload.StudentID != callerID {
			return ErrNoPermission
		}
		semester, err := s.repo.Semester.GetByID(ctx, upload.SemesterID)
		if err != nil {
			s.logger.Error("查询学期失败", zap.String("id", upload.SemesterID), zap.Error(err))
			return err
		}
		if semester.CourseUploadDeadline != nil && s.now().After(*semester.CourseUploadDeadline) {
			return ErrRegistrationClosed
		}
	}

	var result *cascadeResult
	err = s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		reg, err := txRepo.Registration.GetForUpdate(ctx, upload.RegistrationID)
		if err != nil {
			return err
		}

		// 加锁后重新读取，防止与审批并发
		current, err := txRepo.CourseUpload.GetByID(ctx, uploadID)
		if err != nil {
			return err
		}
		if !privileged && current.Status == model.StatusApproved {
			return ErrUploadAlreadyApproved
		}

		if err := txRepo.CourseUpload.Delete(ctx, uploadID); err != nil {
			return err
		}

		remaining, err := txRepo.CourseUpload.ListByRegistration(ctx, reg.RegistrationID)
		if err != nil {
			return err
		}
		if len(remaining) == 0 {
			return s.clearRegistration(ctx, txRepo, reg)
		}

		result, err = s.reconcile(ctx, txRepo, reg, uploadStatuses(remaining))
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCourseUploadNotFound
		}
		if errors.Is(err, ErrUploadAlreadyApproved) {
			return err
		}
		s.logger.Error("撤销选课失败", zap.String("id", uploadID), zap.Error(err))
		return err
	}

	s.logger.Info("撤销选课", zap.String("upload_id", uploadID), zap.String("by", callerID))
	s.notifyCascade(ctx, result)
	return nil
}

// clearRegistration 注册卡一经签发不撤销，有卡的注册记录只重置状态
func (s *registrationService) clearRegistration(ctx context.Context, txRepo *repository.Repository, reg *model.Registration) error {
	_, err := txRepo.RegistrationCard.GetByStudentSemester(ctx, reg.StudentID, reg.SemesterID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return txRepo.Registration.Delete(ctx, reg.RegistrationID)
	case err != nil:
		return err
	}
	if reg.Status == model.StatusPending {
		return nil
	}
	return txRepo.Registration.UpdateStatus(ctx, reg.RegistrationID, model.StatusPending)
}

// ────────────────────── ReviewCourseUpload ──────────────────────

// ReviewCourseUpload 审批单门课程并追加审批记录，同一事务内完成状态级联
func (s *registrationService) ReviewCourseUpload(ctx context.Context, reviewerID, uploadID string, req *dto.ReviewRequest) (*dto.ReviewResult, error) {
	if !isReviewDecision(req.Status) {
		return nil, ErrInvalidReviewDecision
	}

	upload, err := s.repo.CourseUpload.GetByID(ctx, uploadID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseUploadNotFound
		}
		s.logger.Error("查询选课记录失败", zap.String("id", uploadID), zap.Error(err))
		return nil, err
	}

	var result *cascadeResult
	err = s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		reg, err := txRepo.Registration.GetForUpdate(ctx, upload.RegistrationID)
		if err != nil {
			return err
		}

		current, err := txRepo.CourseUpload.GetByID(ctx, uploadID)
		if err != nil {
			return err
		}
		if current.Status != model.StatusPending {
			return ErrUploadAlreadyReviewed
		}

		if err := s.applyDecision(ctx, txRepo, uploadID, reviewerID, req); err != nil {
			return err
		}

		uploads, err := txRepo.CourseUpload.ListByRegistration(ctx, reg.RegistrationID)
		if err != nil {
			return err
		}
		result, err = s.reconcile(ctx, txRepo, reg, uploadStatuses(uploads))
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseUploadNotFound
		}
		if errors.Is(err, ErrUploadAlreadyReviewed) {
			return nil, err
		}
		s.logger.Error("审批课程失败", zap.String("id", uploadID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("课程审批",
		zap.String("upload_id", uploadID),
		zap.String("decision", req.Status),
		zap.String("reviewer", reviewerID),
		zap.String("registration_status", result.registration.Status))

	courseName := uploadID
	if upload.Course != nil {
		courseName = upload.Course.Code
	}
	s.notify(ctx, upload.StudentID, model.NotifyCourseReviewed,
		"选课审批结果",
		fmt.Sprintf("课程 %s 的审批结果：%s。%s", courseName, req.Status, req.Remarks),
		"course_upload", uploadID, true)
	s.notifyCascade(ctx, result)

	return toReviewResult([]string{uploadID}, result), nil
}

// ────────────────────── ReviewRegistration ──────────────────────

// ReviewRegistration 将审批结果批量应用到注册下所有待审课程
func (s *registrationService) ReviewRegistration(ctx context.Context, reviewerID, registrationID string, req *dto.ReviewRequest) (*dto.ReviewResult, error) {
	if !isReviewDecision(req.Status) {
		return nil, ErrInvalidReviewDecision
	}

	var (
		result   *cascadeResult
		reviewed []string
	)
	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		reg, err := txRepo.Registration.GetForUpdate(ctx, registrationID)
		if err != nil {
			return err
		}

		uploads, err := txRepo.CourseUpload.ListByRegistration(ctx, registrationID)
		if err != nil {
			return err
		}
		for _, u := range uploads {
			if u.Status != model.StatusPending {
				continue
			}
			if err := s.applyDecision(ctx, txRepo, u.CourseUploadID, reviewerID, req); err != nil {
				return err
			}
			reviewed = append(reviewed, u.CourseUploadID)
		}
		if len(reviewed) == 0 {
			return ErrNoPendingUploads
		}

		uploads, err = txRepo.CourseUpload.ListByRegistration(ctx, registrationID)
		if err != nil {
			return err
		}
		result, err = s.reconcile(ctx, txRepo, reg, uploadStatuses(uploads))
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRegistrationNotFound
		}
		if errors.Is(err, ErrNoPendingUploads) {
			return nil, err
		}
		s.logger.Error("批量审批失败", zap.String("registration_id", registrationID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("注册批量审批",
		zap.String("registration_id", registrationID),
		zap.String("decision", req.Status),
		zap.Int("courses", len(reviewed)),
		zap.String("reviewer", reviewerID))

	s.notify(ctx, result.registration.StudentID, model.NotifyCourseReviewed,
		"选课审批结果",
		fmt.Sprintf("%d 门课程的审批结果：%s。%s", len(reviewed), req.Status, req.Remarks),
		"registration", registrationID, true)
	s.notifyCascade(ctx, result)

	return toReviewResult(reviewed, result), nil
}

// ────────────────────── 查询 ──────────────────────

func (s *registrationService) ListMyRegistrations(ctx context.Context, studentID, semesterID string) ([]dto.RegistrationResponse, error) {
	regs, err := s.repo.Registration.ListByStudent(ctx, studentID, semesterID)
	if err != nil {
		s.logger.Error("查询学生注册失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.RegistrationResponse, 0, len(regs))
	for i := range regs {
		resp := toRegistrationResponse(&regs[i])
		if regs[i].Status == model.StatusApproved {
			resp.Card = s.lookupCardBrief(ctx, regs[i].StudentID, regs[i].SemesterID)
		}
		result = append(result, *resp)
	}
	return result, nil
}

func (s *registrationService) GetRegistration(ctx context.Context, callerID, callerRole, id string) (*dto.RegistrationResponse, error) {
	reg, err := s.repo.Registration.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRegistrationNotFound
		}
		s.logger.Error("查询注册失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	if callerRole == model.RoleStudent && reg.StudentID != callerID {
		return nil, ErrNoPermission
	}

	resp := toRegistrationResponse(reg)
	if reg.Status == model.StatusApproved {
		resp.Card = s.lookupCardBrief(ctx, reg.StudentID, reg.SemesterID)
	}
	return resp, nil
}

func (s *registrationService) ListRegistrations(ctx context.Context, req *dto.RegistrationListRequest) ([]dto.RegistrationResponse, int64, error) {
	filter := repository.RegistrationFilter{
		SemesterID:   req.SemesterID,
		Status:       req.Status,
		DepartmentID: req.DepartmentID,
	}
	regs, total, err := s.repo.Registration.List(ctx, filter, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出注册失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.RegistrationResponse, 0, len(regs))
	for i := range regs {
		result = append(result, *toRegistrationResponse(&regs[i]))
	}
	return result, total, nil
}

func (s *registrationService) ListCourseUploads(ctx context.Context, req *dto.CourseUploadListRequest) ([]dto.CourseUploadResponse, int64, error) {
	filter := repository.CourseUploadFilter{
		SemesterID: req.SemesterID,
		Status:     req.Status,
		CourseID:   req.CourseID,
	}
	uploads, total, err := s.repo.CourseUpload.List(ctx, filter, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出选课明细失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.CourseUploadResponse, 0, len(uploads))
	for i := range uploads {
		result = append(result, toCourseUploadResponse(&uploads[i]))
	}
	return result, total, nil
}

// ────────────────────── 注册卡 ──────────────────────

func (s *registrationService) GetMyCard(ctx context.Context, studentID, semesterID string) (*dto.RegistrationCardResponse, error) {
	semester, err := s.resolveSemester(ctx, semesterID)
	if err != nil {
		return nil, err
	}

	card, err := s.repo.RegistrationCard.GetByStudentSemester(ctx, studentID, semester.SemesterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCardNotFound
		}
		s.logger.Error("查询注册卡失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}
	return toCardResponse(card), nil
}

func (s *registrationService) GetCardByNumber(ctx context.Context, cardNumber string) (*dto.RegistrationCardResponse, error) {
	card, err := s.repo.RegistrationCard.GetByNumber(ctx, cardNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCardNotFound
		}
		s.logger.Error("查询注册卡失败", zap.String("card_number", cardNumber), zap.Error(err))
		return nil, err
	}
	return toCardResponse(card), nil
}

func (s *registrationService) ListCards(ctx context.Context, semesterID string, page *dto.PaginationRequest) ([]dto.RegistrationCardResponse, int64, error) {
	cards, total, err := s.repo.RegistrationCard.ListBySemester(ctx, semesterID, page.GetOffset(), page.GetPageSize())
	if err != nil {
		s.logger.Error("列出注册卡失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.RegistrationCardResponse, 0, len(cards))
	for i := range cards {
		result = append(result, *toCardResponse(&cards[i]))
	}
	return result, total, nil
}

// ── 状态级联 ──

// applyDecision 更新课程状态并追加审批记录
func (s *registrationService) applyDecision(ctx context.Context, txRepo *repository.Repository, uploadID, reviewerID string, req *dto.ReviewRequest) error {
	if err := txRepo.CourseUpload.UpdateStatus(ctx, uploadID, req.Status, reviewerID); err != nil {
		return err
	}
	return txRepo.Approval.Create(ctx, &model.Approval{
		CourseUploadID: uploadID,
		ApproverID:     reviewerID,
		Status:         req.Status,
		Remarks:        req.Remarks,
	})
}

// reconcile 重新汇总注册状态；变为 APPROVED 时签发注册卡
// 调用方必须已在同一事务内锁定注册行
func (s *registrationService) reconcile(ctx context.Context, txRepo *repository.Repository, reg *model.Registration, statuses []string) (*cascadeResult, error) {
	result := &cascadeResult{registration: reg, oldStatus: reg.Status}

	next := DeriveRegistrationStatus(statuses)
	if next != reg.Status {
		if err := txRepo.Registration.UpdateStatus(ctx, reg.RegistrationID, next); err != nil {
			return nil, err
		}
		reg.Status = next
	}

	if next == model.StatusApproved {
		card, issued, err := s.issueCard(ctx, txRepo, reg)
		if err != nil {
			return nil, err
		}
		result.card = card
		result.cardIssued = issued
	}
	return result, nil
}

// issueCard 签发注册卡
// (student_id, semester_id) 唯一约束保证至多一张；卡号冲突时在 SAVEPOINT 内换号重试
func (s *registrationService) issueCard(ctx context.Context, txRepo *repository.Repository, reg *model.Registration) (*model.RegistrationCard, bool, error) {
	for attempt := 0; attempt < maxCardNumberAttempts; attempt++ {
		number, err := s.newCardNumber()
		if err != nil {
			return nil, false, err
		}

		card := &model.RegistrationCard{
			StudentID:      reg.StudentID,
			SemesterID:     reg.SemesterID,
			RegistrationID: reg.RegistrationID,
			CardNumber:     number,
			IssuedAt:       s.now(),
		}

		var created bool
		err = txRepo.Transaction(ctx, func(sp *repository.Repository) error {
			var err error
			created, err = sp.RegistrationCard.CreateIfAbsent(ctx, card)
			return err
		})
		if pkgerrors.IsDuplicateKey(err) {
			s.logger.Warn("注册卡号冲突，重试", zap.String("card_number", number), zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, false, err
		}

		if created {
			return card, true, nil
		}

		existing, err := txRepo.RegistrationCard.GetByStudentSemester(ctx, reg.StudentID, reg.SemesterID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	return nil, false, ErrCardNumberExhausted
}

// newCardNumber 卡号 = 前缀 + 年份 + 6 位随机数
func (s *registrationService) newCardNumber() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%d%06d", s.cardPrefix, s.now().Year(), n.Int64()), nil
}

// ── 通知 ──

// notifyCascade 事务提交后发送级联结果通知
func (s *registrationService) notifyCascade(ctx context.Context, result *cascadeResult) {
	if result == nil {
		return
	}
	reg := result.registration
	if reg.Status == model.StatusApproved && result.oldStatus != model.StatusApproved {
		s.notify(ctx, reg.StudentID, model.NotifyRegistrationDone,
			"学期注册已通过",
			"您本学期的全部课程均已审批通过。",
			"registration", reg.RegistrationID, false)
	}
	if result.cardIssued && result.card != nil {
		s.notify(ctx, reg.StudentID, model.NotifyCardIssued,
			"注册卡已签发",
			fmt.Sprintf("您的注册卡号为 %s。", result.card.CardNumber),
			"registration_card", result.card.CardID, true)
	}
}

// notify 通知失败不影响主流程
func (s *registrationService) notify(ctx context.Context, userID, typ, title, content, relatedType, relatedID string, email bool) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Notify(ctx, &NotifyInput{
		UserIDs:     []string{userID},
		Type:        typ,
		Title:       title,
		Content:     content,
		RelatedType: &relatedType,
		RelatedID:   &relatedID,
		Email:       email,
	})
	if err != nil {
		s.logger.Warn("发送通知失败", zap.String("user_id", userID), zap.String("type", typ), zap.Error(err))
	}
}

// ── 内部辅助方法 ──

func (s *registrationService) resolveSemester(ctx context.Context, semesterID string) (*model.Semester, error) {
	semester, err := resolveSemester(ctx, s.repo, semesterID)
	if err != nil && !errors.Is(err, ErrSemesterNotFound) && !errors.Is(err, ErrNoActiveSemester) {
		s.logger.Error("查询学期失败", zap.String("semester_id", semesterID), zap.Error(err))
	}
	return semester, err
}

func (s *registrationService) loadRegistration(ctx context.Context, id string) (*dto.RegistrationResponse, error) {
	reg, err := s.repo.Registration.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRegistrationNotFound
		}
		s.logger.Error("查询注册失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return toRegistrationResponse(reg), nil
}

func (s *registrationService) lookupCardBrief(ctx context.Context, studentID, semesterID string) *dto.RegistrationCardBrief {
	card, err := s.repo.RegistrationCard.GetByStudentSemester(ctx, studentID, semesterID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("查询注册卡失败", zap.String("student_id", studentID), zap.Error(err))
		}
		return nil
	}
	return &dto.RegistrationCardBrief{
		CardNumber: card.CardNumber,
		IssuedAt:   card.IssuedAt.Format(time.RFC3339),
	}
}

func isRegistryRole(role string) bool {
	return role == model.RoleRegistrar || role == model.RoleAdmin
}

func isReviewDecision(status string) bool {
	return status == model.StatusApproved || status == model.StatusRejected
}

func uploadStatuses(uploads []model.CourseUpload) []string {
	statuses := make([]string, 0, len(uploads))
	for _, u := range uploads {
		statuses = append(statuses, u.Status)
	}
	return statuses
}

func toReviewResult(uploadIDs []string, result *cascadeResult) *dto.ReviewResult {
	resp := &dto.ReviewResult{
		CourseUploadIDs:    uploadIDs,
		RegistrationID:     result.registration.RegistrationID,
		RegistrationStatus: result.registration.Status,
	}
	if result.card != nil {
		resp.Card = &dto.RegistrationCardBrief{
			CardNumber: result.card.CardNumber,
			IssuedAt:   result.card.IssuedAt.Format(time.RFC3339),
		}
	}
	return resp
}

func toCourseUploadResponse(u *model.CourseUpload) dto.CourseUploadResponse {
	resp := dto.CourseUploadResponse{
		ID:             u.CourseUploadID,
		RegistrationID: u.RegistrationID,
		SemesterID:     u.SemesterID,
		StudentID:      u.StudentID,
		Course:         toCourseBrief(u.Course),
		Status:         u.Status,
		CreatedAt:      u.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:      u.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if u.Student != nil {
		resp.StudentName = u.Student.Name
	}
	for _, a := range u.Approvals {
		ar := dto.ApprovalResponse{
			ID:         a.ApprovalID,
			ApproverID: a.ApproverID,
			Status:     a.Status,
			Remarks:    a.Remarks,
			CreatedAt:  a.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
		if a.Approver != nil {
			ar.ApproverName = a.Approver.Name
		}
		resp.Approvals = append(resp.Approvals, ar)
	}
	return resp
}

func toRegistrationResponse(reg *model.Registration) *dto.RegistrationResponse {
	resp := &dto.RegistrationResponse{
		ID:        reg.RegistrationID,
		StudentID: reg.StudentID,
		Status:    reg.Status,
		Courses:   make([]dto.CourseUploadResponse, 0, len(reg.CourseUploads)),
		CreatedAt: reg.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt: reg.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if reg.Student != nil {
		resp.StudentName = reg.Student.Name
	}
	if reg.Semester != nil {
		resp.Semester = &dto.SemesterBrief{ID: reg.Semester.SemesterID, Name: reg.Semester.Name}
	}
	for _, u := range reg.CourseUploads {
		if u.Status != model.StatusRejected && u.Course != nil {
			resp.TotalCredits += u.Course.Credits
		}
	}
	for i := range reg.CourseUploads {
		resp.Courses = append(resp.Courses, toCourseUploadResponse(&reg.CourseUploads[i]))
	}
	return resp
}

func toCardResponse(card *model.RegistrationCard) *dto.RegistrationCardResponse {
	resp := &dto.RegistrationCardResponse{
		ID:         card.CardID,
		CardNumber: card.CardNumber,
		StudentID:  card.StudentID,
		IssuedAt:   card.IssuedAt.Format(time.RFC3339),
	}
	if card.Student != nil {
		resp.StudentName = card.Student.Name
		resp.StudentRegNo = card.Student.RegNo
	}
	if card.Semester != nil {
		resp.Semester = &dto.SemesterBrief{ID: card.Semester.SemesterID, Name: card.Semester.Name}
	}
	return resp
}
