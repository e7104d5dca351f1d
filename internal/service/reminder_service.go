package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"bu-reg/backend/config"
	"bu-reg/backend/internal/model"
	"bu-reg/backend/internal/repository"
)

// ReminderService 截止提醒
type ReminderService interface {
	// SendDeadlineReminders 活动学期选课截止时间落在提醒窗口内时，
	// 通知所有尚未注册的学生，返回通知人数
	SendDeadlineReminders(ctx context.Context, now time.Time) (int, error)
}

type reminderService struct {
	window   time.Duration
	repo     *repository.Repository
	notifier NotificationService
	logger   *zap.Logger
}

// NewReminderService 创建 ReminderService 实例
func NewReminderService(cfg *config.SchedulerConfig, repo *repository.Repository, notifier NotificationService, logger *zap.Logger) ReminderService {
	return &reminderService{
		window:   cfg.ReminderWindow,
		repo:     repo,
		notifier: notifier,
		logger:   logger,
	}
}

func (s *reminderService) SendDeadlineReminders(ctx context.Context, now time.Time) (int, error) {
	semester, err := s.repo.Semester.GetCurrent(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		s.logger.Error("查询活动学期失败", zap.Error(err))
		return 0, err
	}

	deadline := semester.CourseUploadDeadline
	if deadline == nil || now.After(*deadline) || deadline.Sub(now) > s.window {
		return 0, nil
	}

	students, err := s.repo.User.ListStudentsWithoutRegistration(ctx, semester.SemesterID)
	if err != nil {
		s.logger.Error("查询未注册学生失败", zap.String("semester_id", semester.SemesterID), zap.Error(err))
		return 0, err
	}
	if len(students) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(students))
	for _, u := range students {
		ids = append(ids, u.UserID)
	}

	relatedType := "semester"
	err = s.notifier.Notify(ctx, &NotifyInput{
		UserIDs: ids,
		Type:    model.NotifyDeadlineReminder,
		Title:   "选课截止提醒",
		Content: fmt.Sprintf("%s 选课将于 %s 截止，您尚未提交任何课程。",
			semester.Name, deadline.Format("2006-01-02 15:04")),
		RelatedType: &relatedType,
		RelatedID:   &semester.SemesterID,
		Email:       true,
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("已发送选课截止提醒",
		zap.String("semester", semester.Name),
		zap.Time("deadline", *deadline),
		zap.Int("students", len(ids)))
	return len(ids), nil
}
