package service

import (
	"time"

	"go.uber.org/zap"

	"bu-reg/backend/config"
	"bu-reg/backend/internal/repository"
	"bu-reg/backend/pkg/jwt"
	"bu-reg/backend/pkg/mail"
	"bu-reg/backend/pkg/redis"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth         AuthService
	User         UserService
	Department   DepartmentService
	Semester     SemesterService
	Course       CourseService
	Registration RegistrationService
	Timetable    TimetableService
	Notification NotificationService
	Reminder     ReminderService
}

// NewService 创建 Service 聚合
// rdb 为 nil 时 Token 黑名单与学期缓存均不启用
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	mailer mail.Sender,
	logger *zap.Logger,
) *Service {
	var (
		blacklist TokenBlacklist
		cache     SemesterCache
	)
	if rdb != nil {
		blacklist = rdb
		cache = rdb
	}

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		logger.Warn("时区加载失败，使用 UTC", zap.String("timezone", cfg.Scheduler.Timezone), zap.Error(err))
		loc = time.UTC
	}

	notification := NewNotificationService(repo, mailer, logger)

	return &Service{
		Auth:         NewAuthService(repo, jwtMgr, blacklist, logger),
		User:         NewUserService(repo, logger),
		Department:   NewDepartmentService(repo, logger),
		Semester:     NewSemesterService(repo, cache, logger),
		Course:       NewCourseService(repo, logger),
		Registration: NewRegistrationService(&cfg.Registration, repo, notification, logger),
		Timetable:    NewTimetableService(repo, loc, logger),
		Notification: notification,
		Reminder:     NewReminderService(&cfg.Scheduler, repo, notification, logger),
	}
}
