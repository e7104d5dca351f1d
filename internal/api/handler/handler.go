package handler

import (
	"bu-reg/backend/config"
	"bu-reg/backend/internal/service"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth         *AuthHandler
	User         *UserHandler
	Department   *DepartmentHandler
	Semester     *SemesterHandler
	Course       *CourseHandler
	Registration *RegistrationHandler
	Timetable    *TimetableHandler
	Notification *NotificationHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(cfg *config.Config, svc *service.Service) *Handler {
	return &Handler{
		Auth:         NewAuthHandler(svc.Auth, &cfg.Auth.Cookie),
		User:         NewUserHandler(svc.User),
		Department:   NewDepartmentHandler(svc.Department),
		Semester:     NewSemesterHandler(svc.Semester),
		Course:       NewCourseHandler(svc.Course),
		Registration: NewRegistrationHandler(svc.Registration),
		Timetable:    NewTimetableHandler(svc.Timetable),
		Notification: NewNotificationHandler(svc.Notification),
	}
}
