package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"bu-reg/backend/config"
	"bu-reg/backend/internal/api/handler"
	"bu-reg/backend/internal/api/middleware"
	"bu-reg/backend/internal/model"
	"bu-reg/backend/pkg/jwt"
	"bu-reg/backend/pkg/redis"
)

const (
	maxJSONBytes    = 1 << 20
	maxUploadBytes  = 6 << 20
	authRateLimit   = 10
	authRateWindow  = time.Minute
	healthDBTimeout = 2 * time.Second
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 为 nil 时跳过 Token 黑名单与限流；db 为 nil 时健康检查不探测数据库
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, db *gorm.DB, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	if err := middleware.RegisterValidators(); err != nil {
		logger.Fatal("注册自定义校验规则失败", zap.Error(err))
	}

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders(cfg.Auth.Cookie.Secure))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(maxJSONBytes, maxUploadBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthDBTimeout)
			defer cancel()
			sqlDB, err := db.DB()
			if err != nil || sqlDB.PingContext(ctx) != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "down"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	var checker middleware.TokenChecker
	if rdb != nil {
		checker = rdb
	}

	student := middleware.RoleAuth(model.RoleStudent)
	reviewers := middleware.RoleAuth(model.RoleStaff, model.RoleRegistrar, model.RoleAdmin)
	registrar := middleware.RoleAuth(model.RoleRegistrar, model.RoleAdmin)
	admin := middleware.RoleAuth(model.RoleAdmin)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		auth := v1.Group("/auth")
		auth.Use(middleware.RateLimit(rdb, authRateLimit, authRateWindow))
		{
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.RefreshToken)
		}

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, checker))
		{
			// 认证模块（需要认证）
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.GetCurrentUser)
			authorized.PUT("/auth/password", h.Auth.ChangePassword)

			// 用户模块
			users := authorized.Group("/users")
			{
				users.GET("", registrar, h.User.ListUsers)
				users.POST("", admin, h.User.CreateUser)
				users.POST("/import", admin, h.User.ImportUsers)
				users.GET("/:id", registrar, h.User.GetUser)
				users.PUT("/:id", h.User.UpdateUser) // admin 或本人（Service 层鉴权）
				users.DELETE("/:id", admin, h.User.DeleteUser)
				users.PUT("/:id/role", admin, h.User.AssignRole)
				users.POST("/:id/reset-password", admin, h.User.ResetPassword)
			}

			// 院系模块
			departments := authorized.Group("/departments")
			{
				departments.GET("", h.Department.ListDepartments)
				departments.GET("/:id", h.Department.GetDepartment)
				departments.POST("", admin, h.Department.CreateDepartment)
				departments.PUT("/:id", admin, h.Department.UpdateDepartment)
				departments.DELETE("/:id", admin, h.Department.DeleteDepartment)
				departments.GET("/:id/members", reviewers, h.Department.GetMembers)
			}

			// 学期模块
			semesters := authorized.Group("/semesters")
			{
				semesters.GET("", h.Semester.ListSemesters)
				semesters.GET("/current", h.Semester.GetCurrentSemester)
				semesters.GET("/:id", h.Semester.GetSemester)
				semesters.POST("", admin, h.Semester.CreateSemester)
				semesters.PUT("/:id", admin, h.Semester.UpdateSemester)
				semesters.PUT("/:id/activate", admin, h.Semester.ActivateSemester)
				semesters.PUT("/:id/deactivate", admin, h.Semester.DeactivateSemester)
				semesters.DELETE("/:id", admin, h.Semester.DeleteSemester)
			}

			// 课程模块
			courses := authorized.Group("/courses")
			{
				courses.GET("", h.Course.ListCourses)
				courses.GET("/:id", h.Course.GetCourse)
				courses.POST("", registrar, h.Course.CreateCourse)
				courses.POST("/import", registrar, h.Course.ImportCourses)
				courses.PUT("/:id", registrar, h.Course.UpdateCourse)
				courses.DELETE("/:id", registrar, h.Course.DeleteCourse)
			}

			// 选课注册模块
			registrations := authorized.Group("/registrations")
			{
				registrations.GET("/me", student, h.Registration.ListMyRegistrations)
				registrations.GET("/me/card", student, h.Registration.GetMyCard)
				registrations.POST("/courses", student, h.Registration.AddCourse)
				registrations.DELETE("/courses/:id", h.Registration.RemoveCourse) // 本人或教务（Service 层鉴权）
				registrations.GET("", registrar, h.Registration.ListRegistrations)
				registrations.GET("/:id", h.Registration.GetRegistration)
				registrations.POST("/:id/review", reviewers, h.Registration.ReviewRegistration)
			}

			// 选课审批队列
			uploads := authorized.Group("/course-uploads")
			uploads.Use(reviewers)
			{
				uploads.GET("", h.Registration.ListCourseUploads)
				uploads.POST("/:id/review", h.Registration.ReviewCourseUpload)
			}

			// 注册卡
			cards := authorized.Group("/cards")
			cards.Use(reviewers)
			{
				cards.GET("", h.Registration.ListCards)
				cards.GET("/:number", h.Registration.GetCardByNumber)
			}

			// 课表模块
			timetables := authorized.Group("/timetables")
			{
				timetables.GET("/me", student, h.Timetable.GetMyTimetable)
				timetables.GET("", h.Timetable.ListTimetables)
				timetables.GET("/:id", h.Timetable.GetTimetable)
				timetables.POST("", registrar, h.Timetable.CreateTimetable)
				timetables.PUT("/:id", registrar, h.Timetable.UpdateTimetable)
				timetables.DELETE("/:id", registrar, h.Timetable.DeleteTimetable)
				timetables.POST("/:id/slots", registrar, h.Timetable.CreateSlot)
				timetables.POST("/:id/import", registrar, h.Timetable.ImportICS)
			}
			slots := authorized.Group("/timetable-slots")
			slots.Use(registrar)
			{
				slots.PUT("/:id", h.Timetable.UpdateSlot)
				slots.DELETE("/:id", h.Timetable.DeleteSlot)
			}

			// 通知模块
			notifications := authorized.Group("/notifications")
			{
				notifications.GET("", h.Notification.ListNotifications)
				notifications.GET("/unread-count", h.Notification.UnreadCount)
				notifications.PUT("/read-all", h.Notification.MarkAllRead)
				notifications.PUT("/:id/read", h.Notification.MarkRead)
				notifications.DELETE("/:id", h.Notification.DeleteNotification)
				notifications.POST("/broadcast", admin, h.Notification.Broadcast)
			}
		}
	}

	return r
}
