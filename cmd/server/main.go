package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"bu-reg/backend/config"
	"bu-reg/backend/internal/api/handler"
	"bu-reg/backend/internal/api/router"
	"bu-reg/backend/internal/job"
	"bu-reg/backend/internal/repository"
	"bu-reg/backend/internal/service"
	"bu-reg/backend/pkg/database"
	"bu-reg/backend/pkg/jwt"
	applogger "bu-reg/backend/pkg/logger"
	"bu-reg/backend/pkg/mail"
	"bu-reg/backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "", "配置文件路径，默认查找 ./config/config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("服务异常退出", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("服务器已关闭")
}

// run 装配依赖并阻塞到 ctx 取消或 HTTP 服务失败
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("应用启动中",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("scheduler", cfg.Scheduler.Enabled),
		zap.Bool("mail", cfg.Mail.Enabled),
	)

	// ── 存储 ──
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return fmt.Errorf("连接数据库: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("获取 sql.DB: %w", err)
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(sqlDB, logger); err != nil {
		return fmt.Errorf("数据库迁移: %w", err)
	}

	// Redis 不可用时降级运行：无 Token 黑名单、无限流、无学期缓存
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 不可用，降级运行", zap.Error(err))
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	// ── 依赖注入: Repository → Service → Handler ──
	jwtMgr := jwt.NewManager(&cfg.Auth)
	mailer := mail.NewSender(&cfg.Mail, logger)
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, jwtMgr, rdb, mailer, logger)
	h := handler.NewHandler(cfg, svc)

	var scheduler *job.Scheduler
	if cfg.Scheduler.Enabled {
		if scheduler, err = job.NewScheduler(&cfg.Scheduler, svc.Reminder, logger); err != nil {
			return fmt.Errorf("初始化定时任务: %w", err)
		}
		scheduler.Start()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router.Setup(cfg, h, jwtMgr, rdb, db, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second, // 课程导入上传
		WriteTimeout:      30 * time.Second, // ICS 远程拉取
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("HTTP 服务器: %w", err)
	case <-ctx.Done():
		logger.Info("收到关闭信号，开始优雅关闭")
	}

	// 关闭顺序：停止接收请求 → 停止定时任务 → 等待后台邮件投递
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP 服务器关闭异常", zap.Error(err))
	}
	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	svc.Notification.Wait()
	return nil
}
