package job

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"bu-reg/backend/config"
	"bu-reg/backend/internal/service"
)

const reminderJobTimeout = 5 * time.Minute

// Scheduler 定时任务调度器
type Scheduler struct {
	cron     *cron.Cron
	reminder service.ReminderService
	logger   *zap.Logger
}

// NewScheduler 注册选课截止提醒任务
// 同一任务上次未结束时跳过本次触发
func NewScheduler(cfg *config.SchedulerConfig, reminder service.ReminderService, logger *zap.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("加载调度时区失败: %w", err)
	}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	s := &Scheduler{cron: c, reminder: reminder, logger: logger}
	if _, err := c.AddFunc(cfg.ReminderCron, s.runReminder); err != nil {
		return nil, fmt.Errorf("注册提醒任务失败: %w", err)
	}
	return s, nil
}

// Start 启动调度（非阻塞）
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("定时任务已启动", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop 停止调度并等待运行中的任务结束
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("等待定时任务结束超时")
	}
}

func (s *Scheduler) runReminder() {
	ctx, cancel := context.WithTimeout(context.Background(), reminderJobTimeout)
	defer cancel()

	start := time.Now()
	n, err := s.reminder.SendDeadlineReminders(ctx, start)
	if err != nil {
		s.logger.Error("选课截止提醒任务失败", zap.Error(err))
		return
	}
	s.logger.Info("选课截止提醒任务完成",
		zap.Int("notified", n),
		zap.Duration("latency", time.Since(start)))
}
