package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"bu-reg/backend/internal/dto"
	"bu-reg/backend/internal/model"
	"bu-reg/backend/internal/repository"
	"bu-reg/backend/pkg/mail"
)

// ── 通知模块业务错误 ──

var (
	ErrNotificationNotFound = errors.New("通知不存在")
)

const mailSendTimeout = 30 * time.Second

// NotifyInput 站内通知参数
type NotifyInput struct {
	UserIDs     []string
	Type        string
	Title       string
	Content     string
	RelatedType *string
	RelatedID   *string
	Email       bool // 是否同时发送邮件
}

// NotificationService 通知业务接口
type NotificationService interface {
	List(ctx context.Context, userID string, req *dto.NotificationListRequest) ([]dto.NotificationResponse, int64, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, id, userID string) error
	// Notify 写入站内通知，邮件在后台异步投递
	Notify(ctx context.Context, in *NotifyInput) error
	Broadcast(ctx context.Context, req *dto.BroadcastRequest, callerID string) (*dto.BroadcastResponse, error)
	// Wait 等待后台邮件任务结束（优雅停机）
	Wait()
}

type notificationService struct {
	repo   *repository.Repository
	mailer mail.Sender
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewNotificationService 创建 NotificationService 实例
func NewNotificationService(repo *repository.Repository, mailer mail.Sender, logger *zap.Logger) NotificationService {
	return &notificationService{repo: repo, mailer: mailer, logger: logger}
}

// ────────────────────── List ──────────────────────

func (s *notificationService) List(ctx context.Context, userID string, req *dto.NotificationListRequest) ([]dto.NotificationResponse, int64, error) {
	ns, total, err := s.repo.Notification.ListByUser(ctx, userID, req.UnreadOnly, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询通知失败", zap.String("user_id", userID), zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.NotificationResponse, 0, len(ns))
	for i := range ns {
		result = append(result, toNotificationResponse(&ns[i]))
	}
	return result, total, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.Notification.CountUnread(ctx, userID)
	if err != nil {
		s.logger.Error("统计未读通知失败", zap.String("user_id", userID), zap.Error(err))
		return 0, err
	}
	return n, nil
}

// ────────────────────── Read / Delete ──────────────────────

func (s *notificationService) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.repo.Notification.MarkRead(ctx, id, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotificationNotFound
		}
		s.logger.Error("标记已读失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.Notification.MarkAllRead(ctx, userID)
	if err != nil {
		s.logger.Error("全部标记已读失败", zap.String("user_id", userID), zap.Error(err))
		return 0, err
	}
	return n, nil
}

func (s *notificationService) Delete(ctx context.Context, id, userID string) error {
	if err := s.repo.Notification.Delete(ctx, id, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotificationNotFound
		}
		s.logger.Error("删除通知失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── Notify ──────────────────────

func (s *notificationService) Notify(ctx context.Context, in *NotifyInput) error {
	if len(in.UserIDs) == 0 {
		return nil
	}

	rows := make([]model.Notification, 0, len(in.UserIDs))
	for _, uid := range in.UserIDs {
		rows = append(rows, model.Notification{
			UserID:      uid,
			Type:        in.Type,
			Title:       in.Title,
			Content:     in.Content,
			RelatedType: in.RelatedType,
			RelatedID:   in.RelatedID,
		})
	}
	if err := s.repo.Notification.BatchCreate(ctx, rows); err != nil {
		s.logger.Error("写入通知失败", zap.String("type", in.Type), zap.Int("count", len(rows)), zap.Error(err))
		return err
	}

	if in.Email && s.mailer != nil {
		users, err := s.repo.User.ListByIDs(ctx, in.UserIDs)
		if err != nil {
			s.logger.Warn("查询收件人失败，跳过邮件", zap.Error(err))
			return nil
		}
		s.sendMailAsync(users, in.Title, in.Content)
	}
	return nil
}

// sendMailAsync 邮件投递为尽力而为，失败只记录日志
func (s *notificationService) sendMailAsync(users []model.User, subject, text string) {
	to := make([]mail.Recipient, 0, len(users))
	for _, u := range users {
		if u.Email == "" {
			continue
		}
		to = append(to, mail.Recipient{Name: u.Name, Email: u.Email})
	}
	if len(to) == 0 {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), mailSendTimeout)
		defer cancel()

		if err := s.mailer.Send(ctx, &mail.Message{To: to, Subject: subject, Text: text}); err != nil {
			s.logger.Warn("发送通知邮件失败", zap.String("subject", subject), zap.Int("recipients", len(to)), zap.Error(err))
		}
	}()
}

func (s *notificationService) Wait() {
	s.wg.Wait()
}

// ────────────────────── Broadcast ──────────────────────

func (s *notificationService) Broadcast(ctx context.Context, req *dto.BroadcastRequest, callerID string) (*dto.BroadcastResponse, error) {
	ids, err := s.repo.User.ListIDsByRole(ctx, req.Role)
	if err != nil {
		s.logger.Error("查询广播对象失败", zap.String("role", req.Role), zap.Error(err))
		return nil, err
	}

	err = s.Notify(ctx, &NotifyInput{
		UserIDs: ids,
		Type:    model.NotifyAnnouncement,
		Title:   req.Title,
		Content: req.Content,
		Email:   req.Email,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("广播通知已发送", zap.String("role", req.Role), zap.Int("recipients", len(ids)), zap.String("by", callerID))
	return &dto.BroadcastResponse{Recipients: len(ids)}, nil
}

func toNotificationResponse(n *model.Notification) dto.NotificationResponse {
	return dto.NotificationResponse{
		ID:          n.NotificationID,
		Type:        n.Type,
		Title:       n.Title,
		Content:     n.Content,
		IsRead:      n.IsRead,
		RelatedType: n.RelatedType,
		RelatedID:   n.RelatedID,
		CreatedAt:   n.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}
