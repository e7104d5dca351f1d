package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"go.uber.org/zap"

	"bu-reg/backend/internal/dto"
	"bu-reg/backend/internal/model"
	"bu-reg/backend/pkg/mail"
)

// ── 测试辅助 ──

// recordingMailer 记录所有发出的邮件
type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg *mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, *msg)
	return m.err
}

func (m *recordingMailer) messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.sent...)
}

func setupTestNotificationService(mailer mail.Sender) (NotificationService, *mockStore) {
	store := newMockStore()
	store.addUser("stu-1", "Alice", model.RoleStudent, nil)
	store.addUser("stu-2", "Brian", model.RoleStudent, nil)
	store.addUser("staff-1", "Lecturer", model.RoleStaff, nil)
	return NewNotificationService(newMockRepository(store), mailer, zap.NewNop()), store
}

// ── Notify 测试 ──

func TestNotificationService_Notify_WritesInbox(t *testing.T) {
	svc, store := setupTestNotificationService(nil)

	err := svc.Notify(context.Background(), &NotifyInput{
		UserIDs: []string{"stu-1", "stu-2"},
		Type:    model.NotifyAnnouncement,
		Title:   "Welcome",
		Content: "Semester starts Monday",
		Email:   true,
	})
	if err != nil {
		t.Fatalf("Notify 应成功: %v", err)
	}
	svc.Wait()

	for _, id := range []string{"stu-1", "stu-2"} {
		if n := len(store.notificationsFor(id, model.NotifyAnnouncement)); n != 1 {
			t.Errorf("%s 期望 1 条通知，实际 %d", id, n)
		}
	}
	if n := len(store.notificationsFor("staff-1", "")); n != 0 {
		t.Errorf("staff-1 不应收到通知，实际 %d", n)
	}
}

func TestNotificationService_Notify_SendsMail(t *testing.T) {
	mailer := &recordingMailer{}
	svc, store := setupTestNotificationService(mailer)
	store.users["stu-2"].Email = ""

	err := svc.Notify(context.Background(), &NotifyInput{
		UserIDs: []string{"stu-1", "stu-2"},
		Type:    model.NotifyCardIssued,
		Title:   "Card issued",
		Content: "Your registration card is ready",
		Email:   true,
	})
	if err != nil {
		t.Fatalf("Notify 应成功: %v", err)
	}
	svc.Wait()

	sent := mailer.messages()
	if len(sent) != 1 {
		t.Fatalf("期望发送 1 封邮件，实际 %d", len(sent))
	}
	if len(sent[0].To) != 1 || sent[0].To[0].Email != "stu-1@bu.ac.ug" {
		t.Errorf("无邮箱的用户应被跳过: %+v", sent[0].To)
	}
	if sent[0].Subject != "Card issued" {
		t.Errorf("邮件主题错误: %s", sent[0].Subject)
	}
}

func TestNotificationService_Notify_MailFailureIgnored(t *testing.T) {
	mailer := &recordingMailer{err: errors.New("smtp down")}
	svc, store := setupTestNotificationService(mailer)

	err := svc.Notify(context.Background(), &NotifyInput{
		UserIDs: []string{"stu-1"}, Type: model.NotifyAnnouncement, Title: "T", Content: "C", Email: true,
	})
	if err != nil {
		t.Fatalf("邮件失败不应影响站内通知: %v", err)
	}
	svc.Wait()
	if len(store.notificationsFor("stu-1", "")) != 1 {
		t.Error("站内通知应已写入")
	}
}

func TestNotificationService_Notify_NoEmailFlag(t *testing.T) {
	mailer := &recordingMailer{}
	svc, _ := setupTestNotificationService(mailer)

	_ = svc.Notify(context.Background(), &NotifyInput{UserIDs: []string{"stu-1"}, Type: model.NotifyAnnouncement, Title: "T", Content: "C"})
	svc.Wait()
	if len(mailer.messages()) != 0 {
		t.Error("未要求邮件时不应发送")
	}

	if err := svc.Notify(context.Background(), &NotifyInput{Type: model.NotifyAnnouncement}); err != nil {
		t.Errorf("空收件人应直接返回: %v", err)
	}
}

// ── Broadcast 测试 ──

func TestNotificationService_Broadcast(t *testing.T) {
	tests := []struct {
		name string
		role string
		want int
	}{
		{"仅学生", model.RoleStudent, 2},
		{"仅教职工", model.RoleStaff, 1},
		{"全部用户", "", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := setupTestNotificationService(nil)
			resp, err := svc.Broadcast(context.Background(), &dto.BroadcastRequest{Role: tt.role, Title: "Notice", Content: "Library closed"}, "admin-001")
			if err != nil {
				t.Fatalf("Broadcast 应成功: %v", err)
			}
			if resp.Recipients != tt.want {
				t.Errorf("期望 %d 个接收者，实际 %d", tt.want, resp.Recipients)
			}
			if len(store.notifications) != tt.want {
				t.Errorf("期望写入 %d 条通知，实际 %d", tt.want, len(store.notifications))
			}
		})
	}
}

// ── 收件箱操作测试 ──

func TestNotificationService_Inbox(t *testing.T) {
	svc, store := setupTestNotificationService(nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = svc.Notify(ctx, &NotifyInput{UserIDs: []string{"stu-1"}, Type: model.NotifyAnnouncement, Title: "T", Content: "C"})
	}
	_ = svc.Notify(ctx, &NotifyInput{UserIDs: []string{"stu-2"}, Type: model.NotifyAnnouncement, Title: "T", Content: "C"})

	unread, err := svc.UnreadCount(ctx, "stu-1")
	if err != nil || unread != 3 {
		t.Fatalf("期望 3 条未读，实际 %d err=%v", unread, err)
	}

	list, total, err := svc.List(ctx, "stu-1", &dto.NotificationListRequest{})
	if err != nil || total != 3 || len(list) != 3 {
		t.Fatalf("期望 3 条通知，实际 %d err=%v", total, err)
	}
	ids := make([]string, 0, len(list))
	for _, n := range list {
		ids = append(ids, n.ID)
	}
	sort.Strings(ids)

	if err := svc.MarkRead(ctx, ids[0], "stu-1"); err != nil {
		t.Fatalf("MarkRead 应成功: %v", err)
	}
	// 不能操作他人的通知
	if err := svc.MarkRead(ctx, ids[1], "stu-2"); !errors.Is(err, ErrNotificationNotFound) {
		t.Errorf("期望 ErrNotificationNotFound，实际 %v", err)
	}
	if _, total, _ := svc.List(ctx, "stu-1", &dto.NotificationListRequest{UnreadOnly: true}); total != 2 {
		t.Errorf("期望 2 条未读，实际 %d", total)
	}

	n, err := svc.MarkAllRead(ctx, "stu-1")
	if err != nil || n != 2 {
		t.Errorf("MarkAllRead 期望更新 2 条，实际 %d err=%v", n, err)
	}
	if unread, _ := svc.UnreadCount(ctx, "stu-1"); unread != 0 {
		t.Errorf("全部已读后未读数应为 0，实际 %d", unread)
	}

	if err := svc.Delete(ctx, ids[2], "stu-2"); !errors.Is(err, ErrNotificationNotFound) {
		t.Errorf("期望 ErrNotificationNotFound，实际 %v", err)
	}
	if err := svc.Delete(ctx, ids[2], "stu-1"); err != nil {
		t.Errorf("Delete 应成功: %v", err)
	}
	if len(store.notificationsFor("stu-1", "")) != 2 {
		t.Error("删除后应剩 2 条通知")
	}
	if unread, _ := svc.UnreadCount(ctx, "stu-2"); unread != 1 {
		t.Errorf("其他用户的通知不受影响，实际未读 %d", unread)
	}
}
