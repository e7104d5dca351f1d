package mail

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"bu-reg/backend/config"
)

var (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"
)

// SendGrid v3 单次请求最多 1000 个 personalization
const maxPersonalizations = 1000

// ErrNoRecipients 邮件没有收件人
var ErrNoRecipients = errors.New("邮件没有收件人")

// Recipient 收件人
type Recipient struct {
	Name  string
	Email string
}

// Message 待发送邮件
type Message struct {
	To      []Recipient
	Subject string
	Text    string
	HTML    string
}

// Sender 邮件发送接口
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// NewSender 根据配置创建邮件发送器
// 未启用时返回只写日志的发送器
func NewSender(cfg *config.MailConfig, logger *zap.Logger) Sender {
	if !cfg.Enabled {
		return NewLogSender(logger)
	}
	return NewSendgridSender(cfg, logger)
}

// ── SendGrid ──

type sendgridSender struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
	logger     *zap.Logger
}

// NewSendgridSender 创建 SendGrid 发送器
func NewSendgridSender(cfg *config.MailConfig, logger *zap.Logger) Sender {
	return &sendgridSender{
		key:        cfg.APIKey,
		from:       sgmail.NewEmail(cfg.FromName, cfg.FromEmail),
		subjPrefix: "[" + cfg.FromName + "] ",
		logger:     logger,
	}
}

func (s *sendgridSender) Send(ctx context.Context, msg *Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}

	// 单次请求 personalization 数量受限，超出时分批发送
	var errs []error
	for _, batch := range chunkRecipients(msg.To, maxPersonalizations) {
		if err := s.send(ctx, msg, batch); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	s.logger.Debug("邮件已发送", zap.String("subject", msg.Subject), zap.Int("recipients", len(msg.To)))
	return nil
}

func (s *sendgridSender) send(ctx context.Context, msg *Message, to []Recipient) error {
	req := sendgrid.GetRequest(s.key, endpoint, host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg, to))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		s.logger.Error("发送邮件失败", zap.String("subject", msg.Subject), zap.Int("batch", len(to)), zap.Error(err))
		return err
	}
	if res.StatusCode >= http.StatusBadRequest {
		s.logger.Error("SendGrid 返回错误",
			zap.String("subject", msg.Subject),
			zap.Int("status", res.StatusCode),
			zap.Int("batch", len(to)),
			zap.String("body", res.Body),
		)
		return fmt.Errorf("sendgrid: 状态码 %d", res.StatusCode)
	}
	return nil
}

// prepare 每个收件人独立 personalization，避免互相看到邮箱
func (s *sendgridSender) prepare(msg *Message, to []Recipient) *sgmail.SGMailV3 {
	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)

	for _, r := range to {
		p := sgmail.NewPersonalization()
		p.Subject = s.subjPrefix + msg.Subject
		p.AddTos(sgmail.NewEmail(r.Name, r.Email))
		m.AddPersonalizations(p)
	}

	m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	if msg.HTML != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	return m
}

func chunkRecipients(to []Recipient, size int) [][]Recipient {
	batches := make([][]Recipient, 0, (len(to)+size-1)/size)
	for len(to) > size {
		batches = append(batches, to[:size])
		to = to[size:]
	}
	return append(batches, to)
}

// ── 日志发送器（开发环境 / 未配置 SendGrid） ──

type logSender struct {
	logger *zap.Logger
}

// NewLogSender 创建只写日志的发送器
func NewLogSender(logger *zap.Logger) Sender {
	return &logSender{logger: logger}
}

func (s *logSender) Send(_ context.Context, msg *Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	emails := make([]string, 0, len(msg.To))
	for _, to := range msg.To {
		emails = append(emails, to.Email)
	}
	s.logger.Info("邮件（未投递）",
		zap.Strings("to", emails),
		zap.String("subject", msg.Subject),
		zap.String("text", msg.Text),
	)
	return nil
}
