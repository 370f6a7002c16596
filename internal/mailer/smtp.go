package mailer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wneessen/go-mail"
)

// SMTPConfig はSMTPドライバーの設定。
type SMTPConfig struct {
	Host     string
	Port     int
	Username string // 差出人アドレスを兼ねる
	Password string
	FromName string
	Timeout  time.Duration
}

// smtpSender はgo-mailのClientのうち送信に使う部分。
type smtpSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPNotifier はSMTPでOTPメールを送信する。
// クライアントは起動時に1度だけ生成し、全リクエストで共有する。
type SMTPNotifier struct {
	client   smtpSender
	from     string
	fromName string

	// 1つのClientで同時に複数のSMTPセッションを張らないよう直列化する
	mu sync.Mutex
}

// NewSMTPNotifier はSMTPNotifierを生成する。
func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("%w: SMTP host is required", ErrInvalidConfig)
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("%w: EMAIL_USER and EMAIL_PASS are required", ErrInvalidConfig)
	}
	if err := ValidateRecipient(cfg.Username); err != nil {
		return nil, fmt.Errorf("%w: EMAIL_USER must be a valid email address", ErrInvalidConfig)
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
		mail.WithTimeout(cfg.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}

	return newSMTPNotifier(client, cfg.Username, cfg.FromName), nil
}

func newSMTPNotifier(client smtpSender, from, fromName string) *SMTPNotifier {
	if fromName == "" {
		fromName = DefaultFromName
	}
	return &SMTPNotifier{client: client, from: from, fromName: fromName}
}

// SendOTP はOTPをプレーンテキストのメールで送信する。
func (n *SMTPNotifier) SendOTP(ctx context.Context, email, code string) error {
	if err := ValidateRecipient(email); err != nil {
		return err
	}

	msg, err := n.buildMessage(email, code)
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

func (n *SMTPNotifier) buildMessage(email, code string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.FromFormat(n.fromName, n.from); err != nil {
		return nil, fmt.Errorf("%w: invalid sender: %v", ErrInvalidConfig, err)
	}
	if err := msg.To(email); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
	}
	msg.Subject(Subject)
	msg.SetBodyString(mail.TypeTextPlain, Body(code))
	return msg, nil
}

// compile-time interface check
var _ Notifier = (*SMTPNotifier)(nil)
