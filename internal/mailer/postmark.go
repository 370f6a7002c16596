package mailer

import (
	"context"
	"fmt"

	"github.com/mrz1836/postmark"
)

// PostmarkConfig はPostmarkドライバーの設定。
type PostmarkConfig struct {
	ServerToken  string
	AccountToken string
	From         string
	FromName     string
}

// PostmarkNotifier はPostmarkのトランザクションメールAPIでOTPを送信する。
type PostmarkNotifier struct {
	client *postmark.Client
	from   string
}

// NewPostmarkNotifier はPostmarkNotifierを生成する。
func NewPostmarkNotifier(cfg PostmarkConfig) (*PostmarkNotifier, error) {
	if cfg.ServerToken == "" {
		return nil, fmt.Errorf("%w: POSTMARK_SERVER_TOKEN is required", ErrInvalidConfig)
	}
	if err := ValidateRecipient(cfg.From); err != nil {
		return nil, fmt.Errorf("%w: sender must be a valid email address", ErrInvalidConfig)
	}
	name := cfg.FromName
	if name == "" {
		name = DefaultFromName
	}
	return &PostmarkNotifier{
		client: postmark.NewClient(cfg.ServerToken, cfg.AccountToken),
		from:   fmt.Sprintf("%q <%s>", name, cfg.From),
	}, nil
}

// SendOTP はOTPをプレーンテキストのメールで送信する。
func (n *PostmarkNotifier) SendOTP(ctx context.Context, email, code string) error {
	if err := ValidateRecipient(email); err != nil {
		return err
	}

	resp, err := n.client.SendEmail(ctx, postmark.Email{
		From:     n.from,
		To:       email,
		Subject:  Subject,
		TextBody: Body(code),
		Tag:      "otp",
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	if resp.ErrorCode > 0 {
		return fmt.Errorf("%w: postmark error: %d - %s", ErrSendFailed, resp.ErrorCode, resp.Message)
	}
	return nil
}

// compile-time interface check
var _ Notifier = (*PostmarkNotifier)(nil)
