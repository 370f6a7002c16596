// Package mailer はOTPメールの配送を提供する。
// ドライバーはSMTP（go-mail）、Postmark API、ログ出力（開発用）の3種類。
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
)

const (
	// Subject はOTPメールの件名。
	Subject = "Your OTP Code"
	// DefaultFromName は差出人の表示名のデフォルト値。
	DefaultFromName = "Note App"
)

var (
	// ErrInvalidRecipient は宛先のメールアドレスが不正な場合のエラー。
	ErrInvalidRecipient = errors.New("mailer: invalid recipient email")
	// ErrInvalidConfig はドライバーの設定不足を表す。
	ErrInvalidConfig = errors.New("mailer: invalid config")
	// ErrSendFailed は配送に失敗したことを表す。
	ErrSendFailed = errors.New("mailer: failed to send")
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Notifier はOTPを利用者のメールアドレスへ届ける。
type Notifier interface {
	SendOTP(ctx context.Context, email, code string) error
}

// ValidateRecipient は宛先が最低限のメールアドレス形式であるかを検証する。
func ValidateRecipient(email string) error {
	if email == "" || !emailRegex.MatchString(email) {
		return ErrInvalidRecipient
	}
	return nil
}

// Body はOTPメールの本文を返す。
func Body(code string) string {
	return fmt.Sprintf("Your OTP is: %s", code)
}

// 配送ドライバー名
const (
	DriverSMTP     = "smtp"
	DriverPostmark = "postmark"
	DriverLog      = "log"
)

// Config はドライバー選択と各ドライバーの設定をまとめたもの。
type Config struct {
	Driver   string
	SMTP     SMTPConfig
	Postmark PostmarkConfig
}

// New は設定に応じたNotifierを生成する。
func New(cfg Config, logger *slog.Logger) (Notifier, error) {
	switch cfg.Driver {
	case DriverSMTP, "":
		n, err := NewSMTPNotifier(cfg.SMTP)
		if err != nil {
			return nil, err
		}
		return n, nil
	case DriverPostmark:
		n, err := NewPostmarkNotifier(cfg.Postmark)
		if err != nil {
			return nil, err
		}
		return n, nil
	case DriverLog:
		return NewLogNotifier(logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown mail driver %q", ErrInvalidConfig, cfg.Driver)
	}
}
