package mailer

import (
	"context"
	"log/slog"
	"strings"
)

// LogNotifier はメールを送らず、送信したことだけをログに出力するドライバー。
// コードは伏せ字にして出力する。
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier はLogNotifierを生成する。
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// SendOTP は宛先と件名、伏せ字にした本文をログに出力する。
func (n *LogNotifier) SendOTP(ctx context.Context, email, code string) error {
	if err := ValidateRecipient(email); err != nil {
		return err
	}
	n.logger.InfoContext(ctx, "otp mail (log driver)",
		slog.String("to", email),
		slog.String("subject", Subject),
		slog.String("body", Body(strings.Repeat("*", len(code)))),
	)
	return nil
}

// compile-time interface check
var _ Notifier = (*LogNotifier)(nil)
