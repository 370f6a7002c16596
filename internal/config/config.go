// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// メール送信ドライバー
const (
	MailDriverSMTP     = "smtp"
	MailDriverPostmark = "postmark"
	MailDriverLog      = "log"
)

// ErrInvalidConfig は読み込んだ設定値の組み合わせが不正であることを表す。
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// Session
	JWTSecret     string        `env:"JWT_SECRET,required,notEmpty"`
	SessionSecret string        `env:"SESSION_SECRET,required,notEmpty"` // OAuth stateの署名鍵
	OTPTokenTTL   time.Duration `env:"OTP_TOKEN_TTL" envDefault:"1h"`
	OAuthTokenTTL time.Duration `env:"OAUTH_TOKEN_TTL" envDefault:"168h"`

	// OAuth
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID,required,notEmpty"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET,required,notEmpty"`
	GoogleCallbackURL  string `env:"GOOGLE_CALLBACK_URL,required,notEmpty"`

	// OTP
	OTPTTL          time.Duration `env:"OTP_TTL" envDefault:"5m"`
	OTPRetention    time.Duration `env:"OTP_RETENTION" envDefault:"24h"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h"`

	// Worker 未設定の場合workerは/metricsを公開しない
	WorkerMetricsPort string `env:"WORKER_METRICS_PORT"`

	// Mail
	MailDriver           string        `env:"MAIL_DRIVER" envDefault:"smtp"`
	EmailUser            string        `env:"EMAIL_USER"` // 送信元アドレス兼SMTPユーザー
	EmailPass            string        `env:"EMAIL_PASS"`
	SMTPHost             string        `env:"SMTP_HOST" envDefault:"smtp.gmail.com"`
	SMTPPort             int           `env:"SMTP_PORT" envDefault:"587"`
	MailTimeout          time.Duration `env:"MAIL_TIMEOUT" envDefault:"15s"`
	MailFromName         string        `env:"MAIL_FROM_NAME" envDefault:"Note App"`
	PostmarkServerToken  string        `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string        `env:"POSTMARK_ACCOUNT_TOKEN"`

	// Server
	ServerPort  string `env:"PORT" envDefault:"5000"`
	FrontendURL string `env:"FRONTEND_URL,required,notEmpty"`

	// CORS カンマ区切りで複数指定可。未設定の場合はFrontendURL
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN"`

	// Cookie
	CookieSecure bool // GOOGLE_CALLBACK_URLがhttpsの場合true

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load は.envファイル（存在する場合）と環境変数からConfigを読み込む。
// 既に設定されている環境変数は.envの値で上書きしない。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	// .envは任意
	_ = godotenv.Load()
	return parse(env.Options{})
}

// LoadFrom は指定されたmapを環境変数として読み込む。
func LoadFrom(environment map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environment})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")
	if cfg.CORSAllowedOrigin == "" {
		cfg.CORSAllowedOrigin = cfg.FrontendURL
	}
	cfg.CookieSecure = strings.HasPrefix(cfg.GoogleCallbackURL, "https://")
	cfg.MailDriver = strings.ToLower(strings.TrimSpace(cfg.MailDriver))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate はドライバー固有の資格情報と期間設定を検証する。
func (c *Config) Validate() error {
	var problems []string

	switch c.MailDriver {
	case MailDriverSMTP:
		if c.EmailUser == "" || c.EmailPass == "" {
			problems = append(problems, "EMAIL_USER and EMAIL_PASS are required for the smtp mail driver")
		}
	case MailDriverPostmark:
		if c.PostmarkServerToken == "" {
			problems = append(problems, "POSTMARK_SERVER_TOKEN is required for the postmark mail driver")
		}
		if c.EmailUser == "" {
			problems = append(problems, "EMAIL_USER is required as the sender address")
		}
	case MailDriverLog:
	default:
		problems = append(problems, fmt.Sprintf("unknown MAIL_DRIVER %q", c.MailDriver))
	}

	durations := map[string]time.Duration{
		"OTP_TTL":          c.OTPTTL,
		"OTP_TOKEN_TTL":    c.OTPTokenTTL,
		"OAUTH_TOKEN_TTL":  c.OAuthTokenTTL,
		"OTP_RETENTION":    c.OTPRetention,
		"CLEANUP_INTERVAL": c.CleanupInterval,
	}
	for _, name := range []string{"OTP_TTL", "OTP_TOKEN_TTL", "OAUTH_TOKEN_TTL", "OTP_RETENTION", "CLEANUP_INTERVAL"} {
		if durations[name] <= 0 {
			problems = append(problems, name+" must be positive")
		}
	}

	if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
		problems = append(problems, "SMTP_PORT must be between 1 and 65535")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Addr はHTTPサーバーのlistenアドレスを返す。
func (c *Config) Addr() string {
	return ":" + c.ServerPort
}
