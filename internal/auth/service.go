// Package auth はメールOTPとGoogle OAuthによるログインフロー、セッショントークンの発行を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/notekeeper/internal/mailer"
	"github.com/hitoshi/notekeeper/internal/metrics"
	"github.com/hitoshi/notekeeper/internal/model"
	"github.com/hitoshi/notekeeper/internal/otp"
	"github.com/hitoshi/notekeeper/internal/repository"
	"github.com/hitoshi/notekeeper/internal/session"
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Provider       string // "google"
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// OTPLedger はOTPの発行と検証のインターフェース。
type OTPLedger interface {
	Issue(ctx context.Context, userID string, deliver otp.DeliverFunc) (string, error)
	Verify(ctx context.Context, userID, code string) (bool, error)
}

// TokenIssuer はセッショントークンの発行インターフェース。
type TokenIssuer interface {
	Issue(claims session.Claims, ttl time.Duration) (string, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	OTPTokenTTL   time.Duration // OTP検証成功時に発行するトークンの有効期間
	OAuthTokenTTL time.Duration // Googleログイン成功時に発行するトークンの有効期間
}

// DefaultServiceConfig はデフォルトの設定を返す。
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		OTPTokenTTL:   time.Hour,
		OAuthTokenTTL: 7 * 24 * time.Hour,
	}
}

// Deps はServiceが依存するコンポーネント。
type Deps struct {
	Users    repository.UserRepository
	Ledger   OTPLedger
	Notifier mailer.Notifier
	Tokens   TokenIssuer
	OAuth    OAuthProvider
	Broker   *Broker
	Metrics  metrics.MetricsCollector
	Logger   *slog.Logger
}

// Result はログイン成功時にクライアントへ返すトークンとユーザー情報。
type Result struct {
	Token string
	User  model.PublicUser
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users    repository.UserRepository
	ledger   OTPLedger
	notifier mailer.Notifier
	tokens   TokenIssuer
	oauth    OAuthProvider
	broker   *Broker
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
	config   ServiceConfig
	now      func() time.Time
}

// NewService はServiceを生成する。
func NewService(deps Deps, config ServiceConfig) *Service {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Broker == nil && deps.Users != nil {
		deps.Broker = NewBroker(deps.Users, deps.Logger)
	}
	defaults := DefaultServiceConfig()
	if config.OTPTokenTTL <= 0 {
		config.OTPTokenTTL = defaults.OTPTokenTTL
	}
	if config.OAuthTokenTTL <= 0 {
		config.OAuthTokenTTL = defaults.OAuthTokenTTL
	}
	return &Service{
		users:    deps.Users,
		ledger:   deps.Ledger,
		notifier: deps.Notifier,
		tokens:   deps.Tokens,
		oauth:    deps.OAuth,
		broker:   deps.Broker,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		config:   config,
		now:      time.Now,
	}
}

// MaxEmailLength はusers.emailに保存できるemailの最大長。
const MaxEmailLength = 254

// RequestSignup は未登録のemailでユーザーを作成し、OTPを送信する。
// ユーザー作成後に配送が失敗した場合もユーザーは残り、RequestLoginで再送できる。
func (s *Service) RequestSignup(ctx context.Context, name, email string) error {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	if name == "" || email == "" {
		return model.NewValidationError("Name & Email required")
	}
	if len(email) > MaxEmailLength {
		return model.NewValidationError("Email is too long")
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return model.NewStoreError(err)
	}
	if existing != nil {
		return model.NewDuplicateUserError()
	}

	now := s.now()
	user := &model.User{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// 同じemailでの同時サインアップは一意制約で1件に絞られる
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return model.NewDuplicateUserError()
		}
		return model.NewStoreError(err)
	}
	s.logger.InfoContext(ctx, "user signed up", slog.String("user_id", user.ID))

	return s.issueOTP(ctx, user, "signup")
}

// RequestLogin は登録済みのemailにOTPを送信する。
func (s *Service) RequestLogin(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return model.NewValidationError("Email required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return model.NewStoreError(err)
	}
	if user == nil {
		return model.NewUnknownUserError("User not registered. Please sign up first.")
	}

	return s.issueOTP(ctx, user, "login")
}

// VerifyOTP はOTPを検証し、成功した場合はセッショントークンを発行する。
// 検証に成功したコードは消費され、再利用できない。
func (s *Service) VerifyOTP(ctx context.Context, email, code string) (*Result, error) {
	email = NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return nil, model.NewValidationError("Email & OTP required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, model.NewStoreError(err)
	}
	if user == nil {
		return nil, model.NewUnknownUserError("User not found")
	}

	ok, err := s.ledger.Verify(ctx, user.ID, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.metrics.RecordOTPVerify("invalid")
		s.logger.InfoContext(ctx, "otp verification failed", slog.String("user_id", user.ID))
		return nil, model.NewInvalidOrExpiredOTPError()
	}

	result, err := s.issueToken(user, s.config.OTPTokenTTL)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordOTPVerify("success")
	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
		slog.String("flow", "otp"),
	)
	return result, nil
}

// LoginURL はGoogleの同意画面URLを返す。
func (s *Service) LoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback は認可コードを交換してユーザーを解決し、セッショントークンを発行する。
func (s *Service) HandleCallback(ctx context.Context, code string) (*Result, error) {
	info, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		s.metrics.RecordOAuthLogin("failed")
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	user, outcome, err := s.broker.Resolve(ctx, info)
	if err != nil {
		s.metrics.RecordOAuthLogin("failed")
		return nil, fmt.Errorf("failed to resolve oauth user: %w", err)
	}

	result, err := s.issueToken(user, s.config.OAuthTokenTTL)
	if err != nil {
		s.metrics.RecordOAuthLogin("failed")
		return nil, err
	}
	s.metrics.RecordOAuthLogin(string(outcome))
	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
		slog.String("flow", "google"),
		slog.String("outcome", string(outcome)),
	)
	return result, nil
}

// issueOTP はOTPを発行してユーザーのemailへ配送する。
func (s *Service) issueOTP(ctx context.Context, user *model.User, flow string) error {
	_, err := s.ledger.Issue(ctx, user.ID, func(ctx context.Context, code string) error {
		return s.notifier.SendOTP(ctx, user.Email, code)
	})
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeDelivery {
			s.metrics.RecordDeliveryFailure()
		}
		s.logger.ErrorContext(ctx, "failed to issue otp",
			slog.String("user_id", user.ID),
			slog.String("flow", flow),
			slog.String("error", err.Error()),
		)
		return err
	}

	s.metrics.RecordOTPIssued(flow)
	s.logger.InfoContext(ctx, "otp issued",
		slog.String("user_id", user.ID),
		slog.String("flow", flow),
	)
	return nil
}

// issueToken はユーザー情報を含むセッショントークンを発行する。
func (s *Service) issueToken(user *model.User, ttl time.Duration) (*Result, error) {
	token, err := s.tokens.Issue(session.Claims{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
	}, ttl)
	if err != nil {
		return nil, &model.APIError{
			Code:     model.ErrCodeInternal,
			Message:  "Server error",
			Category: "system",
			Cause:    err,
		}
	}
	return &Result{Token: token, User: user.Public()}, nil
}
