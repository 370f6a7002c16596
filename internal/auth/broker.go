package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/notekeeper/internal/model"
	"github.com/hitoshi/notekeeper/internal/repository"
)

// Outcome はGoogleログイン時にユーザーをどう特定したかを表す。
type Outcome string

const (
	OutcomeExisting Outcome = "existing" // google_idで既存ユーザーを特定
	OutcomeLinked   Outcome = "linked"   // emailが一致したOTPユーザーにgoogle_idを紐付け
	OutcomeCreated  Outcome = "created"  // 新規ユーザーを作成
)

// Broker はプロバイダーから得たユーザー情報を、既存ユーザーの特定・紐付け・新規作成のいずれかで解決する。
type Broker struct {
	users  repository.UserRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewBroker はBrokerを生成する。
func NewBroker(users repository.UserRepository, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{users: users, logger: logger, now: time.Now}
}

// Resolve はgoogle_id → email → 新規作成の優先順でユーザーを解決する。
// 同じemailのユーザーに別のgoogle_idが紐付いている場合や、
// 一意制約違反が起きた場合はIdentityConflictErrorを返す。
func (b *Broker) Resolve(ctx context.Context, info *OAuthUserInfo) (*model.User, Outcome, error) {
	if info == nil || info.ProviderUserID == "" {
		return nil, "", errors.New("oauth assertion has no subject")
	}
	email := NormalizeEmail(info.Email)
	if email == "" {
		return nil, "", errors.New("oauth assertion has no email")
	}

	// 1. google_idで検索
	user, err := b.users.FindByGoogleID(ctx, info.ProviderUserID)
	if err != nil {
		return nil, "", model.NewStoreError(err)
	}
	if user != nil {
		return user, OutcomeExisting, nil
	}

	// 2. emailで検索し、OTPユーザーであればgoogle_idを紐付ける
	user, err = b.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", model.NewStoreError(err)
	}
	if user != nil {
		return b.link(ctx, user, email, info.ProviderUserID)
	}

	// 3. 新規作成
	return b.create(ctx, info, email)
}

func (b *Broker) link(ctx context.Context, user *model.User, email, googleID string) (*model.User, Outcome, error) {
	if user.HasGoogleID() && *user.GoogleID != googleID {
		return nil, "", b.conflict(ctx, fmt.Errorf("user %s already linked to another google account", user.ID), user.ID)
	}

	linked, err := b.users.LinkGoogleID(ctx, email, googleID)
	switch {
	case err == nil:
		b.logger.InfoContext(ctx, "google account linked to existing user",
			slog.String("user_id", linked.ID),
		)
		return linked, OutcomeLinked, nil
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrDuplicateGoogleID):
		return nil, "", b.conflict(ctx, err, user.ID)
	default:
		return nil, "", model.NewStoreError(err)
	}
}

func (b *Broker) create(ctx context.Context, info *OAuthUserInfo, email string) (*model.User, Outcome, error) {
	name := strings.TrimSpace(info.Name)
	if name == "" {
		name = email
	}
	googleID := info.ProviderUserID
	now := b.now()
	user := &model.User{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		GoogleID:  &googleID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := b.users.Create(ctx, user)
	switch {
	case err == nil:
		b.logger.InfoContext(ctx, "new user created via google",
			slog.String("user_id", user.ID),
		)
		return user, OutcomeCreated, nil
	case errors.Is(err, repository.ErrDuplicateEmail), errors.Is(err, repository.ErrDuplicateGoogleID):
		// 同じアカウントでの同時ログインに負けた場合は、勝った側の行をそのまま使う
		existing, findErr := b.users.FindByGoogleID(ctx, googleID)
		if findErr == nil && existing != nil {
			return existing, OutcomeExisting, nil
		}
		return nil, "", b.conflict(ctx, err, "")
	default:
		return nil, "", model.NewStoreError(err)
	}
}

func (b *Broker) conflict(ctx context.Context, cause error, userID string) error {
	b.logger.ErrorContext(ctx, "identity conflict during google login",
		slog.String("user_id", userID),
		slog.String("error", cause.Error()),
	)
	return model.NewIdentityConflictError(cause)
}

// NormalizeEmail は前後の空白を除去し小文字化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
