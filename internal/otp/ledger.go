// Package otp はメール認証用ワンタイムパスコードの発行と検証を提供する。
package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/hitoshi/notekeeper/internal/model"
	"github.com/hitoshi/notekeeper/internal/repository"
)

// DefaultTTL はコードの有効期間のデフォルト値。
const DefaultTTL = 5 * time.Minute

const (
	codeMin = 100000
	codeMax = 999999
)

// DeliverFunc は生成したコードを利用者に届ける関数。
// 失敗した場合、コードは保存されない。
type DeliverFunc func(ctx context.Context, code string) error

// Ledger はユーザーごとに最大1件の有効なコードを管理する。
type Ledger struct {
	repo repository.OTPRepository
	ttl  time.Duration
	now  func() time.Time
	gen  func() (string, error)
}

// Option はLedgerの設定を変更する。
type Option func(*Ledger)

// WithTTL はコードの有効期間を設定する。
func WithTTL(ttl time.Duration) Option {
	return func(l *Ledger) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithClock は現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// WithGenerator はコード生成関数を差し替える。
func WithGenerator(gen func() (string, error)) Option {
	return func(l *Ledger) {
		l.gen = gen
	}
}

// NewLedger はLedgerを生成する。
func NewLedger(repo repository.OTPRepository, opts ...Option) *Ledger {
	l := &Ledger{
		repo: repo,
		ttl:  DefaultTTL,
		now:  time.Now,
		gen:  GenerateCode,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TTL は設定されている有効期間を返す。
func (l *Ledger) TTL() time.Duration {
	return l.ttl
}

// Issue は新しいコードを生成し、deliverで配送した後に保存する。
// 保存に成功すると同じユーザーの以前のコードは無効になる。
// 配送に失敗した場合はDeliveryErrorを返し、以前のコードはそのまま残る。
// deliverがnilの場合は保存のみ行う。
func (l *Ledger) Issue(ctx context.Context, userID string, deliver DeliverFunc) (string, error) {
	code, err := l.gen()
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}

	now := l.now()
	entry := &model.OTP{
		UserID:    userID,
		Code:      code,
		ExpiresAt: now.Add(l.ttl),
		CreatedAt: now,
	}

	if deliver != nil {
		if err := deliver(ctx, code); err != nil {
			return "", model.NewDeliveryError(err)
		}
	}

	if err := l.repo.Replace(ctx, entry); err != nil {
		return "", model.NewStoreError(err)
	}
	return code, nil
}

// Verify はコードが一致し期限内であれば消費してtrueを返す。
// 不一致・期限切れ・発行なしはいずれもfalseとなる。
func (l *Ledger) Verify(ctx context.Context, userID, code string) (bool, error) {
	if userID == "" || code == "" {
		return false, nil
	}
	ok, err := l.repo.Consume(ctx, userID, code, l.now())
	if err != nil {
		return false, model.NewStoreError(err)
	}
	return ok, nil
}

// GenerateCode は100000〜999999の一様乱数を10進6桁の文字列で返す。
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+codeMin), nil
}
