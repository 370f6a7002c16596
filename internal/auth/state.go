package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidState はOAuthのstateが改ざん・期限切れ・不一致であることを表す。
var ErrInvalidState = errors.New("auth: invalid oauth state")

// DefaultStateTTL はOAuth stateの有効期間のデフォルト値。
const DefaultStateTTL = 10 * time.Minute

// StateSigner はサーバー側セッションを使わずにOAuthのstateを検証する。
// state = nonce.期限(unix秒).HMAC-SHA256(nonce.期限) の形式で、
// 同じ値をHttpOnly Cookieにも保存し、コールバックで両者を照合する。
type StateSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewStateSigner はStateSignerを生成する。
func NewStateSigner(secret string, ttl time.Duration) (*StateSigner, error) {
	if secret == "" {
		return nil, errors.New("auth: state secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateSigner{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL はstateの有効期間を返す。
func (s *StateSigner) TTL() time.Duration {
	return s.ttl
}

// Issue は新しい署名付きstateを生成する。
func (s *StateSigner) Issue() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state nonce: %w", err)
	}
	payload := hex.EncodeToString(b) + "." + strconv.FormatInt(s.now().Add(s.ttl).Unix(), 10)
	return payload + "." + s.sign(payload), nil
}

// Verify はクエリパラメータのstateとCookieの値が一致し、署名と期限が正しいかを検証する。
func (s *StateSigner) Verify(state, cookieValue string) error {
	if state == "" || cookieValue == "" {
		return ErrInvalidState
	}
	if !hmac.Equal([]byte(state), []byte(cookieValue)) {
		return ErrInvalidState
	}

	i := strings.LastIndexByte(state, '.')
	if i < 0 {
		return ErrInvalidState
	}
	payload, sig := state[:i], state[i+1:]
	if !hmac.Equal([]byte(sig), []byte(s.sign(payload))) {
		return ErrInvalidState
	}

	parts := strings.Split(payload, ".")
	if len(parts) != 2 {
		return ErrInvalidState
	}
	exp, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return ErrInvalidState
	}
	if !s.now().Before(time.Unix(exp, 0)) {
		return ErrInvalidState
	}
	return nil
}

func (s *StateSigner) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
