package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hitoshi/notekeeper/internal/model"
	"github.com/hitoshi/notekeeper/internal/repository"
)

// memUserRepo はemailとgoogle_idの一意性をDBと同じく強制するインメモリ実装。
type memUserRepo struct {
	mu       sync.Mutex
	byID     map[string]*model.User
	findErr  error
	createFn func(user *model.User) error // 指定時はCreateの前に呼ばれる
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byID: make(map[string]*model.User)}
}

func cloneUser(u *model.User) *model.User {
	c := *u
	if u.GoogleID != nil {
		g := *u.GoogleID
		c.GoogleID = &g
	}
	return &c
}

func (r *memUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		return cloneUser(u), nil
	}
	return nil, nil
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) FindByGoogleID(_ context.Context, googleID string) (*model.User, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.GoogleID != nil && *u.GoogleID == googleID {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) Create(_ context.Context, user *model.User) error {
	if r.createFn != nil {
		if err := r.createFn(user); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
		if user.GoogleID != nil && u.GoogleID != nil && *u.GoogleID == *user.GoogleID {
			return repository.ErrDuplicateGoogleID
		}
	}
	r.byID[user.ID] = cloneUser(user)
	return nil
}

func (r *memUserRepo) LinkGoogleID(_ context.Context, email, googleID string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.GoogleID != nil && *u.GoogleID == googleID && u.Email != email {
			return nil, repository.ErrDuplicateGoogleID
		}
	}
	for _, u := range r.byID {
		if u.Email != email {
			continue
		}
		if u.GoogleID != nil && *u.GoogleID != googleID {
			return nil, repository.ErrNotFound
		}
		g := googleID
		u.GoogleID = &g
		u.UpdatedAt = time.Now()
		return cloneUser(u), nil
	}
	return nil, repository.ErrNotFound
}

func (r *memUserRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

func (r *memUserRepo) seed(u *model.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[u.ID] = cloneUser(u)
}

// memOTPRepo はuser_idごとに1件だけ保持するインメモリ実装。
type memOTPRepo struct {
	mu   sync.Mutex
	rows map[string]model.OTP
}

func newMemOTPRepo() *memOTPRepo {
	return &memOTPRepo{rows: make(map[string]model.OTP)}
}

func (r *memOTPRepo) Replace(_ context.Context, o *model.OTP) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[o.UserID] = *o
	return nil
}

func (r *memOTPRepo) Consume(_ context.Context, userID, code string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[userID]
	if !ok || row.Code != code || row.IsExpired(now) {
		return false, nil
	}
	delete(r.rows, userID)
	return true, nil
}

// recordingNotifier は送信したコードを宛先ごとに記録する。
type recordingNotifier struct {
	mu    sync.Mutex
	codes map[string][]string
	err   error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{codes: make(map[string][]string)}
}

func (n *recordingNotifier) SendOTP(_ context.Context, email, code string) error {
	if n.err != nil {
		return n.err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.codes[email] = append(n.codes[email], code)
	return nil
}

func (n *recordingNotifier) last(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	codes := n.codes[email]
	if len(codes) == 0 {
		return ""
	}
	return codes[len(codes)-1]
}

func (n *recordingNotifier) sent(email string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.codes[email])
}

type mockOAuthProvider struct {
	getLoginURLFn  func(state string) string
	exchangeCodeFn func(ctx context.Context, code string) (*OAuthUserInfo, error)
}

func (m *mockOAuthProvider) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code)
	}
	return nil, errors.New("not configured")
}

// --- compile-time interface checks ---
var (
	_ repository.UserRepository = (*memUserRepo)(nil)
	_ repository.OTPRepository  = (*memOTPRepo)(nil)
	_ OAuthProvider             = (*mockOAuthProvider)(nil)
)
