package otp

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/notekeeper/internal/model"
	"github.com/hitoshi/notekeeper/internal/repository"
)

// memoryOTPRepo はuser_idごとに1件だけ保持するインメモリ実装。
type memoryOTPRepo struct {
	mu         sync.Mutex
	rows       map[string]model.OTP
	replaceErr error
	consumeErr error
}

func newMemoryOTPRepo() *memoryOTPRepo {
	return &memoryOTPRepo{rows: make(map[string]model.OTP)}
}

func (r *memoryOTPRepo) Replace(_ context.Context, o *model.OTP) error {
	if r.replaceErr != nil {
		return r.replaceErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[o.UserID] = *o
	return nil
}

func (r *memoryOTPRepo) Consume(_ context.Context, userID, code string, now time.Time) (bool, error) {
	if r.consumeErr != nil {
		return false, r.consumeErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[userID]
	if !ok || row.Code != code || row.IsExpired(now) {
		return false, nil
	}
	delete(r.rows, userID)
	return true, nil
}

var _ repository.OTPRepository = (*memoryOTPRepo)(nil)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
}

func TestGenerateCode_SixDigitsInRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, 6)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestLedger_IssueThenVerify(t *testing.T) {
	repo := newMemoryOTPRepo()
	clock := newClock()
	ledger := NewLedger(repo, WithClock(clock.Now))

	var delivered string
	code, err := ledger.Issue(context.Background(), "user-1", func(_ context.Context, c string) error {
		delivered = c
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, code, delivered)
	assert.Equal(t, clock.Now().Add(DefaultTTL), repo.rows["user-1"].ExpiresAt)

	ok, err := ledger.Verify(context.Background(), "user-1", code)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLedger_Verify_IsSingleUse(t *testing.T) {
	ledger := NewLedger(newMemoryOTPRepo())

	code, err := ledger.Issue(context.Background(), "user-1", nil)
	require.NoError(t, err)

	ok, err := ledger.Verify(context.Background(), "user-1", code)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = ledger.Verify(context.Background(), "user-1", code)
	require.NoError(t, err)
	assert.False(t, ok, "consumed code must not verify twice")
}

func TestLedger_Verify_ExpiresAfterTTL(t *testing.T) {
	clock := newClock()
	ledger := NewLedger(newMemoryOTPRepo(), WithClock(clock.Now), WithTTL(5*time.Minute))

	code, err := ledger.Issue(context.Background(), "user-1", nil)
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)

	ok, err := ledger.Verify(context.Background(), "user-1", code)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedger_Issue_SupersedesPreviousCode(t *testing.T) {
	codes := []string{"111111", "222222"}
	ledger := NewLedger(newMemoryOTPRepo(), WithGenerator(func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}))

	first, err := ledger.Issue(context.Background(), "user-1", nil)
	require.NoError(t, err)
	second, err := ledger.Issue(context.Background(), "user-1", nil)
	require.NoError(t, err)

	ok, err := ledger.Verify(context.Background(), "user-1", first)
	require.NoError(t, err)
	assert.False(t, ok, "first code must be invalid after re-issue")

	ok, err = ledger.Verify(context.Background(), "user-1", second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLedger_Issue_DeliveryFailure_KeepsPreviousCode(t *testing.T) {
	codes := []string{"111111", "222222"}
	ledger := NewLedger(newMemoryOTPRepo(), WithGenerator(func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}))

	first, err := ledger.Issue(context.Background(), "user-1", nil)
	require.NoError(t, err)

	_, err = ledger.Issue(context.Background(), "user-1", func(context.Context, string) error {
		return errors.New("smtp unavailable")
	})
	var apiErr *model.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, model.ErrCodeDelivery, apiErr.Code)

	ok, err := ledger.Verify(context.Background(), "user-1", first)
	require.NoError(t, err)
	assert.True(t, ok, "previous code must survive a failed delivery")
}

func TestLedger_Issue_StoreFailure(t *testing.T) {
	repo := newMemoryOTPRepo()
	repo.replaceErr = errors.New("connection refused")
	ledger := NewLedger(repo)

	_, err := ledger.Issue(context.Background(), "user-1", nil)
	var apiErr *model.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, model.ErrCodeStore, apiErr.Code)
}

func TestLedger_Verify_WrongCodeOrUnknownUser(t *testing.T) {
	ledger := NewLedger(newMemoryOTPRepo(), WithGenerator(func() (string, error) { return "123456", nil }))
	_, err := ledger.Issue(context.Background(), "user-1", nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		userID string
		code   string
	}{
		{"wrong code", "user-1", "654321"},
		{"other user", "user-2", "123456"},
		{"empty code", "user-1", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := ledger.Verify(context.Background(), tt.userID, tt.code)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestLedger_Verify_ConcurrentSameCode_SucceedsOnce(t *testing.T) {
	ledger := NewLedger(newMemoryOTPRepo())
	code, err := ledger.Issue(context.Background(), "user-1", nil)
	require.NoError(t, err)

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := ledger.Verify(context.Background(), "user-1", code)
			if err == nil && ok {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestLedger_Verify_StoreError(t *testing.T) {
	repo := newMemoryOTPRepo()
	repo.consumeErr = errors.New("connection reset")
	ledger := NewLedger(repo)

	ok, err := ledger.Verify(context.Background(), "user-1", "123456")
	assert.False(t, ok)
	var apiErr *model.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, model.ErrCodeStore, apiErr.Code)
}
