package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NIRA-Go/internal/kv"
)

type plainStore struct {
	kv.Store
}

func TestGuardRejectsConcurrentRequest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	guard := NewGuard(kv.NewMemoryStore())

	release, err := guard.Acquire(ctx, "user1_none")
	require.NoError(t, err)

	_, err = guard.Acquire(ctx, "user1_none")
	assert.ErrorIs(t, err, ErrBusy)

	other, err := guard.Acquire(ctx, "user2_none")
	require.NoError(t, err)
	other()

	release()
	release()

	again, err := guard.Acquire(ctx, "user1_none")
	require.NoError(t, err)
	again()
}

func TestGuardOnlyOneWinner(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	guard := NewGuard(kv.NewFileStore(t.TempDir()))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := guard.Acquire(ctx, "user1_none"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestGuardFallsBackWithoutLocker(t *testing.T) {
	t.Parallel()

	guard := NewGuard(plainStore{Store: kv.NewMemoryStore()})

	release, err := guard.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer release()

	_, err = guard.Acquire(context.Background(), "k")
	assert.ErrorIs(t, err, ErrBusy)
}

func TestGuardReclaimsAbandonedClaim(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	clk := &clock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}

	// The first holder never releases, as if its process died mid-request.
	crashed := NewGuard(kv.NewFileStore(dir), WithClaimTTL(time.Minute), WithGuardClock(clk.Now))
	stale, err := crashed.Acquire(ctx, "user1_none")
	require.NoError(t, err)

	restarted := NewGuard(kv.NewFileStore(dir), WithClaimTTL(time.Minute), WithGuardClock(clk.Now))

	clk.Advance(30 * time.Second)
	_, err = restarted.Acquire(ctx, "user1_none")
	assert.ErrorIs(t, err, ErrBusy)

	clk.Advance(31 * time.Second)
	release, err := restarted.Acquire(ctx, "user1_none")
	require.NoError(t, err)

	// A late release from the old holder must not drop the new claim.
	stale()
	_, err = restarted.Acquire(ctx, "user1_none")
	assert.ErrorIs(t, err, ErrBusy)

	release()
	again, err := restarted.Acquire(ctx, "user1_none")
	require.NoError(t, err)
	again()
}

func TestGuardReclaimsUnreadableClaim(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := kv.NewMemoryStore()
	require.NoError(t, store.Set(ctx, "user1_none", []byte("2024-05-01T09:00:00Z")))

	release, err := NewGuard(store).Acquire(ctx, "user1_none")
	require.NoError(t, err)
	release()

	_, err = store.Get(ctx, "user1_none")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}
