// internal/session/guard.go

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"NIRA-Go/internal/kv"
)

// ErrBusy is returned by Guard.Acquire while another request holds the key.
var ErrBusy = errors.New("session: a request for this session is already in progress")

// DefaultClaimTTL is how long a claim blocks the key when its holder never
// releases it.
const DefaultClaimTTL = 3 * time.Minute

// Guard rejects a second AI request for a session key while the first is
// still running. Claims older than the claim TTL are treated as abandoned,
// so a process that died mid-request cannot lock a session forever.
type Guard struct {
	store kv.LockingStore
	ttl   time.Duration
	now   func() time.Time
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithClaimTTL overrides DefaultClaimTTL.
func WithClaimTTL(ttl time.Duration) GuardOption {
	return func(g *Guard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithGuardClock replaces time.Now, mainly for tests.
func WithGuardClock(now func() time.Time) GuardOption {
	return func(g *Guard) {
		g.now = now
	}
}

// claim is the value stored under a claimed key.
type claim struct {
	Token     string    `json:"token"`
	ClaimedAt time.Time `json:"claimedAt"`
}

// NewGuard builds a guard over store. Backends that cannot claim keys
// atomically fall back to a process-local memory store.
func NewGuard(store kv.Store, opts ...GuardOption) *Guard {
	ls, ok := store.(kv.LockingStore)
	if !ok {
		log.Warn("Store backend cannot claim keys atomically; in-flight guard is process-local")
		ls = kv.NewMemoryStore()
	}
	g := &Guard{store: ls, ttl: DefaultClaimTTL, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Acquire claims key. The returned release func must be called once the
// request finishes.
func (g *Guard) Acquire(ctx context.Context, key string) (func(), error) {
	mine := claim{Token: uuid.NewString(), ClaimedAt: g.now().UTC()}
	value, err := json.Marshal(mine)
	if err != nil {
		return nil, fmt.Errorf("acquire %q: %w", key, err)
	}

	ok, err := g.store.SetIfAbsent(ctx, key, value)
	if err != nil {
		return nil, fmt.Errorf("acquire %q: %w", key, err)
	}
	if !ok {
		if !g.reclaim(ctx, key) {
			return nil, ErrBusy
		}
		ok, err = g.store.SetIfAbsent(ctx, key, value)
		if err != nil {
			return nil, fmt.Errorf("acquire %q: %w", key, err)
		}
		if !ok {
			return nil, ErrBusy
		}
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// The request context may already be cancelled here.
		g.release(context.Background(), key, mine.Token)
	}, nil
}

// reclaim deletes the claim on key when it has outlived the claim TTL.
// It reports whether the key may be claimed again.
func (g *Guard) reclaim(ctx context.Context, key string) bool {
	current, found, err := g.current(ctx, key)
	if err != nil {
		log.Error("Failed to read in-flight guard", "key", key, "err", err)
		return false
	}
	if !found {
		return true
	}
	age := g.now().Sub(current.ClaimedAt)
	if age < g.ttl {
		return false
	}

	log.Warn("Reclaiming abandoned in-flight guard", "key", key, "age", age)
	if _, err := g.store.Delete(ctx, key); err != nil {
		log.Error("Failed to delete abandoned in-flight guard", "key", key, "err", err)
		return false
	}
	return true
}

// release deletes key only while it still holds token, so a holder that
// overran its claim cannot drop the claim of whoever reclaimed the key.
func (g *Guard) release(ctx context.Context, key, token string) {
	current, found, err := g.current(ctx, key)
	if err != nil {
		log.Error("Failed to read in-flight guard", "key", key, "err", err)
		return
	}
	if !found || current.Token != token {
		return
	}
	if _, err := g.store.Delete(ctx, key); err != nil {
		log.Error("Failed to release in-flight guard", "key", key, "err", err)
	}
}

// current reads the claim on key. An unreadable value counts as a claim
// from the zero time, which is always abandoned.
func (g *Guard) current(ctx context.Context, key string) (claim, bool, error) {
	raw, err := g.store.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return claim{}, false, nil
	}
	if err != nil {
		return claim{}, false, err
	}
	var c claim
	if err := json.Unmarshal(raw, &c); err != nil {
		return claim{}, true, nil
	}
	return c, true, nil
}
