// internal/conversation/conversation_cache.go

package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"NIRA-Go/internal/kv"
)

// DefaultTTL is how long a paginated answer stays navigable.
const DefaultTTL = 24 * time.Hour

// ConversationCache stores paginated AI answers keyed by the id of the
// interaction that produced them.
type ConversationCache struct {
	store  kv.Store
	expiry time.Duration
	now    func() time.Time
}

// Option configures a ConversationCache.
type Option func(*ConversationCache)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(cc *ConversationCache) {
		if ttl > 0 {
			cc.expiry = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(cc *ConversationCache) {
		cc.now = now
	}
}

// NewConversationCache initializes a new ConversationCache.
func NewConversationCache(store kv.Store, opts ...Option) *ConversationCache {
	cc := &ConversationCache{
		store:  store,
		expiry: DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(cc)
	}
	return cc
}

// Save stores page under interactionID. A zero Timestamp is stamped with
// the current time; later saves keep the original stamp so the TTL runs
// from the first render.
func (cc *ConversationCache) Save(ctx context.Context, interactionID string, page *Page) error {
	if page.Timestamp == 0 {
		page.Timestamp = cc.now().UnixMilli()
	}
	if err := kv.SetJSON(ctx, cc.store, interactionID, page); err != nil {
		log.Error("Failed to save conversation", "interactionId", interactionID, "err", err)
		return fmt.Errorf("save conversation %q: %w", interactionID, err)
	}
	return nil
}

// Load retrieves a page if it's not expired. Records past the TTL are
// deleted on read rather than waiting for the next sweep.
func (cc *ConversationCache) Load(ctx context.Context, interactionID string) (*Page, bool) {
	page, err := cc.read(ctx, interactionID)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			log.Error("Failed to load conversation", "interactionId", interactionID, "err", err)
		}
		return nil, false
	}
	if cc.expired(page, cc.now()) {
		cc.Delete(ctx, interactionID)
		return nil, false
	}
	return page, true
}

// Delete removes a record and reports whether it existed.
func (cc *ConversationCache) Delete(ctx context.Context, interactionID string) bool {
	deleted, err := cc.store.Delete(ctx, interactionID)
	if err != nil {
		log.Error("Failed to delete conversation", "interactionId", interactionID, "err", err)
		return false
	}
	return deleted
}

// Sweep removes expired records and returns how many were deleted.
func (cc *ConversationCache) Sweep(ctx context.Context) int {
	ids, err := cc.store.Keys(ctx)
	if err != nil {
		log.Error("Failed to list conversations for cleanup", "err", err)
		return 0
	}

	now := cc.now()
	removed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		page, err := cc.read(ctx, id)
		if err != nil {
			if !errors.Is(err, kv.ErrNotFound) {
				log.Warn("Skipping unreadable conversation during cleanup", "interactionId", id, "err", err)
			}
			continue
		}
		if cc.expired(page, now) && cc.Delete(ctx, id) {
			removed++
		}
	}

	if removed > 0 {
		log.Info("Old conversations cleaned up", "removed", removed)
	}
	return removed
}

func (cc *ConversationCache) read(ctx context.Context, interactionID string) (*Page, error) {
	data, err := cc.store.Get(ctx, interactionID)
	if err != nil {
		return nil, err
	}
	var page Page
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("decode conversation %q: %w", interactionID, err)
	}
	return &page, nil
}

func (cc *ConversationCache) expired(page *Page, now time.Time) bool {
	return now.Sub(page.Created()) > cc.expiry
}
