// internal/tracker/tracker.go

// Package tracker remembers the last message id posted by each recurring
// task so the next tick can edit it in place.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"NIRA-Go/internal/kv"
)

// storeKey is the single document holding every task's message id.
const storeKey = "messageIdStore"

// Task keys.
const (
	KeyDailyHotdeal = "dailyHotdeal"
	KeyDailyNews    = "dailyNews"
	splatoonPrefix  = "splatoonSchedule_"
)

// SplatoonKey is the task key of the schedule post in channelID.
func SplatoonKey(channelID string) string {
	return splatoonPrefix + channelID
}

// Tracker is a MessageIdTracker backed by one JSON map in a kv.Store.
type Tracker struct {
	store kv.Store
	mu    sync.Mutex
}

func New(store kv.Store) *Tracker {
	return &Tracker{store: store}
}

// Get returns the message id recorded for key.
func (t *Tracker) Get(ctx context.Context, key string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids, err := t.load(ctx)
	if err != nil {
		log.Error("Failed to read message id store", "key", key, "err", err)
		return "", false
	}
	id, ok := ids[key]
	return id, ok && id != ""
}

// Set records id for key, leaving every other entry untouched.
func (t *Tracker) Set(ctx context.Context, key, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids, err := t.load(ctx)
	if err != nil {
		// Overwriting a corrupt map loses other tasks' ids; they recover by
		// posting a fresh message on their next tick.
		log.Warn("Message id store unreadable, starting a new one", "err", err)
		ids = make(map[string]string)
	}
	ids[key] = id

	if err := kv.SetJSON(ctx, t.store, storeKey, ids); err != nil {
		return fmt.Errorf("save message id for %q: %w", key, err)
	}
	log.Debug("Message id recorded", "key", key, "messageId", id)
	return nil
}

// All returns a copy of the whole map.
func (t *Tracker) All(ctx context.Context) (map[string]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load(ctx)
}

func (t *Tracker) load(ctx context.Context) (map[string]string, error) {
	ids := make(map[string]string)
	if err := kv.GetJSON(ctx, t.store, storeKey, &ids); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	if ids == nil {
		ids = make(map[string]string)
	}
	return ids, nil
}
