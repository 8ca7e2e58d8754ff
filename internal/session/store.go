// internal/session/store.go

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"NIRA-Go/internal/kv"
)

// Store manages session persistence on top of a kv.Store.
// Storage failures are logged and reported as "no session" so a broken
// disk never turns into a failed chat command.
type Store struct {
	kv  kv.Store
	ttl time.Duration
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a session store.
func NewStore(store kv.Store, opts ...Option) *Store {
	s := &Store{
		kv:  store,
		ttl: DefaultTTL,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the configured idle timeout.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Load returns the session for key. Expired sessions are deleted and
// reported as absent.
func (s *Store) Load(ctx context.Context, key string) (*Session, bool) {
	sess, err := s.read(ctx, key)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			log.Error("Failed to load session", "key", key, "err", err)
		}
		return nil, false
	}

	if sess.Expired(s.now(), s.ttl) {
		s.expire(ctx, key, sess)
		return nil, false
	}

	return sess, true
}

// Save writes history under key. CreatedAt is carried over from a live
// session; LastUpdate is always the current time.
func (s *Store) Save(ctx context.Context, key, persona string, history []Turn) error {
	now := s.now()
	sess := Session{
		Key:        key,
		Persona:    persona,
		History:    history,
		CreatedAt:  now,
		LastUpdate: now,
	}
	if sess.History == nil {
		sess.History = []Turn{}
	}

	if existing, ok := s.Load(ctx, key); ok {
		sess.CreatedAt = existing.CreatedAt
	}

	if err := kv.SetJSON(ctx, s.kv, key, sess); err != nil {
		log.Error("Failed to save session", "key", key, "err", err)
		return fmt.Errorf("save session %q: %w", key, err)
	}

	log.Debug("Session saved", "key", key, "turns", len(history))
	return nil
}

// Delete removes the session and reports whether one existed.
func (s *Store) Delete(ctx context.Context, key string) bool {
	deleted, err := s.kv.Delete(ctx, key)
	if err != nil {
		log.Error("Failed to delete session", "key", key, "err", err)
		return false
	}
	if deleted {
		log.Info("Session deleted", "key", key)
	}
	return deleted
}

// Sweep deletes every expired session and returns how many were removed.
// Unreadable records are left in place and logged.
func (s *Store) Sweep(ctx context.Context) int {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		log.Error("Failed to list sessions for cleanup", "err", err)
		return 0
	}

	now := s.now()
	removed := 0
	for _, key := range keys {
		if ctx.Err() != nil {
			break
		}
		sess, err := s.read(ctx, key)
		if err != nil {
			if !errors.Is(err, kv.ErrNotFound) {
				log.Warn("Skipping unreadable session during cleanup", "key", key, "err", err)
			}
			continue
		}
		if sess.Expired(now, s.ttl) && s.expire(ctx, key, sess) {
			removed++
		}
	}

	if removed > 0 {
		log.Info("Expired sessions cleaned up", "removed", removed)
	}
	return removed
}

func (s *Store) read(ctx context.Context, key string) (*Session, error) {
	data, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %q: %w", key, err)
	}
	return &sess, nil
}

func (s *Store) expire(ctx context.Context, key string, sess *Session) bool {
	deleted, err := s.kv.Delete(ctx, key)
	if err != nil {
		log.Error("Failed to delete expired session", "key", key, "err", err)
		return false
	}
	log.Info("Session expired", "key", key, "lastUpdate", sess.LastUpdate.Format(time.RFC3339))
	return deleted
}
