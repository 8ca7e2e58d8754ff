// internal/kv/kv.go

// Package kv is the persistence seam shared by sessions, paginated
// conversations, message ids and quotas. Every backend stores opaque JSON
// documents under flat keys inside one namespace.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by Get when the key does not exist.
	ErrNotFound = errors.New("kv: key not found")
	// ErrInvalidKey is returned when a key cannot be mapped onto a backend.
	ErrInvalidKey = errors.New("kv: invalid key")
)

// Store is a namespaced key-value store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete reports whether a value was present.
	Delete(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context) ([]string, error)
}

// Locker is implemented by backends that can atomically claim a key.
type Locker interface {
	SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error)
}

// LockingStore is a Store that also supports SetIfAbsent.
type LockingStore interface {
	Store
	Locker
}

// ValidateKey rejects keys that are empty or would escape a namespace.
func ValidateKey(key string) error {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if trimmed == "." || trimmed == ".." || strings.Contains(trimmed, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if strings.ContainsAny(trimmed, `/\`) {
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidKey, key)
	}
	return nil
}

// GetJSON loads key and decodes it into v.
func GetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %q: %w", key, err)
	}
	return nil
}

// SetJSON encodes v with two-space indentation and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return s.Set(ctx, key, data)
}
