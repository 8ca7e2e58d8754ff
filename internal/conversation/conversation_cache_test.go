package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NIRA-Go/internal/kv"
)

func newTestCache(now *time.Time) (*ConversationCache, *kv.MemoryStore) {
	backing := kv.NewMemoryStore()
	return NewConversationCache(backing, WithClock(func() time.Time { return *now })), backing
}

func TestSaveStampsTimestampOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	cache, _ := newTestCache(&now)

	page := NewPage("body", "prompt", "gemini-2.5-flash", "none", false)
	require.NoError(t, cache.Save(ctx, "111", page))
	assert.Equal(t, now.UnixMilli(), page.Timestamp)

	now = now.Add(time.Hour)
	page.Page = 0
	require.NoError(t, cache.Save(ctx, "111", page))

	got, ok := cache.Load(ctx, "111")
	require.True(t, ok)
	assert.True(t, got.Created().Equal(now.Add(-time.Hour)))
}

func TestLoadAndResaveIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now()
	cache, _ := newTestCache(&now)

	require.NoError(t, cache.Save(ctx, "111", &Page{Chunks: []string{"a", "b", "c"}, Page: 1}))

	for i := 0; i < 3; i++ {
		page, ok := cache.Load(ctx, "111")
		require.True(t, ok)
		require.NoError(t, cache.Save(ctx, "111", page))
	}

	page, ok := cache.Load(ctx, "111")
	require.True(t, ok)
	assert.Equal(t, 1, page.Page)
}

func TestLoadPastTTLIsAbsent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now()
	cache, backing := newTestCache(&now)

	require.NoError(t, cache.Save(ctx, "111", &Page{Chunks: []string{"a"}}))
	now = now.Add(DefaultTTL + time.Second)

	_, ok := cache.Load(ctx, "111")
	assert.False(t, ok)

	_, err := backing.Get(ctx, "111")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestSweepDeletesOldRecords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now()
	cache, _ := newTestCache(&now)

	require.NoError(t, cache.Save(ctx, "old", &Page{Chunks: []string{"a"}, Timestamp: now.Add(-25 * time.Hour).UnixMilli()}))
	require.NoError(t, cache.Save(ctx, "new", &Page{Chunks: []string{"a"}, Timestamp: now.Add(-time.Hour).UnixMilli()}))

	assert.Equal(t, 1, cache.Sweep(ctx))

	_, ok := cache.Load(ctx, "old")
	assert.False(t, ok)
	_, ok = cache.Load(ctx, "new")
	assert.True(t, ok)
}
