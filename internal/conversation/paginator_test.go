package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginatorMovesAndPersists(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now()
	cache, _ := newTestCache(&now)
	paginator := NewPaginator(cache, "gemini:")

	require.NoError(t, cache.Save(ctx, "111", &Page{Chunks: []string{"a", "b", "c"}}))

	res, err := paginator.Handle(ctx, CustomID("gemini:", Next(), "111"))
	require.NoError(t, err)
	require.False(t, res.Expired)
	assert.Equal(t, "b", res.Page.Current())

	stored, ok := cache.Load(ctx, "111")
	require.True(t, ok)
	assert.Equal(t, 1, stored.Page)

	res, err = paginator.Handle(ctx, CustomID("gemini:", Last(), "111"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Page.Page)
}

func TestPaginatorReportsExpiredAfterSweep(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now()
	cache, _ := newTestCache(&now)
	paginator := NewPaginator(cache, "gemini:")

	require.NoError(t, cache.Save(ctx, "111", &Page{Chunks: []string{"a", "b"}}))
	now = now.Add(48 * time.Hour)
	require.Equal(t, 1, cache.Sweep(ctx))

	res, err := paginator.Handle(ctx, CustomID("gemini:", Next(), "111"))
	require.NoError(t, err)
	assert.True(t, res.Expired)
	assert.Nil(t, res.Page)
	assert.Equal(t, "111", res.InteractionID)
}

func TestPaginatorRejectsForeignPayload(t *testing.T) {
	t.Parallel()

	now := time.Now()
	cache, _ := newTestCache(&now)

	_, err := NewPaginator(cache, "gemini:").Handle(context.Background(), "perplexity:next:1")
	assert.ErrorIs(t, err, ErrInvalidAction)
}
