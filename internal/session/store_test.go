package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NIRA-Go/internal/kv"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestStore(t *testing.T) (*Store, *kv.MemoryStore, *clock) {
	t.Helper()
	backing := kv.NewMemoryStore()
	clk := &clock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	return NewStore(backing, WithClock(clk.Now)), backing, clk
}

func TestSaveThenLoadWithinTTL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _, clk := newTestStore(t)

	key := Key("user1", "")
	require.Equal(t, "user1_none", key)
	require.NoError(t, store.Save(ctx, key, "none", []Turn{NewTurn(RoleUser, "hello")}))

	clk.Advance(30 * time.Minute)
	sess, ok := store.Load(ctx, key)
	require.True(t, ok)
	assert.Len(t, sess.History, 1)
	assert.Equal(t, "hello", sess.History[0].Text())
	assert.False(t, sess.CreatedAt.After(sess.LastUpdate))
}

func TestLoadExpiredSessionDeletesRecord(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, backing, clk := newTestStore(t)

	require.NoError(t, store.Save(ctx, "user1_none", "none", []Turn{NewTurn(RoleUser, "hi")}))
	clk.Advance(time.Hour + time.Minute)

	_, ok := store.Load(ctx, "user1_none")
	assert.False(t, ok)

	_, err := backing.Get(ctx, "user1_none")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestSaveKeepsCreatedAtAndLastWriteWins(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _, clk := newTestStore(t)
	created := clk.Now()

	require.NoError(t, store.Save(ctx, "user1_none", "none", []Turn{NewTurn(RoleUser, "A")}))
	clk.Advance(10 * time.Minute)
	require.NoError(t, store.Save(ctx, "user1_none", "none", []Turn{NewTurn(RoleUser, "B")}))

	sess, ok := store.Load(ctx, "user1_none")
	require.True(t, ok)
	assert.Equal(t, "B", sess.History[0].Text())
	assert.True(t, sess.CreatedAt.Equal(created))
	assert.True(t, sess.LastUpdate.Equal(clk.Now()))
}

func TestSaveAfterExpiryStartsFresh(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _, clk := newTestStore(t)

	require.NoError(t, store.Save(ctx, "user1_none", "none", nil))
	clk.Advance(2 * time.Hour)
	require.NoError(t, store.Save(ctx, "user1_none", "none", nil))

	sess, ok := store.Load(ctx, "user1_none")
	require.True(t, ok)
	assert.True(t, sess.CreatedAt.Equal(clk.Now()))
	assert.NotNil(t, sess.History)
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, backing, clk := newTestStore(t)
	now := clk.Now()

	clk.now = now.Add(-2 * time.Hour)
	require.NoError(t, store.Save(ctx, "stale_none", "none", nil))
	clk.now = now.Add(-10 * time.Minute)
	require.NoError(t, store.Save(ctx, "fresh_none", "none", nil))
	clk.now = now

	assert.Equal(t, 1, store.Sweep(ctx))

	keys, err := backing.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh_none"}, keys)

	assert.Equal(t, 0, store.Sweep(ctx), "second sweep finds nothing")
}

func TestSweepSkipsCorruptRecords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, backing, _ := newTestStore(t)
	require.NoError(t, backing.Set(ctx, "broken_none", []byte("{not json")))

	assert.Equal(t, 0, store.Sweep(ctx))
	_, ok := store.Load(ctx, "broken_none")
	assert.False(t, ok, "corrupt record reads as absent")
}

func TestDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _, _ := newTestStore(t)
	require.NoError(t, store.Save(ctx, "user1_none", "none", nil))

	assert.True(t, store.Delete(ctx, "user1_none"))
	assert.False(t, store.Delete(ctx, "user1_none"))
}

type failingStore struct {
	kv.Store
}

func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func (failingStore) Set(context.Context, string, []byte) error {
	return errors.New("disk on fire")
}

func TestStorageFailuresDegradeToAbsent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore(failingStore{Store: kv.NewMemoryStore()})

	_, ok := store.Load(ctx, "user1_none")
	assert.False(t, ok)
	assert.Error(t, store.Save(ctx, "user1_none", "none", nil))
}

func TestTrimHistory(t *testing.T) {
	t.Parallel()

	history := []Turn{
		NewTurn(RoleUser, "1"),
		NewTurn(RoleAssistant, "2"),
		NewTurn(RoleUser, "3"),
		NewTurn(RoleAssistant, "4"),
		NewTurn(RoleUser, "5"),
		NewTurn(RoleAssistant, "6"),
	}

	tests := []struct {
		name string
		max  int
		want []string
	}{
		{name: "unbounded", max: 0, want: []string{"1", "2", "3", "4", "5", "6"}},
		{name: "even", max: 4, want: []string{"3", "4", "5", "6"}},
		{name: "odd drops leading model turn", max: 3, want: []string{"5", "6"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var got []string
			for _, turn := range TrimHistory(history, tt.max) {
				got = append(got, turn.Text())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "42_teacher", Key("42", "teacher"))
	assert.Equal(t, "channel_7_none", Key(ChannelOwner("7"), ""))
}
