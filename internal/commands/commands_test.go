package commands

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NIRA-Go/internal/api"
	"NIRA-Go/internal/conversation"
	"NIRA-Go/internal/discord"
	"NIRA-Go/internal/discord/discordtest"
	"NIRA-Go/internal/feeds"
	"NIRA-Go/internal/kv"
	"NIRA-Go/internal/session"
	"NIRA-Go/internal/usage"
)

type fakeAI struct {
	mu        sync.Mutex
	requests  []api.Request
	text      string
	citations []string
	err       error
}

func (f *fakeAI) Complete(_ context.Context, req api.Request) (*api.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &api.Response{Text: f.text, Model: req.Model, Citations: f.citations}, nil
}

type fixture struct {
	ai       *fakeAI
	sessions *session.Store
	guard    *session.Guard
	cache    *conversation.ConversationCache
	registry *Registry
	gemini   *Gemini
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		ai:       &fakeAI{text: "안녕하세요"},
		sessions: session.NewStore(kv.NewMemoryStore()),
		guard:    session.NewGuard(kv.NewMemoryStore()),
		cache:    conversation.NewConversationCache(kv.NewMemoryStore()),
		registry: NewRegistry(),
	}
	f.gemini = NewGemini(f.ai, f.sessions, f.guard, f.cache, GeminiOptions{Model: "gemini-2.5-flash", MaxTokens: 2048})
	require.NoError(t, f.registry.Register(f.gemini))
	return f
}

type simpleCmd struct {
	name string
	err  error
}

func (s *simpleCmd) Kind() Kind { return KindSimple }
func (s *simpleCmd) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: s.name, Description: s.name}
}
func (s *simpleCmd) Execute(context.Context, discord.Interaction) error { return s.err }

type lyingCmd struct{ simpleCmd }

func (l *lyingCmd) Kind() Kind { return KindPaginated }

type overlapCmd struct {
	simpleCmd
	prefix string
}

func (o *overlapCmd) Kind() Kind     { return KindPaginated }
func (o *overlapCmd) Prefix() string { return o.prefix }
func (o *overlapCmd) HandleComponent(context.Context, discord.Interaction) error {
	return nil
}

func TestRegistryRegister(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	assert.Error(t, f.registry.Register(NewGemini(f.ai, f.sessions, f.guard, f.cache, GeminiOptions{})), "duplicate name")
	assert.Error(t, f.registry.Register(&lyingCmd{simpleCmd{name: "liar"}}), "paginated without handler")
	assert.Error(t, f.registry.Register(&overlapCmd{simpleCmd: simpleCmd{name: "gem"}, prefix: "gem"}), "overlapping prefix")
	assert.Error(t, f.registry.Register(&overlapCmd{simpleCmd: simpleCmd{name: "empty"}, prefix: ""}), "empty prefix")
	require.NoError(t, f.registry.Register(&simpleCmd{name: "alpha"}))

	defs := f.registry.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "alpha", defs[0].Name)
	assert.Equal(t, "gemini", defs[1].Name)
}

func TestRegistryDispatchErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	r := NewRegistry()
	require.NoError(t, r.Register(&simpleCmd{name: "broken", err: errors.New("boom")}))

	in := discordtest.NewCommand("1", "u", "missing")
	assert.ErrorIs(t, r.Dispatch(ctx, in), ErrUnknownCommand)
	assert.Equal(t, UnknownCommandMessage, in.Last().Response.Content)

	in = discordtest.NewCommand("2", "u", "broken")
	assert.Error(t, r.Dispatch(ctx, in))
	assert.Equal(t, discord.GenericErrorMessage, in.Last().Response.Content)

	click := discordtest.NewComponent("3", "u", "nobody:next:1")
	assert.ErrorIs(t, r.DispatchComponent(ctx, click), ErrUnknownCommand)
}

func TestGeminiRemembersSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	in := discordtest.NewCommand("100", "user1", "gemini")
	in.Strings["prompt"] = "첫 질문"
	require.NoError(t, f.registry.Dispatch(ctx, in))

	calls := in.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "defer", calls[0].Kind)
	assert.Equal(t, "edit", calls[1].Kind)
	assert.Equal(t, "안녕하세요", calls[1].Response.Embeds[0].Description)

	sess, ok := f.sessions.Load(ctx, "user1_none")
	require.True(t, ok)
	require.Len(t, sess.History, 2)
	assert.Equal(t, session.RoleUser, sess.History[0].Role)
	assert.Equal(t, "첫 질문", sess.History[0].Text())

	page, ok := f.cache.Load(ctx, "100")
	require.True(t, ok)
	assert.Equal(t, "첫 질문", page.Prompt)
	assert.True(t, page.UseSession)

	second := discordtest.NewCommand("101", "user1", "gemini")
	second.Strings["prompt"] = "두 번째"
	require.NoError(t, f.registry.Dispatch(ctx, second))

	require.Len(t, f.ai.requests, 2)
	assert.Len(t, f.ai.requests[1].Messages, 3)
	assert.Equal(t, api.RoleAssistant, f.ai.requests[1].Messages[1].Role)
}

func TestGeminiWithoutSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	in := discordtest.NewCommand("100", "user1", "gemini")
	in.Strings["prompt"] = "질문"
	in.Bools["session"] = false
	require.NoError(t, f.registry.Dispatch(ctx, in))

	_, ok := f.sessions.Load(ctx, "user1_none")
	assert.False(t, ok)
}

func TestGeminiRejectsConcurrentRequest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	release, err := f.guard.Acquire(ctx, "channel_channel-1_cat")
	require.NoError(t, err)
	defer release()

	in := discordtest.NewCommand("100", "user1", "gemini")
	in.Strings["prompt"] = "질문"
	in.Strings["persona"] = "cat"
	in.Bools["shared"] = true
	require.NoError(t, f.registry.Dispatch(ctx, in))

	last := in.Last()
	assert.Equal(t, "reply", last.Kind)
	assert.Equal(t, BusyMessage, last.Response.Content)
	assert.Empty(t, f.ai.requests)
}

func TestGeminiReset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.sessions.Save(ctx, "user1_none", "none", []session.Turn{session.NewTurn(session.RoleUser, "hi")}))

	in := discordtest.NewCommand("100", "user1", "gemini")
	in.Bools["reset"] = true
	require.NoError(t, f.registry.Dispatch(ctx, in))
	assert.Equal(t, geminiResetDone, in.Last().Response.Content)

	_, ok := f.sessions.Load(ctx, "user1_none")
	assert.False(t, ok)

	again := discordtest.NewCommand("101", "user1", "gemini")
	again.Bools["reset"] = true
	require.NoError(t, f.registry.Dispatch(ctx, again))
	assert.Equal(t, geminiResetNothing, again.Last().Response.Content)
}

func TestGeminiMissingKey(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	f.ai.err = api.ErrUnavailable

	in := discordtest.NewCommand("100", "user1", "gemini")
	in.Strings["prompt"] = "질문"
	require.NoError(t, f.registry.Dispatch(ctx, in))
	assert.Equal(t, geminiMissingKey, in.Last().Response.Content)

	// The guard was released.
	release, err := f.guard.Acquire(ctx, "user1_none")
	require.NoError(t, err)
	release()
}

func TestPaginationThroughRegistry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	f.ai.text = strings.Repeat("가나다라마 ", 400) // about 2400 characters

	in := discordtest.NewCommand("200", "user1", "gemini")
	in.Strings["prompt"] = "긴 답변"
	require.NoError(t, f.registry.Dispatch(ctx, in))
	require.NotNil(t, in.Last().Response.Components)

	click := discordtest.NewComponent("201", "user1", conversation.CustomID("gemini:", conversation.Next(), "200"))
	require.NoError(t, f.registry.DispatchComponent(ctx, click))
	assert.Equal(t, "update", click.Last().Kind)
	assert.Contains(t, click.Last().Response.Embeds[0].Footer.Text, "2/")

	page, ok := f.cache.Load(ctx, "200")
	require.True(t, ok)
	assert.Equal(t, 1, page.Page)
	assert.Len(t, f.ai.requests, 1, "page turns never call the AI")

	expired := discordtest.NewComponent("202", "user1", conversation.CustomID("gemini:", conversation.Last(), "999"))
	require.NoError(t, f.registry.DispatchComponent(ctx, expired))
	assert.Equal(t, "reply", expired.Last().Kind)
	assert.Equal(t, discord.ExpiredResponse().Content, expired.Last().Response.Content)
	assert.True(t, expired.Last().Response.Ephemeral)
}

func newPerplexityFixture(t *testing.T, noLimit map[string]struct{}) (*Registry, *fakeAI, *usage.UsageCache) {
	t.Helper()

	ai := &fakeAI{text: "검색 결과", citations: []string{"https://a.example"}}
	quota := usage.NewUsageCache(kv.NewMemoryStore(), time.UTC, usage.WithLimits(map[string]int{api.ModelSonar: 1, api.ModelSonarPro: 3}))
	cache := conversation.NewConversationCache(kv.NewMemoryStore())

	r := NewRegistry()
	require.NoError(t, r.Register(NewPerplexity(ai, quota, cache, noLimit)))
	return r, ai, quota
}

func TestPerplexityQuota(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, ai, quota := newPerplexityFixture(t, nil)

	in := discordtest.NewCommand("1", "user1", "perplexity")
	in.Strings["prompt"] = "오늘 날씨"
	require.NoError(t, r.Dispatch(ctx, in))

	desc := in.Last().Response.Embeds[0].Description
	assert.Contains(t, desc, "검색 결과")
	assert.Contains(t, desc, "[1] https://a.example")
	assert.Equal(t, 1, quota.Check(ctx, api.ModelSonar).Current)
	assert.Equal(t, api.MaxTokensFor(api.ModelSonar), ai.requests[0].MaxTokens)

	again := discordtest.NewCommand("2", "user1", "perplexity")
	again.Strings["prompt"] = "또 질문"
	require.NoError(t, r.Dispatch(ctx, again))
	assert.Contains(t, again.Last().Response.Content, "일일 사용량 초과")
	assert.Len(t, ai.requests, 1)
}

func TestPerplexityNoLimitUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, ai, quota := newPerplexityFixture(t, map[string]struct{}{"admin": {}})

	for i := 0; i < 3; i++ {
		in := discordtest.NewCommand("1", "admin", "perplexity")
		in.Strings["prompt"] = "질문"
		require.NoError(t, r.Dispatch(ctx, in))
	}
	assert.Len(t, ai.requests, 3)
	assert.Equal(t, 0, quota.Check(ctx, api.ModelSonar).Current)
}

func TestPerplexityStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, ai, _ := newPerplexityFixture(t, nil)

	in := discordtest.NewCommand("1", "user1", "perplexity")
	require.NoError(t, r.Dispatch(ctx, in))

	embed := in.Last().Response.Embeds[0]
	require.Len(t, embed.Fields, 2)
	assert.Equal(t, "Sonar (경량)", embed.Fields[0].Name)
	assert.Contains(t, embed.Fields[0].Value, "░░░░░░░░░░")
	assert.Empty(t, ai.requests)
}

func TestUsageBar(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "█████░░░░░", usageBar(1, 2, 10))
	assert.Equal(t, "██████████", usageBar(5, 3, 10))
	assert.Equal(t, 100, percent(0, 0))
}

type staticDigest struct{ d *feeds.Digest }

func (s staticDigest) Digest(context.Context) *feeds.Digest { return s.d }

func TestFeedCommands(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	digest := &feeds.Digest{Title: "핫딜", Items: []feeds.Item{{Title: "deal", Link: "https://x"}}}
	r := NewRegistry()
	require.NoError(t, r.Register(NewHotdeal(staticDigest{digest})))

	news := NewNews()
	var asked string
	news.source = func(category string) (DigestSource, error) {
		asked = category
		if category == "없는분야" {
			return nil, errors.New("unknown")
		}
		return staticDigest{&feeds.Digest{Title: category + " 뉴스"}}, nil
	}
	require.NoError(t, r.Register(news))
	require.NoError(t, r.Register(NewPing(func() time.Duration { return 42 * time.Millisecond })))

	in := discordtest.NewCommand("1", "u", "hotdeal")
	require.NoError(t, r.Dispatch(ctx, in))
	assert.Equal(t, "핫딜", in.Last().Response.Embeds[0].Title)

	in = discordtest.NewCommand("2", "u", "news")
	require.NoError(t, r.Dispatch(ctx, in))
	assert.Equal(t, feeds.DefaultNewsCategory, asked)

	in = discordtest.NewCommand("3", "u", "news")
	in.Strings["category"] = "없는분야"
	require.NoError(t, r.Dispatch(ctx, in))
	assert.True(t, in.Last().Response.Ephemeral)

	in = discordtest.NewCommand("4", "u", "ping")
	require.NoError(t, r.Dispatch(ctx, in))
	assert.Contains(t, in.Last().Response.Content, "42ms")
}
