package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type scriptedCompleter struct {
	errs   []error
	models []string
}

func (s *scriptedCompleter) Complete(_ context.Context, req Request) (*Response, error) {
	s.models = append(s.models, req.Model)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &Response{Text: "ok", Model: req.Model}, nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestRetryThenFallback(t *testing.T) {
	t.Parallel()

	unavailable := &StatusError{Provider: "test", StatusCode: http.StatusServiceUnavailable}
	next := &scriptedCompleter{errs: []error{unavailable, unavailable, unavailable}}
	r := WithRetry(next, 3, time.Second, "small")
	r.sleep = noSleep

	resp, err := r.Complete(context.Background(), Request{Model: "big"})
	require.NoError(t, err)
	assert.Equal(t, "small", resp.Model)
	assert.Equal(t, []string{"big", "big", "big", "small"}, next.models)
}

func TestRetryRecoversBeforeFallback(t *testing.T) {
	t.Parallel()

	next := &scriptedCompleter{errs: []error{context.DeadlineExceeded, nil}}
	r := WithRetry(next, 3, time.Second, "small")
	r.sleep = noSleep

	resp, err := r.Complete(context.Background(), Request{Model: "big"})
	require.NoError(t, err)
	assert.Equal(t, "big", resp.Model)
	assert.Len(t, next.models, 2)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	t.Parallel()

	bad := &StatusError{Provider: "test", StatusCode: http.StatusBadRequest}
	next := &scriptedCompleter{errs: []error{bad}}
	r := WithRetry(next, 3, time.Second, "small")
	r.sleep = noSleep

	_, err := r.Complete(context.Background(), Request{Model: "big"})
	assert.ErrorIs(t, err, bad)
	assert.Equal(t, []string{"big"}, next.models)
}

func TestRetryWithoutFallback(t *testing.T) {
	t.Parallel()

	unavailable := &StatusError{Provider: "test", StatusCode: http.StatusBadGateway}
	next := &scriptedCompleter{errs: []error{unavailable, unavailable}}
	r := WithRetry(next, 2, time.Second, "")
	r.sleep = noSleep

	_, err := r.Complete(context.Background(), Request{Model: "big"})
	assert.Error(t, err)
	assert.Len(t, next.models, 2)
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(ErrUnavailable))
	assert.True(t, IsTransient(&StatusError{StatusCode: http.StatusTooManyRequests}))
	assert.True(t, IsTransient(&StatusError{StatusCode: http.StatusInternalServerError}))
	assert.False(t, IsTransient(&StatusError{StatusCode: http.StatusNotFound}))
	assert.True(t, IsTransient(errors.Join(errors.New("wrapped"), context.DeadlineExceeded)))
}

func TestMaxTokensFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 4096, MaxTokensFor(ModelSonarPro))
	assert.Equal(t, 8192, MaxTokensFor(ModelSonarReasoning))
	assert.Equal(t, 2048, MaxTokensFor(ModelSonar))
}

func TestPerplexityClient(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "sonar-reasoning",
			"citations": ["https://a.example", "https://b.example"],
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "<think>hmm</think>\n답변입니다"}}]
		}`))
	}))
	t.Cleanup(srv.Close)

	client := NewPerplexityClient("key", srv.URL)
	resp, err := client.Complete(context.Background(), Request{
		Model:    ModelSonarReasoning,
		System:   PerplexitySystemPrompt,
		Messages: []Message{{Role: RoleUser, Content: "질문"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "답변입니다", resp.Text)
	assert.Equal(t, "sonar-reasoning", resp.Model)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, resp.Citations)
	assert.EqualValues(t, 8192, got["max_tokens"])
	assert.Len(t, got["messages"], 2)
}

func TestPerplexityClientUpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": {"message": "overloaded"}}`))
	}))
	t.Cleanup(srv.Close)

	_, err := NewPerplexityClient("key", srv.URL).Complete(context.Background(), Request{Model: ModelSonar})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestUnconfiguredClients(t *testing.T) {
	t.Parallel()

	_, err := NewPerplexityClient("", "").Complete(context.Background(), Request{Model: ModelSonar})
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = NewGeminiClient("").Complete(context.Background(), Request{Model: "gemini-2.5-flash"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestLimitedPassesThrough(t *testing.T) {
	t.Parallel()

	next := &scriptedCompleter{}
	limited := NewLimited(next, rate.NewLimiter(rate.Inf, 1), "test")

	resp, err := limited.Complete(context.Background(), Request{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewLimited(next, rate.NewLimiter(rate.Every(time.Hour), 0), "test").Complete(ctx, Request{Model: "m"})
	assert.Error(t, err)
}
