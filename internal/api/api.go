// internal/api/api.go

// Package api talks to the AI providers behind the chat commands.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"NIRA-Go/internal/metrics"
)

var (
	// ErrUnavailable means the provider has no API key configured.
	ErrUnavailable = errors.New("ai provider not configured")
	// ErrEmptyResponse means the provider answered without any text.
	ErrEmptyResponse = errors.New("ai provider returned an empty response")
)

// Roles used in Message.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

type Request struct {
	Model     string
	System    string
	Messages  []Message
	MaxTokens int
}

type Response struct {
	Text      string
	Model     string
	Citations []string
}

// Completer produces one completion for a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// StatusError is an upstream HTTP failure.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// IsTransient reports whether err is worth retrying: rate limiting, upstream
// 5xx, or a timeout.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return transientStatus(statusErr.StatusCode)
	}
	var openaiErr *openai.Error
	if errors.As(err, &openaiErr) {
		return transientStatus(openaiErr.StatusCode)
	}
	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return transientStatus(genaiErr.Code)
	}
	var genaiPtr *genai.APIError
	if errors.As(err, &genaiPtr) {
		return transientStatus(genaiPtr.Code)
	}
	return false
}

func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// Limited gates every call to next behind limiter.
type Limited struct {
	next     Completer
	limiter  *rate.Limiter
	provider string
}

func NewLimited(next Completer, limiter *rate.Limiter, provider string) *Limited {
	return &Limited{next: next, limiter: limiter, provider: provider}
}

func (l *Limited) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	start := time.Now()
	resp, err := l.next.Complete(ctx, req)
	metrics.RecordAIRequest(l.provider, req.Model, metrics.StatusOf(err), time.Since(start).Seconds())
	if err != nil {
		log.Warn("AI request failed", "provider", l.provider, "model", req.Model, "err", err)
		return nil, err
	}
	log.Debug("AI request finished", "provider", l.provider, "model", resp.Model, "took", time.Since(start))
	return resp, nil
}
