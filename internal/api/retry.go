// internal/api/retry.go

package api

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
)

// Retrying retries transient failures with a fixed delay, then makes one
// last attempt on a fallback model.
type Retrying struct {
	next     Completer
	attempts int
	delay    time.Duration
	fallback string
	sleep    func(ctx context.Context, d time.Duration) error
}

// WithRetry wraps next. attempts counts calls on the requested model and is
// at least 1; an empty fallback disables the fallback call.
func WithRetry(next Completer, attempts int, delay time.Duration, fallback string) *Retrying {
	if attempts < 1 {
		attempts = 1
	}
	return &Retrying{next: next, attempts: attempts, delay: delay, fallback: fallback, sleep: sleepContext}
}

func (r *Retrying) Complete(ctx context.Context, req Request) (*Response, error) {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		resp, err := r.next.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !IsTransient(err) {
			return nil, err
		}
		if attempt < r.attempts {
			log.Warn("Transient AI error, retrying", "model", req.Model, "attempt", attempt, "err", err)
			if err := r.sleep(ctx, r.delay); err != nil {
				return nil, errors.Join(lastErr, err)
			}
		}
	}

	if r.fallback == "" || r.fallback == req.Model {
		return nil, lastErr
	}

	log.Warn("Retries exhausted, using fallback model", "model", req.Model, "fallback", r.fallback, "err", lastErr)
	fallbackReq := req
	fallbackReq.Model = r.fallback
	resp, err := r.next.Complete(ctx, fallbackReq)
	if err != nil {
		return nil, errors.Join(lastErr, err)
	}
	return resp, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
