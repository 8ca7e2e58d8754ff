// internal/usage/usage_cache.go

// Package usage enforces daily per-model request quotas.
package usage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"NIRA-Go/internal/kv"
)

// ErrLimitExceeded is returned by Allow when the day's quota is used up.
var ErrLimitExceeded = errors.New("daily usage limit exceeded")

const usageKey = "usage"

// DefaultLimits are the per-day quotas of the Perplexity models.
var DefaultLimits = map[string]int{
	"sonar-pro":       3,
	"sonar-reasoning": 5,
	"sonar":           15,
}

// record is the persisted document; counts reset when Date changes.
type record struct {
	Date   string         `json:"date"`
	Counts map[string]int `json:"counts"`
}

// Status is the quota state of one model for today.
type Status struct {
	Allowed   bool
	Current   int
	Limit     int
	Remaining int
}

// UsageCache counts requests per model per day. The day boundary follows
// the configured location.
type UsageCache struct {
	store    kv.Store
	limits   map[string]int
	location *time.Location
	now      func() time.Time
	mutex    sync.Mutex
}

type Option func(*UsageCache)

func WithLimits(limits map[string]int) Option {
	return func(u *UsageCache) {
		u.limits = limits
	}
}

func WithClock(now func() time.Time) Option {
	return func(u *UsageCache) {
		u.now = now
	}
}

func NewUsageCache(store kv.Store, loc *time.Location, opts ...Option) *UsageCache {
	if loc == nil {
		loc = time.UTC
	}
	u := &UsageCache{
		store:    store,
		limits:   DefaultLimits,
		location: loc,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Limits returns a copy of the configured quotas.
func (u *UsageCache) Limits() map[string]int {
	out := make(map[string]int, len(u.limits))
	for model, limit := range u.limits {
		out[model] = limit
	}
	return out
}

// Models lists limited models ordered by ascending quota.
func (u *UsageCache) Models() []string {
	models := make([]string, 0, len(u.limits))
	for model := range u.limits {
		models = append(models, model)
	}
	sort.Slice(models, func(i, j int) bool {
		if u.limits[models[i]] != u.limits[models[j]] {
			return u.limits[models[i]] < u.limits[models[j]]
		}
		return models[i] < models[j]
	})
	return models
}

// Check reports today's usage of model. Unknown models have a zero limit.
func (u *UsageCache) Check(ctx context.Context, model string) Status {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	rec := u.load(ctx)
	return u.status(rec, model)
}

// Allow is Check as an error: ErrLimitExceeded when model is out of quota.
func (u *UsageCache) Allow(ctx context.Context, model string) (Status, error) {
	status := u.Check(ctx, model)
	if !status.Allowed {
		return status, fmt.Errorf("%s: %w", model, ErrLimitExceeded)
	}
	return status, nil
}

// Increment records one request for model and returns today's count.
func (u *UsageCache) Increment(ctx context.Context, model string) (int, error) {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	rec := u.load(ctx)
	rec.Counts[model]++
	if err := kv.SetJSON(ctx, u.store, usageKey, rec); err != nil {
		return rec.Counts[model], fmt.Errorf("save usage: %w", err)
	}
	return rec.Counts[model], nil
}

func (u *UsageCache) status(rec *record, model string) Status {
	current := rec.Counts[model]
	limit := u.limits[model]
	return Status{
		Allowed:   current < limit,
		Current:   current,
		Limit:     limit,
		Remaining: max(0, limit-current),
	}
}

func (u *UsageCache) today() string {
	return u.now().In(u.location).Format(time.DateOnly)
}

// load returns today's record. Read failures and a past date both yield a
// fresh record.
func (u *UsageCache) load(ctx context.Context) *record {
	today := u.today()
	rec := &record{}
	if err := kv.GetJSON(ctx, u.store, usageKey, rec); err != nil && !errors.Is(err, kv.ErrNotFound) {
		log.Error("Failed to load usage", "err", err)
	}
	if rec.Date != today || rec.Counts == nil {
		if rec.Date != "" && rec.Date != today {
			log.Info("Usage counters reset for new day", "previous", rec.Date, "today", today)
		}
		rec = &record{Date: today, Counts: make(map[string]int)}
	}
	return rec
}
