// internal/scheduler/scheduler.go

// Package scheduler runs cron-triggered maintenance and posting tasks.
// Every tick is an isolated unit of work: an error or panic in one tick
// is logged and never reaches the next.
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"NIRA-Go/internal/metrics"
)

// Task is one scheduled job. An empty Spec disables the task.
type Task struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler wraps a cron runner bound to one time zone.
type Scheduler struct {
	cron     *cron.Cron
	parser   cron.Parser
	location *time.Location
	timeout  time.Duration

	mu      sync.Mutex
	tasks   map[string]Task
	skipped []string

	ctx    context.Context
	cancel context.CancelFunc
}

// DefaultTickTimeout bounds a single tick.
const DefaultTickTimeout = 5 * time.Minute

// New creates a scheduler evaluating cron expressions in loc.
func New(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		location: loc,
		timeout:  DefaultTickTimeout,
		tasks:    make(map[string]Task),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Register schedules task. Invalid or empty specs leave the task
// unscheduled and recorded in Skipped; the task can still be run with RunNow.
func (s *Scheduler) Register(task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.Name]; exists {
		return fmt.Errorf("task %q already registered", task.Name)
	}
	s.tasks[task.Name] = task

	if task.Spec == "" {
		log.Info("Task disabled (no schedule)", "task", task.Name)
		s.skipped = append(s.skipped, task.Name)
		return nil
	}

	schedule, err := s.parser.Parse(task.Spec)
	if err != nil {
		log.Error("Invalid cron expression, task not scheduled", "task", task.Name, "spec", task.Spec, "err", err)
		s.skipped = append(s.skipped, task.Name)
		return fmt.Errorf("parse schedule for %q: %w", task.Name, err)
	}

	s.cron.Schedule(schedule, cron.FuncJob(func() {
		_ = s.RunTick(s.ctx, task)
	}))
	log.Info("Task scheduled", "task", task.Name, "spec", task.Spec, "timezone", s.location.String())
	return nil
}

// RegisterAll registers every task, logging rather than returning errors.
func (s *Scheduler) RegisterAll(tasks ...Task) {
	for _, task := range tasks {
		if err := s.Register(task); err != nil {
			log.Warn("Task registration failed", "task", task.Name, "err", err)
		}
	}
}

// Skipped lists tasks that were registered but not scheduled.
func (s *Scheduler) Skipped() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.skipped...)
}

// Tasks lists registered task names.
func (s *Scheduler) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunTick executes one tick of task inside the recover/log boundary.
// The returned error is informational; cron ignores it.
func (s *Scheduler) RunTick(ctx context.Context, task Task) (err error) {
	tickID := uuid.NewString()
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	defer func() {
		status := metrics.StatusOf(err)
		if rec := recover(); rec != nil {
			status = metrics.StatusPanic
			err = fmt.Errorf("task %q panicked: %v", task.Name, rec)
			log.Error("PANIC in scheduled task",
				"task", task.Name,
				"tick", tickID,
				"panic", rec,
				"stack_trace", string(debug.Stack()))
		} else if err != nil {
			log.Error("Scheduled task failed", "task", task.Name, "tick", tickID, "err", err)
		} else {
			log.Debug("Scheduled task finished", "task", task.Name, "tick", tickID, "took", time.Since(start))
		}
		metrics.RecordTick(task.Name, status, time.Since(start).Seconds())
	}()

	log.Debug("Scheduled task starting", "task", task.Name, "tick", tickID)
	return task.Run(ctx)
}

// RunNow runs a registered task immediately, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	task, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown task %q", name)
	}
	return s.RunTick(ctx, task)
}

// Start begins firing scheduled ticks.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info("Scheduler started", "tasks", len(s.cron.Entries()))
}

// Stop prevents new ticks and lets running ones finish. Ticks still
// running when ctx is done are cancelled.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	defer s.cancel()
	select {
	case <-done.Done():
		log.Info("Scheduler stopped")
	case <-ctx.Done():
		log.Warn("Scheduler stop timed out, cancelling running ticks")
	}
}
