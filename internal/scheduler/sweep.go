// internal/scheduler/sweep.go

package scheduler

import (
	"context"

	"github.com/charmbracelet/log"

	"NIRA-Go/internal/metrics"
)

// Task names of the maintenance sweeps.
const (
	TaskSweepSessions      = "sweep-sessions"
	TaskSweepConversations = "sweep-conversations"
)

// DefaultSweepSpec runs both sweeps at the top of every hour.
const DefaultSweepSpec = "0 * * * *"

// Sweeper deletes expired records and reports how many it removed.
type Sweeper interface {
	Sweep(ctx context.Context) int
}

// SweepTasks builds the session and conversation maintenance tasks.
func SweepTasks(sessions, conversations Sweeper, spec string) []Task {
	return []Task{
		sweepTask(TaskSweepSessions, "sessions", sessions, spec),
		sweepTask(TaskSweepConversations, "conversations", conversations, spec),
	}
}

func sweepTask(name, store string, s Sweeper, spec string) Task {
	return Task{
		Name: name,
		Spec: spec,
		Run: func(ctx context.Context) error {
			removed := s.Sweep(ctx)
			metrics.RecordSweep(store, removed)
			if removed > 0 {
				log.Info("Expired records removed", "store", store, "count", removed)
			}
			return nil
		},
	}
}
