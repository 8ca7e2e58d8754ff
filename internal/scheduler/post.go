// internal/scheduler/post.go

package scheduler

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"

	"NIRA-Go/internal/discord"
	"NIRA-Go/internal/tracker"
)

// PostState is the lifecycle state of a recurring post.
type PostState int

const (
	NoMessageYet PostState = iota
	MessagePosted
)

func (s PostState) String() string {
	if s == MessagePosted {
		return "MessagePosted"
	}
	return "NoMessageYet"
}

// RecurringPost is a message that a send tick creates and an edit tick
// refreshes in place. The tracked message id is the only state.
type RecurringPost struct {
	Key     string
	Poster  discord.Poster
	Tracker *tracker.Tracker
	Fetch   func(ctx context.Context) (*discordgo.MessageSend, error)
}

// State reports whether a message id is currently tracked.
func (p *RecurringPost) State(ctx context.Context) PostState {
	if _, ok := p.Tracker.Get(ctx, p.Key); ok {
		return MessagePosted
	}
	return NoMessageYet
}

// Send always posts a new message and records its id.
func (p *RecurringPost) Send(ctx context.Context) error {
	msg, err := p.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("build %s message: %w", p.Key, err)
	}
	return p.send(ctx, msg)
}

// Edit updates the tracked message. Without a tracked id, or when the edit
// fails (e.g. the message was deleted), it posts a new message instead.
func (p *RecurringPost) Edit(ctx context.Context) error {
	msg, err := p.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("build %s message: %w", p.Key, err)
	}

	id, ok := p.Tracker.Get(ctx, p.Key)
	if !ok {
		log.Info("No tracked message, sending a new one", "post", p.Key)
		return p.send(ctx, msg)
	}

	if err := p.Poster.Edit(ctx, id, msg); err != nil {
		log.Warn("Edit failed, sending a new message", "post", p.Key, "messageId", id, "err", err)
		return p.send(ctx, msg)
	}
	log.Info("Recurring post updated", "post", p.Key, "messageId", id)
	return nil
}

func (p *RecurringPost) send(ctx context.Context, msg *discordgo.MessageSend) error {
	id, err := p.Poster.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("send %s message: %w", p.Key, err)
	}
	// The message is already out, so a cancelled tick must still record it.
	if err := p.Tracker.Set(context.WithoutCancel(ctx), p.Key, id); err != nil {
		// The message is out; only the next edit tick loses its target.
		log.Error("Failed to record message id", "post", p.Key, "messageId", id, "err", err)
	}
	log.Info("Recurring post sent", "post", p.Key, "messageId", id)
	return nil
}

// PostTasks builds the send and edit tasks for post. Either spec may be
// empty to leave that tick unscheduled.
func PostTasks(post *RecurringPost, sendSpec, editSpec string) []Task {
	return []Task{
		{Name: post.Key + ":send", Spec: sendSpec, Run: post.Send},
		{Name: post.Key + ":edit", Spec: editSpec, Run: post.Edit},
	}
}
