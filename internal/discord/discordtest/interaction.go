// internal/discord/discordtest/interaction.go

// Package discordtest provides an in-memory discord.Interaction for tests.
package discordtest

import (
	"context"
	"sync"

	"NIRA-Go/internal/discord"
)

// Call is one recorded response.
type Call struct {
	Kind     string // defer, reply, edit, update
	Response *discord.Response
}

// Interaction is a scripted discord.Interaction that records every
// response it receives.
type Interaction struct {
	IDValue     string
	User        string
	Channel     string
	Command     string
	Custom      string
	Strings     map[string]string
	Bools       map[string]bool
	FailRespond error

	mu        sync.Mutex
	responded bool
	calls     []Call
}

var _ discord.Interaction = (*Interaction)(nil)

// NewCommand builds a slash command interaction.
func NewCommand(id, user, command string) *Interaction {
	return &Interaction{
		IDValue: id,
		User:    user,
		Channel: "channel-1",
		Command: command,
		Strings: map[string]string{},
		Bools:   map[string]bool{},
	}
}

// NewComponent builds a button click interaction.
func NewComponent(id, user, customID string) *Interaction {
	return &Interaction{IDValue: id, User: user, Channel: "channel-1", Custom: customID}
}

func (f *Interaction) ID() string          { return f.IDValue }
func (f *Interaction) UserID() string      { return f.User }
func (f *Interaction) ChannelID() string   { return f.Channel }
func (f *Interaction) CommandName() string { return f.Command }
func (f *Interaction) CustomID() string    { return f.Custom }

func (f *Interaction) StringOption(name string) (string, bool) {
	v, ok := f.Strings[name]
	return v, ok
}

func (f *Interaction) BoolOption(name string) (bool, bool) {
	v, ok := f.Bools[name]
	return v, ok
}

func (f *Interaction) Responded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.responded
}

func (f *Interaction) Defer(context.Context) error {
	return f.record("defer", nil, true)
}

func (f *Interaction) Reply(_ context.Context, resp *discord.Response) error {
	return f.record("reply", resp, true)
}

func (f *Interaction) EditReply(_ context.Context, resp *discord.Response) error {
	return f.record("edit", resp, false)
}

func (f *Interaction) Update(_ context.Context, resp *discord.Response) error {
	return f.record("update", resp, true)
}

// Calls returns every recorded response in order.
func (f *Interaction) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Last returns the most recent response, or nil.
func (f *Interaction) Last() *Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	c := f.calls[len(f.calls)-1]
	return &c
}

func (f *Interaction) record(kind string, resp *discord.Response, marks bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailRespond != nil {
		return f.FailRespond
	}
	f.calls = append(f.calls, Call{Kind: kind, Response: resp})
	if marks {
		f.responded = true
	}
	return nil
}
