// internal/session/session.go

// Package session persists multi-turn AI conversation history per user and
// persona, expiring idle sessions after a fixed TTL.
package session

import (
	"strings"
	"time"
)

// DefaultTTL is how long a session survives without being saved.
const DefaultTTL = time.Hour

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Part is one text fragment of a turn.
type Part struct {
	Text string `json:"text"`
}

// Turn is a single exchange entry in a session's history.
type Turn struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// NewTurn builds a single-part turn.
func NewTurn(role Role, text string) Turn {
	return Turn{Role: role, Parts: []Part{{Text: text}}}
}

// Text joins all parts of the turn.
func (t Turn) Text() string {
	if len(t.Parts) == 1 {
		return t.Parts[0].Text
	}
	var b strings.Builder
	for _, p := range t.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// Session is the persisted record for one session key.
type Session struct {
	Key        string    `json:"key"`
	Persona    string    `json:"persona,omitempty"`
	History    []Turn    `json:"history"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUpdate time.Time `json:"lastUpdate"`
}

// Expired reports whether the session has been idle longer than ttl.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.LastUpdate) > ttl
}

// Key builds the session key for an owner and persona. Owners are user ids
// or "channel_<id>" for shared sessions.
func Key(owner, persona string) string {
	if persona == "" {
		persona = "none"
	}
	return owner + "_" + persona
}

// ChannelOwner is the owner id used for a channel-wide shared session.
func ChannelOwner(channelID string) string {
	return "channel_" + channelID
}

// Append returns history with a new single-part turn added.
func Append(history []Turn, role Role, text string) []Turn {
	return append(history, NewTurn(role, text))
}

// TrimHistory keeps at most max of the newest turns. The kept history
// always starts with a user turn because Gemini rejects histories that
// open with a model turn.
func TrimHistory(history []Turn, max int) []Turn {
	if max <= 0 || len(history) <= max {
		return history
	}
	trimmed := history[len(history)-max:]
	for len(trimmed) > 0 && trimmed[0].Role != RoleUser {
		trimmed = trimmed[1:]
	}
	return append([]Turn(nil), trimmed...)
}
