// internal/conversation/page.go

// Package conversation keeps long AI answers split into pages and lets
// button clicks move between pages without calling the model again.
package conversation

import "time"

// Page is one paginated answer.
type Page struct {
	Chunks       []string `json:"chunks"`
	Page         int      `json:"page"`
	Prompt       string   `json:"prompt"`
	UseSession   bool     `json:"useSession"`
	ModelUsed    string   `json:"modelUsed"`
	PersonaLabel string   `json:"personaLabel"`
	// Timestamp is the creation time in Unix milliseconds.
	Timestamp int64 `json:"timestamp"`
}

// NewPage chunks text and starts on the first page.
func NewPage(text, prompt, model, persona string, useSession bool) *Page {
	return &Page{
		Chunks:       Chunk(text, ChunkLimit),
		Prompt:       prompt,
		UseSession:   useSession,
		ModelUsed:    model,
		PersonaLabel: persona,
	}
}

// Total is the number of pages.
func (p *Page) Total() int {
	return len(p.Chunks)
}

// Current returns the chunk under the cursor, clamping a stale cursor.
func (p *Page) Current() string {
	if len(p.Chunks) == 0 {
		return ""
	}
	return p.Chunks[Clamp(p.Page, len(p.Chunks))]
}

// Created converts Timestamp back to a time.
func (p *Page) Created() time.Time {
	return time.UnixMilli(p.Timestamp)
}
