// internal/conversation/paginator.go

package conversation

import (
	"context"

	"github.com/charmbracelet/log"
)

// Result is the outcome of a button click.
type Result struct {
	InteractionID string
	Page          *Page
	// Expired is set when the record is gone; Page is nil in that case.
	Expired bool
}

// Paginator turns button payloads into page moves over a ConversationCache.
type Paginator struct {
	cache  *ConversationCache
	prefix string
}

func NewPaginator(cache *ConversationCache, prefix string) *Paginator {
	return &Paginator{cache: cache, prefix: prefix}
}

// Prefix is the custom id prefix owned by this paginator.
func (p *Paginator) Prefix() string {
	return p.prefix
}

// Cache returns the backing cache.
func (p *Paginator) Cache() *ConversationCache {
	return p.cache
}

// Handle resolves a click. A missing record is reported through
// Result.Expired; only malformed payloads return an error.
func (p *Paginator) Handle(ctx context.Context, customID string) (Result, error) {
	action, interactionID, err := ParseCustomID(p.prefix, customID)
	if err != nil {
		return Result{}, err
	}

	page, ok := p.cache.Load(ctx, interactionID)
	if !ok {
		return Result{InteractionID: interactionID, Expired: true}, nil
	}

	next := action.Apply(page.Page, page.Total())
	if next != page.Page {
		page.Page = next
		if err := p.cache.Save(ctx, interactionID, page); err != nil {
			// The user still sees the new page; only persistence failed.
			log.Warn("Page moved but not persisted", "interactionId", interactionID, "err", err)
		}
	}

	return Result{InteractionID: interactionID, Page: page}, nil
}
