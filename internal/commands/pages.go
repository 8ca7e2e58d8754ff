// internal/commands/pages.go

package commands

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"NIRA-Go/internal/conversation"
	"NIRA-Go/internal/discord"
)

// pages is the button half of a paginated command. Embedding it gives a
// command Prefix and HandleComponent.
type pages struct {
	paginator *conversation.Paginator
	view      discord.PageView
}

func newPages(cache *conversation.ConversationCache, view discord.PageView) pages {
	return pages{paginator: conversation.NewPaginator(cache, view.Prefix), view: view}
}

func (p pages) Prefix() string {
	return p.paginator.Prefix()
}

// HandleComponent moves to the clicked page. Records that expired or were
// swept get an ephemeral notice instead; the AI is never called again.
func (p pages) HandleComponent(ctx context.Context, in discord.Interaction) error {
	result, err := p.paginator.Handle(ctx, in.CustomID())
	if err != nil {
		return fmt.Errorf("resolve page button: %w", err)
	}
	if result.Expired {
		log.Info("Pagination on expired conversation", "interactionId", result.InteractionID, "userId", in.UserID())
		return in.Reply(ctx, discord.ExpiredResponse())
	}
	return in.Update(ctx, discord.PageResponse(p.view, result.Page, result.InteractionID))
}

// publish stores a new answer under the interaction id and shows page one.
// The answer is still shown when it cannot be stored; its buttons will
// just report it as expired.
func (p pages) publish(ctx context.Context, in discord.Interaction, page *conversation.Page) error {
	if err := p.paginator.Cache().Save(ctx, in.ID(), page); err != nil {
		log.Error("Failed to store conversation page", "interactionId", in.ID(), "err", err)
	}
	return in.EditReply(ctx, discord.PageResponse(p.view, page, in.ID()))
}
