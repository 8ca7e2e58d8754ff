// internal/discord/router.go

package discord

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
)

// GenericErrorMessage is shown when a handler fails unexpectedly.
const GenericErrorMessage = "명령어 실행 중 오류가 발생했습니다!"

// DefaultHandlerTimeout bounds one interaction. Discord keeps interaction
// tokens valid for 15 minutes.
const DefaultHandlerTimeout = 3 * time.Minute

// Dispatcher routes interactions to commands.
type Dispatcher interface {
	Dispatch(ctx context.Context, in Interaction) error
	DispatchComponent(ctx context.Context, in Interaction) error
}

// Router is the discordgo event handler for interactions. Each
// interaction is one unit of work: failures and panics stop here.
type Router struct {
	dispatcher Dispatcher
	timeout    time.Duration
}

func NewRouter(dispatcher Dispatcher, timeout time.Duration) *Router {
	if timeout <= 0 {
		timeout = DefaultHandlerTimeout
	}
	return &Router{dispatcher: dispatcher, timeout: timeout}
}

// HandleInteraction is registered with Session.AddHandler.
func (r *Router) HandleInteraction(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	r.Route(NewInteraction(s, ic), ic.Type)
}

// Route dispatches in according to its type.
func (r *Router) Route(in Interaction, typ discordgo.InteractionType) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("PANIC in interaction handler",
				"interactionId", in.ID(),
				"panic", rec,
				"stack_trace", string(debug.Stack()))
			ReplyError(ctx, in, GenericErrorMessage)
		}
	}()

	var err error
	switch typ {
	case discordgo.InteractionApplicationCommand:
		err = r.dispatcher.Dispatch(ctx, in)
	case discordgo.InteractionMessageComponent:
		err = r.dispatcher.DispatchComponent(ctx, in)
	default:
		log.Debug("Ignoring interaction", "type", typ.String(), "interactionId", in.ID())
		return
	}
	if err != nil {
		log.Warn("Interaction handling failed", "interactionId", in.ID(), "err", err)
	}
}

// ReplyError tells the user something went wrong, using whichever response
// path is still open.
func ReplyError(ctx context.Context, in Interaction, message string) {
	resp := &Response{Content: message, Ephemeral: true}
	var err error
	if in.Responded() {
		err = in.EditReply(ctx, resp)
	} else {
		err = in.Reply(ctx, resp)
	}
	if err != nil {
		log.Error("Failed to send error reply", "interactionId", in.ID(), "err", err)
	}
}
