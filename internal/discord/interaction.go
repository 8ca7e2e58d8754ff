// internal/discord/interaction.go

package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Response is what a handler sends back for an interaction.
type Response struct {
	Content    string
	Embeds     []*discordgo.MessageEmbed
	Components []discordgo.MessageComponent
	Ephemeral  bool
}

// Interaction is the slice of a Discord interaction that handlers use.
// Handlers depend on this instead of discordgo so they can be tested
// without a gateway connection.
type Interaction interface {
	ID() string
	UserID() string
	ChannelID() string
	CommandName() string
	CustomID() string
	StringOption(name string) (string, bool)
	BoolOption(name string) (bool, bool)

	// Responded reports whether Defer, Reply or Update already succeeded.
	Responded() bool
	Defer(ctx context.Context) error
	Reply(ctx context.Context, resp *Response) error
	EditReply(ctx context.Context, resp *Response) error
	Update(ctx context.Context, resp *Response) error
}

type interactionAPI interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type gatewayInteraction struct {
	api       interactionAPI
	i         *discordgo.Interaction
	responded bool
}

// NewInteraction adapts a gateway interaction event.
func NewInteraction(api interactionAPI, ic *discordgo.InteractionCreate) Interaction {
	return &gatewayInteraction{api: api, i: ic.Interaction}
}

func (g *gatewayInteraction) ID() string        { return g.i.ID }
func (g *gatewayInteraction) ChannelID() string { return g.i.ChannelID }

func (g *gatewayInteraction) UserID() string {
	if g.i.Member != nil && g.i.Member.User != nil {
		return g.i.Member.User.ID
	}
	if g.i.User != nil {
		return g.i.User.ID
	}
	return ""
}

func (g *gatewayInteraction) CommandName() string {
	if g.i.Type != discordgo.InteractionApplicationCommand {
		return ""
	}
	return g.i.ApplicationCommandData().Name
}

func (g *gatewayInteraction) CustomID() string {
	if g.i.Type != discordgo.InteractionMessageComponent {
		return ""
	}
	return g.i.MessageComponentData().CustomID
}

func (g *gatewayInteraction) option(name string) *discordgo.ApplicationCommandInteractionDataOption {
	if g.i.Type != discordgo.InteractionApplicationCommand {
		return nil
	}
	for _, opt := range g.i.ApplicationCommandData().Options {
		if opt.Name == name {
			return opt
		}
	}
	return nil
}

func (g *gatewayInteraction) StringOption(name string) (string, bool) {
	opt := g.option(name)
	if opt == nil || opt.Type != discordgo.ApplicationCommandOptionString {
		return "", false
	}
	return opt.StringValue(), true
}

func (g *gatewayInteraction) BoolOption(name string) (bool, bool) {
	opt := g.option(name)
	if opt == nil || opt.Type != discordgo.ApplicationCommandOptionBoolean {
		return false, false
	}
	return opt.BoolValue(), true
}

func (g *gatewayInteraction) Responded() bool { return g.responded }

func (g *gatewayInteraction) Defer(ctx context.Context) error {
	return g.respond(ctx, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
}

func (g *gatewayInteraction) Reply(ctx context.Context, resp *Response) error {
	return g.respond(ctx, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: responseData(resp),
	})
}

func (g *gatewayInteraction) Update(ctx context.Context, resp *Response) error {
	return g.respond(ctx, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: responseData(resp),
	})
}

func (g *gatewayInteraction) EditReply(ctx context.Context, resp *Response) error {
	content := resp.Content
	embeds := resp.Embeds
	components := resp.Components
	if embeds == nil {
		embeds = []*discordgo.MessageEmbed{}
	}
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	_, err := g.api.InteractionResponseEdit(g.i, &discordgo.WebhookEdit{
		Content:    &content,
		Embeds:     &embeds,
		Components: &components,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("edit interaction response: %w", err)
	}
	return nil
}

func (g *gatewayInteraction) respond(ctx context.Context, resp *discordgo.InteractionResponse) error {
	if err := g.api.InteractionRespond(g.i, resp, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("respond to interaction: %w", err)
	}
	g.responded = true
	return nil
}

func responseData(resp *Response) *discordgo.InteractionResponseData {
	data := &discordgo.InteractionResponseData{
		Content:    resp.Content,
		Embeds:     resp.Embeds,
		Components: resp.Components,
	}
	if resp.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return data
}
