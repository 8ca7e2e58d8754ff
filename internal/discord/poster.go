// internal/discord/poster.go

package discord

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Poster publishes and updates one message at a time in a fixed target.
type Poster interface {
	Send(ctx context.Context, msg *discordgo.MessageSend) (string, error)
	Edit(ctx context.Context, messageID string, msg *discordgo.MessageSend) error
}

// channelAPI is the subset of *discordgo.Session used by ChannelPoster.
type channelAPI interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// webhookAPI is the subset of *discordgo.Session used by WebhookPoster.
type webhookAPI interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
	WebhookMessageEdit(webhookID, token, messageID string, data *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// ChannelPoster posts as the bot user into a channel.
type ChannelPoster struct {
	api       channelAPI
	channelID string
}

func NewChannelPoster(api channelAPI, channelID string) *ChannelPoster {
	return &ChannelPoster{api: api, channelID: channelID}
}

func (p *ChannelPoster) Send(ctx context.Context, msg *discordgo.MessageSend) (string, error) {
	m, err := p.api.ChannelMessageSendComplex(p.channelID, msg, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("send to channel %s: %w", p.channelID, err)
	}
	return m.ID, nil
}

func (p *ChannelPoster) Edit(ctx context.Context, messageID string, msg *discordgo.MessageSend) error {
	edit := discordgo.NewMessageEdit(p.channelID, messageID).
		SetContent(msg.Content).
		SetEmbeds(msg.Embeds)
	if _, err := p.api.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("edit message %s in channel %s: %w", messageID, p.channelID, err)
	}
	return nil
}

// WebhookPoster posts through an incoming webhook.
type WebhookPoster struct {
	api   webhookAPI
	id    string
	token string
}

func NewWebhookPoster(api webhookAPI, webhookURL string) (*WebhookPoster, error) {
	id, token, err := ParseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}
	return &WebhookPoster{api: api, id: id, token: token}, nil
}

func (p *WebhookPoster) Send(ctx context.Context, msg *discordgo.MessageSend) (string, error) {
	// wait=true makes Discord return the created message so its id can be tracked.
	m, err := p.api.WebhookExecute(p.id, p.token, true, &discordgo.WebhookParams{
		Content: msg.Content,
		Embeds:  msg.Embeds,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("execute webhook %s: %w", p.id, err)
	}
	return m.ID, nil
}

func (p *WebhookPoster) Edit(ctx context.Context, messageID string, msg *discordgo.MessageSend) error {
	content := msg.Content
	embeds := msg.Embeds
	_, err := p.api.WebhookMessageEdit(p.id, p.token, messageID, &discordgo.WebhookEdit{
		Content: &content,
		Embeds:  &embeds,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("edit webhook message %s: %w", messageID, err)
	}
	return nil
}

// ParseWebhookURL extracts the id and token from
// https://discord.com/api/webhooks/{id}/{token}.
func ParseWebhookURL(raw string) (string, string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("parse webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("webhook url %q has no /webhooks/{id}/{token} path", u.Redacted())
}
