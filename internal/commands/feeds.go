// internal/commands/feeds.go

package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"NIRA-Go/internal/discord"
	"NIRA-Go/internal/feeds"
)

// DigestSource yields a digest, falling back to a placeholder on failure.
type DigestSource interface {
	Digest(ctx context.Context) *feeds.Digest
}

// ScheduleSource yields the current Splatoon rotations.
type ScheduleSource interface {
	Fetch(ctx context.Context) (*feeds.Schedule, error)
}

// Hotdeal shows the latest ppomppu deals.
type Hotdeal struct {
	source DigestSource
	now    func() time.Time
}

func NewHotdeal(source DigestSource) *Hotdeal {
	return &Hotdeal{source: source, now: time.Now}
}

func (h *Hotdeal) Kind() Kind { return KindSimple }

func (h *Hotdeal) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "hotdeal",
		Description: "뽐뿌 핫딜 최신 글을 보여줍니다.",
	}
}

func (h *Hotdeal) Execute(ctx context.Context, in discord.Interaction) error {
	if err := in.Defer(ctx); err != nil {
		return fmt.Errorf("defer reply: %w", err)
	}
	digest := h.source.Digest(ctx)
	return in.EditReply(ctx, &discord.Response{Embeds: []*discordgo.MessageEmbed{discord.DigestEmbed(digest, h.now())}})
}

// News shows the latest headlines of one category.
type News struct {
	source func(category string) (DigestSource, error)
	now    func() time.Time
}

func NewNews() *News {
	return &News{
		source: func(category string) (DigestSource, error) {
			return feeds.NewNewsSource(category)
		},
		now: time.Now,
	}
}

func (n *News) Kind() Kind { return KindSimple }

func (n *News) Definition() *discordgo.ApplicationCommand {
	categories := feeds.NewsCategories()
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(categories))
	for _, c := range categories {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: c, Value: c})
	}
	return &discordgo.ApplicationCommand{
		Name:        "news",
		Description: "연합뉴스 최신 기사를 보여줍니다.",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "category", Description: "뉴스 분야 (기본: 최신기사)", Choices: choices},
		},
	}
}

func (n *News) Execute(ctx context.Context, in discord.Interaction) error {
	category, _ := in.StringOption("category")
	if category == "" {
		category = feeds.DefaultNewsCategory
	}
	source, err := n.source(category)
	if err != nil {
		return in.Reply(ctx, &discord.Response{Content: fmt.Sprintf("알 수 없는 뉴스 분야입니다: %s", category), Ephemeral: true})
	}
	if err := in.Defer(ctx); err != nil {
		return fmt.Errorf("defer reply: %w", err)
	}
	digest := source.Digest(ctx)
	return in.EditReply(ctx, &discord.Response{Embeds: []*discordgo.MessageEmbed{discord.DigestEmbed(digest, n.now())}})
}

// Splatoon shows the current Splatoon 3 rotations.
type Splatoon struct {
	source ScheduleSource
}

func NewSplatoon(source ScheduleSource) *Splatoon {
	return &Splatoon{source: source}
}

func (s *Splatoon) Kind() Kind { return KindSimple }

func (s *Splatoon) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "splatoon",
		Description: "스플래툰 3 현재 스케줄을 보여줍니다.",
	}
}

func (s *Splatoon) Execute(ctx context.Context, in discord.Interaction) error {
	if err := in.Defer(ctx); err != nil {
		return fmt.Errorf("defer reply: %w", err)
	}
	schedule, err := s.source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch splatoon schedule: %w", err)
	}
	if schedule.Empty() {
		return in.EditReply(ctx, &discord.Response{Content: "현재 표시할 스케줄이 없습니다."})
	}
	return in.EditReply(ctx, &discord.Response{Embeds: discord.ScheduleEmbeds(schedule)})
}

// Ping reports gateway latency.
type Ping struct {
	latency func() time.Duration
}

// NewPing takes the heartbeat latency getter of the gateway session.
func NewPing(latency func() time.Duration) *Ping {
	return &Ping{latency: latency}
}

func (p *Ping) Kind() Kind { return KindSimple }

func (p *Ping) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "ping",
		Description: "봇의 응답 속도를 확인합니다.",
	}
}

func (p *Ping) Execute(ctx context.Context, in discord.Interaction) error {
	return in.Reply(ctx, &discord.Response{
		Content: fmt.Sprintf("🏓 Pong! 지연 시간: %dms", p.latency().Milliseconds()),
	})
}
