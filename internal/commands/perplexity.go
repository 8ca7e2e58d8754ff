// internal/commands/perplexity.go

package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"

	"NIRA-Go/internal/api"
	"NIRA-Go/internal/conversation"
	"NIRA-Go/internal/discord"
	"NIRA-Go/internal/usage"
)

const (
	perplexityColor      = 0x20B2AA
	perplexityMissingKey = "Perplexity API 키가 설정되지 않았습니다. 관리자에게 문의하세요."
	maxCitations         = 10
)

var modelLabels = map[string]string{
	api.ModelSonarPro:       "Sonar Pro (일반)",
	api.ModelSonarReasoning: "Sonar Reasoning (추론)",
	api.ModelSonar:          "Sonar (경량)",
}

// Perplexity answers web-grounded questions under a daily quota per model.
type Perplexity struct {
	pages
	ai      api.Completer
	usage   *usage.UsageCache
	noLimit map[string]struct{}
	now     func() time.Time
}

func NewPerplexity(ai api.Completer, quota *usage.UsageCache, cache *conversation.ConversationCache, noLimitUsers map[string]struct{}) *Perplexity {
	return &Perplexity{
		pages:   newPages(cache, discord.PageView{Prefix: "perplexity:", Title: "🔎 Perplexity AI 검색 결과", Color: perplexityColor}),
		ai:      ai,
		usage:   quota,
		noLimit: noLimitUsers,
		now:     time.Now,
	}
}

func (p *Perplexity) Kind() Kind { return KindPaginated }

func (p *Perplexity) Definition() *discordgo.ApplicationCommand {
	limits := p.usage.Limits()
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(limits))
	for _, model := range p.usage.Models() {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  fmt.Sprintf("%s, 하루 %d회", modelLabel(model), limits[model]),
			Value: model,
		})
	}
	return &discordgo.ApplicationCommand{
		Name:        "perplexity",
		Description: "Perplexity AI로 웹 검색 기반 답변을 받습니다. 질문 없이 실행하면 사용량을 보여줍니다.",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "prompt", Description: "질문 내용"},
			{Type: discordgo.ApplicationCommandOptionString, Name: "model", Description: "사용할 모델 (기본: sonar)", Choices: choices},
		},
	}
}

func modelLabel(model string) string {
	if label, ok := modelLabels[model]; ok {
		return label
	}
	return model
}

func (p *Perplexity) Execute(ctx context.Context, in discord.Interaction) error {
	if err := in.Defer(ctx); err != nil {
		return fmt.Errorf("defer reply: %w", err)
	}

	prompt, _ := in.StringOption("prompt")
	if prompt == "" {
		return in.EditReply(ctx, &discord.Response{Embeds: []*discordgo.MessageEmbed{p.statusEmbed(ctx)}})
	}

	model, _ := in.StringOption("model")
	if model == "" {
		model = api.ModelSonar
	}

	_, unlimited := p.noLimit[in.UserID()]
	if !unlimited {
		status, err := p.usage.Allow(ctx, model)
		if errors.Is(err, usage.ErrLimitExceeded) {
			log.Info("Perplexity quota exhausted", "model", model, "userId", in.UserID())
			return in.EditReply(ctx, &discord.Response{Content: fmt.Sprintf(
				"🚫 **일일 사용량 초과**\n'%s' 모델의 하루 사용 한도(%d회)를 모두 사용했습니다.\n내일 다시 시도하거나 다른 모델을 사용해주세요.",
				model, status.Limit)})
		}
	}

	log.Info("Perplexity request", "model", model, "maxTokens", api.MaxTokensFor(model))
	resp, err := p.ai.Complete(ctx, api.Request{
		Model:     model,
		System:    api.PerplexitySystemPrompt,
		Messages:  []api.Message{{Role: api.RoleUser, Content: prompt}},
		MaxTokens: api.MaxTokensFor(model),
	})
	if errors.Is(err, api.ErrUnavailable) {
		return in.EditReply(ctx, &discord.Response{Content: perplexityMissingKey})
	}
	if err != nil {
		return fmt.Errorf("perplexity completion: %w", err)
	}

	// Quota is charged against the requested model even after a fallback.
	if !unlimited {
		if _, err := p.usage.Increment(ctx, model); err != nil {
			log.Error("Failed to record Perplexity usage", "model", model, "err", err)
		}
	}

	page := conversation.NewPage(withCitations(resp.Text, resp.Citations), prompt, resp.Model, "", false)
	return p.publish(ctx, in, page)
}

// withCitations appends the numbered source list so it is paginated and
// stored with the answer.
func withCitations(text string, citations []string) string {
	if len(citations) == 0 {
		return text
	}
	if len(citations) > maxCitations {
		citations = citations[:maxCitations]
	}
	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n\n**참조 (Citations)**")
	for i, c := range citations {
		fmt.Fprintf(&b, "\n[%d] %s", i+1, c)
	}
	return b.String()
}

func (p *Perplexity) statusEmbed(ctx context.Context) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "📊 Perplexity 일일 사용량 확인",
		Description: "오늘 사용한 횟수와 남은 횟수입니다. (매일 자정 초기화)",
		Color:       perplexityColor,
		Timestamp:   p.now().Format(time.RFC3339),
	}
	for _, model := range p.usage.Models() {
		status := p.usage.Check(ctx, model)
		value := fmt.Sprintf("`%s` %d%%\n사용: **%d** / 한도: **%d** (남음: %d)",
			usageBar(status.Current, status.Limit, 10), percent(status.Current, status.Limit),
			status.Current, status.Limit, status.Remaining)
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: modelLabel(model), Value: value})
	}
	return embed
}

func percent(used, limit int) int {
	if limit <= 0 {
		return 100
	}
	return min(100, (used*100+limit/2)/limit)
}

func usageBar(used, limit, width int) string {
	filled := (percent(used, limit)*width + 50) / 100
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
