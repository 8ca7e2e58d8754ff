// internal/commands/gemini.go

package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"

	"NIRA-Go/internal/api"
	"NIRA-Go/internal/conversation"
	"NIRA-Go/internal/discord"
	"NIRA-Go/internal/session"
)

// User-facing messages of the gemini command.
const (
	BusyMessage          = "⏳ 이전 질문에 대한 답변을 생성하고 있습니다. 잠시 후 다시 시도해주세요."
	geminiMissingKey     = "Gemini API 키가 설정되지 않았습니다. 관리자에게 문의하세요."
	geminiMissingPrompt  = "질문(prompt)을 입력해주세요."
	geminiResetDone      = "🧹 대화 기록을 초기화했습니다."
	geminiResetNothing   = "초기화할 대화 기록이 없습니다."
	geminiDefaultPersona = "none"
)

// Persona is a system prompt the user can pick. Sessions are kept per
// persona.
type Persona struct {
	Key    string
	Label  string
	System string
}

// Personas available to the gemini command.
var Personas = []Persona{
	{Key: "none", Label: "기본", System: "You are a helpful assistant. Answer in Korean unless requested otherwise."},
	{Key: "friend", Label: "친구", System: "You are the user's close friend. Reply casually in Korean (반말), warmly and briefly."},
	{Key: "teacher", Label: "선생님", System: "You are a patient teacher. Explain step by step in Korean with short examples."},
	{Key: "cat", Label: "고양이", System: "You are a cat who can talk. Answer in Korean and end sentences with '냥'."},
}

func persona(key string) Persona {
	for _, p := range Personas {
		if p.Key == key {
			return p
		}
	}
	return Personas[0]
}

// GeminiOptions tunes the gemini command.
type GeminiOptions struct {
	Model     string
	MaxTokens int
	// MaxHistory caps the stored turns per session.
	MaxHistory int
}

// Gemini answers prompts with optional per-user or per-channel memory.
type Gemini struct {
	pages
	ai       api.Completer
	sessions *session.Store
	guard    *session.Guard
	opts     GeminiOptions
}

func NewGemini(ai api.Completer, sessions *session.Store, guard *session.Guard, cache *conversation.ConversationCache, opts GeminiOptions) *Gemini {
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = 20
	}
	return &Gemini{
		pages:    newPages(cache, discord.PageView{Prefix: "gemini:", Title: "✨ Gemini AI의 답변", Color: 0x4285F4}),
		ai:       ai,
		sessions: sessions,
		guard:    guard,
		opts:     opts,
	}
}

func (g *Gemini) Kind() Kind { return KindPaginated }

func (g *Gemini) Definition() *discordgo.ApplicationCommand {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(Personas))
	for _, p := range Personas {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: p.Label, Value: p.Key})
	}
	return &discordgo.ApplicationCommand{
		Name:              "gemini",
		NameLocalizations: &map[discordgo.Locale]string{discordgo.Korean: "제미나이"},
		Description:       "Gemini AI에게 질문합니다.",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "prompt", Description: "질문 내용"},
			{Type: discordgo.ApplicationCommandOptionString, Name: "persona", Description: "답변 스타일", Choices: choices},
			{Type: discordgo.ApplicationCommandOptionBoolean, Name: "session", Description: "이전 대화를 기억합니다 (기본: 켜짐)"},
			{Type: discordgo.ApplicationCommandOptionBoolean, Name: "shared", Description: "채널 전체가 대화를 공유합니다"},
			{Type: discordgo.ApplicationCommandOptionBoolean, Name: "reset", Description: "대화 기록을 초기화합니다"},
		},
	}
}

// sessionKey scopes the session to the user, or to the channel when shared.
func (g *Gemini) sessionKey(in discord.Interaction, p Persona) string {
	owner := in.UserID()
	if shared, _ := in.BoolOption("shared"); shared {
		owner = session.ChannelOwner(in.ChannelID())
	}
	return session.Key(owner, p.Key)
}

func (g *Gemini) Execute(ctx context.Context, in discord.Interaction) error {
	personaKey, _ := in.StringOption("persona")
	if personaKey == "" {
		personaKey = geminiDefaultPersona
	}
	p := persona(personaKey)
	key := g.sessionKey(in, p)
	prompt, _ := in.StringOption("prompt")

	if reset, _ := in.BoolOption("reset"); reset {
		msg := geminiResetNothing
		if g.sessions.Delete(ctx, key) {
			msg = geminiResetDone
		}
		log.Info("Gemini session reset requested", "key", key)
		if prompt == "" {
			return in.Reply(ctx, &discord.Response{Content: msg, Ephemeral: true})
		}
	}
	if prompt == "" {
		return in.Reply(ctx, &discord.Response{Content: geminiMissingPrompt, Ephemeral: true})
	}

	useSession := true
	if v, ok := in.BoolOption("session"); ok {
		useSession = v
	}

	if useSession {
		release, err := g.guard.Acquire(ctx, key)
		if errors.Is(err, session.ErrBusy) {
			log.Info("Rejected concurrent Gemini request", "key", key)
			return in.Reply(ctx, &discord.Response{Content: BusyMessage, Ephemeral: true})
		}
		if err != nil {
			return err
		}
		defer release()
	}

	if err := in.Defer(ctx); err != nil {
		return fmt.Errorf("defer reply: %w", err)
	}

	var history []session.Turn
	if useSession {
		if sess, ok := g.sessions.Load(ctx, key); ok {
			history = sess.History
		}
	}

	messages := make([]api.Message, 0, len(history)+1)
	for _, turn := range history {
		messages = append(messages, api.Message{Role: string(turn.Role), Content: turn.Text()})
	}
	messages = append(messages, api.Message{Role: api.RoleUser, Content: prompt})

	resp, err := g.ai.Complete(ctx, api.Request{
		Model:     g.opts.Model,
		System:    p.System,
		Messages:  messages,
		MaxTokens: g.opts.MaxTokens,
	})
	if errors.Is(err, api.ErrUnavailable) {
		return in.EditReply(ctx, &discord.Response{Content: geminiMissingKey})
	}
	if err != nil {
		return fmt.Errorf("gemini completion: %w", err)
	}

	if useSession {
		history = session.Append(history, session.RoleUser, prompt)
		history = session.Append(history, session.RoleAssistant, resp.Text)
		history = session.TrimHistory(history, g.opts.MaxHistory)
		if err := g.sessions.Save(ctx, key, p.Key, history); err != nil {
			log.Error("Failed to save Gemini session", "key", key, "err", err)
		}
	}

	page := conversation.NewPage(resp.Text, prompt, resp.Model, p.Label, useSession)
	return g.publish(ctx, in, page)
}
