// internal/discord/render.go

package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"NIRA-Go/internal/conversation"
	"NIRA-Go/internal/feeds"
)

// Discord limits.
const (
	maxEmbedsPerMessage = 10
	maxFieldName        = 256
	maxFieldValue       = 1024
	maxPageButtons      = 5
)

var battleStyle = map[feeds.BattleKind]struct {
	title string
	color int
}{
	feeds.BattleRegular:   {title: "영역 배틀 (레귤러 매치)", color: 0x00CD00},
	feeds.BattleChallenge: {title: "랭크 매치 (챌린지)", color: 0xFF8C00},
	feeds.BattleOpen:      {title: "랭크 매치 (오픈)", color: 0xFF4500},
}

// DigestEmbed renders a feed digest.
func DigestEmbed(d *feeds.Digest, now time.Time) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       d.Title,
		URL:         d.URL,
		Description: d.Description,
		Color:       d.Color,
		Timestamp:   now.Format(time.RFC3339),
	}
	if d.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: d.Footer}
	}
	if d.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: d.Thumbnail}
	}

	for idx, item := range d.Items {
		var value strings.Builder
		if item.Author != "" {
			value.WriteString("👤 " + item.Author)
		}
		if !item.Published.IsZero() {
			if value.Len() > 0 {
				value.WriteString(" | ")
			}
			value.WriteString(fmt.Sprintf("🕒 <t:%d:f>", item.Published.Unix()))
		}
		if item.Snippet != "" {
			value.WriteString("\n" + item.Snippet)
		}
		value.WriteString(fmt.Sprintf("\n[게시글 보기](%s)", item.Link))

		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  feeds.Truncate(fmt.Sprintf("%d. %s", idx+1, item.Title), maxFieldName),
			Value: feeds.Truncate(strings.TrimSpace(value.String()), maxFieldValue),
		})
	}

	return embed
}

// DigestMessage wraps DigestEmbed in a message.
func DigestMessage(d *feeds.Digest, now time.Time) *discordgo.MessageSend {
	return &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{DigestEmbed(d, now)}}
}

func timeRange(start, end time.Time) string {
	return fmt.Sprintf("<t:%d:t> ~ <t:%d:t> (<t:%d:R>)", start.Unix(), end.Unix(), end.Unix())
}

// ScheduleEmbeds renders one embed per mode, capped at Discord's limit.
func ScheduleEmbeds(s *feeds.Schedule) []*discordgo.MessageEmbed {
	var embeds []*discordgo.MessageEmbed

	for _, battle := range s.Battles {
		style := battleStyle[battle.Kind]
		embed := &discordgo.MessageEmbed{Title: style.title, Color: style.color}
		for _, r := range battle.Rotations {
			names := make([]string, 0, len(r.Stages))
			for _, st := range r.Stages {
				names = append(names, st.Name)
			}
			name := fmt.Sprintf("%s (%s)", strings.Join(names, ", "), r.Rule)
			if r.Fest {
				name = "🎉 " + name
			}
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name:  feeds.Truncate(name, maxFieldName),
				Value: timeRange(r.Start, r.End),
			})
		}
		if len(battle.Rotations) > 0 && len(battle.Rotations[0].Stages) > 0 && battle.Rotations[0].Stages[0].Image != "" {
			embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: battle.Rotations[0].Stages[0].Image}
		}
		embeds = append(embeds, embed)
	}

	for idx, run := range s.Salmon {
		title := "새먼 런"
		if idx > 0 {
			title = "다음 새먼 런"
		}
		embed := &discordgo.MessageEmbed{
			Title: title,
			Color: 0xFF69B4,
			Fields: []*discordgo.MessageEmbedField{{
				Name:  "맵: " + run.Stage.Name,
				Value: fmt.Sprintf("시간: %s\n무기: %s", timeRange(run.Start, run.End), strings.Join(run.Weapons, ", ")),
			}},
		}
		if run.Stage.Image != "" {
			embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: run.Stage.Image}
		}
		embeds = append(embeds, embed)
	}

	for _, ev := range s.Events {
		embed := &discordgo.MessageEmbed{
			Title:       "이벤트 매치: " + ev.Name,
			Color:       0x8A2BE2,
			Description: feeds.Truncate(ev.Regulation, 4096),
			Fields: []*discordgo.MessageEmbedField{{
				Name:  feeds.Truncate("스테이지: "+strings.Join(ev.Stages, ", "), maxFieldName),
				Value: "규칙: " + ev.Rule,
			}},
		}
		for idx, p := range ev.Periods {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name:  fmt.Sprintf("%d번째 일정", idx+1),
				Value: fmt.Sprintf("<t:%d:F> ~ <t:%d:F> (<t:%d:R>)", p.Start.Unix(), p.End.Unix(), p.End.Unix()),
			})
		}
		embeds = append(embeds, embed)
	}

	if len(embeds) > maxEmbedsPerMessage {
		embeds = embeds[:maxEmbedsPerMessage]
	}
	return embeds
}

// PageView describes how a paginated answer is branded.
type PageView struct {
	Prefix string
	Title  string
	Color  int
}

// PageResponse renders the current page of an answer with its navigation
// buttons. Buttons are omitted for single-page answers.
func PageResponse(view PageView, page *conversation.Page, interactionID string) *Response {
	total := page.Total()
	current := conversation.Clamp(page.Page, total)

	footer := fmt.Sprintf("%s • %d/%d 페이지", page.ModelUsed, current+1, total)
	if page.PersonaLabel != "" && page.PersonaLabel != "none" {
		footer += " • 페르소나: " + page.PersonaLabel
	}
	if page.UseSession {
		footer += " • 대화 기억 켜짐"
	}

	embed := &discordgo.MessageEmbed{
		Title:       view.Title,
		Description: feeds.Truncate(page.Current(), 4096),
		Color:       view.Color,
		Fields: []*discordgo.MessageEmbedField{{
			Name:  "질문",
			Value: feeds.Truncate(page.Prompt, maxFieldValue),
		}},
		Footer: &discordgo.MessageEmbedFooter{Text: footer},
	}

	return &Response{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: PageButtons(view.Prefix, current, total, interactionID),
	}
}

// PageButtons builds a row of numbered buttons around current plus a row
// of first/prev/next/last controls.
func PageButtons(prefix string, current, total int, interactionID string) []discordgo.MessageComponent {
	if total <= 1 {
		return nil
	}

	start, end := conversation.PageWindow(current, total, maxPageButtons)
	numbers := make([]discordgo.MessageComponent, 0, end-start)
	for i := start; i < end; i++ {
		style := discordgo.SecondaryButton
		if i == current {
			style = discordgo.PrimaryButton
		}
		numbers = append(numbers, discordgo.Button{
			Label:    fmt.Sprintf("%d", i+1),
			Style:    style,
			Disabled: i == current,
			CustomID: conversation.CustomID(prefix, conversation.GoTo(i), interactionID),
		})
	}

	atStart := current == 0
	atEnd := current == total-1
	nav := []discordgo.MessageComponent{
		discordgo.Button{Label: "⏮", Style: discordgo.SecondaryButton, Disabled: atStart,
			CustomID: conversation.CustomID(prefix, conversation.First(), interactionID)},
		discordgo.Button{Label: "◀", Style: discordgo.SecondaryButton, Disabled: atStart,
			CustomID: conversation.CustomID(prefix, conversation.Prev(), interactionID)},
		discordgo.Button{Label: "▶", Style: discordgo.SecondaryButton, Disabled: atEnd,
			CustomID: conversation.CustomID(prefix, conversation.Next(), interactionID)},
		discordgo.Button{Label: "⏭", Style: discordgo.SecondaryButton, Disabled: atEnd,
			CustomID: conversation.CustomID(prefix, conversation.Last(), interactionID)},
	}

	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: numbers},
		discordgo.ActionsRow{Components: nav},
	}
}

// ExpiredResponse is the ephemeral reply sent to whoever clicks a page
// button after the answer's record is gone. The original message is left
// as it is.
func ExpiredResponse() *Response {
	return &Response{
		Content:   "⌛ 이 대화는 만료되었습니다. 명령어를 다시 실행해주세요.",
		Ephemeral: true,
	}
}
