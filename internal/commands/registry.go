// internal/commands/registry.go

// Package commands implements the slash commands and the registry that
// routes interactions to them.
package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"

	"NIRA-Go/internal/discord"
	"NIRA-Go/internal/metrics"
)

// ErrUnknownCommand is returned when no command or component handler
// matches an interaction.
var ErrUnknownCommand = errors.New("unknown command")

// UnknownCommandMessage is shown for interactions nothing handles.
const UnknownCommandMessage = "알 수 없는 명령어입니다."

// Kind declares whether a command owns message components.
type Kind int

const (
	// KindSimple commands only answer slash invocations.
	KindSimple Kind = iota
	// KindPaginated commands also implement ComponentHandler.
	KindPaginated
)

func (k Kind) String() string {
	if k == KindPaginated {
		return "paginated"
	}
	return "simple"
}

// Command is one slash command.
type Command interface {
	Definition() *discordgo.ApplicationCommand
	Kind() Kind
	Execute(ctx context.Context, in discord.Interaction) error
}

// ComponentHandler handles button clicks whose custom id starts with Prefix.
type ComponentHandler interface {
	Prefix() string
	HandleComponent(ctx context.Context, in discord.Interaction) error
}

// Registry maps command names and component prefixes to handlers.
type Registry struct {
	commands   map[string]Command
	components map[string]ComponentHandler
}

var _ discord.Dispatcher = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{
		commands:   make(map[string]Command),
		components: make(map[string]ComponentHandler),
	}
}

// Register adds cmd. A KindPaginated command must implement
// ComponentHandler with a prefix no other handler overlaps; a KindSimple
// command must not.
func (r *Registry) Register(cmd Command) error {
	def := cmd.Definition()
	if def == nil || def.Name == "" {
		return errors.New("command has no name")
	}
	if _, exists := r.commands[def.Name]; exists {
		return fmt.Errorf("command %q already registered", def.Name)
	}

	handler, isHandler := cmd.(ComponentHandler)
	switch cmd.Kind() {
	case KindSimple:
		if isHandler {
			return fmt.Errorf("command %q handles components but is declared %s", def.Name, KindSimple)
		}
	case KindPaginated:
		if !isHandler {
			return fmt.Errorf("command %q is %s but has no component handler", def.Name, KindPaginated)
		}
		prefix := handler.Prefix()
		if prefix == "" {
			return fmt.Errorf("command %q has an empty component prefix", def.Name)
		}
		for other := range r.components {
			if strings.HasPrefix(prefix, other) || strings.HasPrefix(other, prefix) {
				return fmt.Errorf("component prefix %q of %q overlaps %q", prefix, def.Name, other)
			}
		}
		r.components[prefix] = handler
	default:
		return fmt.Errorf("command %q has unknown kind %d", def.Name, cmd.Kind())
	}

	r.commands[def.Name] = cmd
	log.Debug("Command registered", "command", def.Name, "kind", cmd.Kind())
	return nil
}

// Definitions returns every command definition sorted by name, ready for
// ApplicationCommandBulkOverwrite.
func (r *Registry) Definitions() []*discordgo.ApplicationCommand {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]*discordgo.ApplicationCommand, 0, len(names))
	for _, name := range names {
		defs = append(defs, r.commands[name].Definition())
	}
	return defs
}

// Dispatch runs the command named by in.
func (r *Registry) Dispatch(ctx context.Context, in discord.Interaction) error {
	name := in.CommandName()
	cmd, ok := r.commands[name]
	if !ok {
		metrics.RecordCommand("unknown", metrics.StatusError)
		discord.ReplyError(ctx, in, UnknownCommandMessage)
		return fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}

	log.Info("Command received", "command", name, "userId", in.UserID(), "channelId", in.ChannelID())
	err := cmd.Execute(ctx, in)
	metrics.RecordCommand(name, metrics.StatusOf(err))
	if err != nil {
		discord.ReplyError(ctx, in, discord.GenericErrorMessage)
		return fmt.Errorf("command %q: %w", name, err)
	}
	return nil
}

// DispatchComponent runs the handler owning in's custom id.
func (r *Registry) DispatchComponent(ctx context.Context, in discord.Interaction) error {
	customID := in.CustomID()
	for prefix, handler := range r.components {
		if !strings.HasPrefix(customID, prefix) {
			continue
		}
		label := "component:" + strings.TrimSuffix(prefix, ":")
		err := handler.HandleComponent(ctx, in)
		metrics.RecordCommand(label, metrics.StatusOf(err))
		if err != nil {
			discord.ReplyError(ctx, in, discord.GenericErrorMessage)
			return fmt.Errorf("component %q: %w", customID, err)
		}
		return nil
	}

	metrics.RecordCommand("component:unknown", metrics.StatusError)
	discord.ReplyError(ctx, in, UnknownCommandMessage)
	return fmt.Errorf("%w: component %q", ErrUnknownCommand, customID)
}
