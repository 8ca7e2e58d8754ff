// internal/conversation/action.go

package conversation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidAction is returned for button payloads that do not parse.
var ErrInvalidAction = errors.New("conversation: invalid pagination action")

// ActionKind is the kind of navigation a button performs.
type ActionKind int

const (
	ActionNext ActionKind = iota
	ActionPrev
	ActionFirst
	ActionLast
	ActionPage
)

const pagePrefix = "page_"

// Action is a parsed navigation request. Index is only used by ActionPage.
type Action struct {
	Kind  ActionKind
	Index int
}

// Next moves one page forward.
func Next() Action {
	return Action{Kind: ActionNext}
}

// Prev moves one page back.
func Prev() Action {
	return Action{Kind: ActionPrev}
}

// First jumps to the first page.
func First() Action {
	return Action{Kind: ActionFirst}
}

// Last jumps to the last page.
func Last() Action {
	return Action{Kind: ActionLast}
}

// GoTo jumps to the zero-based page index.
func GoTo(index int) Action {
	return Action{Kind: ActionPage, Index: index}
}

// ParseAction parses "next", "prev", "first", "last" or "page_<N>".
func ParseAction(s string) (Action, error) {
	switch s {
	case "next":
		return Next(), nil
	case "prev":
		return Prev(), nil
	case "first":
		return First(), nil
	case "last":
		return Last(), nil
	}
	if rest, ok := strings.CutPrefix(s, pagePrefix); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || n < 0 {
			return Action{}, fmt.Errorf("%w: %q", ErrInvalidAction, s)
		}
		return GoTo(n), nil
	}
	return Action{}, fmt.Errorf("%w: %q", ErrInvalidAction, s)
}

func (a Action) String() string {
	switch a.Kind {
	case ActionNext:
		return "next"
	case ActionPrev:
		return "prev"
	case ActionFirst:
		return "first"
	case ActionLast:
		return "last"
	default:
		return pagePrefix + strconv.Itoa(a.Index)
	}
}

// Apply returns the page reached from current, clamped to [0, total-1].
func (a Action) Apply(current, total int) int {
	switch a.Kind {
	case ActionNext:
		current++
	case ActionPrev:
		current--
	case ActionFirst:
		current = 0
	case ActionLast:
		current = total - 1
	case ActionPage:
		current = a.Index
	}
	return Clamp(current, total)
}

// Clamp bounds page to a valid index for total pages.
func Clamp(page, total int) int {
	if total <= 0 || page < 0 {
		return 0
	}
	if page >= total {
		return total - 1
	}
	return page
}

// CustomID encodes a button payload as "{prefix}{action}:{interactionId}".
func CustomID(prefix string, a Action, interactionID string) string {
	return prefix + a.String() + ":" + interactionID
}

// ParseCustomID is the inverse of CustomID.
func ParseCustomID(prefix, customID string) (Action, string, error) {
	rest, ok := strings.CutPrefix(customID, prefix)
	if !ok {
		return Action{}, "", fmt.Errorf("%w: %q lacks prefix %q", ErrInvalidAction, customID, prefix)
	}
	tag, interactionID, ok := strings.Cut(rest, ":")
	if !ok || interactionID == "" {
		return Action{}, "", fmt.Errorf("%w: %q has no interaction id", ErrInvalidAction, customID)
	}
	action, err := ParseAction(tag)
	if err != nil {
		return Action{}, "", err
	}
	return action, interactionID, nil
}

// PageWindow returns the half-open range [start, end) of page numbers to
// show as buttons, keeping current roughly centred.
func PageWindow(current, total, max int) (int, int) {
	if max <= 0 || total <= max {
		return 0, total
	}
	start := current - max/2
	if start < 0 {
		start = 0
	}
	end := start + max
	if end > total {
		end = total
		start = end - max
	}
	return start, end
}
