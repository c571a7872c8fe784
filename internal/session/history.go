// Package session holds the per-session conversation state: the history of turns,
// the active mode and whether the assignment context has been delivered.
package session

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kevensen/gollama-clippy/internal/mode"
)

// Role identifies the speaker of a turn
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// replayWindow is how many qualifying turns the focused modes replay after the head turn
const replayWindow = 2

// Turn is one role-tagged message in the history
type Turn struct {
	ID      ulid.ULID
	Role    Role
	Content string
	Mode    *mode.Mode // nil for turns not produced by a request
	Time    time.Time
}

// NewTurn creates a turn with a fresh ID and the current time
func NewTurn(role Role, content string, m *mode.Mode) Turn {
	return Turn{
		ID:      ulid.Make(),
		Role:    role,
		Content: content,
		Mode:    m,
		Time:    time.Now(),
	}
}

// History is an ordered, append-only sequence of turns
type History struct {
	mu    sync.RWMutex
	turns []Turn
}

// Append adds a turn at the tail
func (h *History) Append(turns ...Turn) {
	h.mu.Lock()
	h.turns = append(h.turns, turns...)
	h.mu.Unlock()
}

// Prepend inserts a turn at the head. Only the assignment context uses it.
func (h *History) Prepend(turn Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.turns = append(h.turns, Turn{})
	copy(h.turns[1:], h.turns)
	h.turns[0] = turn
}

// Clear removes every turn
func (h *History) Clear() {
	h.mu.Lock()
	h.turns = nil
	h.mu.Unlock()
}

// Len returns the number of turns
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// Turns returns a copy of the full history
func (h *History) Turns() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return copyTurns(h.turns)
}

// FilterForReplay returns the turns to send alongside a new request in mode m.
// Chat replays everything. Tutor, Assistant and Debugger keep the head turn and
// the most recent replayWindow turns after it.
func (h *History) FilterForReplay(m mode.Mode) []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	switch m {
	case mode.Tutor, mode.Assistant, mode.Debugger:
	default:
		return copyTurns(h.turns)
	}

	if len(h.turns) == 0 {
		return []Turn{}
	}

	rest := make([]Turn, 0, len(h.turns)-1)
	for _, t := range h.turns[1:] {
		switch t.Role {
		case RoleSystem, RoleUser, RoleAssistant:
			rest = append(rest, t)
		}
	}
	if len(rest) > replayWindow {
		rest = rest[len(rest)-replayWindow:]
	}

	out := make([]Turn, 0, len(rest)+1)
	out = append(out, h.turns[0])
	return append(out, rest...)
}

func copyTurns(turns []Turn) []Turn {
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}
