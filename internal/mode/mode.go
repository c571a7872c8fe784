// Package mode defines the assistant personas and decides which one handles a request.
package mode

import (
	"fmt"
	"strings"
)

// Mode is one of the fixed personas the assistant can adopt
type Mode int

const (
	Tutor Mode = iota
	Assistant
	Debugger
	Chat
)

// All lists every mode in display order
var All = []Mode{Tutor, Assistant, Debugger, Chat}

func (m Mode) String() string {
	switch m {
	case Tutor:
		return "tutor"
	case Assistant:
		return "assistant"
	case Debugger:
		return "debugger"
	case Chat:
		return "chat"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Title returns the capitalised name used in notifications
func (m Mode) Title() string {
	s := m.String()
	if !m.Valid() {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Valid reports whether m is one of the known modes
func (m Mode) Valid() bool {
	return m >= Tutor && m <= Chat
}

// Parse converts a mode name into a Mode
func Parse(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tutor":
		return Tutor, nil
	case "assistant":
		return Assistant, nil
	case "debugger", "debug":
		return Debugger, nil
	case "chat":
		return Chat, nil
	default:
		return Tutor, fmt.Errorf("unknown mode %q", s)
	}
}

// Ptr returns a pointer to m, for passing explicit overrides
func Ptr(m Mode) *Mode {
	return &m
}
