package session

import (
	"github.com/kevensen/gollama-clippy/internal/mode"
	"github.com/kevensen/gollama-clippy/internal/persona"
)

// MaybeInjectAssignment inserts the persona prompt for m combined with the stored
// assignment text as a single system turn at the head of the history. It fires at
// most once until the session is cleared and reports whether it fired.
func (s *Session) MaybeInjectAssignment(m mode.Mode) bool {
	text, ok := s.Knowledge.AssignmentPrompt()
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.assignmentSent {
		return false
	}

	content := persona.Prompt(m) + "\n\n" + text
	s.History.Prepend(NewTurn(RoleSystem, content, mode.Ptr(m)))
	s.assignmentSent = true

	s.logger.Info("Injected assignment context", "mode", m.String(), "assignment_chars", len(text))
	return true
}
