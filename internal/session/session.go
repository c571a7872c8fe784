package session

import (
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/kevensen/gollama-clippy/internal/knowledge"
	"github.com/kevensen/gollama-clippy/internal/logging"
	"github.com/kevensen/gollama-clippy/internal/mode"
)

// Session owns the conversation state shared by every surface of one user session
type Session struct {
	ID        ulid.ULID
	Selector  *mode.Selector
	History   *History
	Knowledge *knowledge.Store

	mu             sync.Mutex
	assignmentSent bool
	logger         *logging.Logger
}

// New creates a session with an empty history. A nil store gets a fresh one.
func New(selector *mode.Selector, store *knowledge.Store) *Session {
	if store == nil {
		store = knowledge.NewStore()
	}
	if selector == nil {
		selector = mode.NewSelector(mode.Tutor, mode.WithConcepts(store.ConceptTags))
	}

	id := ulid.Make()
	return &Session{
		ID:        id,
		Selector:  selector,
		History:   &History{},
		Knowledge: store,
		logger:    logging.WithComponent("session").With("session_id", id.String()),
	}
}

// Mode returns the currently active mode
func (s *Session) Mode() mode.Mode {
	return s.Selector.Current()
}

// AssignmentSent reports whether the assignment context has been injected
func (s *Session) AssignmentSent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assignmentSent
}

// Clear empties the history and re-arms the assignment injection so the next
// request starts with the assignment context again
func (s *Session) Clear() {
	s.mu.Lock()
	s.assignmentSent = false
	s.mu.Unlock()

	s.History.Clear()
	s.logger.Info("Session cleared")
}

// TokenEstimate returns a rough token count for the whole history
func (s *Session) TokenEstimate() int {
	total := 0
	for _, t := range s.History.Turns() {
		total += EstimateTokens(t.Content)
	}
	return total
}
