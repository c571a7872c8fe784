package mode

import (
	"strings"
	"sync"

	"github.com/kevensen/gollama-clippy/internal/logging"
)

// ChangeFunc is called whenever the current mode changes
type ChangeFunc func(previous, current Mode)

// ConceptSource supplies workspace concept tags that bias detection
type ConceptSource func() []string

// Selector owns the current mode for one session
type Selector struct {
	mu         sync.Mutex
	current    Mode
	classifier Classifier
	concepts   ConceptSource
	onChange   ChangeFunc
	logger     *logging.Logger
}

// SelectorOption configures a Selector
type SelectorOption func(*Selector)

// WithClassifier replaces the default keyword classifier
func WithClassifier(c Classifier) SelectorOption {
	return func(s *Selector) { s.classifier = c }
}

// WithConcepts makes detection also consider workspace concept tags
func WithConcepts(src ConceptSource) SelectorOption {
	return func(s *Selector) { s.concepts = src }
}

// WithChangeFunc registers a callback for mode changes
func WithChangeFunc(fn ChangeFunc) SelectorOption {
	return func(s *Selector) { s.onChange = fn }
}

// NewSelector creates a Selector starting in the given mode
func NewSelector(initial Mode, opts ...SelectorOption) *Selector {
	if !initial.Valid() {
		initial = Tutor
	}
	s := &Selector{
		current:    initial,
		classifier: KeywordClassifier{},
		logger:     logging.WithComponent("mode-selector"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns the mode that governs the next request
func (s *Selector) Current() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Select resolves the mode for text. An explicit override always wins; otherwise the
// classifier decides between Debugger, Assistant and Tutor. Chat is never detected.
func (s *Selector) Select(text string, override *Mode) Mode {
	next := s.detect(text)
	if override != nil && override.Valid() {
		next = *override
	}

	s.mu.Lock()
	previous := s.current
	s.current = next
	onChange := s.onChange
	s.mu.Unlock()

	if previous != next {
		s.logger.Info("Mode changed",
			"from", previous.String(),
			"to", next.String(),
			"explicit", override != nil,
		)
		if onChange != nil {
			onChange(previous, next)
		}
	}

	return next
}

func (s *Selector) detect(text string) Mode {
	tags := s.classifier.Classify(text)

	// Concept tags count only when the whole tag is itself a keyword, so "error-handling"
	// never biases while the "debug" tag from left-over breakpoints does
	if s.concepts != nil {
		for _, concept := range s.concepts() {
			switch strings.ToLower(concept) {
			case "debug", "error", "exception", "fix", "broken":
				tags = append(tags, TagDebug)
			case "optimize", "improve", "refactor":
				tags = append(tags, TagOptimize)
			}
		}
	}

	switch {
	case hasTag(tags, TagDebug):
		return Debugger
	case hasTag(tags, TagOptimize):
		return Assistant
	default:
		return Tutor
	}
}
