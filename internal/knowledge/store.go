// Package knowledge keeps the facts extracted from workspace files and their rollup.
package knowledge

import (
	"sort"
	"sync"
	"time"
)

// FileFacts holds everything extracted from a single file
type FileFacts struct {
	Path          string
	Language      string
	Imports       []string
	Functions     []string
	Variables     []string
	Concepts      map[string]int
	LastModified  time.Time
	UnusedImports []string
}

// Aggregate is the workspace-wide rollup of all scanned files
type Aggregate struct {
	Functions        map[string]struct{}
	Libraries        map[string]struct{}
	Concepts         map[string]int
	AssignmentPrompt string
}

// Store holds per-file facts and the global aggregate. Entries are only ever upserted.
type Store struct {
	mu         sync.RWMutex
	files      map[string]FileFacts
	agg        Aggregate
	assignment string
}

// NewStore creates an empty knowledge store
func NewStore() *Store {
	return &Store{
		files: make(map[string]FileFacts),
		agg:   emptyAggregate(),
	}
}

func emptyAggregate() Aggregate {
	return Aggregate{
		Functions: make(map[string]struct{}),
		Libraries: make(map[string]struct{}),
		Concepts:  make(map[string]int),
	}
}

// Upsert records facts for a file, replacing any previous entry for the same path
func (s *Store) Upsert(facts FileFacts) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files[facts.Path] = facts
	s.rebuild()
}

// rebuild recomputes the rollup so replaced files do not double count
func (s *Store) rebuild() {
	agg := emptyAggregate()
	for _, f := range s.files {
		for _, fn := range f.Functions {
			agg.Functions[fn] = struct{}{}
		}
		for _, imp := range f.Imports {
			agg.Libraries[imp] = struct{}{}
		}
		for concept, n := range f.Concepts {
			agg.Concepts[concept] += n
		}
	}
	s.agg = agg
}

// File returns the facts for path
func (s *Store) File(path string) (FileFacts, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[path]
	return f, ok
}

// Files returns every entry sorted by path
func (s *Store) Files() []FileFacts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files := make([]FileFacts, 0, len(s.files))
	for _, f := range s.files {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files
}

// Len returns the number of scanned files
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// Aggregate returns a copy of the rollup that callers may keep and modify
func (s *Store) Aggregate() Aggregate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := emptyAggregate()
	for k := range s.agg.Functions {
		out.Functions[k] = struct{}{}
	}
	for k := range s.agg.Libraries {
		out.Libraries[k] = struct{}{}
	}
	for k, v := range s.agg.Concepts {
		out.Concepts[k] = v
	}
	out.AssignmentPrompt = s.assignment
	return out
}

// SetAssignmentPrompt stores the assignment text that is injected once per session
func (s *Store) SetAssignmentPrompt(text string) {
	s.mu.Lock()
	s.assignment = text
	s.mu.Unlock()
}

// AssignmentPrompt returns the stored assignment text, if any
func (s *Store) AssignmentPrompt() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.assignment, s.assignment != ""
}

// ConceptTags returns the sorted names of every concept seen at least once
func (s *Store) ConceptTags() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tags := make([]string, 0, len(s.agg.Concepts))
	for name, n := range s.agg.Concepts {
		if n > 0 {
			tags = append(tags, name)
		}
	}
	sort.Strings(tags)
	return tags
}
