// Package assignment finds the course assignment for a workspace and loads it into the
// knowledge store so it can be delivered to the model once per session.
package assignment

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/kevensen/gollama-clippy/internal/knowledge"
	"github.com/kevensen/gollama-clippy/internal/logging"
)

// ErrUnsupportedFormat is returned for assignment files that are not plain text or markdown
var ErrUnsupportedFormat = errors.New("unsupported assignment format")

// Candidate file names, in order of preference. Matching ignores case.
var candidates = []string{"ASSIGNMENT.md", "ASSIGNMENT.txt"}

var textExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
	"":          true,
}

// File is a loaded assignment
type File struct {
	Path      string // Absolute path to the assignment file
	Content   string
	Directory string // Directory containing the file
}

// Detector locates assignment files
type Detector struct {
	enabled bool
	logger  *logging.Logger
}

// NewDetector creates an assignment detector. A disabled detector never finds a file in
// the workspace; explicit paths still load.
func NewDetector(enabled bool) *Detector {
	return &Detector{
		enabled: enabled,
		logger:  logging.WithComponent("assignment-detector"),
	}
}

// DetectInDirectory looks for an assignment file directly inside dir. It returns nil
// without error when none exists.
func (d *Detector) DetectInDirectory(dir string) (*File, error) {
	if !d.enabled {
		d.logger.Debug("Assignment detection is disabled")
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		d.logger.Debug("Failed to read directory", "directory", dir, "error", err)
		return nil, nil
	}

	// Scan the directory so the returned path keeps the on-disk spelling
	for _, want := range candidates {
		for _, entry := range entries {
			if entry.IsDir() || !strings.EqualFold(entry.Name(), want) {
				continue
			}
			found := filepath.Join(dir, entry.Name())
			d.logger.Info("Found assignment file", "path", found)
			return d.Load(found)
		}
	}

	d.logger.Debug("No assignment file found", "directory", dir)
	return nil, nil
}

// Load reads an explicit assignment file
func (d *Detector) Load(path string) (*File, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !textExtensions[ext] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		d.logger.Error("Failed to read assignment file", "path", abs, "error", err)
		return nil, fmt.Errorf("failed to read assignment file: %w", err)
	}

	d.logger.Info("Loaded assignment file", "path", abs, "size_bytes", len(content))
	return &File{
		Path:      abs,
		Content:   string(content),
		Directory: filepath.Dir(abs),
	}, nil
}

// Format renders the assignment as background text for the model
func (f *File) Format() string {
	if f == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("--- ASSIGNMENT (from ")
	b.WriteString(filepath.Base(f.Path))
	b.WriteString(") ---\n")
	b.WriteString("Use this assignment as background when helping the student. Do not solve it for them.\n\n")
	b.WriteString(strings.TrimSpace(f.Content))
	b.WriteString("\n--- END ASSIGNMENT ---")
	return b.String()
}

// Apply stores the formatted assignment in store. Blank files are ignored.
func (f *File) Apply(store *knowledge.Store) bool {
	if f == nil || strings.TrimSpace(f.Content) == "" {
		return false
	}
	store.SetAssignmentPrompt(f.Format())
	return true
}

// Summary returns a brief description for display purposes
func (f *File) Summary() string {
	if f == nil {
		return "No assignment detected"
	}

	lines := strings.Split(f.Content, "\n")

	preview := ""
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			if runes := []rune(trimmed); len(runes) > 50 {
				preview = string(runes[:47]) + "..."
			} else {
				preview = trimmed
			}
			break
		}
	}
	if preview == "" {
		preview = "No content preview available"
	}

	return fmt.Sprintf("Assignment %s: %d lines, %d chars\nPreview: %s",
		filepath.Base(f.Path), len(lines), utf8.RuneCountInString(f.Content), preview)
}
