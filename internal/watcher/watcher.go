// Package watcher periodically analyzes the file a developer is working on and sends
// what changed since the last analysis through the chat orchestrator.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kevensen/gollama-clippy/internal/knowledge"
	"github.com/kevensen/gollama-clippy/internal/logging"
	"github.com/kevensen/gollama-clippy/internal/mode"
	"github.com/kevensen/gollama-clippy/internal/orchestrator"
)

const (
	// AnalyzePrompt prefixes the changed code in every request
	AnalyzePrompt = "Analyze this code and suggest improvements or missing knowledge:\n\n"

	NoChangesText    = "No changes in the file"
	OnlyRemovalsText = "Only removals since the last analysis"

	DefaultInterval = 30 * time.Second
	DefaultDebounce = 500 * time.Millisecond
)

// Sender is the part of the orchestrator the watcher needs
type Sender interface {
	Send(ctx context.Context, content string, target orchestrator.DisplayTarget, override *mode.Mode) orchestrator.Result
}

// Config configures a Watcher
type Config struct {
	Path     string
	Interval time.Duration // Polling period, DefaultInterval when zero
	Debounce time.Duration // Quiet period after a write event, DefaultDebounce when zero
}

// Watcher analyzes one file on a timer and after saves
type Watcher struct {
	config  Config
	sender  Sender
	scanner *knowledge.Scanner
	display orchestrator.Display

	mu       sync.Mutex
	lastSent string
	logger   *logging.Logger
}

// New creates a Watcher. scanner and display may be nil.
func New(config Config, sender Sender, scanner *knowledge.Scanner, display orchestrator.Display) *Watcher {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	if display == nil {
		display = orchestrator.DisplayFunc(func(context.Context, orchestrator.DisplayTarget, string) {})
	}

	return &Watcher{
		config:  config,
		sender:  sender,
		scanner: scanner,
		display: display,
		logger:  logging.WithComponent("watcher").With("path", config.Path),
	}
}

// Analyze reads the file and sends what changed. It reports whether a request was sent.
func (w *Watcher) Analyze(ctx context.Context) (orchestrator.Result, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	content, err := os.ReadFile(w.config.Path)
	if err != nil {
		w.display.Show(ctx, orchestrator.TargetToast, "Open a file to analyze")
		return orchestrator.Result{}, false, fmt.Errorf("failed to read %s: %w", w.config.Path, err)
	}
	current := string(content)

	changed, ok := Diff(w.lastSent, current)
	if !ok {
		w.logger.Debug("File unchanged since last analysis")
		w.display.Show(ctx, orchestrator.TargetToast, NoChangesText)
		return orchestrator.Result{}, false, nil
	}
	if changed == "" {
		w.lastSent = current
		w.display.Show(ctx, orchestrator.TargetToast, OnlyRemovalsText)
		return orchestrator.Result{}, false, nil
	}

	if w.scanner != nil {
		if _, err := w.scanner.ScanFile(w.config.Path); err != nil {
			w.logger.Warn("Failed to rescan file", "error", err)
		}
	}

	w.logger.Info("Sending file changes for analysis", "changed_chars", len(changed))
	res := w.sender.Send(ctx, AnalyzePrompt+changed, orchestrator.TargetToast, nil)
	// A change is only analyzed once the model has answered; failures are resent
	switch res.Outcome {
	case orchestrator.Displayed, orchestrator.Replied:
		w.lastSent = current
	}
	return res, true, nil
}

// Run analyzes immediately, then on every interval tick and after debounced writes to
// the file, until ctx is canceled
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fsw.Close()

	target := filepath.Clean(w.config.Path)
	// Watch the directory so editors that save by rename are still seen
	if err := fsw.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}

	w.logger.Info("Watching file", "interval", w.config.Interval, "debounce", w.config.Debounce)
	w.analyze(ctx)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	debounce := time.NewTimer(w.config.Debounce)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Watcher stopped")
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				debounce.Reset(w.config.Debounce)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("File watcher error", "error", err)

		case <-debounce.C:
			w.analyze(ctx)

		case <-ticker.C:
			w.analyze(ctx)
		}
	}
}

func (w *Watcher) analyze(ctx context.Context) {
	res, sent, err := w.Analyze(ctx)
	if err != nil {
		w.logger.Warn("Analysis skipped", "error", err)
		return
	}
	if sent {
		w.logger.Debug("Analysis finished", "outcome", res.Outcome.String(), "request_id", res.RequestID)
	}
}
