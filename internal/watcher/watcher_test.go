package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kevensen/gollama-clippy/internal/knowledge"
	"github.com/kevensen/gollama-clippy/internal/mode"
	"github.com/kevensen/gollama-clippy/internal/orchestrator"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name        string
		last        string
		current     string
		wantChanged string
		wantOK      bool
	}{
		{"unchanged", "a\nb\n", "a\nb\n", "", false},
		{"both empty", "", "", "", false},
		{"first analysis", "", "package main\n", "package main\n", true},
		{"appended", "a\nb\n", "a\nb\nc\n", "c\n", true},
		{"appended mid line", "fmt.Print", "fmt.Println()", "ln()", true},
		{"edited middle line", "a\nb\nc", "a\nB\nc", "B\nc", true},
		{"edited first line", "x\ny", "z\ny", "z\ny", true},
		{"removed trailing lines", "a\nb\nc", "a\nb", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changed, ok := Diff(tt.last, tt.current)
			if changed != tt.wantChanged || ok != tt.wantOK {
				t.Errorf("Diff(%q, %q) = %q, %v, want %q, %v", tt.last, tt.current, changed, ok, tt.wantChanged, tt.wantOK)
			}
		})
	}
}

type fakeSender struct {
	mu       sync.Mutex
	contents []string
	targets  []orchestrator.DisplayTarget
	outcomes []orchestrator.Outcome
	sent     chan struct{}
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: make(chan struct{}, 16)}
}

func (f *fakeSender) Send(ctx context.Context, content string, target orchestrator.DisplayTarget, override *mode.Mode) orchestrator.Result {
	f.mu.Lock()
	f.contents = append(f.contents, content)
	f.targets = append(f.targets, target)
	outcome := orchestrator.Displayed
	if len(f.outcomes) > 0 {
		outcome, f.outcomes = f.outcomes[0], f.outcomes[1:]
	}
	f.mu.Unlock()
	f.sent <- struct{}{}
	return orchestrator.Result{Outcome: outcome}
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.contents)
}

type notices struct {
	mu    sync.Mutex
	texts []string
}

func (n *notices) Show(ctx context.Context, target orchestrator.DisplayTarget, text string) {
	n.mu.Lock()
	n.texts = append(n.texts, text)
	n.mu.Unlock()
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcher_Analyze(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	writeFile(t, path, "package main\n")

	sender := newFakeSender()
	shown := &notices{}
	store := knowledge.NewStore()
	scanner, err := knowledge.NewScanner(store, knowledge.DefaultScanConfig(dir))
	if err != nil {
		t.Fatal(err)
	}
	w := New(Config{Path: path}, sender, scanner, shown)
	ctx := context.Background()

	if _, sent, err := w.Analyze(ctx); err != nil || !sent {
		t.Fatalf("first Analyze() sent=%v err=%v", sent, err)
	}
	if got := sender.contents[0]; got != AnalyzePrompt+"package main\n" {
		t.Errorf("first request = %q", got)
	}
	if sender.targets[0] != orchestrator.TargetToast {
		t.Errorf("target = %s, want toast", sender.targets[0])
	}
	if _, ok := store.File(path); !ok {
		t.Error("file was not rescanned into the knowledge store")
	}

	if _, sent, _ := w.Analyze(ctx); sent {
		t.Error("unchanged file should not be sent")
	}
	if len(shown.texts) != 1 || shown.texts[0] != NoChangesText {
		t.Errorf("notices = %v, want [%q]", shown.texts, NoChangesText)
	}

	writeFile(t, path, "package main\n\nfunc main() {}\n")
	if _, sent, _ := w.Analyze(ctx); !sent {
		t.Fatal("changed file should be sent")
	}
	if got := sender.contents[1]; got != AnalyzePrompt+"\nfunc main() {}\n" {
		t.Errorf("second request = %q", got)
	}
	if sender.count() != 2 {
		t.Errorf("requests = %d, want 2", sender.count())
	}
}

func TestWatcher_AnalyzeOnlyRemovals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.py")
	writeFile(t, path, "a = 1\nb = 2")

	sender := newFakeSender()
	shown := &notices{}
	w := New(Config{Path: path}, sender, nil, shown)

	w.Analyze(context.Background())
	writeFile(t, path, "a = 1")
	if _, sent, _ := w.Analyze(context.Background()); sent {
		t.Error("removals alone should not be sent")
	}
	if got := shown.texts[len(shown.texts)-1]; got != OnlyRemovalsText {
		t.Errorf("notice = %q", got)
	}
}

func TestWatcher_AnalyzeResendsAfterFailure(t *testing.T) {
	tests := []struct {
		name    string
		outcome orchestrator.Outcome
	}{
		{"setup canceled", orchestrator.SetupCanceled},
		{"request failed", orchestrator.RequestFailed},
		{"retries exhausted", orchestrator.RetriesExhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "main.go")
			writeFile(t, path, "package main\n")

			sender := newFakeSender()
			sender.outcomes = []orchestrator.Outcome{tt.outcome}
			w := New(Config{Path: path}, sender, nil, &notices{})
			ctx := context.Background()

			if res, sent, _ := w.Analyze(ctx); !sent || res.Outcome != tt.outcome {
				t.Fatalf("first Analyze() sent=%v outcome=%s", sent, res.Outcome)
			}
			res, sent, _ := w.Analyze(ctx)
			if !sent || res.Outcome != orchestrator.Displayed {
				t.Fatalf("second Analyze() sent=%v outcome=%s, want resend", sent, res.Outcome)
			}
			if got := sender.contents[1]; got != AnalyzePrompt+"package main\n" {
				t.Errorf("resent request = %q", got)
			}
			if _, sent, _ := w.Analyze(ctx); sent {
				t.Error("change was sent again after a successful analysis")
			}
		})
	}
}

func TestWatcher_AnalyzeMissingFile(t *testing.T) {
	w := New(Config{Path: filepath.Join(t.TempDir(), "gone.go")}, newFakeSender(), nil, nil)

	if _, sent, err := w.Analyze(context.Background()); err == nil || sent {
		t.Errorf("Analyze() sent=%v err=%v, want error", sent, err)
	}
}

func TestWatcher_RunReactsToWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	writeFile(t, path, "package main\n")

	sender := newFakeSender()
	w := New(Config{Path: path, Interval: time.Hour, Debounce: 20 * time.Millisecond}, sender, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	waitForSend(t, sender)

	writeFile(t, path, "package main\n\n// edited\n")
	waitForSend(t, sender)

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() = %v", err)
	}

	if got := sender.contents[1]; !strings.HasSuffix(got, "\n// edited\n") {
		t.Errorf("second request = %q", got)
	}
}

func TestWatcher_RunPollsOnInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.go")
	writeFile(t, path, "package main\n")

	sender := newFakeSender()
	w := New(Config{Path: path, Interval: 10 * time.Millisecond, Debounce: time.Hour}, sender, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	waitForSend(t, sender)

	// Unchanged content is never resent no matter how many ticks pass
	time.Sleep(50 * time.Millisecond)
	if sender.count() != 1 {
		t.Errorf("requests = %d, want 1", sender.count())
	}
}

func waitForSend(t *testing.T, sender *fakeSender) {
	t.Helper()
	select {
	case <-sender.sent:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a request")
	}
}
