package tui

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/kevensen/gollama-clippy/internal/orchestrator"
)

// Notice is something the orchestrator displayed outside of a direct reply
type Notice struct {
	Target orchestrator.DisplayTarget
	Text   string
}

// Feed is an orchestrator.Display that hands notices to the panel
type Feed struct {
	ch chan Notice
}

// NewFeed creates a feed holding up to size undelivered notices
func NewFeed(size int) *Feed {
	if size < 1 {
		size = 1
	}
	return &Feed{ch: make(chan Notice, size)}
}

// Show queues the notice, dropping it when the panel is not keeping up
func (f *Feed) Show(ctx context.Context, target orchestrator.DisplayTarget, text string) {
	select {
	case f.ch <- Notice{Target: target, Text: text}:
	default:
	}
}

// Notices delivers queued notices
func (f *Feed) Notices() <-chan Notice {
	return f.ch
}

// Printer is an orchestrator.Display for plain terminal output, used by the watch and ask
// commands. Toasts are styled; panel and caller text is printed as is.
type Printer struct {
	mu     sync.Mutex
	out    io.Writer
	styles Styles
}

// NewPrinter writes to out
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out, styles: DefaultStyles()}
}

func (p *Printer) Show(ctx context.Context, target orchestrator.DisplayTarget, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if target == orchestrator.TargetToast {
		fmt.Fprintf(p.out, "%s %s\n", p.styles.toast.Render("Clippy"), text)
		return
	}
	fmt.Fprintln(p.out, text)
}
