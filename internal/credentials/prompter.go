package credentials

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Prompter asks the user for an API key. ok is false when the user declines.
type Prompter interface {
	Ask(ctx context.Context, message string) (secret string, ok bool)
}

// TerminalPrompter reads the key from a terminal without echo. Non-terminal input
// is read line by line.
type TerminalPrompter struct {
	In  *os.File
	Out io.Writer
}

// NewTerminalPrompter prompts on stderr and reads stdin
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{In: os.Stdin, Out: os.Stderr}
}

// Ask prompts and waits for a line. A canceled ctx returns at once as declined, but the
// read from In stays blocked until input arrives or In is closed; commands only cancel
// on exit, so the goroutine ends with the process.
func (p *TerminalPrompter) Ask(ctx context.Context, message string) (string, bool) {
	fmt.Fprintf(p.Out, "%s: ", message)

	type answer struct {
		secret string
		err    error
	}
	done := make(chan answer, 1)

	go func() {
		fd := int(p.In.Fd())
		if term.IsTerminal(fd) {
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(p.Out)
			done <- answer{string(b), err}
			return
		}
		line, err := bufio.NewReader(p.In).ReadString('\n')
		if err == io.EOF && line != "" {
			err = nil
		}
		done <- answer{line, err}
	}()

	select {
	case <-ctx.Done():
		return "", false
	case a := <-done:
		secret := strings.TrimSpace(a.secret)
		if a.err != nil || secret == "" {
			return "", false
		}
		return secret, true
	}
}

// StaticPrompter answers with a fixed sequence of keys, then declines
type StaticPrompter struct {
	mu    sync.Mutex
	keys  []string
	calls int
}

// NewStaticPrompter returns a prompter that hands out keys in order. An empty key
// counts as declining.
func NewStaticPrompter(keys ...string) *StaticPrompter {
	return &StaticPrompter{keys: keys}
}

func (p *StaticPrompter) Ask(ctx context.Context, message string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := p.calls
	p.calls++
	if i >= len(p.keys) || p.keys[i] == "" {
		return "", false
	}
	return p.keys[i], true
}

// Calls returns how many times Ask was invoked
func (p *StaticPrompter) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Request is a pending key prompt delivered to an interactive surface
type Request struct {
	Message string
	reply   chan answer
}

type answer struct {
	secret string
	ok     bool
}

// Respond answers the request. Only the first call has an effect.
func (r Request) Respond(secret string, ok bool) {
	select {
	case r.reply <- answer{strings.TrimSpace(secret), ok}:
	default:
	}
}

// ChanPrompter forwards prompts to a UI that reads Requests and answers them
type ChanPrompter struct {
	requests chan Request
}

// NewChanPrompter creates a prompter with an unbuffered request channel
func NewChanPrompter() *ChanPrompter {
	return &ChanPrompter{requests: make(chan Request)}
}

// Requests delivers prompts to the UI
func (p *ChanPrompter) Requests() <-chan Request {
	return p.requests
}

func (p *ChanPrompter) Ask(ctx context.Context, message string) (string, bool) {
	req := Request{Message: message, reply: make(chan answer, 1)}

	select {
	case p.requests <- req:
	case <-ctx.Done():
		return "", false
	}

	select {
	case a := <-req.reply:
		if !a.ok || a.secret == "" {
			return "", false
		}
		return a.secret, true
	case <-ctx.Done():
		return "", false
	}
}
