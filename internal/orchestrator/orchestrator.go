// Package orchestrator runs one chat request end to end: credential resolution, mode
// selection, assignment injection, message composition, the completion call with
// bounded credential retries, and routing of the reply.
package orchestrator

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/kevensen/gollama-clippy/internal/credentials"
	"github.com/kevensen/gollama-clippy/internal/llm"
	"github.com/kevensen/gollama-clippy/internal/logging"
	"github.com/kevensen/gollama-clippy/internal/mode"
	"github.com/kevensen/gollama-clippy/internal/persona"
	"github.com/kevensen/gollama-clippy/internal/retry"
	"github.com/kevensen/gollama-clippy/internal/session"
)

// Texts returned in Result.Text for terminal failures
const (
	SetupCanceledText    = "API key setup canceled."
	RequestFailedText    = "Error: unable to get a response."
	RetriesExhaustedText = "Maximum retry attempts reached. Please check your API key configuration."
)

const (
	DefaultTemperature = 0.7
	defaultKeyPrompt   = "Enter your API key"
	invalidKeyNotice   = "The API key was rejected. Please enter a new one."
)

// DisplayTarget selects where a successful reply goes
type DisplayTarget int

const (
	TargetToast DisplayTarget = iota
	TargetPanel
	TargetCaller
)

func (t DisplayTarget) String() string {
	switch t {
	case TargetToast:
		return "toast"
	case TargetPanel:
		return "panel"
	case TargetCaller:
		return "caller"
	default:
		return "unknown"
	}
}

// Outcome classifies how a request ended
type Outcome int

const (
	Replied Outcome = iota
	Displayed
	SetupCanceled
	RequestFailed
	RetriesExhausted
)

func (o Outcome) String() string {
	switch o {
	case Replied:
		return "replied"
	case Displayed:
		return "displayed"
	case SetupCanceled:
		return "setup-canceled"
	case RequestFailed:
		return "request-failed"
	case RetriesExhausted:
		return "retries-exhausted"
	default:
		return "unknown"
	}
}

// Result is what Send returns. Text is empty when the reply was routed to a display.
type Result struct {
	Outcome   Outcome
	Text      string
	Mode      mode.Mode
	RequestID string
}

// Display shows text on a surface. Notices always use TargetToast.
type Display interface {
	Show(ctx context.Context, target DisplayTarget, text string)
}

// DisplayFunc adapts a function to the Display interface
type DisplayFunc func(ctx context.Context, target DisplayTarget, text string)

func (f DisplayFunc) Show(ctx context.Context, target DisplayTarget, text string) {
	f(ctx, target, text)
}

type nopDisplay struct{}

func (nopDisplay) Show(context.Context, DisplayTarget, string) {}

// ContextRetriever supplies reference material to prefix to the outgoing user content
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string) (string, error)
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithTemperature sets the sampling temperature
func WithTemperature(t float64) Option {
	return func(o *Orchestrator) { o.temperature = t }
}

// WithPolicy sets the credential retry policy
func WithPolicy(p retry.Policy) Option {
	return func(o *Orchestrator) { o.policy = p }
}

// WithDisplay sets the surface for replies and notices
func WithDisplay(d Display) Option {
	return func(o *Orchestrator) {
		if d != nil {
			o.display = d
		}
	}
}

// WithRetriever enables reference retrieval for outgoing requests
func WithRetriever(r ContextRetriever) Option {
	return func(o *Orchestrator) { o.retriever = r }
}

// WithKeyPrompt sets the message shown when asking for an API key
func WithKeyPrompt(msg string) Option {
	return func(o *Orchestrator) { o.keyPrompt = msg }
}

// Orchestrator serialises chat requests for one session
type Orchestrator struct {
	mu sync.Mutex

	session   *session.Session
	completer llm.Completer
	creds     credentials.Store
	prompter  credentials.Prompter
	display   Display
	retriever ContextRetriever

	temperature float64
	policy      retry.Policy
	keyPrompt   string
	logger      *logging.Logger
}

// New creates an Orchestrator for sess
func New(sess *session.Session, completer llm.Completer, creds credentials.Store, prompter credentials.Prompter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		session:     sess,
		completer:   completer,
		creds:       creds,
		prompter:    prompter,
		display:     nopDisplay{},
		temperature: DefaultTemperature,
		policy:      retry.DefaultPolicy(),
		keyPrompt:   defaultKeyPrompt,
		logger:      logging.WithComponent("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Session returns the session this orchestrator serves
func (o *Orchestrator) Session() *session.Session {
	return o.session
}

// TokenEstimate returns the rough token count of the stored conversation
func (o *Orchestrator) TokenEstimate() int {
	return o.session.TokenEstimate()
}

// Clear resets the session between requests
func (o *Orchestrator) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.session.Clear()
}

// Send runs one request. Failures are reported on the display and folded into the
// Result; Send never returns an error.
func (o *Orchestrator) Send(ctx context.Context, content string, target DisplayTarget, override *mode.Mode) Result {
	o.mu.Lock()
	defer o.mu.Unlock()

	requestID := ulid.Make().String()
	logger := o.logger.With("request_id", requestID, "target", target.String())
	logger.Info("Chat request started", "content_chars", len(content), "explicit_mode", override != nil)

	var (
		tracker  = retry.NewTracker(o.policy)
		apiKey   string
		composed bool
		current  mode.Mode
		messages []llm.Message
		reply    string
		lastErr  error
	)

	for {
		switch tracker.State() {
		case retry.AwaitingKey:
			key, ok := o.resolveKey(ctx)
			if !ok {
				tracker.Next(retry.KeyRefused)
				continue
			}
			apiKey = key
			if !composed {
				current, messages = o.compose(ctx, content, override)
				composed = true
			}
			tracker.Next(retry.KeyResolved)

		case retry.Requesting:
			logger.Info("Sending completion request",
				"attempt", tracker.Attempt(),
				"provider", o.completer.Name(),
				"mode", current.String(),
				"messages", len(messages),
			)
			var err error
			reply, err = o.completer.Complete(ctx, apiKey, messages, o.temperature)
			switch {
			case err == nil:
				tracker.Next(retry.RequestSucceeded)
			case llm.IsAuthError(err):
				logger.Warn("Authentication failed, clearing API key", "attempt", tracker.Attempt(), "error", err)
				if clearErr := o.creds.Clear(); clearErr != nil {
					logger.Error("Failed to clear API key", "error", clearErr)
				}
				tracker.Next(retry.RequestAuthFailed)
			default:
				lastErr = err
				tracker.Next(retry.RequestFailed)
			}

		case retry.AuthFailure:
			o.display.Show(ctx, TargetToast, invalidKeyNotice)
			tracker.Next(retry.Retry)

		case retry.Success:
			o.session.History.Append(
				session.NewTurn(session.RoleUser, content, mode.Ptr(current)),
				session.NewTurn(session.RoleAssistant, reply, mode.Ptr(current)),
			)
			logger.Info("Chat request completed", "attempts", tracker.Attempt(), "reply_chars", len(reply))

			if target == TargetCaller {
				return Result{Outcome: Replied, Text: reply, Mode: current, RequestID: requestID}
			}
			o.display.Show(ctx, target, reply)
			return Result{Outcome: Displayed, Mode: current, RequestID: requestID}

		case retry.OtherFailure:
			logger.Error("Chat request failed", "error", lastErr)
			o.display.Show(ctx, TargetToast, "Error: "+lastErr.Error())
			return Result{Outcome: RequestFailed, Text: RequestFailedText, Mode: current, RequestID: requestID}

		case retry.Exhausted:
			logger.Error("Retry limit reached", "retries", tracker.Retries())
			o.display.Show(ctx, TargetToast, RetriesExhaustedText)
			return Result{Outcome: RetriesExhausted, Text: RetriesExhaustedText, Mode: current, RequestID: requestID}

		case retry.Canceled:
			logger.Info("API key setup canceled")
			o.display.Show(ctx, TargetToast, SetupCanceledText)
			return Result{Outcome: SetupCanceled, Text: SetupCanceledText, Mode: o.session.Mode(), RequestID: requestID}
		}
	}
}

// resolveKey returns the stored key or asks for one, storing what the user supplies
func (o *Orchestrator) resolveKey(ctx context.Context) (string, bool) {
	if key, ok := o.creds.Get(); ok {
		return key, true
	}
	if o.prompter == nil {
		return "", false
	}

	key, ok := o.prompter.Ask(ctx, o.keyPrompt)
	if !ok {
		return "", false
	}
	if err := o.creds.Set(key); err != nil {
		o.logger.Warn("Failed to store API key, using it for this request only", "error", err)
	}
	return key, true
}

// compose resolves the mode, runs the one-shot assignment injection and builds the
// outgoing message list. When the injection fires the persona travels in the injected
// head turn; otherwise a per-request system message carries it.
func (o *Orchestrator) compose(ctx context.Context, content string, override *mode.Mode) (mode.Mode, []llm.Message) {
	current := o.session.Selector.Select(content, override)

	var messages []llm.Message
	if !o.session.MaybeInjectAssignment(current) {
		system := persona.WithKnowledge(persona.Prompt(current), o.session.Knowledge.Aggregate())
		messages = append(messages, llm.Message{Role: string(session.RoleSystem), Content: system})
	}

	for _, t := range o.session.History.FilterForReplay(current) {
		messages = append(messages, llm.Message{Role: string(t.Role), Content: t.Content})
	}

	return current, append(messages, llm.Message{Role: string(session.RoleUser), Content: o.withReferences(ctx, content)})
}

func (o *Orchestrator) withReferences(ctx context.Context, content string) string {
	if o.retriever == nil {
		return content
	}
	prefix, err := o.retriever.Retrieve(ctx, content)
	if err != nil {
		o.logger.Warn("Reference retrieval failed, sending without references", "error", err)
		return content
	}
	return prefix + content
}
