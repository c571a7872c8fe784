// Package retry models the credential retry loop of a chat request as a finite state machine.
package retry

import "fmt"

// State is a position in the request lifecycle
type State int

const (
	AwaitingKey State = iota
	Requesting
	Success
	AuthFailure
	OtherFailure
	Exhausted
	Canceled
)

func (s State) String() string {
	switch s {
	case AwaitingKey:
		return "awaiting-key"
	case Requesting:
		return "requesting"
	case Success:
		return "success"
	case AuthFailure:
		return "auth-failure"
	case OtherFailure:
		return "other-failure"
	case Exhausted:
		return "exhausted"
	case Canceled:
		return "canceled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further events are accepted
func (s State) Terminal() bool {
	switch s {
	case Success, OtherFailure, Exhausted, Canceled:
		return true
	}
	return false
}

// Event drives a transition
type Event int

const (
	KeyResolved Event = iota
	KeyRefused
	RequestSucceeded
	RequestAuthFailed
	RequestFailed
	Retry
)

func (e Event) String() string {
	switch e {
	case KeyResolved:
		return "key-resolved"
	case KeyRefused:
		return "key-refused"
	case RequestSucceeded:
		return "request-succeeded"
	case RequestAuthFailed:
		return "request-auth-failed"
	case RequestFailed:
		return "request-failed"
	case Retry:
		return "retry"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// DefaultMaxRetries is the number of credential retries after the first attempt
const DefaultMaxRetries = 2

// Policy bounds the retry loop. There is no backoff between attempts.
type Policy struct {
	MaxRetries int
}

// DefaultPolicy returns the standard policy
func DefaultPolicy() Policy {
	return Policy{MaxRetries: DefaultMaxRetries}
}

// Tracker walks one request through the state machine
type Tracker struct {
	policy  Policy
	state   State
	retries int
}

// NewTracker starts a tracker in AwaitingKey. Negative retry limits are treated as zero.
func NewTracker(p Policy) *Tracker {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	return &Tracker{policy: p, state: AwaitingKey}
}

// State returns the current state
func (t *Tracker) State() State { return t.state }

// Retries returns how many retries have been taken
func (t *Tracker) Retries() int { return t.retries }

// Attempt returns the 1-based number of the current attempt
func (t *Tracker) Attempt() int { return t.retries + 1 }

// Next applies an event and returns the resulting state. Events that are not valid
// in the current state leave it unchanged.
func (t *Tracker) Next(e Event) State {
	switch t.state {
	case AwaitingKey:
		switch e {
		case KeyResolved:
			t.state = Requesting
		case KeyRefused:
			t.state = Canceled
		}
	case Requesting:
		switch e {
		case RequestSucceeded:
			t.state = Success
		case RequestFailed:
			t.state = OtherFailure
		case RequestAuthFailed:
			if t.retries >= t.policy.MaxRetries {
				t.state = Exhausted
			} else {
				t.state = AuthFailure
			}
		}
	case AuthFailure:
		if e == Retry {
			t.retries++
			t.state = AwaitingKey
		}
	}
	return t.state
}
