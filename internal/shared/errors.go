package shared

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed = fmt.Errorf("authentication failed")
	ErrTimeout    = fmt.Errorf("operation timed out")

	// Upstream errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrRateLimited        = fmt.Errorf("rate limited")
	ErrUpstreamProtocol   = fmt.Errorf("unexpected upstream response")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)

// Kind classifies an [Error] so callers can decide whether to retry, and so transports can map it to a status.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuthFailure
	KindRateLimited
	KindUpstreamTimeout
	KindUpstreamProtocol
	KindInvalidInput
	KindUpstream // any other non-2xx upstream status
)

func (k Kind) String() string {
	switch k {
	case KindAuthFailure:
		return "auth_failure"
	case KindRateLimited:
		return "rate_limited"
	case KindUpstreamTimeout:
		return "upstream_timeout"
	case KindUpstreamProtocol:
		return "upstream_protocol_error"
	case KindInvalidInput:
		return "invalid_input"
	case KindUpstream:
		return "upstream_error"
	default:
		return "unknown"
	}
}

// sentinel returns the package-level error a kind matches under [errors.Is].
func (k Kind) sentinel() error {
	switch k {
	case KindAuthFailure:
		return ErrAuthFailed
	case KindRateLimited:
		return ErrRateLimited
	case KindUpstreamTimeout:
		return ErrTimeout
	case KindUpstreamProtocol:
		return ErrUpstreamProtocol
	case KindInvalidInput:
		return ErrInvalidInput
	case KindUpstream:
		return ErrAPIRequest
	default:
		return nil
	}
}

// Error is the structured error returned by the credential cache and catalog client.
//
// It carries enough for a caller to decide what to do: the [Kind], the operation that failed,
// the upstream status (if any) and the upstream retry hint for [KindRateLimited].
type Error struct {
	Kind       Kind
	Op         string
	Msg        string
	Status     int
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		if s := e.Kind.sentinel(); s != nil {
			msg = s.Error()
		} else {
			msg = "error"
		}
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind, so errors.Is(err, ErrRateLimited) works.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// NewError builds an [Error] of the given kind.
func NewError(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// KindOf returns the [Kind] of the first [Error] in err's chain, or [KindUnknown].
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// RetryAfterOf returns the retry hint carried by err, or zero.
func RetryAfterOf(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}
