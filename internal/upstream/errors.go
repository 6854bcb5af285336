// Package upstream holds the HTTP clients for the AI providers the
// generation pipeline talks to, plus the error taxonomy callers use to
// decide retry and response mapping.
package upstream

import (
	"errors"
	"fmt"
)

// Kind classifies an upstream failure.
type Kind int

// Upstream failure kinds.
const (
	KindUnknown       Kind = iota // Unclassified provider error.
	KindBadAuth                   // Missing, invalid, or rejected API key.
	KindRateLimited               // Provider quota or rate limit hit.
	KindTransient                 // Overload or internal provider error.
	KindContentPolicy             // Request blocked by safety filters.
	KindNoImage                   // Response completed but carried no image.
)

// String returns the kind name for logs.
func (k Kind) String() string {
	switch k {
	case KindBadAuth:
		return "bad_auth"
	case KindRateLimited:
		return "rate_limited"
	case KindTransient:
		return "transient"
	case KindContentPolicy:
		return "content_policy"
	case KindNoImage:
		return "no_image"
	default:
		return "unknown"
	}
}

// Error is a classified upstream failure.
type Error struct {
	Kind     Kind
	Provider string // "openai" or "gemini"
	Status   int    // HTTP status when the provider answered, else 0.
	Message  string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (%d): %s", e.Provider, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
}

// Retryable reports whether another attempt could plausibly succeed.
// Only rate limits and transient provider failures qualify.
func (e *Error) Retryable() bool {
	return e.Kind == KindRateLimited || e.Kind == KindTransient
}

// AsError extracts an *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var upstreamErr *Error
	if errors.As(err, &upstreamErr) {
		return upstreamErr, true
	}
	return nil, false
}

// IsRetryable reports whether err is a retryable upstream failure.
func IsRetryable(err error) bool {
	if upstreamErr, ok := AsError(err); ok {
		return upstreamErr.Retryable()
	}
	return false
}

// classifyStatus maps a provider HTTP status to a failure kind.
func classifyStatus(status int) Kind {
	switch {
	case status == 401 || status == 403:
		return KindBadAuth
	case status == 429:
		return KindRateLimited
	case status >= 500:
		return KindTransient
	default:
		return KindUnknown
	}
}
