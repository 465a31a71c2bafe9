package provider

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a provider failure.
type ErrorKind string

const (
	// ErrCapability: the requested mode is unsupported by the active
	// provider, or edit was requested with no prior image.
	ErrCapability ErrorKind = "capability"
	// ErrConfig: missing URL or credential, caught before any network call.
	ErrConfig ErrorKind = "config"
	// ErrTransport: network unreachable, non-2xx response, or malformed body.
	ErrTransport ErrorKind = "transport"
	// ErrTimeout: the call exceeded its deadline.
	ErrTimeout ErrorKind = "timeout"
)

// Error is the single error value adapters and the router surface.
// Provider-specific exception types never cross the adapter boundary.
type Error struct {
	Kind   ErrorKind
	Status int
	Code   string
	Detail string
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrTimeout:
		return "request timed out: " + e.Detail
	case ErrTransport:
		if e.Status > 0 {
			return fmt.Sprintf("provider request failed (HTTP %d): %s", e.Status, e.Detail)
		}
		return "provider request failed: " + e.Detail
	default:
		return e.Detail
	}
}

// CapabilityError reports an unsupported mode or missing precondition.
func CapabilityError(detail string) *Error {
	return &Error{Kind: ErrCapability, Detail: detail}
}

// ConfigError reports missing or invalid provider configuration.
func ConfigError(detail string) *Error {
	return &Error{Kind: ErrConfig, Detail: detail}
}

// TransportError reports a failed network exchange.
func TransportError(status int, code, detail string) *Error {
	return &Error{Kind: ErrTransport, Status: status, Code: code, Detail: detail}
}

// TimeoutError reports a call that exceeded its deadline.
func TimeoutError(detail string) *Error {
	return &Error{Kind: ErrTimeout, Detail: detail}
}

// Normalize converts an arbitrary failure into the shared taxonomy.
// Already-normalized errors pass through unchanged.
func Normalize(err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TimeoutError(err.Error())
	}
	return TransportError(0, "", err.Error())
}
