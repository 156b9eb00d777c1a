// Package mcperr defines the error taxonomy shared by the daemon and its
// clients. Every error that crosses the IPC boundary carries one of the
// Kind values below so it can be serialized into a protocol.Error envelope
// without string matching.
package mcperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for wire serialization and recovery policy.
type Kind int

const (
	// KindInternal is the zero value; treated as an unexpected failure.
	KindInternal Kind = iota
	KindConfig
	KindEndpointInUse
	KindNotRunning
	KindStaleEndpoint
	KindTimeout
	KindForbidden
	KindBadRequest
	KindMCP
	KindDaemonStartTimeout
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindEndpointInUse:
		return "endpoint_in_use"
	case KindNotRunning:
		return "not_running"
	case KindStaleEndpoint:
		return "stale_endpoint"
	case KindTimeout:
		return "timeout"
	case KindForbidden:
		return "forbidden"
	case KindBadRequest:
		return "bad_request"
	case KindMCP:
		return "mcp_error"
	case KindDaemonStartTimeout:
		return "daemon_start_timeout"
	default:
		return "internal"
	}
}

// Code returns the reserved wire code for this kind (spec §6). Kinds with no
// reserved code (Config, EndpointInUse, StaleEndpoint, MCPError,
// DaemonStartTimeout) never reach the wire directly — they're resolved to
// process exit codes or KindInternal before serialization.
func (k Kind) Code() int {
	switch k {
	case KindBadRequest:
		return 1
	case KindNotRunning:
		return 2
	case KindForbidden:
		return 3
	case KindTimeout:
		return 4
	default:
		return 5
	}
}

// Error is the concrete error type used throughout the daemon and client.
type Error struct {
	Kind    Kind
	Message string
	Err     error // wrapped cause, optional
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, mcperr.KindTimeout) style matching via a sentinel
// comparison on Kind rather than pointer identity.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// RetryableError marks an error as eligible for the pool's retry-with-backoff
// policy (spec §4.C): internal/pool/connect.go wraps a transient MCP
// handshake failure in one of these, and ensureReady's retry loop checks for
// it via errors.As before spending another attempt on a non-retryable
// (e.g. config) error. Grounded on the teacher's types.RetryableError.
type RetryableError struct {
	Err error
}

func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error: %v", e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// KindOf extracts the Kind of err if it is (or wraps) an *Error, defaulting
// to KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
