// Package cwerr defines the stable error taxonomy surfaced through all
// three protocol surfaces (MCP tools, HTTP, CLI exit codes).
//
// Errors are values. Every failure the service layer can produce maps to
// exactly one Kind; the surfaces translate Kind to their own vocabulary
// (HTTP status, JSON-RPC error code, exit code) at the edge.
package cwerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the outward contract.
type Kind string

const (
	// NotFound — the referenced entity does not exist.
	NotFound Kind = "not_found"
	// InvalidArguments — shape, enum, or range violation in caller input.
	InvalidArguments Kind = "invalid_arguments"
	// WipExceeded — a kanban move would violate the target column's WIP limit.
	WipExceeded Kind = "wip_exceeded"
	// InvalidTransition — unknown or disallowed kanban target status.
	InvalidTransition Kind = "invalid_transition"
	// Conflict — optimistic version mismatch or rejected precondition.
	Conflict Kind = "conflict"
	// Unavailable — a backing store or the embedding service is unreachable.
	Unavailable Kind = "unavailable"
	// Degraded — the primary write succeeded but a derived store fell behind.
	// Degraded is a warning at the protocol level, never a hard error.
	Degraded Kind = "degraded"
	// Internal — unclassified bug or corruption.
	Internal Kind = "internal"
)

// Error carries a taxonomy kind, a human message, and optional
// context-specific data that surfaces serialize alongside the message.
type Error struct {
	Kind Kind
	Msg  string
	Data map[string]any
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// E constructs a taxonomy error.
func E(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// WithData attaches context data (e.g. dependent task ids on a Conflict).
func (e *Error) WithData(key string, value any) *Error {
	if e.Data == nil {
		e.Data = make(map[string]any)
	}
	e.Data[key] = value
	return e
}

// KindOf extracts the taxonomy kind from any error chain.
// Unclassified errors report Internal.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return Internal
}

// DataOf extracts attached context data, or nil.
func DataOf(err error) map[string]any {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Data
	}
	return nil
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a kind to the conventional HTTP status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case NotFound:
		return http.StatusNotFound
	case InvalidArguments, InvalidTransition:
		return http.StatusUnprocessableEntity
	case WipExceeded, Conflict:
		return http.StatusConflict
	case Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// JSONRPCCode maps a kind to the integer code carried in protocol errors.
func JSONRPCCode(err error) int {
	switch KindOf(err) {
	case NotFound:
		return -32001
	case InvalidArguments:
		return -32602
	case WipExceeded:
		return -32002
	case InvalidTransition:
		return -32003
	case Conflict:
		return -32004
	case Unavailable:
		return -32005
	default:
		return -32603
	}
}

// ExitCode maps a top-level error to the documented process exit code:
// 0 success, 1 unrecoverable, 2 misuse, 3 precondition failed.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch KindOf(err) {
	case InvalidArguments:
		return 2
	case Unavailable:
		return 3
	default:
		return 1
	}
}
