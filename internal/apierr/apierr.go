// Package apierr classifies every error the orchestrator can return into
// the protocol's three categories — validation, protocol-state, internal —
// and maps each to the HTTP status the wire layer surfaces it as.
//
// Grounded on the teacher's internal/rpc/server.go Error type (a
// structured code+message pair attached to a wire response), generalized
// from JSON-RPC's fixed numeric codes to this REST API's category enum
// plus short string codes, since the wire protocol here is plain
// JSON-over-HTTP rather than JSON-RPC 2.0.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Category is one of the three error classes the protocol distinguishes.
type Category int

const (
	// Validation errors are client-visible and recoverable: malformed
	// input, out-of-range values, state already beyond the requested
	// transition. Never mutate state.
	Validation Category = iota
	// ProtocolState errors report on a resource's current state rather
	// than a malformed request: not found, not yet confirmed, nothing
	// available.
	ProtocolState
	// Internal errors are the coordinator's own fault: database or node
	// RPC failures, or a consensus-verify failure on previously-accepted
	// data.
	Internal
)

// Error is a classified, wire-ready API error.
type Error struct {
	Category Category
	Code     string
	Message  string
	cause    error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus maps this error's category and code to the HTTP status the
// wire layer should respond with.
func (e *Error) HTTPStatus() int {
	switch e.Category {
	case Validation:
		return http.StatusBadRequest
	case ProtocolState:
		switch e.Code {
		case "NotFound", "BondNotFound", "NoOffersAvailable":
			return http.StatusNotFound
		case "NotConfirmed":
			return http.StatusConflict
		case "RateLimited":
			return http.StatusTooManyRequests
		default:
			return http.StatusConflict
		}
	default:
		return http.StatusInternalServerError
	}
}

// NewValidation constructs a Validation-category error, e.g. malformed
// bond, amount out of range, duration out of window, offer already taken,
// PSBT not finalizable.
func NewValidation(code, message string) *Error {
	return &Error{Category: Validation, Code: code, Message: message}
}

// NewValidationWrap is NewValidation with an underlying cause attached for
// logging, without leaking that cause's text to the client beyond message.
func NewValidationWrap(code, message string, cause error) *Error {
	return &Error{Category: Validation, Code: code, Message: message, cause: cause}
}

// NewProtocolState constructs a ProtocolState-category error: NotFound,
// NotConfirmed, NoOffersAvailable, or a bond-specific BondNotFound.
func NewProtocolState(code, message string) *Error {
	return &Error{Category: ProtocolState, Code: code, Message: message}
}

// NewInternal wraps an internal failure (database, node RPC, unexpected
// consensus-verify failure on previously-accepted data) for 5xx surfacing.
// Background tasks never call this; it is for request-path failures only.
func NewInternal(code string, cause error) *Error {
	return &Error{Category: Internal, Code: code, Message: "internal error", cause: cause}
}

// As is a convenience wrapper over errors.As for callers classifying an
// arbitrary error returned from store/bond/escrow into an *Error.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
