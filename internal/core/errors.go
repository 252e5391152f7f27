// Package core defines the fundamental types and errors for aide.
package core

import "errors"

// Errors that cross package boundaries. Gateway and parse failures are
// normally absorbed into fallbacks at the call site; these exist so callers
// can distinguish the failure class when they do surface.
var (
	// Gateway errors
	ErrGatewayUnavailable  = errors.New("completion gateway unavailable")
	ErrUnparsableResponse  = errors.New("gateway response not parseable")
	ErrEmptyResponse       = errors.New("gateway returned empty response")

	// Backend errors
	ErrBackendFailed   = errors.New("backend call failed")
	ErrEventNotCreated = errors.New("event was not created")
	ErrMailNotSent     = errors.New("mail was not sent")

	// Storage errors
	ErrDatabaseNotFound = errors.New("database not found")
	ErrRecordNotFound   = errors.New("record not found")

	// Validation errors
	ErrInvalidInput    = errors.New("invalid input")
	ErrMissingRequired = errors.New("missing required field")

	// Flow errors
	ErrFlowInactive = errors.New("flow is not active")
	ErrFlowTimedOut = errors.New("flow timed out")
)
