// Package apperr defines the sentinel error taxonomy shared across the
// ingestion, search and question-answering core. Every error that
// crosses a package boundary is wrapped with one of these sentinels so
// the transport layer can classify it into an HTTP status without
// inspecting error strings.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors. Compare with errors.Is, never string matching.
var (
	ErrInvalidQuery        = errors.New("invalid query")
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrAlreadyIngesting    = errors.New("already ingesting")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrLLMTimeout          = errors.New("llm timeout")
	ErrCanceled            = errors.New("canceled")
	ErrInternal            = errors.New("internal error")
)

// Status returns the HTTP status code for a sentinel error, walking the
// wrap chain with errors.Is. Unrecognized errors map to 500.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrAlreadyIngesting):
		return http.StatusConflict
	case errors.Is(err, ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrLLMTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrCanceled):
		return 499
	case errors.Is(err, ErrInternal):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Stage wraps err with the sentinel and the name of the stage that
// failed (e.g. "embed", "upsert", "llm", "cache", "chunk"), so a
// client-facing error always names where it went wrong.
func Stage(sentinel error, stage string, err error) error {
	return fmt.Errorf("%w: stage=%s: %v", sentinel, stage, err)
}
