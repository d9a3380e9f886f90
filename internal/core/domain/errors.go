package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrTemporary    = errors.New("temporary failure")

	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrCorruptDocument      = errors.New("corrupt document")

	ErrTransportFailure = errors.New("transport failure")
	ErrUpstream         = errors.New("upstream error")
	ErrEmptyResponse    = errors.New("empty response")

	ErrMalformedJSON   = errors.New("malformed json")
	ErrSchemaViolation = errors.New("schema violation")

	ErrPersistence = errors.New("persistence error")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// KindOf names the most specific error kind carried by err, as reported to callers.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrUnsupportedMediaType):
		return "unsupported_media_type"
	case errors.Is(err, ErrCorruptDocument):
		return "corrupt_document"
	case errors.Is(err, ErrUpstream):
		return "upstream_error"
	case errors.Is(err, ErrEmptyResponse):
		return "empty_response"
	case errors.Is(err, ErrTransportFailure):
		return "transport_failure"
	case errors.Is(err, ErrMalformedJSON):
		return "malformed_json"
	case errors.Is(err, ErrSchemaViolation):
		return "schema_violation"
	case errors.Is(err, ErrPersistence):
		return "persistence_error"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
