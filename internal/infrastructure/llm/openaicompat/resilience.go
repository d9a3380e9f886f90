package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/albertai/studyset/internal/core/domain"
	"github.com/albertai/studyset/internal/infrastructure/resilience"
)

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "llm status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("llm %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("llm %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return "decode chat completion response: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

func classifyCompletionError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	if errors.Is(err, resilience.ErrAttemptTimeout) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if isRetryableHTTPStatus(statusErr.StatusCode) {
			return resilience.ErrorClassification{
				Retryable:     true,
				RecordFailure: true,
			}
		}
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}

	var decodeErr *decodeError
	if errors.As(err, &decodeErr) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: true,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	// Remaining errors come from the transport (DNS, TLS, connection reset).
	return resilience.ErrorClassification{
		Retryable:     true,
		RecordFailure: true,
	}
}

// wrapCompletionError maps an executor error onto the domain error kinds.
func wrapCompletionError(err error) error {
	if err == nil {
		return nil
	}
	const op = "chat completion"

	var statusErr *HTTPStatusError
	switch {
	case errors.As(err, &statusErr):
		return domain.WrapError(domain.ErrUpstream, op, err)
	case resilience.IsCircuitOpen(err):
		return domain.WrapError(domain.ErrTransportFailure, op, fmt.Errorf("circuit open: %w", err))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	}

	var decodeErr *decodeError
	if errors.As(err, &decodeErr) {
		return domain.WrapError(domain.ErrUpstream, op, err)
	}
	return domain.WrapError(domain.ErrTransportFailure, op, err)
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
