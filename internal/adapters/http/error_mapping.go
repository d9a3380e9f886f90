package httpadapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/albertai/studyset/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType
	case domain.IsKind(err, domain.ErrCorruptDocument):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
