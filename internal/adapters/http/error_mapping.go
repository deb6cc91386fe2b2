package httpadapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/kirillkom/policy-qa/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrRetrieval), domain.IsKind(err, domain.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicErrorMessage keeps upstream details out of responses; they are in the logs.
func publicErrorMessage(status int, err error) string {
	switch status {
	case http.StatusBadRequest:
		return err.Error()
	case http.StatusGatewayTimeout:
		return "answer timed out"
	case http.StatusServiceUnavailable:
		return "a dependency is temporarily unavailable"
	case http.StatusBadGateway:
		if domain.IsKind(err, domain.ErrRetrieval) {
			return "retrieval failed"
		}
		return "answer generation failed"
	default:
		return "internal server error"
	}
}
