package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorCodeBadInput            = "HOOKWISE_BAD_INPUT"
	ErrorCodeIntegrationNotFound = "HOOKWISE_INTEGRATION_NOT_FOUND"
	ErrorCodeIntegrationPaused   = "HOOKWISE_INTEGRATION_PAUSED"
	ErrorCodeEndpointNotFound    = "HOOKWISE_ENDPOINT_NOT_FOUND"
	ErrorCodeEventNotFound       = "HOOKWISE_EVENT_NOT_FOUND"
	ErrorCodeProviderUnknown     = "HOOKWISE_PROVIDER_UNKNOWN"
	ErrorCodeCircuitOpen         = "HOOKWISE_CIRCUIT_OPEN"
	ErrorCodeConflict            = "HOOKWISE_CONFLICT"
	ErrorCodeRateLimited         = "HOOKWISE_RATE_LIMITED"
	ErrorCodeInternal            = "HOOKWISE_INTERNAL_ERROR"
)

func serviceErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrIntegrationNotFound):
		return newServiceError(err.Error(), goerrors.CategoryNotFound, ErrorCodeIntegrationNotFound)
	case errors.Is(err, ErrIntegrationNotActive):
		return newServiceError(err.Error(), goerrors.CategoryConflict, ErrorCodeIntegrationPaused)
	case errors.Is(err, ErrEndpointNotFound):
		return newServiceError(err.Error(), goerrors.CategoryNotFound, ErrorCodeEndpointNotFound)
	case errors.Is(err, ErrEventNotFound):
		return newServiceError(err.Error(), goerrors.CategoryNotFound, ErrorCodeEventNotFound)
	case errors.Is(err, ErrUnknownProvider):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, ErrorCodeProviderUnknown)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not found"):
		return newServiceError(err.Error(), goerrors.CategoryNotFound, ErrorCodeIntegrationNotFound)
	case strings.Contains(msg, "paused"):
		return newServiceError(err.Error(), goerrors.CategoryConflict, ErrorCodeIntegrationPaused)
	case strings.Contains(msg, "circuit") && strings.Contains(msg, "open"):
		return newServiceError(err.Error(), goerrors.CategoryConflict, ErrorCodeCircuitOpen)
	case strings.Contains(msg, "transition"):
		return newServiceError(err.Error(), goerrors.CategoryConflict, ErrorCodeConflict)
	case strings.Contains(msg, "throttl"), strings.Contains(msg, "rate limit"):
		return newServiceError(err.Error(), goerrors.CategoryRateLimit, ErrorCodeRateLimited)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, ErrorCodeBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureServiceErrorEnvelope(mapped)
}

func newServiceError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureServiceErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureServiceErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = serviceHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultServiceTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultServiceTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorCodeBadInput
	case goerrors.CategoryNotFound:
		return ErrorCodeIntegrationNotFound
	case goerrors.CategoryConflict:
		return ErrorCodeConflict
	case goerrors.CategoryRateLimit:
		return ErrorCodeRateLimited
	default:
		return ErrorCodeInternal
	}
}

func serviceHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
