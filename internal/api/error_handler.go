package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/getbazar/bazar-api/internal/api/handler"
	"github.com/getbazar/bazar-api/internal/core/domain"
)

// Error codes rendered in the "code" field of the error envelope.
const (
	CodeInvalidCredential    = "INVALID_CREDENTIAL"
	CodeNotRegisteredLocally = "NOT_REGISTERED_LOCALLY"
	CodeConflict             = "CONFLICT"
	CodePermissionDenied     = "PERMISSION_DENIED"
	CodeNotFound             = "NOT_FOUND"
	CodeProviderFailure      = "PROVIDER_FAILURE"
	CodeInvariantViolation   = "INVARIANT_VIOLATION"
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodeInternal             = "INTERNAL"
	CodeUnavailable          = "UNAVAILABLE"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type errorClass struct {
	kind   error
	status int
	code   string
}

var errorClasses = []errorClass{
	{domain.ErrInvalidCredential, http.StatusUnauthorized, CodeInvalidCredential},
	{domain.ErrNotRegisteredLocally, http.StatusForbidden, CodeNotRegisteredLocally},
	{domain.ErrConflict, http.StatusConflict, CodeConflict},
	{domain.ErrPermissionDenied, http.StatusForbidden, CodePermissionDenied},
	{domain.ErrNotFound, http.StatusNotFound, CodeNotFound},
	{domain.ErrProviderFailure, http.StatusBadGateway, CodeProviderFailure},
	{domain.ErrInvariantViolation, http.StatusBadRequest, CodeInvariantViolation},
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps domain error classes to their HTTP status and code.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>", "code": "<CODE>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, resp := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, resp)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, errorResponse) {
	var ve *handler.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, errorResponse{Error: ve.Error(), Code: CodeValidationFailed}
	}
	if errors.Is(err, domain.ErrQueueFull) {
		return http.StatusServiceUnavailable, errorResponse{Error: domain.ErrQueueFull.Error(), Code: CodeUnavailable}
	}

	for _, cls := range errorClasses {
		if errors.Is(err, cls.kind) {
			if cls.status >= http.StatusInternalServerError {
				log.Warn().Err(err).
					Str("method", c.Request().Method).
					Str("path", c.Path()).
					Msg("upstream failure")
			}
			return cls.status, errorResponse{Error: domain.Message(err), Code: cls.code}
		}
	}

	// Echo's own errors (bind failures, 404 from router, body limit, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorResponse{Error: fmt.Sprintf("%v", he.Message), Code: codeForStatus(he.Code)}
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, errorResponse{Error: "internal server error", Code: CodeInternal}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return CodeValidationFailed
	case http.StatusUnauthorized:
		return CodeInvalidCredential
	case http.StatusForbidden:
		return CodePermissionDenied
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	}
	if status >= http.StatusInternalServerError {
		return CodeInternal
	}
	return http.StatusText(status)
}
