package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mrkeshav-05/learning-backend/auth"
)

// Statuses the auth API answers with.
const (
	StatusOK            = http.StatusOK
	StatusCreated       = http.StatusCreated
	StatusBadRequest    = http.StatusBadRequest
	StatusUnauthorized  = http.StatusUnauthorized
	StatusNotFound      = http.StatusNotFound
	StatusConflict      = http.StatusConflict
	StatusInternalError = http.StatusInternalServerError
)

// Client-facing messages. Authentication failures map onto a few coarse ones.
const (
	MsgUnauthorized       = "Unauthorized request"
	MsgInvalidCredentials = "Invalid user credentials"
	MsgRefreshRejected    = "Refresh token is expired or used"
	MsgConflict           = "User with email or username already exists"
	MsgInvalidRequest     = "Invalid request"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// StatusFor maps an error to the status and message a client may see.
func StatusFor(err error) (int, string) {
	var he *echo.HTTPError
	switch {
	case err == nil:
		return StatusOK, ""
	case errors.Is(err, auth.ErrValidation):
		if msg := auth.ValidationMessage(err); msg != "" {
			return StatusBadRequest, msg
		}
		return StatusBadRequest, MsgInvalidRequest
	case errors.Is(err, auth.ErrConflict):
		return StatusConflict, MsgConflict
	case errors.Is(err, auth.ErrInvalidCredentials):
		return StatusUnauthorized, MsgInvalidCredentials
	case errors.Is(err, auth.ErrTokenReused), errors.Is(err, auth.ErrInvalidToken):
		return StatusUnauthorized, MsgRefreshRejected
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrNotFound):
		return StatusUnauthorized, MsgUnauthorized
	case errors.As(err, &he):
		msg := http.StatusText(he.Code)
		switch m := he.Message.(type) {
		case string:
			msg = m
		case error:
			msg = m.Error()
		case nil:
		default:
			msg = fmt.Sprint(m)
		}
		return he.Code, msg
	default:
		return StatusInternalError, http.StatusText(StatusInternalError)
	}
}

func logError(logger *slog.Logger, r *http.Request, status int, err error) {
	attrs := []slog.Attr{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	}
	if status >= StatusInternalError {
		logger.LogAttrs(r.Context(), slog.LevelError, "request failed", attrs...)
		return
	}
	logger.LogAttrs(r.Context(), slog.LevelInfo, "request rejected", attrs...)
}

// NewErrorHandler builds the echo error handler. The full error chain is
// logged; the response carries only the mapped message.
func NewErrorHandler(logger *slog.Logger) HTTPErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(err error, c Context) {
		if c.Response().Committed {
			return
		}
		status, msg := StatusFor(err)
		logError(logger, c.Request(), status, err)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, ErrorBody{StatusCode: status, Message: msg})
	}
}

// WriteAuthError is an auth.MiddlewareErrorHandler that answers in the same
// shape as NewErrorHandler.
func WriteAuthError(logger *slog.Logger) auth.MiddlewareErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request, err error) {
		status, msg := StatusFor(err)
		logError(logger, r, status, err)
		w.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(ErrorBody{StatusCode: status, Message: msg})
	}
}
