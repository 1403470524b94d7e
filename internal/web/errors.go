package web

// errors.go turns service errors into JSON responses. The technical error is
// logged with the request id; the client receives the mapped user message.

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/nutriload/internal/core"
	"github.com/JonMunkholm/nutriload/internal/logging"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error  string `json:"error"`
	Action string `json:"action,omitempty"`
	Code   string `json:"code"`
}

// respondError logs err and writes its user message with a status derived
// from the error kind.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	ue := core.NewUserError(err)
	status := statusFor(ue)
	msg := ue.User

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
		"error", ue.Technical.Error(),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request rejected", attrs...)
	}

	if errors.Is(ue, core.ErrRunInProgress) {
		w.Header().Set("Retry-After", "30")
	}
	writeJSON(w, status, ErrorResponse{Error: msg.Message, Action: msg.Action, Code: msg.Code})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrRunNotFound), errors.Is(err, core.ErrFoodNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDuplicateRun):
		return http.StatusConflict
	case errors.Is(err, core.ErrRunInProgress):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrEmptyRunID):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// badRequest writes a 400 for malformed input that never reached the service.
func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Code: "REQ001"})
}
