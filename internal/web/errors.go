package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/importer/internal/core"
	"github.com/JonMunkholm/importer/internal/logging"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`

	// Row and Errors are set for build failures
	Row    *int                   `json:"row,omitempty"`
	Errors []core.ValidationError `json:"errors,omitempty"`

	// Result is the partial outcome of an interrupted run
	Result *core.ImportResult `json:"result,omitempty"`
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var be *core.BuildError
	var ve core.ValidationError
	switch {
	case errors.As(err, &be), errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrUnknownKind), errors.Is(err, core.ErrTemplateNotFound), errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrUnsupportedOperation), errors.Is(err, core.ErrUnknownOperation), errors.Is(err, core.ErrInvalidMapping):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrJobMismatch), errors.Is(err, core.ErrTenantBusy):
		return http.StatusConflict
	case errors.Is(err, core.ErrRunBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the mapped user message.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	respondErrorWith(w, r, err, status, nil)
}

// respondErrorWith is respondError carrying the partial result of a run.
func respondErrorWith(w http.ResponseWriter, r *http.Request, err error, status int, result *core.ImportResult) {
	msg := core.MapError(err)

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logging.FromContext(r.Context()).Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	resp := ErrorResponse{
		Error:   err.Error(),
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
		Result:  result,
	}
	var be *core.BuildError
	if errors.As(err, &be) {
		row := be.Row
		resp.Row = &row
		resp.Errors = be.Errors
	}
	// Unmapped errors may carry internals
	if !core.IsUserFacing(err) && status >= http.StatusInternalServerError {
		resp.Error = msg.Message
	}
	writeJSONStatus(w, status, resp)
}

// badRequest writes a 400 for malformed input that never reached the service.
func badRequest(w http.ResponseWriter, message string) {
	writeJSONStatus(w, http.StatusBadRequest, ErrorResponse{Error: message, Code: "REQ001"})
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("json encode error", "error", err)
	}
}
