package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/p-n-ai/pai-roadmap/internal/navigator"
	"github.com/p-n-ai/pai-roadmap/internal/progress"
)

var (
	errTrackNotFound = errors.New("track not found")
	errInvalidInput  = errors.New("invalid input")
)

// ErrorDetail is the body of every error response. Back links the caller
// to a page it can recover from.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Back    string `json:"back,omitempty"`
}

type errorResponse struct {
	Error ErrorDetail `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// respondError maps domain errors onto status codes.
func respondError(w http.ResponseWriter, err error, back string) {
	status, code := classify(err)
	detail := ErrorDetail{Code: code, Message: err.Error()}

	switch status {
	case http.StatusNotFound:
		detail.Back = back
	case http.StatusInternalServerError:
		slog.Error("request failed", "error", err)
		detail.Message = "internal error"
	}

	respondJSON(w, status, errorResponse{Error: detail})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, navigator.ErrModuleNotFound):
		return http.StatusNotFound, "module_not_found"
	case errors.Is(err, navigator.ErrTopicNotFound):
		return http.StatusNotFound, "topic_not_found"
	case errors.Is(err, errTrackNotFound):
		return http.StatusNotFound, "track_not_found"
	case errors.Is(err, errInvalidInput), errors.Is(err, progress.ErrInvalidTopicIndex):
		return http.StatusBadRequest, "invalid_input"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errInvalidInput, fmt.Sprintf(format, args...))
}
