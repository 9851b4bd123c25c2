package api

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"sls-log-analyzer/analyzer"
)

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, successResponse{Success: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, short, message string) {
	writeJSON(w, status, errorResponse{Error: short, Message: message})
}

// statusFor maps core errors to HTTP status codes.
func statusFor(err error) (int, string) {
	var (
		ife *analyzer.InvalidFilterError
		ie  *analyzer.IngestionError
		mbe *http.MaxBytesError
	)
	switch {
	case errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge, "file too large"
	case errors.As(err, &ife):
		return http.StatusBadRequest, "invalid filter"
	case errors.Is(err, analyzer.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.As(err, &ie):
		return http.StatusInternalServerError, "ingestion failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, short := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logErr(r, err)
	}
	writeError(w, status, short, err.Error())
}
