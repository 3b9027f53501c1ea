package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"parcelhub/distribution"
	"parcelhub/repository"
	"parcelhub/service"
)

// ApiResponse is the envelope of every JSON response.
type ApiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, resp ApiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func writeOK(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, ApiResponse{Success: true, Message: message, Data: data})
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		msg := "Invalid request payload: " + err.Error()
		if errors.Is(err, io.EOF) {
			msg = "Request body is required"
		}
		writeJSON(w, http.StatusBadRequest, ApiResponse{Success: false, Message: msg})
		return false
	}
	return true
}

// MethodNotAllowed answers 405 inside the usual envelope.
func MethodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, ApiResponse{
		Success: false,
		Message: "Invalid request method",
	})
}

// statusFor maps service and store errors onto HTTP status codes.
func statusFor(err error) int {
	var rejection *service.RejectionError
	var infeasible *distribution.InfeasibleError
	switch {
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, distribution.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &rejection),
		errors.Is(err, repository.ErrPackageInPull),
		errors.Is(err, repository.ErrDuplicateGuide):
		return http.StatusConflict
	case errors.As(err, &infeasible):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the mapped status. Internal errors are logged and
// their detail is not sent to the client.
func writeError(w http.ResponseWriter, log *zap.Logger, r *http.Request, err error) {
	status := statusFor(err)
	resp := ApiResponse{Success: false, Message: err.Error()}

	var rejection *service.RejectionError
	if errors.As(err, &rejection) {
		resp.Data = map[string]string{"id": rejection.ID, "reason": string(rejection.Reason)}
	}
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		resp.Message = fmt.Sprintf("internal error while handling %s", r.URL.Path)
	}
	writeJSON(w, status, resp)
}
