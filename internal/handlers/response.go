package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

// WriteError writes an error response in JSON format
func WriteError(w http.ResponseWriter, status int, message string, logger *slog.Logger) {
	WriteJSON(w, status, map[string]string{"error": message}, logger)
}

// WriteDomainError picks the status for err and logs server-side failures.
func WriteDomainError(w http.ResponseWriter, err error, logger *slog.Logger, attrs ...any) {
	status, message := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", append(attrs, "error", err)...)
	} else {
		logger.Info("request rejected", append(attrs, "status", status, "error", err)...)
	}
	WriteError(w, status, message, logger)
}
