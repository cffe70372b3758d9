package api

import (
	"encoding/json"
	"net/http"
)

// errorResponse is the envelope for all error responses.
type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// writeJSON writes a JSON response with the given status. Marshal failures
// fall back to a bare 500; there is nothing more useful to do at that point.
func writeJSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorDetail{Code: code, Message: message}})
}

func writeValidationError(w http.ResponseWriter, details map[string]any) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorDetail{
		Code:    "validation_failed",
		Message: "request body failed validation",
		Details: details,
	}})
}
