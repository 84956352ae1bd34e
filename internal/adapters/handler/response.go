package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// APIResponse represents the standard response envelope for dashboard routes
type APIResponse struct {
	Code    int         `json:"code"`    // HTTP status code (200, 400, 500, etc.)
	Message string      `json:"message"` // Human-readable message ("Success", error description)
	Data    interface{} `json:"data"`    // Actual payload (can be null)
}

// NewSuccessResponse creates a successful response (code 200)
func NewSuccessResponse(data interface{}) APIResponse {
	return APIResponse{
		Code:    http.StatusOK,
		Message: "Success",
		Data:    data,
	}
}

// newErrorResponse builds the envelope for a failed dashboard call
func newErrorResponse(code int, message string) APIResponse {
	return APIResponse{
		Code:    code,
		Message: message,
	}
}

func BadRequestResponse(message string) APIResponse {
	return newErrorResponse(http.StatusBadRequest, message)
}

func UnauthorizedResponse(message string) APIResponse {
	return newErrorResponse(http.StatusUnauthorized, message)
}

// errorBody is the bare error shape used by the webhook and invoke routes
type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Failed to write JSON response", "error", err)
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
