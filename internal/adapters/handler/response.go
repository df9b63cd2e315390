// Package handler implements HTTP request handlers and the standard response envelope
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"crm-whatsapp/internal/core/domain"
)

// APIResponse represents the standard response envelope.
// ALL API responses use this format except the webhook handshake echo.
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

// NewErrorResponse creates an error response
func NewErrorResponse(code int, message string) APIResponse {
	return APIResponse{
		Code:    code,
		Message: message,
		Data:    nil,
	}
}

// Common error responses
func BadRequestResponse(message string) APIResponse {
	return NewErrorResponse(http.StatusBadRequest, message)
}

func NotFoundResponse(message string) APIResponse {
	return NewErrorResponse(http.StatusNotFound, message)
}

func InternalErrorResponse(message string) APIResponse {
	return NewErrorResponse(http.StatusInternalServerError, message)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

// writeSuccess wraps data in the envelope with the given 2xx status
func writeSuccess(w http.ResponseWriter, status int, data interface{}) {
	resp := NewSuccessResponse(data)
	resp.Code = status
	writeJSON(w, status, resp)
}

// writeError maps domain errors to status codes. Internal failures are logged
// with the request path and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		writeJSON(w, http.StatusBadRequest, APIResponse{
			Code:    http.StatusBadRequest,
			Message: "Invalid payload",
			Data:    vErr.Fields,
		})
		return
	}

	var refErr *domain.UnresolvedReferenceError
	if errors.As(err, &refErr) {
		writeJSON(w, http.StatusBadRequest, BadRequestResponse(refErr.Error()))
		return
	}

	switch {
	case errors.Is(err, domain.ErrConversationNotFound):
		writeJSON(w, http.StatusNotFound, NotFoundResponse("Conversation not found"))
	case errors.Is(err, domain.ErrAccountNotFound):
		writeJSON(w, http.StatusNotFound, NotFoundResponse("WhatsApp account not found"))
	case errors.Is(err, domain.ErrAccountNotLinked):
		writeJSON(w, http.StatusBadRequest, BadRequestResponse("WhatsApp account not linked to this conversation"))
	case errors.Is(err, domain.ErrAccountInactive):
		writeJSON(w, http.StatusBadRequest, BadRequestResponse(
			"WhatsApp number is disconnected. Please reconnect it in Settings",
		))
	case errors.Is(err, domain.ErrTokenExpired):
		// The account was deactivated by the service
		writeJSON(w, http.StatusBadRequest, BadRequestResponse(
			"WhatsApp number lost its connection to Meta. Please reconnect it in Settings",
		))
	case errors.Is(err, domain.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, NewErrorResponse(http.StatusTooManyRequests,
			"Sending too fast. Please wait a few seconds and try again",
		))
	case errors.Is(err, domain.ErrPermissionDenied):
		writeJSON(w, http.StatusForbidden, NewErrorResponse(http.StatusForbidden,
			"The WhatsApp number is not allowed to send messages. Check its Meta permissions",
		))
	case errors.Is(err, domain.ErrSendFailed):
		slog.Error("WhatsApp send failed", "error", err, "path", r.URL.Path)
		writeJSON(w, http.StatusBadGateway, NewErrorResponse(http.StatusBadGateway, "Failed to send message"))
	default:
		slog.Error("Request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
		)
		writeJSON(w, http.StatusInternalServerError, InternalErrorResponse("Internal server error"))
	}
}
