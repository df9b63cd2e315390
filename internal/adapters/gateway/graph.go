// Package gateway implements external API adapters
// Following Hexagonal Architecture: Outbound adapters for external services
package gateway

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"crm-whatsapp/internal/core/domain"
)

// GraphError represents an error object from the Meta Graph API
type GraphError struct {
	Message      string `json:"message"`
	Type         string `json:"type"`
	Code         int    `json:"code"`
	ErrorSubcode int    `json:"error_subcode"`
	FBTraceID    string `json:"fbtrace_id"`
}

// graphErrorFrom maps a non-2xx Graph API answer to an error.
//
// Returns specific errors:
// - domain.ErrTokenExpired: Token invalid/expired (code 190) → Caller should deactivate the account
// - domain.ErrRateLimited: Rate limit exceeded
// - domain.ErrPermissionDenied: Missing permissions
func graphErrorFrom(statusCode int, body []byte) error {
	var envelope struct {
		Error GraphError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		slog.Error("Graph API error (unparseable)",
			"status_code", statusCode,
			"body", string(body),
		)
		return fmt.Errorf("graph api error %d: %s", statusCode, string(body))
	}

	ge := envelope.Error
	slog.Error("Graph API error",
		"status_code", statusCode,
		"error_code", ge.Code,
		"error_message", ge.Message,
		"error_subcode", ge.ErrorSubcode,
		"fbtrace_id", ge.FBTraceID,
	)

	switch ge.Code {
	case 190:
		return domain.ErrTokenExpired
	case 4, 17, 32, 613:
		return domain.ErrRateLimited
	case 10, 200, 299:
		return domain.ErrPermissionDenied
	case 100:
		return fmt.Errorf("invalid parameter: %s", ge.Message)
	default:
		return fmt.Errorf("graph api error (code %d): %s", ge.Code, ge.Message)
	}
}

// providerResponse wraps a raw answer. A non-JSON body on a 2xx is reported as
// domain.ErrInvalidProviderResponse; on any other status the text is kept as a
// JSON string so the status still reaches the caller.
func providerResponse(statusCode int, body []byte) (*domain.ProviderResponse, error) {
	if len(body) == 0 {
		return &domain.ProviderResponse{StatusCode: statusCode}, nil
	}
	if json.Valid(body) {
		return &domain.ProviderResponse{StatusCode: statusCode, Body: json.RawMessage(body)}, nil
	}
	if statusCode >= 200 && statusCode < 300 {
		return nil, fmt.Errorf("%w: status %d", domain.ErrInvalidProviderResponse, statusCode)
	}

	slog.Warn("Provider answered with a non-JSON error body", "status_code", statusCode)
	quoted, err := json.Marshal(string(body))
	if err != nil {
		return &domain.ProviderResponse{StatusCode: statusCode}, nil
	}
	return &domain.ProviderResponse{StatusCode: statusCode, Body: quoted}, nil
}
