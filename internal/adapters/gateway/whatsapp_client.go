package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultGraphBaseURL is the Meta Graph API host
const DefaultGraphBaseURL = "https://graph.facebook.com"

// WhatsAppClient sends messages through the WhatsApp Cloud API
type WhatsAppClient struct {
	httpClient *resty.Client
	apiVersion string
}

// NewWhatsAppClient creates a new Cloud API client
func NewWhatsAppClient(baseURL, apiVersion string, timeout time.Duration) *WhatsAppClient {
	if baseURL == "" {
		baseURL = DefaultGraphBaseURL
	}
	if apiVersion == "" {
		apiVersion = "v20.0"
	}
	return &WhatsAppClient{
		httpClient: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		apiVersion: apiVersion,
	}
}

// SendTextRequest represents the Cloud API text message payload
type SendTextRequest struct {
	MessagingProduct string `json:"messaging_product"`
	RecipientType    string `json:"recipient_type"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		PreviewURL bool   `json:"preview_url"`
		Body       string `json:"body"`
	} `json:"text"`
}

// SendTextResponse represents the Cloud API answer
type SendTextResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// SendText sends a text message and returns the provider message id.
// A single attempt is made; a retried send could reach the customer twice.
//
// Returns specific errors:
// - domain.ErrTokenExpired: Token invalid/expired (code 190) → Caller should deactivate the account
// - domain.ErrRateLimited: Rate limit exceeded
// - domain.ErrPermissionDenied: Missing permissions
func (c *WhatsAppClient) SendText(ctx context.Context, phoneID, accessToken, to, text string) (string, error) {
	payload := SendTextRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               strings.TrimPrefix(to, "+"),
		Type:             "text",
	}
	payload.Text.Body = text

	// Log outgoing request (without token for security)
	slog.Info("Sending message to WhatsApp",
		"phone_id", phoneID,
		"to", to,
		"text_length", len(text),
	)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetBody(payload).
		Post(fmt.Sprintf("/%s/%s/messages", c.apiVersion, phoneID))
	if err != nil {
		slog.Error("Failed to send request to WhatsApp", "error", err, "phone_id", phoneID)
		return "", fmt.Errorf("whatsapp api request failed: %w", err)
	}

	if resp.IsError() {
		return "", graphErrorFrom(resp.StatusCode(), resp.Body())
	}

	var sendResp SendTextResponse
	if err := json.Unmarshal(resp.Body(), &sendResp); err != nil || len(sendResp.Messages) == 0 {
		// A 2xx means the message was accepted even without an id
		slog.Warn("Failed to parse success response",
			"error", err,
			"body", string(resp.Body()),
		)
		return "", nil
	}

	waID := sendResp.Messages[0].ID
	slog.Info("Message sent successfully",
		"phone_id", phoneID,
		"wa_message_id", waID,
	)
	return waID, nil
}
