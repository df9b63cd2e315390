package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"crm-whatsapp/internal/core/domain"
	"crm-whatsapp/internal/core/services"
)

// maxWebhookBody caps a single delivery; Meta batches stay well below it
const maxWebhookBody = 1 << 20

// WebhookProcessor runs a delivery through the inbound pipeline
type WebhookProcessor interface {
	ProcessWebhook(ctx context.Context, payload []byte) (*services.WebhookSummary, error)
}

// VerifyTokenChecker backs the subscription handshake
type VerifyTokenChecker interface {
	VerifyToken(ctx context.Context, token string) (bool, error)
}

// WebhookHandler handles WhatsApp Cloud API webhook verification and events
type WebhookHandler struct {
	processor WebhookProcessor
	tokens    VerifyTokenChecker
	appSecret string // For HMAC signature validation; empty disables the check
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(processor WebhookProcessor, tokens VerifyTokenChecker, appSecret string) *WebhookHandler {
	return &WebhookHandler{
		processor: processor,
		tokens:    tokens,
		appSecret: appSecret,
	}
}

// ============================================================================
// GET /webhooks/whatsapp - Webhook Verification
// ============================================================================

// HandleVerify answers the subscription challenge.
// Ref: https://developers.facebook.com/docs/graph-api/webhooks/getting-started#verification-requests
func (h *WebhookHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode != "subscribe" || token == "" || challenge == "" {
		writeJSON(w, http.StatusBadRequest, BadRequestResponse("invalid verification payload"))
		return
	}

	ok, err := h.tokens.VerifyToken(r.Context(), token)
	if err != nil {
		slog.Error("Failed to check verify token", "error", err)
		writeJSON(w, http.StatusInternalServerError, InternalErrorResponse("Internal server error"))
		return
	}
	if !ok {
		slog.Warn("Webhook verification failed", "mode", mode)
		writeJSON(w, http.StatusForbidden, NewErrorResponse(http.StatusForbidden, "verify token not found"))
		return
	}

	slog.Info("Webhook verification successful")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

// ============================================================================
// POST /webhooks/whatsapp - Webhook Events
// ============================================================================

// HandleEvent processes a delivery and answers with the processing summary.
// Individual message failures are counted in the summary, never turned into
// an error status.
func (h *WebhookHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	// ========================================================================
	// Step 1: Read request body
	// ========================================================================
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		slog.Error("Failed to read webhook body", "error", err)
		writeJSON(w, http.StatusBadRequest, BadRequestResponse("invalid payload"))
		return
	}

	// ========================================================================
	// Step 2: Validate HMAC signature when an app secret is configured
	// ========================================================================
	if h.appSecret != "" {
		signature := r.Header.Get("X-Hub-Signature-256")
		if signature == "" {
			slog.Warn("Webhook received without signature header")
			writeJSON(w, http.StatusForbidden, NewErrorResponse(http.StatusForbidden, "missing signature"))
			return
		}
		if !validateSignature(h.appSecret, body, signature) {
			slog.Warn("Webhook signature validation failed")
			writeJSON(w, http.StatusForbidden, NewErrorResponse(http.StatusForbidden, "invalid signature"))
			return
		}
	}

	// ========================================================================
	// Step 3: Process synchronously and report the summary
	// ========================================================================
	summary, err := h.processor.ProcessWebhook(r.Context(), body)
	if err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			writeJSON(w, http.StatusBadRequest, BadRequestResponse("invalid payload"))
			return
		}
		slog.Error("WhatsApp webhook error", "error", err)
		writeJSON(w, http.StatusInternalServerError, InternalErrorResponse(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, NewSuccessResponse(summary))
}

// ============================================================================
// HMAC Signature Validation
// ============================================================================

// validateSignature checks "sha256=<hex>" against HMAC-SHA256(body, secret)
// Ref: https://developers.facebook.com/docs/graph-api/webhooks/getting-started#event-notifications
func validateSignature(secret string, payload []byte, signatureHeader string) bool {
	const prefix = "sha256="
	if !strings.HasPrefix(signatureHeader, prefix) {
		return false
	}
	expected, err := hex.DecodeString(strings.TrimPrefix(signatureHeader, prefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)

	// Constant-time comparison
	return hmac.Equal(mac.Sum(nil), expected)
}
