package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"crm-whatsapp/internal/core/domain"
	"crm-whatsapp/internal/core/ports"
)

// Skip and error reasons reported to callers
const (
	ReasonMissingMetaCredentials   = "missing_meta_credentials"
	ReasonMissingGoogleCredentials = "missing_google_credentials"
	ReasonMissingGCLID             = "missing_gclid"
	ReasonGooglePartialFailure     = "google_partial_failure"
)

// hashInput fixes the field order of the dedup hash. Absent values are omitted.
type hashInput struct {
	OrganizationID string   `json:"organizationId"`
	ProjectID      string   `json:"projectId"`
	LeadID         *string  `json:"leadId,omitempty"`
	EventType      string   `json:"eventType"`
	EventTime      *string  `json:"eventTime,omitempty"`
	ClickID        *string  `json:"clickId,omitempty"`
	GCLID          *string  `json:"gclid,omitempty"`
	FBCLID         *string  `json:"fbclid,omitempty"`
	Amount         *float64 `json:"amount,omitempty"`
	Currency       *string  `json:"currency,omitempty"`
}

// PayloadHash is the hex SHA-256 of the canonical JSON of the conversion's
// identifying fields. Meta hashes clickId and fbclid, Google hashes gclid and clickId.
// It doubles as Meta's event_id and Google's orderId.
func PayloadHash(platform domain.Platform, req *domain.ConversionRequest) string {
	in := hashInput{
		OrganizationID: req.OrganizationID,
		ProjectID:      req.ProjectID,
		LeadID:         req.LeadID,
		EventType:      string(req.EventType),
		Amount:         req.Amount,
		Currency:       req.Currency,
	}
	if req.EventTime != nil {
		ts := req.EventTime.UTC().Format(time.RFC3339Nano)
		in.EventTime = &ts
	}
	switch platform {
	case domain.PlatformMeta:
		in.ClickID = req.ClickID
		in.FBCLID = req.FBCLID
	case domain.PlatformGoogle:
		in.GCLID = req.GCLID
		in.ClickID = req.ClickID
	}

	// Marshal of this struct cannot fail
	data, _ := json.Marshal(in)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ConversionService reports funnel conversions to Meta and Google.
// Each call records a funnel event, attempts the send once, and records the attempt.
type ConversionService struct {
	repo   ports.ConversionRepository
	meta   ports.MetaConversionsClient
	google ports.GoogleAdsClient
	events ports.EventPublisher
	now    func() time.Time
}

// NewConversionService creates a new conversion service with dependencies injected
func NewConversionService(
	repo ports.ConversionRepository,
	meta ports.MetaConversionsClient,
	google ports.GoogleAdsClient,
	events ports.EventPublisher,
) *ConversionService {
	return &ConversionService{
		repo:   repo,
		meta:   meta,
		google: google,
		events: events,
		now:    time.Now,
	}
}

// SendMeta dispatches a conversion to the Meta Conversions API.
// Provider failures are reported in the result; only storage failures return an error.
func (s *ConversionService) SendMeta(ctx context.Context, req *domain.ConversionRequest, creds domain.MetaCredentials) (*domain.ConversionResult, error) {
	return s.handle(ctx, domain.PlatformMeta, req, func(hash string) *domain.ConversionResult {
		if !creds.Complete() {
			return skipped(hash, ReasonMissingMetaCredentials)
		}
		resp, err := s.meta.SendEvent(ctx, creds, req, hash)
		return classify(domain.PlatformMeta, hash, resp, err)
	})
}

// SendGoogle uploads a click conversion to Google Ads.
// Provider failures are reported in the result; only storage failures return an error.
func (s *ConversionService) SendGoogle(ctx context.Context, req *domain.ConversionRequest, creds domain.GoogleCredentials) (*domain.ConversionResult, error) {
	return s.handle(ctx, domain.PlatformGoogle, req, func(hash string) *domain.ConversionResult {
		if !creds.Complete() {
			return skipped(hash, ReasonMissingGoogleCredentials)
		}
		gclid := firstNonEmpty(req.GCLID, req.ClickID)
		if gclid == "" {
			return skipped(hash, ReasonMissingGCLID)
		}

		resp, err := s.google.UploadClickConversion(ctx, creds, req, gclid, hash)
		result := classify(domain.PlatformGoogle, hash, resp, err)
		if result.Status == domain.StatusSent && hasPartialFailure(resp.Body) {
			result.Status = domain.StatusError
			result.Reason = ReasonGooglePartialFailure
		}
		return result
	})
}

func (s *ConversionService) handle(
	ctx context.Context,
	platform domain.Platform,
	req *domain.ConversionRequest,
	dispatch func(hash string) *domain.ConversionResult,
) (*domain.ConversionResult, error) {
	hash := PayloadHash(platform, req)

	// ========================================================================
	// Step 1: Funnel event, recorded before the send whatever its outcome
	// ========================================================================
	funnel := &domain.FunnelEvent{
		OrganizationID: req.OrganizationID,
		ProjectID:      req.ProjectID,
		LeadID:         req.LeadID,
		EventType:      req.EventType,
		Platform:       platform,
		ClickID:        nonEmpty(req.ClickID),
		GCLID:          nonEmpty(req.GCLID),
		FBCLID:         nonEmpty(req.FBCLID),
		Amount:         req.Amount,
		Currency:       req.Currency,
		OccurredAt:     req.OccurredAt(s.now()).UTC(),
	}
	if err := s.repo.InsertFunnelEvent(ctx, funnel); err != nil {
		return nil, fmt.Errorf("record funnel event: %w", err)
	}

	// ========================================================================
	// Step 2: Single send attempt
	// ========================================================================
	result := dispatch(hash)

	// ========================================================================
	// Step 3: Conversion attempt keyed by (platform, payload_hash)
	// ========================================================================
	attempt := &domain.ConversionEvent{
		OrganizationID:   req.OrganizationID,
		ProjectID:        req.ProjectID,
		LeadID:           req.LeadID,
		EventType:        req.EventType,
		Platform:         platform,
		PayloadHash:      hash,
		Status:           result.Status,
		ExternalResponse: result.Response,
		AttemptedAt:      s.now().UTC(),
	}
	if err := s.repo.UpsertConversionEvent(ctx, attempt); err != nil {
		return nil, fmt.Errorf("record conversion event: %w", err)
	}

	slog.Info("Conversion attempted",
		"platform", platform,
		"organization_id", req.OrganizationID,
		"event_type", req.EventType,
		"status", result.Status,
		"reason", result.Reason,
		"payload_hash", hash,
	)

	publishEvent(ctx, s.events, domain.NewEvent(domain.EventConversionAttempted, req.OrganizationID, map[string]any{
		"platform":     platform,
		"project_id":   req.ProjectID,
		"lead_id":      req.LeadID,
		"event_type":   req.EventType,
		"status":       result.Status,
		"reason":       result.Reason,
		"payload_hash": hash,
	}))

	return result, nil
}

// classify maps a provider answer to a result. resp is non-nil when err is nil.
func classify(platform domain.Platform, hash string, resp *domain.ProviderResponse, err error) *domain.ConversionResult {
	if err != nil {
		reason := string(platform) + "_request_failed"
		if errors.Is(err, domain.ErrInvalidProviderResponse) {
			reason = string(platform) + "_invalid_response"
		}
		body, _ := json.Marshal(map[string]string{"message": err.Error()})
		return &domain.ConversionResult{
			Status:      domain.StatusError,
			Reason:      reason,
			Response:    body,
			PayloadHash: hash,
		}
	}
	if !resp.OK() {
		return &domain.ConversionResult{
			Status:      domain.StatusError,
			Reason:      fmt.Sprintf("%s_http_%d", platform, resp.StatusCode),
			Response:    resp.Body,
			PayloadHash: hash,
		}
	}
	return &domain.ConversionResult{
		Status:      domain.StatusSent,
		Response:    resp.Body,
		PayloadHash: hash,
	}
}

func skipped(hash, reason string) *domain.ConversionResult {
	return &domain.ConversionResult{
		Status:      domain.StatusSkipped,
		Reason:      reason,
		PayloadHash: hash,
	}
}

func hasPartialFailure(body json.RawMessage) bool {
	if len(body) == 0 {
		return false
	}
	var parsed struct {
		PartialFailureError json.RawMessage `json:"partialFailureError"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return false
	}
	return len(parsed.PartialFailureError) > 0 && string(parsed.PartialFailureError) != "null"
}

func firstNonEmpty(values ...*string) string {
	for _, v := range values {
		if v != nil && *v != "" {
			return *v
		}
	}
	return ""
}

func nonEmpty(v *string) *string {
	if v == nil || *v == "" {
		return nil
	}
	return v
}
