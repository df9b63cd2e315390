package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"crm-whatsapp/internal/adapters/dto"
	"crm-whatsapp/internal/core/domain"
)

// ConversionSender reports funnel events to the ad platforms
type ConversionSender interface {
	SendMeta(ctx context.Context, req *domain.ConversionRequest, creds domain.MetaCredentials) (*domain.ConversionResult, error)
	SendGoogle(ctx context.Context, req *domain.ConversionRequest, creds domain.GoogleCredentials) (*domain.ConversionResult, error)
}

// AdsIngester stores an ads metrics batch
type AdsIngester interface {
	Ingest(ctx context.Context, batch *domain.AdsIngestBatch) (*domain.IngestCounts, error)
}

// MarketingHandler serves the server-to-server conversion and ads endpoints.
// Routes run behind RequireInternalToken.
type MarketingHandler struct {
	conversions ConversionSender
	ads         AdsIngester
}

// NewMarketingHandler creates a new conversions and ads handler
func NewMarketingHandler(conversions ConversionSender, ads AdsIngester) *MarketingHandler {
	return &MarketingHandler{
		conversions: conversions,
		ads:         ads,
	}
}

// SendMetaConversion reports a funnel event to the Meta Conversions API
// POST /api/conversions/meta
//
// A skipped or failed dispatch is still a 200: the outcome is in data.status.
func (h *MarketingHandler) SendMetaConversion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, creds, err := dto.ParseMetaConversion(ctx, body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.conversions.SendMeta(ctx, req, creds)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewSuccessResponse(result))
}

// SendGoogleConversion uploads a click conversion to Google Ads
// POST /api/conversions/google
func (h *MarketingHandler) SendGoogleConversion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, creds, err := dto.ParseGoogleConversion(ctx, body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.conversions.SendGoogle(ctx, req, creds)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewSuccessResponse(result))
}

// IngestAds stores accounts, campaigns, ad sets, creatives and daily metrics
// in one transaction
// POST /api/ads/{platform}/ingest
func (h *MarketingHandler) IngestAds(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	batch, err := dto.ParseAdsIngest(ctx, chi.URLParam(r, "platform"), body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	counts, err := h.ads.Ingest(ctx, batch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, counts)
}
