package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"crm-whatsapp/internal/core/domain"
)

const metaCAPIVersion = "v18.0"

// MetaConversionsClient posts server events to the Meta Conversions API
type MetaConversionsClient struct {
	httpClient *resty.Client
	now        func() time.Time
}

// NewMetaConversionsClient creates a new Conversions API client
func NewMetaConversionsClient(baseURL string, timeout time.Duration) *MetaConversionsClient {
	if baseURL == "" {
		baseURL = DefaultGraphBaseURL
	}
	return &MetaConversionsClient{
		httpClient: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		now: time.Now,
	}
}

// MetaEventName maps a funnel stage to the Meta standard event
func MetaEventName(t domain.ConversionEventType) string {
	switch t {
	case domain.EventSale:
		return "Purchase"
	case domain.EventOpportunity:
		return "AddPaymentInfo"
	case domain.EventMQL:
		return "CompleteRegistration"
	default:
		return "Lead"
	}
}

type metaUserData struct {
	Email []string `json:"em,omitempty"`
	Phone []string `json:"ph,omitempty"`
	FBC   string   `json:"fbc,omitempty"`
	FBP   string   `json:"fbp,omitempty"`
}

type metaCustomData struct {
	Currency string  `json:"currency"`
	Value    float64 `json:"value"`
}

type metaServerEvent struct {
	EventName    string         `json:"event_name"`
	EventTime    int64          `json:"event_time"`
	EventID      string         `json:"event_id"`
	ActionSource string         `json:"action_source"`
	UserData     metaUserData   `json:"user_data"`
	CustomData   metaCustomData `json:"custom_data"`
}

// MetaEventsRequest is the Conversions API request body
type MetaEventsRequest struct {
	Data []metaServerEvent `json:"data"`
}

// BuildMetaEvent builds the request body. User-matching fields are only set when present.
func BuildMetaEvent(req *domain.ConversionRequest, eventID string, now time.Time) MetaEventsRequest {
	ev := metaServerEvent{
		EventName:    MetaEventName(req.EventType),
		EventTime:    req.OccurredAt(now).Unix(),
		EventID:      eventID,
		ActionSource: "website",
		CustomData: metaCustomData{
			Currency: req.CurrencyOrDefault(),
			Value:    req.AmountOrZero(),
		},
	}
	if v := deref(req.Email); v != "" {
		ev.UserData.Email = []string{v}
	}
	if v := deref(req.Phone); v != "" {
		ev.UserData.Phone = []string{v}
	}
	ev.UserData.FBC = deref(req.FBCLID)
	ev.UserData.FBP = deref(req.ClickID)
	return MetaEventsRequest{Data: []metaServerEvent{ev}}
}

// SendEvent makes one attempt. Transport failures and non-JSON bodies return an error;
// HTTP error statuses are returned as a response for the caller to classify.
func (c *MetaConversionsClient) SendEvent(ctx context.Context, creds domain.MetaCredentials, req *domain.ConversionRequest, eventID string) (*domain.ProviderResponse, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("access_token", creds.AccessToken).
		SetBody(BuildMetaEvent(req, eventID, c.now())).
		Post(fmt.Sprintf("/%s/%s/events", metaCAPIVersion, creds.PixelID))
	if err != nil {
		slog.Error("Meta Conversions API request failed", "error", err, "pixel_id", creds.PixelID)
		return nil, fmt.Errorf("meta conversions request failed: %w", err)
	}

	slog.Debug("Meta Conversions API answered",
		"pixel_id", creds.PixelID,
		"status_code", resp.StatusCode(),
		"event_id", eventID,
	)
	return providerResponse(resp.StatusCode(), resp.Body())
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
