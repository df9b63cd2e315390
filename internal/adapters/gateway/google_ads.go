package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"crm-whatsapp/internal/core/domain"
)

const (
	// DefaultGoogleAdsBaseURL is the Google Ads REST host
	DefaultGoogleAdsBaseURL = "https://googleads.googleapis.com"

	googleAdsVersion = "v15"

	// googleDateTimeLayout is the "yyyy-mm-dd hh:mm:ss+|-hh:mm" format Google Ads expects
	googleDateTimeLayout = "2006-01-02 15:04:05-07:00"
)

// GoogleAdsClient uploads offline click conversions
type GoogleAdsClient struct {
	httpClient *resty.Client
	now        func() time.Time
}

// NewGoogleAdsClient creates a new Google Ads client
func NewGoogleAdsClient(baseURL string, timeout time.Duration) *GoogleAdsClient {
	if baseURL == "" {
		baseURL = DefaultGoogleAdsBaseURL
	}
	return &GoogleAdsClient{
		httpClient: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		now: time.Now,
	}
}

type clickConversion struct {
	GCLID              string  `json:"gclid"`
	ConversionAction   string  `json:"conversionAction"`
	ConversionDateTime string  `json:"conversionDateTime"`
	ConversionValue    float64 `json:"conversionValue"`
	CurrencyCode       string  `json:"currencyCode"`
	OrderID            string  `json:"orderId"`
}

// UploadClickConversionsRequest is the uploadClickConversions body
type UploadClickConversionsRequest struct {
	PartialFailure bool              `json:"partialFailure"`
	ValidateOnly   bool              `json:"validateOnly"`
	Conversions    []clickConversion `json:"conversions"`
}

// BuildClickConversion builds the request body; orderID makes retries idempotent on Google's side
func BuildClickConversion(creds domain.GoogleCredentials, req *domain.ConversionRequest, gclid, orderID string, now time.Time) UploadClickConversionsRequest {
	customerID := normalizeCustomerID(creds.CustomerID)
	return UploadClickConversionsRequest{
		PartialFailure: true,
		ValidateOnly:   false,
		Conversions: []clickConversion{{
			GCLID:              gclid,
			ConversionAction:   fmt.Sprintf("customers/%s/conversionActions/%s", customerID, creds.ConversionActionID),
			ConversionDateTime: req.OccurredAt(now).Format(googleDateTimeLayout),
			ConversionValue:    req.AmountOrZero(),
			CurrencyCode:       req.CurrencyOrDefault(),
			OrderID:            orderID,
		}},
	}
}

// UploadClickConversion makes one attempt. Transport failures and non-JSON bodies
// return an error; HTTP error statuses are returned as a response.
func (c *GoogleAdsClient) UploadClickConversion(ctx context.Context, creds domain.GoogleCredentials, req *domain.ConversionRequest, gclid, orderID string) (*domain.ProviderResponse, error) {
	customerID := normalizeCustomerID(creds.CustomerID)

	r := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(creds.AccessToken).
		SetHeader("developer-token", creds.DeveloperToken).
		SetBody(BuildClickConversion(creds, req, gclid, orderID, c.now()))
	if creds.LoginCustomerID != "" {
		r.SetHeader("login-customer-id", normalizeCustomerID(creds.LoginCustomerID))
	}

	resp, err := r.Post(fmt.Sprintf("/%s/customers/%s:uploadClickConversions", googleAdsVersion, customerID))
	if err != nil {
		slog.Error("Google Ads request failed", "error", err, "customer_id", customerID)
		return nil, fmt.Errorf("google ads request failed: %w", err)
	}

	slog.Debug("Google Ads answered",
		"customer_id", customerID,
		"status_code", resp.StatusCode(),
		"order_id", orderID,
	)
	return providerResponse(resp.StatusCode(), resp.Body())
}

// normalizeCustomerID strips the dashes of the "123-456-7890" display form
func normalizeCustomerID(id string) string {
	return strings.ReplaceAll(strings.TrimSpace(id), "-", "")
}
