package dto

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"crm-whatsapp/internal/core/domain"
)

// dateLayout is the YYYY-MM-DD form used by ads metrics and flight dates
const dateLayout = "2006-01-02"

// ============================================================================
// Conversions
// ============================================================================

// conversionBase holds the fields shared by the Meta and Google payloads
type conversionBase struct {
	OrganizationID string   `json:"organizationId"`
	ProjectID      string   `json:"projectId"`
	LeadID         *string  `json:"leadId"`
	EventType      string   `json:"eventType"`
	EventTime      *string  `json:"eventTime"`
	Amount         *float64 `json:"amount"`
	Currency       *string  `json:"currency"`
	ClickID        *string  `json:"clickId"`
	Email          *string  `json:"email"`
	Phone          *string  `json:"phone"`
}

func (b *conversionBase) fields() []*validation.FieldRules {
	return []*validation.FieldRules{
		validation.Field(&b.OrganizationID, validation.Required, is.UUID),
		validation.Field(&b.ProjectID, validation.Required, is.UUID),
		validation.Field(&b.LeadID, is.UUID),
		validation.Field(&b.EventType, validation.Required,
			validation.In(string(domain.EventLead), string(domain.EventMQL), string(domain.EventOpportunity), string(domain.EventSale))),
		validation.Field(&b.EventTime, validation.Date(time.RFC3339)),
		validation.Field(&b.Email, is.Email),
	}
}

func (b *conversionBase) toDomain() *domain.ConversionRequest {
	req := &domain.ConversionRequest{
		OrganizationID: b.OrganizationID,
		ProjectID:      b.ProjectID,
		LeadID:         b.LeadID,
		EventType:      domain.ConversionEventType(b.EventType),
		Amount:         b.Amount,
		Currency:       b.Currency,
		ClickID:        b.ClickID,
		Email:          b.Email,
		Phone:          b.Phone,
	}
	if b.EventTime != nil && *b.EventTime != "" {
		// Already checked by the Date rule
		if t, err := time.Parse(time.RFC3339, *b.EventTime); err == nil {
			req.EventTime = &t
		}
	}
	return req
}

// MetaConversionRequest is the body of POST /api/conversions/meta
type MetaConversionRequest struct {
	conversionBase
	FBCLID      *string `json:"fbclid"`
	PixelID     *string `json:"pixelId"`
	AccessToken *string `json:"accessToken"`
}

// GoogleConversionRequest is the body of POST /api/conversions/google
type GoogleConversionRequest struct {
	conversionBase
	GCLID              *string `json:"gclid"`
	CustomerID         *string `json:"customerId"`
	ConversionActionID *string `json:"conversionActionId"`
	DeveloperToken     *string `json:"developerToken"`
	LoginCustomerID    *string `json:"loginCustomerId"`
	AccessToken        *string `json:"accessToken"`
}

// ParseMetaConversion decodes and validates a Meta conversion request.
// Missing credentials are not an error here; the service reports them as skipped.
func ParseMetaConversion(ctx context.Context, body []byte) (*domain.ConversionRequest, domain.MetaCredentials, error) {
	var request MetaConversionRequest
	if err := decodeBody(body, &request); err != nil {
		return nil, domain.MetaCredentials{}, err
	}

	err := validation.ValidateStructWithContext(ctx, &request.conversionBase, request.conversionBase.fields()...)
	if err != nil {
		return nil, domain.MetaCredentials{}, toValidationError(err)
	}

	req := request.conversionBase.toDomain()
	req.FBCLID = request.FBCLID

	creds := domain.MetaCredentials{
		PixelID:     value(request.PixelID),
		AccessToken: value(request.AccessToken),
	}
	return req, creds, nil
}

// ParseGoogleConversion decodes and validates a Google Ads conversion request
func ParseGoogleConversion(ctx context.Context, body []byte) (*domain.ConversionRequest, domain.GoogleCredentials, error) {
	var request GoogleConversionRequest
	if err := decodeBody(body, &request); err != nil {
		return nil, domain.GoogleCredentials{}, err
	}

	err := validation.ValidateStructWithContext(ctx, &request.conversionBase, request.conversionBase.fields()...)
	if err != nil {
		return nil, domain.GoogleCredentials{}, toValidationError(err)
	}

	req := request.conversionBase.toDomain()
	req.GCLID = request.GCLID

	creds := domain.GoogleCredentials{
		CustomerID:         value(request.CustomerID),
		ConversionActionID: value(request.ConversionActionID),
		DeveloperToken:     value(request.DeveloperToken),
		LoginCustomerID:    value(request.LoginCustomerID),
		AccessToken:        value(request.AccessToken),
	}
	return req, creds, nil
}

// ============================================================================
// Ads ingest
// ============================================================================

// AdsIngestRequest is the body of POST /api/ads/{platform}/ingest
type AdsIngestRequest struct {
	OrganizationID string           `json:"organizationId"`
	ProjectID      string           `json:"projectId"`
	Platform       string           `json:"platform"`
	Accounts       []AdAccountItem  `json:"accounts"`
	Campaigns      []AdCampaignItem `json:"campaigns"`
	AdSets         []AdSetItem      `json:"adSets"`
	Creatives      []AdCreativeItem `json:"creatives"`
	Metrics        []AdMetricItem   `json:"metrics"`
}

// AdAccountItem is one account of an ingest request
type AdAccountItem struct {
	ExternalID string  `json:"external_id"`
	Name       *string `json:"name"`
	Status     *string `json:"status"`
	Currency   *string `json:"currency"`
	Timezone   *string `json:"timezone"`
}

func (a AdAccountItem) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.ExternalID, validation.Required),
	)
}

// AdCampaignItem is one campaign of an ingest request
type AdCampaignItem struct {
	ExternalID        string          `json:"external_id"`
	AccountExternalID *string         `json:"account_external_id"`
	Name              *string         `json:"name"`
	Status            *string         `json:"status"`
	Objective         *string         `json:"objective"`
	StartDate         *string         `json:"start_date"`
	EndDate           *string         `json:"end_date"`
	Budget            *float64        `json:"budget"`
	BudgetType        *string         `json:"budget_type"`
	Metadata          json.RawMessage `json:"metadata"`
}

func (c AdCampaignItem) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ExternalID, validation.Required),
		validation.Field(&c.StartDate, validation.Date(dateLayout)),
		validation.Field(&c.EndDate, validation.Date(dateLayout)),
		validation.Field(&c.Metadata, validation.By(jsonObject)),
	)
}

// AdSetItem is one ad set of an ingest request
type AdSetItem struct {
	ExternalID         string          `json:"external_id"`
	AccountExternalID  *string         `json:"account_external_id"`
	CampaignExternalID *string         `json:"campaign_external_id"`
	Name               *string         `json:"name"`
	Status             *string         `json:"status"`
	OptimizationGoal   *string         `json:"optimization_goal"`
	BidStrategy        *string         `json:"bid_strategy"`
	DailyBudget        *float64        `json:"daily_budget"`
	StartDate          *string         `json:"start_date"`
	EndDate            *string         `json:"end_date"`
	Targeting          json.RawMessage `json:"targeting"`
	Metadata           json.RawMessage `json:"metadata"`
}

func (s AdSetItem) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.ExternalID, validation.Required),
		validation.Field(&s.StartDate, validation.Date(dateLayout)),
		validation.Field(&s.EndDate, validation.Date(dateLayout)),
		validation.Field(&s.Targeting, validation.By(jsonObject)),
		validation.Field(&s.Metadata, validation.By(jsonObject)),
	)
}

// AdCreativeItem is one creative of an ingest request
type AdCreativeItem struct {
	ExternalID         string          `json:"external_id"`
	AccountExternalID  *string         `json:"account_external_id"`
	AdSetExternalID    *string         `json:"ad_set_external_id"`
	CampaignExternalID *string         `json:"campaign_external_id"`
	Name               *string         `json:"name"`
	Status             *string         `json:"status"`
	CreativeType       *string         `json:"creative_type"`
	ThumbnailURL       *string         `json:"thumbnail_url"`
	Headline           *string         `json:"headline"`
	Description        *string         `json:"description"`
	Destination        *string         `json:"destination"`
	Metadata           json.RawMessage `json:"metadata"`
}

func (c AdCreativeItem) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ExternalID, validation.Required),
		validation.Field(&c.Metadata, validation.By(jsonObject)),
	)
}

// AdMetricItem is one daily metrics row of an ingest request
type AdMetricItem struct {
	Date                   string   `json:"date"`
	AccountExternalID      string   `json:"account_external_id"`
	CampaignExternalID     *string  `json:"campaign_external_id"`
	AdSetExternalID        *string  `json:"ad_set_external_id"`
	AdExternalID           *string  `json:"ad_external_id"`
	Impressions            *int64   `json:"impressions"`
	Clicks                 *int64   `json:"clicks"`
	Spend                  *float64 `json:"spend"`
	Leads                  *int64   `json:"leads"`
	ConversionsMQL         *int64   `json:"conversions_mql"`
	ConversionsOpportunity *int64   `json:"conversions_opportunity"`
	ConversionsSale        *int64   `json:"conversions_sale"`
	Revenue                *float64 `json:"revenue"`
	CTR                    *float64 `json:"ctr"`
	CPC                    *float64 `json:"cpc"`
	CPM                    *float64 `json:"cpm"`
	CPL                    *float64 `json:"cpl"`
}

func (m AdMetricItem) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Date, validation.Required, validation.Date(dateLayout)),
		validation.Field(&m.AccountExternalID, validation.Required),
	)
}

// ParseAdsIngest decodes and validates an ingest batch. pathPlatform comes
// from the route; a platform in the body must agree with it.
func ParseAdsIngest(ctx context.Context, pathPlatform string, body []byte) (*domain.AdsIngestBatch, error) {
	var request AdsIngestRequest
	if err := decodeBody(body, &request); err != nil {
		return nil, err
	}
	if request.Platform == "" {
		request.Platform = pathPlatform
	}

	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.OrganizationID, validation.Required, is.UUID),
		validation.Field(&request.ProjectID, validation.Required, is.UUID),
		validation.Field(&request.Platform, validation.Required,
			validation.In(string(domain.PlatformMeta), string(domain.PlatformGoogle)),
			validation.In(pathPlatform).Error("must match the route platform")),
		validation.Field(&request.Accounts, validation.Required, validation.Length(1, 0)),
		validation.Field(&request.Campaigns),
		validation.Field(&request.AdSets),
		validation.Field(&request.Creatives),
		validation.Field(&request.Metrics, validation.Required, validation.Length(1, 0)),
	)
	if err != nil {
		return nil, toValidationError(err)
	}

	return request.toDomain(), nil
}

func (r *AdsIngestRequest) toDomain() *domain.AdsIngestBatch {
	batch := &domain.AdsIngestBatch{
		OrganizationID: r.OrganizationID,
		ProjectID:      r.ProjectID,
		Platform:       domain.Platform(r.Platform),
	}

	for _, a := range r.Accounts {
		batch.Accounts = append(batch.Accounts, domain.AdAccountInput{
			ExternalID: a.ExternalID,
			Name:       a.Name,
			Status:     a.Status,
			Currency:   a.Currency,
			Timezone:   a.Timezone,
		})
	}
	for _, c := range r.Campaigns {
		batch.Campaigns = append(batch.Campaigns, domain.AdCampaignInput{
			ExternalID:        c.ExternalID,
			AccountExternalID: c.AccountExternalID,
			Name:              c.Name,
			Status:            c.Status,
			Objective:         c.Objective,
			StartDate:         c.StartDate,
			EndDate:           c.EndDate,
			Budget:            c.Budget,
			BudgetType:        c.BudgetType,
			Metadata:          rawObject(c.Metadata),
		})
	}
	for _, s := range r.AdSets {
		batch.AdSets = append(batch.AdSets, domain.AdSetInput{
			ExternalID:         s.ExternalID,
			AccountExternalID:  s.AccountExternalID,
			CampaignExternalID: s.CampaignExternalID,
			Name:               s.Name,
			Status:             s.Status,
			OptimizationGoal:   s.OptimizationGoal,
			BidStrategy:        s.BidStrategy,
			DailyBudget:        s.DailyBudget,
			StartDate:          s.StartDate,
			EndDate:            s.EndDate,
			Targeting:          rawObject(s.Targeting),
			Metadata:           rawObject(s.Metadata),
		})
	}
	for _, c := range r.Creatives {
		batch.Creatives = append(batch.Creatives, domain.AdCreativeInput{
			ExternalID:         c.ExternalID,
			AccountExternalID:  c.AccountExternalID,
			CampaignExternalID: c.CampaignExternalID,
			AdSetExternalID:    c.AdSetExternalID,
			Name:               c.Name,
			Status:             c.Status,
			CreativeType:       c.CreativeType,
			ThumbnailURL:       c.ThumbnailURL,
			Headline:           c.Headline,
			Description:        c.Description,
			Destination:        c.Destination,
			Metadata:           rawObject(c.Metadata),
		})
	}
	for _, m := range r.Metrics {
		batch.Metrics = append(batch.Metrics, domain.AdMetricInput{
			Date:                   m.Date,
			AccountExternalID:      m.AccountExternalID,
			CampaignExternalID:     m.CampaignExternalID,
			AdSetExternalID:        m.AdSetExternalID,
			AdExternalID:           m.AdExternalID,
			Impressions:            m.Impressions,
			Clicks:                 m.Clicks,
			Spend:                  m.Spend,
			Leads:                  m.Leads,
			ConversionsMQL:         m.ConversionsMQL,
			ConversionsOpportunity: m.ConversionsOpportunity,
			ConversionsSale:        m.ConversionsSale,
			Revenue:                m.Revenue,
			CTR:                    m.CTR,
			CPC:                    m.CPC,
			CPM:                    m.CPM,
			CPL:                    m.CPL,
		})
	}
	return batch
}

// ============================================================================
// Inbox operations
// ============================================================================

// ToggleAIRequest is the body of PATCH /api/whatsapp/conversations/{id}/ai
type ToggleAIRequest struct {
	Enabled *bool `json:"enabled"`
}

// ParseToggleAI returns the desired ai_enabled value
func ParseToggleAI(ctx context.Context, body []byte) (bool, error) {
	var request ToggleAIRequest
	if err := decodeBody(body, &request); err != nil {
		return false, err
	}

	// Required would reject false
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Enabled, validation.NotNil),
	)
	if err != nil {
		return false, toValidationError(err)
	}
	return *request.Enabled, nil
}

// SendMessageRequest is the body of POST /api/whatsapp/send
type SendMessageRequest struct {
	ConversationID string `json:"conversationId"`
	Text           string `json:"text"`
}

// ParseSendMessage validates an operator reply; text is trimmed
func ParseSendMessage(ctx context.Context, body []byte) (*SendMessageRequest, error) {
	var request SendMessageRequest
	if err := decodeBody(body, &request); err != nil {
		return nil, err
	}
	request.ConversationID = strings.TrimSpace(request.ConversationID)
	request.Text = strings.TrimSpace(request.Text)

	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.ConversationID, validation.Required),
		validation.Field(&request.Text, validation.Required, validation.RuneLength(1, 4096)),
	)
	if err != nil {
		return nil, toValidationError(err)
	}
	return &request, nil
}

// ConnectAccountRequest is the body of POST /api/whatsapp/accounts
type ConnectAccountRequest struct {
	PhoneNumber       string  `json:"phone_number"`
	PhoneID           string  `json:"phone_id"`
	AccessToken       string  `json:"access_token"`
	BusinessAccountID *string `json:"waba_business_account_id"`
	AIEnabled         *bool   `json:"ai_enabled"`
}

// ParseConnectAccount validates the credentials handed over by the OAuth flow
func ParseConnectAccount(ctx context.Context, body []byte) (*ConnectAccountRequest, error) {
	var request ConnectAccountRequest
	if err := decodeBody(body, &request); err != nil {
		return nil, err
	}

	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.PhoneNumber, validation.Required),
		validation.Field(&request.PhoneID, validation.Required, is.Digit),
		validation.Field(&request.AccessToken, validation.Required),
	)
	if err != nil {
		return nil, toValidationError(err)
	}
	return &request, nil
}

// ============================================================================
// Helpers
// ============================================================================

func decodeBody(body []byte, dst any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return domain.NewValidationError("body", "empty payload")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return domain.NewValidationError("body", "malformed JSON: "+err.Error())
	}
	return nil
}

// toValidationError flattens ozzo errors into dotted field paths,
// e.g. "metrics.0.date"
func toValidationError(err error) *domain.ValidationError {
	out := &domain.ValidationError{Fields: map[string]string{}}
	flattenErrors("", err, out.Fields)
	return out
}

func flattenErrors(prefix string, err error, out map[string]string) {
	var errs validation.Errors
	if errors.As(err, &errs) {
		for field, fieldErr := range errs {
			if fieldErr == nil {
				continue
			}
			key := field
			if prefix != "" {
				key = prefix + "." + field
			}
			flattenErrors(key, fieldErr, out)
		}
		return
	}
	if prefix == "" {
		prefix = "body"
	}
	out[prefix] = err.Error()
}

// jsonObject accepts an absent value, null or a JSON object
func jsonObject(v interface{}) error {
	raw, _ := v.(json.RawMessage)
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] != '{' {
		return errors.New("must be a JSON object")
	}
	return nil
}

// rawObject drops an explicit null so the column stays NULL
func rawObject(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return trimmed
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
