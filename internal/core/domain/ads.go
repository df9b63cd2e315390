package domain

import (
	"encoding/json"
	"time"
)

// Platform identifies an external ad platform
type Platform string

// Platform values
const (
	PlatformMeta   Platform = "meta"
	PlatformGoogle Platform = "google"
)

// AdAccount is an ads account, keyed by (organization, platform, external id)
type AdAccount struct {
	ID             string    `db:"id"`
	OrganizationID string    `db:"organization_id"`
	ProjectID      string    `db:"project_id"`
	Platform       Platform  `db:"platform"`
	ExternalID     string    `db:"external_id"`
	Name           *string   `db:"name"`
	Status         *string   `db:"status"`
	Currency       *string   `db:"currency"`
	Timezone       *string   `db:"timezone"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// AdCampaign is keyed by (account, external id)
type AdCampaign struct {
	ID             string          `db:"id"`
	AccountID      string          `db:"account_id"`
	OrganizationID string          `db:"organization_id"`
	ProjectID      string          `db:"project_id"`
	Platform       Platform        `db:"platform"`
	ExternalID     string          `db:"external_id"`
	Name           *string         `db:"name"`
	Status         *string         `db:"status"`
	Objective      *string         `db:"objective"`
	StartDate      *string         `db:"start_date"`
	EndDate        *string         `db:"end_date"`
	Budget         *float64        `db:"budget"`
	BudgetType     *string         `db:"budget_type"`
	Metadata       json.RawMessage `db:"metadata"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

// AdSet is keyed by (account, external id)
type AdSet struct {
	ID               string          `db:"id"`
	AccountID        string          `db:"account_id"`
	CampaignID       *string         `db:"campaign_id"`
	OrganizationID   string          `db:"organization_id"`
	ProjectID        string          `db:"project_id"`
	Platform         Platform        `db:"platform"`
	ExternalID       string          `db:"external_id"`
	Name             *string         `db:"name"`
	Status           *string         `db:"status"`
	OptimizationGoal *string         `db:"optimization_goal"`
	BidStrategy      *string         `db:"bid_strategy"`
	DailyBudget      *float64        `db:"daily_budget"`
	StartDate        *string         `db:"start_date"`
	EndDate          *string         `db:"end_date"`
	Targeting        json.RawMessage `db:"targeting"`
	Metadata         json.RawMessage `db:"metadata"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

// AdCreative is keyed by (account, external id)
type AdCreative struct {
	ID             string          `db:"id"`
	AccountID      string          `db:"account_id"`
	CampaignID     *string         `db:"campaign_id"`
	AdSetID        *string         `db:"ad_set_id"`
	OrganizationID string          `db:"organization_id"`
	ProjectID      string          `db:"project_id"`
	Platform       Platform        `db:"platform"`
	ExternalID     string          `db:"external_id"`
	Name           *string         `db:"name"`
	Status         *string         `db:"status"`
	CreativeType   *string         `db:"creative_type"`
	ThumbnailURL   *string         `db:"thumbnail_url"`
	Headline       *string         `db:"headline"`
	Description    *string         `db:"description"`
	Destination    *string         `db:"destination"`
	Metadata       json.RawMessage `db:"metadata"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

// AdDailyMetric is one metrics row, keyed by
// (organization, platform, account, date, campaign, ad set, ad).
// Absent parents are stored as "" so the composite key stays unique.
type AdDailyMetric struct {
	ID                     string    `db:"id"`
	OrganizationID         string    `db:"organization_id"`
	ProjectID              string    `db:"project_id"`
	Platform               Platform  `db:"platform"`
	AccountID              string    `db:"account_id"`
	CampaignID             string    `db:"campaign_id"`
	AdSetID                string    `db:"ad_set_id"`
	AdID                   string    `db:"ad_id"`
	Date                   string    `db:"date"`
	Impressions            int64     `db:"impressions"`
	Clicks                 int64     `db:"clicks"`
	Spend                  float64   `db:"spend"`
	Leads                  int64     `db:"leads"`
	ConversionsMQL         int64     `db:"conversions_mql"`
	ConversionsOpportunity int64     `db:"conversions_opportunity"`
	ConversionsSale        int64     `db:"conversions_sale"`
	Revenue                float64   `db:"revenue"`
	CTR                    *float64  `db:"ctr"`
	CPC                    *float64  `db:"cpc"`
	CPM                    *float64  `db:"cpm"`
	CPL                    *float64  `db:"cpl"`
	UpdatedAt              time.Time `db:"updated_at"`
}

// IngestCounts reports how many entities of each kind an ingest call processed
type IngestCounts struct {
	Accounts  int `json:"accounts"`
	Campaigns int `json:"campaigns"`
	AdSets    int `json:"adSets"`
	Creatives int `json:"creatives"`
	Metrics   int `json:"metrics"`
}

// AdAccountInput is one parsed account of an ingest batch
type AdAccountInput struct {
	ExternalID string
	Name       *string
	Status     *string
	Currency   *string
	Timezone   *string
}

// AdCampaignInput is one parsed campaign of an ingest batch
type AdCampaignInput struct {
	ExternalID        string
	AccountExternalID *string
	Name              *string
	Status            *string
	Objective         *string
	StartDate         *string
	EndDate           *string
	Budget            *float64
	BudgetType        *string
	Metadata          json.RawMessage
}

// AdSetInput is one parsed ad set of an ingest batch
type AdSetInput struct {
	ExternalID         string
	AccountExternalID  *string
	CampaignExternalID *string
	Name               *string
	Status             *string
	OptimizationGoal   *string
	BidStrategy        *string
	DailyBudget        *float64
	StartDate          *string
	EndDate            *string
	Targeting          json.RawMessage
	Metadata           json.RawMessage
}

// AdCreativeInput is one parsed creative of an ingest batch
type AdCreativeInput struct {
	ExternalID         string
	AccountExternalID  *string
	CampaignExternalID *string
	AdSetExternalID    *string
	Name               *string
	Status             *string
	CreativeType       *string
	ThumbnailURL       *string
	Headline           *string
	Description        *string
	Destination        *string
	Metadata           json.RawMessage
}

// AdMetricInput is one parsed daily metric row of an ingest batch
type AdMetricInput struct {
	Date                   string // YYYY-MM-DD
	AccountExternalID      string
	CampaignExternalID     *string
	AdSetExternalID        *string
	AdExternalID           *string
	Impressions            *int64
	Clicks                 *int64
	Spend                  *float64
	Leads                  *int64
	ConversionsMQL         *int64
	ConversionsOpportunity *int64
	ConversionsSale        *int64
	Revenue                *float64
	CTR                    *float64
	CPC                    *float64
	CPM                    *float64
	CPL                    *float64
}

// AdsIngestBatch is a validated ingest request
type AdsIngestBatch struct {
	OrganizationID string
	ProjectID      string
	Platform       Platform
	Accounts       []AdAccountInput
	Campaigns      []AdCampaignInput
	AdSets         []AdSetInput
	Creatives      []AdCreativeInput
	Metrics        []AdMetricInput
}
