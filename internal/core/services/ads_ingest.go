package services

import (
	"context"
	"log/slog"
	"time"

	"crm-whatsapp/internal/core/domain"
	"crm-whatsapp/internal/core/ports"
)

// AdsIngestService upserts an ads entity graph in dependency order:
// accounts -> campaigns -> ad sets -> creatives -> daily metrics.
// The whole batch runs in one transaction.
type AdsIngestService struct {
	repo ports.AdsRepository
	now  func() time.Time
}

// NewAdsIngestService creates a new ingest service
func NewAdsIngestService(repo ports.AdsRepository) *AdsIngestService {
	return &AdsIngestService{repo: repo, now: time.Now}
}

// batchIDs maps external ids of the current batch to stored ids
type batchIDs struct {
	defaultAccount  string // external id of the first account
	accounts        map[string]string
	campaigns       map[string]string
	campaignAccount map[string]string // campaign external id -> account id
	adSets          map[string]string
	creatives       map[string]string
}

// Ingest stores the batch and returns the number of entities per kind.
// A parent external id that is not declared in the batch fails the whole
// call with a *domain.UnresolvedReferenceError and nothing is committed.
func (s *AdsIngestService) Ingest(ctx context.Context, batch *domain.AdsIngestBatch) (*domain.IngestCounts, error) {
	ids := &batchIDs{
		accounts:        make(map[string]string, len(batch.Accounts)),
		campaigns:       make(map[string]string, len(batch.Campaigns)),
		campaignAccount: make(map[string]string, len(batch.Campaigns)),
		adSets:          make(map[string]string, len(batch.AdSets)),
		creatives:       make(map[string]string, len(batch.Creatives)),
	}
	if len(batch.Accounts) > 0 {
		ids.defaultAccount = batch.Accounts[0].ExternalID
	}

	err := s.repo.WithinTx(ctx, func(ctx context.Context, w ports.AdsWriter) error {
		now := s.now().UTC()

		for _, in := range batch.Accounts {
			id, err := w.UpsertAccount(ctx, &domain.AdAccount{
				OrganizationID: batch.OrganizationID,
				ProjectID:      batch.ProjectID,
				Platform:       batch.Platform,
				ExternalID:     in.ExternalID,
				Name:           in.Name,
				Status:         in.Status,
				Currency:       in.Currency,
				Timezone:       in.Timezone,
				UpdatedAt:      now,
			})
			if err != nil {
				return err
			}
			ids.accounts[in.ExternalID] = id
		}

		for _, in := range batch.Campaigns {
			accountID, err := ids.campaignAccountFor(in)
			if err != nil {
				return err
			}
			id, err := w.UpsertCampaign(ctx, &domain.AdCampaign{
				AccountID:      accountID,
				OrganizationID: batch.OrganizationID,
				ProjectID:      batch.ProjectID,
				Platform:       batch.Platform,
				ExternalID:     in.ExternalID,
				Name:           in.Name,
				Status:         in.Status,
				Objective:      in.Objective,
				StartDate:      in.StartDate,
				EndDate:        in.EndDate,
				Budget:         in.Budget,
				BudgetType:     in.BudgetType,
				Metadata:       in.Metadata,
				UpdatedAt:      now,
			})
			if err != nil {
				return err
			}
			ids.campaigns[in.ExternalID] = id
			ids.campaignAccount[in.ExternalID] = accountID
		}

		for _, in := range batch.AdSets {
			accountID, campaignID, err := ids.resolveParents("ad_set", in.AccountExternalID, in.CampaignExternalID)
			if err != nil {
				return err
			}
			id, err := w.UpsertAdSet(ctx, &domain.AdSet{
				AccountID:        accountID,
				CampaignID:       campaignID,
				OrganizationID:   batch.OrganizationID,
				ProjectID:        batch.ProjectID,
				Platform:         batch.Platform,
				ExternalID:       in.ExternalID,
				Name:             in.Name,
				Status:           in.Status,
				OptimizationGoal: in.OptimizationGoal,
				BidStrategy:      in.BidStrategy,
				DailyBudget:      in.DailyBudget,
				StartDate:        in.StartDate,
				EndDate:          in.EndDate,
				Targeting:        in.Targeting,
				Metadata:         in.Metadata,
				UpdatedAt:        now,
			})
			if err != nil {
				return err
			}
			ids.adSets[in.ExternalID] = id
		}

		for _, in := range batch.Creatives {
			accountID, campaignID, err := ids.resolveParents("creative", in.AccountExternalID, in.CampaignExternalID)
			if err != nil {
				return err
			}
			adSetID, err := lookup(ids.adSets, "creative", "ad_set", in.AdSetExternalID)
			if err != nil {
				return err
			}
			id, err := w.UpsertCreative(ctx, &domain.AdCreative{
				AccountID:      accountID,
				CampaignID:     campaignID,
				AdSetID:        adSetID,
				OrganizationID: batch.OrganizationID,
				ProjectID:      batch.ProjectID,
				Platform:       batch.Platform,
				ExternalID:     in.ExternalID,
				Name:           in.Name,
				Status:         in.Status,
				CreativeType:   in.CreativeType,
				ThumbnailURL:   in.ThumbnailURL,
				Headline:       in.Headline,
				Description:    in.Description,
				Destination:    in.Destination,
				Metadata:       in.Metadata,
				UpdatedAt:      now,
			})
			if err != nil {
				return err
			}
			ids.creatives[in.ExternalID] = id
		}

		for _, in := range batch.Metrics {
			metric, err := ids.metricRow(batch, in)
			if err != nil {
				return err
			}
			metric.UpdatedAt = now
			if err := w.UpsertDailyMetric(ctx, metric); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		slog.Error("Ads ingest failed",
			"error", err,
			"organization_id", batch.OrganizationID,
			"platform", batch.Platform,
		)
		return nil, err
	}

	counts := &domain.IngestCounts{
		Accounts:  len(batch.Accounts),
		Campaigns: len(batch.Campaigns),
		AdSets:    len(batch.AdSets),
		Creatives: len(batch.Creatives),
		Metrics:   len(batch.Metrics),
	}
	slog.Info("Ads ingest completed",
		"organization_id", batch.OrganizationID,
		"platform", batch.Platform,
		"accounts", counts.Accounts,
		"campaigns", counts.Campaigns,
		"ad_sets", counts.AdSets,
		"creatives", counts.Creatives,
		"metrics", counts.Metrics,
	)
	return counts, nil
}

// campaignAccountFor: explicit account, else the batch's first account
func (b *batchIDs) campaignAccountFor(in domain.AdCampaignInput) (string, error) {
	ext := b.defaultAccount
	if in.AccountExternalID != nil && *in.AccountExternalID != "" {
		ext = *in.AccountExternalID
	}
	id, ok := b.accounts[ext]
	if !ok {
		return "", &domain.UnresolvedReferenceError{Entity: "campaign", Parent: "account", ExternalID: ext}
	}
	return id, nil
}

// resolveParents applies the ad set / creative account precedence:
// explicit account -> owning campaign's account -> batch's first account.
// A declared reference must resolve even when a higher tier already decided the account.
func (b *batchIDs) resolveParents(entity string, accountExt, campaignExt *string) (string, *string, error) {
	explicitAccount, err := lookup(b.accounts, entity, "account", accountExt)
	if err != nil {
		return "", nil, err
	}
	campaignID, err := lookup(b.campaigns, entity, "campaign", campaignExt)
	if err != nil {
		return "", nil, err
	}

	switch {
	case explicitAccount != nil:
		return *explicitAccount, campaignID, nil
	case campaignID != nil:
		return b.campaignAccount[*campaignExt], campaignID, nil
	}

	id, ok := b.accounts[b.defaultAccount]
	if !ok {
		return "", nil, &domain.UnresolvedReferenceError{Entity: entity, Parent: "account", ExternalID: b.defaultAccount}
	}
	return id, nil, nil
}

func (b *batchIDs) metricRow(batch *domain.AdsIngestBatch, in domain.AdMetricInput) (*domain.AdDailyMetric, error) {
	accountID, ok := b.accounts[in.AccountExternalID]
	if !ok {
		return nil, &domain.UnresolvedReferenceError{Entity: "metric", Parent: "account", ExternalID: in.AccountExternalID}
	}
	campaignID, err := lookup(b.campaigns, "metric", "campaign", in.CampaignExternalID)
	if err != nil {
		return nil, err
	}
	adSetID, err := lookup(b.adSets, "metric", "ad_set", in.AdSetExternalID)
	if err != nil {
		return nil, err
	}
	adID, err := lookup(b.creatives, "metric", "creative", in.AdExternalID)
	if err != nil {
		return nil, err
	}

	return &domain.AdDailyMetric{
		OrganizationID:         batch.OrganizationID,
		ProjectID:              batch.ProjectID,
		Platform:               batch.Platform,
		AccountID:              accountID,
		CampaignID:             deref(campaignID),
		AdSetID:                deref(adSetID),
		AdID:                   deref(adID),
		Date:                   in.Date,
		Impressions:            intOrZero(in.Impressions),
		Clicks:                 intOrZero(in.Clicks),
		Spend:                  floatOrZero(in.Spend),
		Leads:                  intOrZero(in.Leads),
		ConversionsMQL:         intOrZero(in.ConversionsMQL),
		ConversionsOpportunity: intOrZero(in.ConversionsOpportunity),
		ConversionsSale:        intOrZero(in.ConversionsSale),
		Revenue:                floatOrZero(in.Revenue),
		CTR:                    in.CTR,
		CPC:                    in.CPC,
		CPM:                    in.CPM,
		CPL:                    in.CPL,
	}, nil
}

// lookup resolves an optional reference; nil or empty means "not referenced"
func lookup(m map[string]string, entity, parent string, ext *string) (*string, error) {
	if ext == nil || *ext == "" {
		return nil, nil
	}
	id, ok := m[*ext]
	if !ok {
		return nil, &domain.UnresolvedReferenceError{Entity: entity, Parent: parent, ExternalID: *ext}
	}
	return &id, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func intOrZero(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
