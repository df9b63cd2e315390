package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"crm-whatsapp/internal/core/domain"
	"crm-whatsapp/internal/core/ports"
)

var _ ports.AdsWriter = (*adsTx)(nil)

// WithinTx runs fn in one transaction; any error rolls the whole batch back
func (r *MariaDBRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, w ports.AdsWriter) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ads ingest: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, &adsTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ads ingest: %w", err)
	}
	return nil
}

// adsTx upserts on natural keys and reads the stored ID back, so existing
// rows keep their IDs and only refresh attributes
type adsTx struct {
	tx *sqlx.Tx
}

func (w *adsTx) UpsertAccount(ctx context.Context, a *domain.AdAccount) (string, error) {
	a.ID = newID()
	_, err := w.tx.NamedExecContext(ctx, `
		INSERT INTO ad_accounts (
			id, organization_id, project_id, platform, external_id,
			name, status, currency, timezone, updated_at
		)
		VALUES (
			:id, :organization_id, :project_id, :platform, :external_id,
			:name, :status, :currency, :timezone, :updated_at
		)
		ON DUPLICATE KEY UPDATE
			project_id = VALUES(project_id),
			name = VALUES(name),
			status = VALUES(status),
			currency = VALUES(currency),
			timezone = VALUES(timezone),
			updated_at = VALUES(updated_at)
	`, a)
	if err != nil {
		return "", fmt.Errorf("upsert ad account %s: %w", a.ExternalID, err)
	}
	return w.idOf(ctx, "ad_accounts",
		"organization_id = ? AND platform = ? AND external_id = ?",
		a.OrganizationID, a.Platform, a.ExternalID)
}

func (w *adsTx) UpsertCampaign(ctx context.Context, c *domain.AdCampaign) (string, error) {
	c.ID = newID()
	_, err := w.tx.ExecContext(ctx, `
		INSERT INTO ad_campaigns (
			id, account_id, organization_id, project_id, platform, external_id,
			name, status, objective, start_date, end_date, budget, budget_type, metadata, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			name = VALUES(name),
			status = VALUES(status),
			objective = VALUES(objective),
			start_date = VALUES(start_date),
			end_date = VALUES(end_date),
			budget = VALUES(budget),
			budget_type = VALUES(budget_type),
			metadata = VALUES(metadata),
			updated_at = VALUES(updated_at)
	`,
		c.ID, c.AccountID, c.OrganizationID, c.ProjectID, c.Platform, c.ExternalID,
		c.Name, c.Status, c.Objective, c.StartDate, c.EndDate, c.Budget, c.BudgetType,
		[]byte(c.Metadata), c.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("upsert ad campaign %s: %w", c.ExternalID, err)
	}
	return w.idOf(ctx, "ad_campaigns", "account_id = ? AND external_id = ?", c.AccountID, c.ExternalID)
}

func (w *adsTx) UpsertAdSet(ctx context.Context, s *domain.AdSet) (string, error) {
	s.ID = newID()
	_, err := w.tx.ExecContext(ctx, `
		INSERT INTO ad_sets (
			id, account_id, campaign_id, organization_id, project_id, platform, external_id,
			name, status, optimization_goal, bid_strategy, daily_budget,
			start_date, end_date, targeting, metadata, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			campaign_id = VALUES(campaign_id),
			name = VALUES(name),
			status = VALUES(status),
			optimization_goal = VALUES(optimization_goal),
			bid_strategy = VALUES(bid_strategy),
			daily_budget = VALUES(daily_budget),
			start_date = VALUES(start_date),
			end_date = VALUES(end_date),
			targeting = VALUES(targeting),
			metadata = VALUES(metadata),
			updated_at = VALUES(updated_at)
	`,
		s.ID, s.AccountID, s.CampaignID, s.OrganizationID, s.ProjectID, s.Platform, s.ExternalID,
		s.Name, s.Status, s.OptimizationGoal, s.BidStrategy, s.DailyBudget,
		s.StartDate, s.EndDate, []byte(s.Targeting), []byte(s.Metadata), s.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("upsert ad set %s: %w", s.ExternalID, err)
	}
	return w.idOf(ctx, "ad_sets", "account_id = ? AND external_id = ?", s.AccountID, s.ExternalID)
}

func (w *adsTx) UpsertCreative(ctx context.Context, c *domain.AdCreative) (string, error) {
	c.ID = newID()
	_, err := w.tx.ExecContext(ctx, `
		INSERT INTO ad_creatives (
			id, account_id, campaign_id, ad_set_id, organization_id, project_id, platform, external_id,
			name, status, creative_type, thumbnail_url, headline, description, destination,
			metadata, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			campaign_id = VALUES(campaign_id),
			ad_set_id = VALUES(ad_set_id),
			name = VALUES(name),
			status = VALUES(status),
			creative_type = VALUES(creative_type),
			thumbnail_url = VALUES(thumbnail_url),
			headline = VALUES(headline),
			description = VALUES(description),
			destination = VALUES(destination),
			metadata = VALUES(metadata),
			updated_at = VALUES(updated_at)
	`,
		c.ID, c.AccountID, c.CampaignID, c.AdSetID, c.OrganizationID, c.ProjectID, c.Platform, c.ExternalID,
		c.Name, c.Status, c.CreativeType, c.ThumbnailURL, c.Headline, c.Description, c.Destination,
		[]byte(c.Metadata), c.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("upsert ad creative %s: %w", c.ExternalID, err)
	}
	return w.idOf(ctx, "ad_creatives", "account_id = ? AND external_id = ?", c.AccountID, c.ExternalID)
}

func (w *adsTx) UpsertDailyMetric(ctx context.Context, m *domain.AdDailyMetric) error {
	m.ID = newID()
	_, err := w.tx.NamedExecContext(ctx, `
		INSERT INTO ad_metrics_daily (
			id, organization_id, project_id, platform, account_id, campaign_id, ad_set_id, ad_id, date,
			impressions, clicks, spend, leads, conversions_mql, conversions_opportunity,
			conversions_sale, revenue, ctr, cpc, cpm, cpl, updated_at
		)
		VALUES (
			:id, :organization_id, :project_id, :platform, :account_id, :campaign_id, :ad_set_id, :ad_id, :date,
			:impressions, :clicks, :spend, :leads, :conversions_mql, :conversions_opportunity,
			:conversions_sale, :revenue, :ctr, :cpc, :cpm, :cpl, :updated_at
		)
		ON DUPLICATE KEY UPDATE
			project_id = VALUES(project_id),
			impressions = VALUES(impressions),
			clicks = VALUES(clicks),
			spend = VALUES(spend),
			leads = VALUES(leads),
			conversions_mql = VALUES(conversions_mql),
			conversions_opportunity = VALUES(conversions_opportunity),
			conversions_sale = VALUES(conversions_sale),
			revenue = VALUES(revenue),
			ctr = VALUES(ctr),
			cpc = VALUES(cpc),
			cpm = VALUES(cpm),
			cpl = VALUES(cpl),
			updated_at = VALUES(updated_at)
	`, m)
	if err != nil {
		return fmt.Errorf("upsert daily metric %s: %w", m.Date, err)
	}
	return nil
}

// idOf reads back the ID stored under a natural key
func (w *adsTx) idOf(ctx context.Context, table, where string, args ...any) (string, error) {
	var id string
	if err := w.tx.GetContext(ctx, &id, "SELECT id FROM "+table+" WHERE "+where, args...); err != nil {
		return "", fmt.Errorf("read %s id: %w", table, err)
	}
	return id, nil
}
