package repository

import (
	"context"
	"fmt"
	"log/slog"

	"crm-whatsapp/internal/core/domain"
)

// ============================================================================
// CRMRepository Implementation
// ============================================================================

// CreateLead inserts a lead and assigns its ID
func (r *MariaDBRepository) CreateLead(ctx context.Context, lead *domain.Lead) error {
	lead.ID = newID()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = r.now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO leads (id, organization_id, name, source, converted_to_contact_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, lead.ID, lead.OrganizationID, lead.Name, lead.Source, lead.ConvertedToContactID, lead.CreatedAt)
	if err != nil {
		slog.Error("Failed to create lead", "error", err, "organization_id", lead.OrganizationID)
		return fmt.Errorf("create lead: %w", err)
	}
	return nil
}

// HasDealWithTag reports whether the contact already has a deal carrying tag
func (r *MariaDBRepository) HasDealWithTag(ctx context.Context, orgID, contactID, tag string) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM deals
		WHERE organization_id = ? AND contact_id = ? AND JSON_CONTAINS(tags, JSON_QUOTE(?))
	`, orgID, contactID, tag)
	if err != nil {
		return false, fmt.Errorf("check deal: %w", err)
	}
	return count > 0, nil
}

// CreateDeal inserts a deal and assigns its ID
func (r *MariaDBRepository) CreateDeal(ctx context.Context, deal *domain.Deal) error {
	deal.ID = newID()
	if deal.CreatedAt.IsZero() {
		deal.CreatedAt = r.now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO deals (id, organization_id, title, contact_id, tags, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, deal.ID, deal.OrganizationID, deal.Title, deal.ContactID, deal.Tags, deal.CreatedAt)
	if err != nil {
		slog.Error("Failed to create deal", "error", err, "contact_id", deal.ContactID)
		return fmt.Errorf("create deal: %w", err)
	}
	return nil
}

// ============================================================================
// ConversionRepository Implementation
// ============================================================================

// InsertFunnelEvent appends a funnel event
func (r *MariaDBRepository) InsertFunnelEvent(ctx context.Context, ev *domain.FunnelEvent) error {
	ev.ID = newID()
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO funnel_events (
			id, organization_id, project_id, lead_id, event_type, platform,
			click_id, gclid, fbclid, amount, currency, occurred_at
		)
		VALUES (
			:id, :organization_id, :project_id, :lead_id, :event_type, :platform,
			:click_id, :gclid, :fbclid, :amount, :currency, :occurred_at
		)
	`, ev)
	if err != nil {
		slog.Error("Failed to insert funnel event", "error", err, "organization_id", ev.OrganizationID)
		return fmt.Errorf("insert funnel event: %w", err)
	}
	return nil
}

// UpsertConversionEvent records the attempt; a retry of the same payload
// overwrites status and response of the earlier row
func (r *MariaDBRepository) UpsertConversionEvent(ctx context.Context, ev *domain.ConversionEvent) error {
	ev.ID = newID()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversion_events (
			id, organization_id, project_id, lead_id, event_type, platform,
			payload_hash, status, external_response, attempted_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			status = VALUES(status),
			external_response = VALUES(external_response),
			attempted_at = VALUES(attempted_at)
	`,
		ev.ID,
		ev.OrganizationID,
		ev.ProjectID,
		ev.LeadID,
		ev.EventType,
		ev.Platform,
		ev.PayloadHash,
		ev.Status,
		[]byte(ev.ExternalResponse),
		ev.AttemptedAt,
	)
	if err != nil {
		slog.Error("Failed to upsert conversion event",
			"error", err,
			"platform", ev.Platform,
			"payload_hash", ev.PayloadHash,
		)
		return fmt.Errorf("upsert conversion event: %w", err)
	}
	return nil
}
