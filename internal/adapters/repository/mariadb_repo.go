// Package repository implements data persistence adapters
// Following Hexagonal Architecture: Adapters implement ports defined in core
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"crm-whatsapp/internal/core/domain"
	"crm-whatsapp/internal/core/ports"
)

// Ensure MariaDBRepository implements the required interfaces
var (
	_ ports.WebhookRepository    = (*MariaDBRepository)(nil)
	_ ports.AccountRepository    = (*MariaDBRepository)(nil)
	_ ports.CRMRepository        = (*MariaDBRepository)(nil)
	_ ports.ConversionRepository = (*MariaDBRepository)(nil)
	_ ports.AdsRepository        = (*MariaDBRepository)(nil)
)

// mysqlDuplicateEntry is ER_DUP_ENTRY
const mysqlDuplicateEntry = 1062

// store holds what every MariaDB adapter shares
type store struct {
	db  *sqlx.DB
	now func() time.Time
}

func newStore(db *sqlx.DB) store {
	return store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// MariaDBRepository implements persistence operations for MariaDB: webhook
// audit log, accounts, CRM records, conversions and ads. Contacts,
// conversations, handoffs and messages have their own stores because their
// ports share method names.
type MariaDBRepository struct {
	store
}

// NewMariaDBRepository creates a new MariaDB repository instance
func NewMariaDBRepository(db *sqlx.DB) *MariaDBRepository {
	return &MariaDBRepository{store: newStore(db)}
}

// isDuplicateKey reports a unique-key violation; no other error qualifies
func isDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}

func newID() string {
	return uuid.NewString()
}

// ============================================================================
// WebhookRepository Implementation
// ============================================================================

// SaveLog persists a webhook delivery to the audit log and assigns its ID
func (r *MariaDBRepository) SaveLog(ctx context.Context, log *domain.WebhookLog) error {
	if log.ID == "" {
		log.ID = newID()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = r.now()
	}

	query := `
		INSERT INTO webhook_logs (id, platform, payload_json, status, error_log, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		log.ID,
		log.Platform,
		[]byte(log.PayloadJSON),
		log.Status,
		log.ErrorLog,
		log.CreatedAt,
	)
	if err != nil {
		slog.Error("Failed to save webhook log",
			"error", err,
			"platform", log.Platform,
		)
		return fmt.Errorf("save webhook log: %w", err)
	}

	slog.Debug("Webhook log saved",
		"webhook_id", log.ID,
		"platform", log.Platform,
		"status", log.Status,
	)
	return nil
}

// UpdateStatus updates the processing status of a webhook log
func (r *MariaDBRepository) UpdateStatus(ctx context.Context, id string, status string, errorLog *string) error {
	query := `
		UPDATE webhook_logs
		SET status = ?, error_log = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query, status, errorLog, id)
	if err != nil {
		slog.Error("Failed to update webhook status",
			"error", err,
			"webhook_id", id,
			"status", status,
		)
		return fmt.Errorf("update webhook status: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		slog.Warn("No webhook log found for status update",
			"webhook_id", id,
		)
	}
	return nil
}

// PurgeProcessedBefore deletes finished webhook logs older than cutoff.
// Pending rows are kept so in-flight deliveries stay auditable.
func (r *MariaDBRepository) PurgeProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM webhook_logs WHERE status <> ? AND created_at < ?`

	result, err := r.db.ExecContext(ctx, query, domain.WebhookStatusPending, cutoff)
	if err != nil {
		slog.Error("Failed to purge webhook logs", "error", err, "cutoff", cutoff)
		return 0, fmt.Errorf("purge webhook logs: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

// ============================================================================
// AccountRepository Implementation
// ============================================================================

const accountColumns = `id, organization_id, phone_number, phone_id, waba_business_account_id,
	access_token, verify_token, status, ai_enabled, created_at, updated_at`

// FindByPhoneID resolves the account a webhook change belongs to.
// The status is not filtered: a disconnected number still records inbound traffic.
func (r *MariaDBRepository) FindByPhoneID(ctx context.Context, phoneID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM whatsapp_accounts WHERE phone_id = ? ORDER BY updated_at DESC LIMIT 1`

	var account domain.Account
	err := r.db.GetContext(ctx, &account, query, phoneID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		slog.Error("Failed to find account by phone id", "error", err, "phone_id", phoneID)
		return nil, fmt.Errorf("find account by phone id: %w", err)
	}
	return &account, nil
}

// GetByID retrieves an account by its ID
func (r *MariaDBRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM whatsapp_accounts WHERE id = ?`

	var account domain.Account
	err := r.db.GetContext(ctx, &account, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		slog.Error("Failed to get account", "error", err, "account_id", id)
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &account, nil
}

// VerifyTokenExists checks the webhook handshake token against all accounts
func (r *MariaDBRepository) VerifyTokenExists(ctx context.Context, token string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists, `SELECT 1 FROM whatsapp_accounts WHERE verify_token = ? LIMIT 1`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		slog.Error("Failed to check verify token", "error", err)
		return false, fmt.Errorf("check verify token: %w", err)
	}
	return true, nil
}

// Upsert inserts or refreshes the account on (organization_id, phone_number)
// and loads the stored row back into account
func (r *MariaDBRepository) Upsert(ctx context.Context, account *domain.Account) error {
	now := r.now()
	query := `
		INSERT INTO whatsapp_accounts (
			id, organization_id, phone_number, phone_id, waba_business_account_id,
			access_token, verify_token, status, ai_enabled, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			phone_id = VALUES(phone_id),
			waba_business_account_id = VALUES(waba_business_account_id),
			access_token = VALUES(access_token),
			verify_token = VALUES(verify_token),
			status = VALUES(status),
			ai_enabled = VALUES(ai_enabled),
			updated_at = VALUES(updated_at)
	`
	_, err := r.db.ExecContext(ctx, query,
		newID(),
		account.OrganizationID,
		account.PhoneNumber,
		account.PhoneID,
		account.BusinessAccountID,
		account.AccessToken,
		account.VerifyToken,
		account.Status,
		account.AIEnabled,
		now,
		now,
	)
	if err != nil {
		slog.Error("Failed to upsert account",
			"error", err,
			"organization_id", account.OrganizationID,
			"phone_id", account.PhoneID,
		)
		return fmt.Errorf("upsert account: %w", err)
	}

	err = r.db.GetContext(ctx, account,
		`SELECT `+accountColumns+` FROM whatsapp_accounts WHERE organization_id = ? AND phone_number = ?`,
		account.OrganizationID, account.PhoneNumber)
	if err != nil {
		return fmt.Errorf("reload account: %w", err)
	}
	return nil
}

// Deactivate disables an account when its token expires or becomes invalid
func (r *MariaDBRepository) Deactivate(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE whatsapp_accounts SET status = ?, updated_at = ? WHERE id = ?`,
		domain.AccountStatusInactive, r.now(), id)
	if err != nil {
		slog.Error("Failed to deactivate account", "error", err, "account_id", id)
		return fmt.Errorf("deactivate account: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows > 0 {
		slog.Warn("Account deactivated - token expired or invalid",
			"account_id", id,
			"action", "Admin must reconnect WhatsApp",
		)
	}
	return nil
}

// DeactivateAll flips every account of the organization to inactive
func (r *MariaDBRepository) DeactivateAll(ctx context.Context, orgID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE whatsapp_accounts SET status = ?, updated_at = ? WHERE organization_id = ? AND status <> ?`,
		domain.AccountStatusInactive, r.now(), orgID, domain.AccountStatusInactive)
	if err != nil {
		return 0, fmt.Errorf("deactivate accounts: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

func (r *MariaDBRepository) ListByOrganization(ctx context.Context, orgID string) ([]domain.Account, error) {
	accounts := []domain.Account{}
	err := r.db.SelectContext(ctx, &accounts,
		`SELECT `+accountColumns+` FROM whatsapp_accounts WHERE organization_id = ? ORDER BY created_at DESC`,
		orgID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

