// Package services contains core business logic
// Following Hexagonal Architecture: Services orchestrate domain logic using ports
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"crm-whatsapp/internal/adapters/dto"
	"crm-whatsapp/internal/core/domain"
	"crm-whatsapp/internal/core/ports"
)

// PlatformWhatsApp is the webhook_logs.platform value for this integration
const PlatformWhatsApp = "whatsapp"

// dealTag marks deals opened from WhatsApp conversations
const dealTag = "whatsapp"

// WebhookSummary is returned to the provider after a delivery is processed
type WebhookSummary struct {
	Handled    bool   `json:"handled"`
	Reason     string `json:"reason,omitempty"`
	Processed  int    `json:"processed"`
	Duplicates int    `json:"duplicates"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
}

// Dispatcher orchestrates webhook processing workflow:
// identity resolution -> handoff policy -> message store
type Dispatcher struct {
	webhookRepo      ports.WebhookRepository
	accounts         ports.AccountRepository
	conversationRepo ports.ConversationRepository
	crm              ports.CRMRepository
	identity         *IdentityResolver
	handoff          *HandoffService
	writer           *MessageWriter
	events           ports.EventPublisher
}

// NewDispatcher creates a new dispatcher instance with dependencies injected
func NewDispatcher(
	webhookRepo ports.WebhookRepository,
	accounts ports.AccountRepository,
	conversationRepo ports.ConversationRepository,
	crm ports.CRMRepository,
	identity *IdentityResolver,
	handoff *HandoffService,
	writer *MessageWriter,
	events ports.EventPublisher,
) *Dispatcher {
	return &Dispatcher{
		webhookRepo:      webhookRepo,
		accounts:         accounts,
		conversationRepo: conversationRepo,
		crm:              crm,
		identity:         identity,
		handoff:          handoff,
		writer:           writer,
		events:           events,
	}
}

// ProcessWebhook processes a WhatsApp webhook delivery synchronously.
// Messages are handled one by one; a failed message is counted and logged
// without rolling back or aborting the rest of the batch.
// Only a malformed payload returns an error (a *domain.ValidationError).
func (d *Dispatcher) ProcessWebhook(ctx context.Context, payload []byte) (summary *WebhookSummary, err error) {
	// ========================================================================
	// Panic recovery: a bad message must not take the server down
	// ========================================================================
	defer func() {
		if r := recover(); r != nil {
			slog.Error("PANIC recovered in ProcessWebhook", "panic", r)
			summary, err = nil, fmt.Errorf("webhook processing panic: %v", r)
		}
	}()

	// ========================================================================
	// Step 1: Save webhook to audit log (failure does not block processing)
	// ========================================================================
	webhookLog := &domain.WebhookLog{
		Platform:    PlatformWhatsApp,
		PayloadJSON: auditPayload(payload),
		Status:      domain.WebhookStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := d.webhookRepo.SaveLog(ctx, webhookLog); err != nil {
		slog.Error("Failed to save webhook log", "error", err)
		webhookLog.ID = ""
	}

	// ========================================================================
	// Step 2: Parse into the typed batch
	// ========================================================================
	batch, err := dto.ParseWebhook(payload)
	if err != nil {
		slog.Warn("Rejected malformed webhook payload", "error", err)
		d.finishLog(ctx, webhookLog.ID, domain.WebhookStatusFailed, err.Error())
		return nil, err
	}

	if batch.EntryCount == 0 {
		d.finishLog(ctx, webhookLog.ID, domain.WebhookStatusProcessed, "")
		return &WebhookSummary{Handled: false, Reason: "no_entry"}, nil
	}

	// ========================================================================
	// Step 3: Process each change, then each message, sequentially
	// ========================================================================
	summary = &WebhookSummary{Handled: true}
	for _, change := range batch.Changes {
		summary.Skipped += change.Skipped

		account, err := d.accounts.FindByPhoneID(ctx, change.PhoneNumberID)
		if errors.Is(err, domain.ErrAccountNotFound) {
			slog.Warn("Webhook for unknown phone_number_id, skipping",
				"phone_number_id", change.PhoneNumberID,
				"messages", len(change.Messages),
			)
			summary.Skipped += len(change.Messages)
			continue
		}
		if err != nil {
			slog.Error("Failed to look up account",
				"error", err,
				"phone_number_id", change.PhoneNumberID,
			)
			summary.Failed += len(change.Messages)
			continue
		}

		for i := range change.Messages {
			msg := &change.Messages[i]
			dup, err := d.processMessage(ctx, account, msg)
			switch {
			case err != nil:
				slog.Error("Failed to process message",
					"error", err,
					"wa_message_id", msg.ID,
					"organization_id", account.OrganizationID,
				)
				summary.Failed++
			case dup:
				summary.Duplicates++
			default:
				summary.Processed++
			}
		}
	}

	status, errText := domain.WebhookStatusProcessed, ""
	if summary.Failed > 0 {
		status, errText = domain.WebhookStatusFailed, fmt.Sprintf("%d message(s) failed", summary.Failed)
	}
	d.finishLog(ctx, webhookLog.ID, status, errText)

	slog.Info("Webhook processing completed",
		"processed", summary.Processed,
		"duplicates", summary.Duplicates,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)

	return summary, nil
}

// processMessage handles a single inbound message. It returns true when the
// message was already stored.
func (d *Dispatcher) processMessage(ctx context.Context, account *domain.Account, msg *dto.InboundMessage) (bool, error) {
	orgID := account.OrganizationID
	phone := NormalizePhone(msg.From)

	// ========================================================================
	// Step 1: Identity resolution
	// ========================================================================
	contact, err := d.identity.ResolveContact(ctx, orgID, phone, msg.ProfileName)
	if err != nil {
		return false, err
	}
	conv, err := d.identity.ResolveConversation(ctx, account, contact, phone)
	if err != nil {
		return false, err
	}

	// ========================================================================
	// Step 2: Redelivery of an applied message only refreshes freshness
	// ========================================================================
	if d.writer.Seen(ctx, msg.ID) {
		if err := d.writer.Touch(ctx, orgID, conv.ID, msg.Timestamp); err != nil {
			return false, err
		}
		slog.Info("Duplicate message detected, skipping linkage and handoff",
			"wa_message_id", msg.ID,
			"conversation_id", conv.ID,
		)
		return true, nil
	}

	// ========================================================================
	// Step 3: CRM linkage (lead once per conversation, deal once per contact)
	// ========================================================================
	if err := d.ensureLeadAndDeal(ctx, conv, contact, phone); err != nil {
		slog.Warn("Failed to link lead/deal, continuing",
			"error", err,
			"conversation_id", conv.ID,
		)
	}

	// ========================================================================
	// Step 4: Handoff policy
	// ========================================================================
	text := msg.TextValue()
	if _, err := d.handoff.OnInbound(ctx, conv, text); err != nil {
		return false, err
	}

	// ========================================================================
	// Step 5: Persist message (dedup by wa_message_id)
	// ========================================================================
	waID := msg.ID
	result, err := d.writer.Append(ctx, MessageInput{
		OrganizationID: orgID,
		ConversationID: conv.ID,
		Direction:      domain.DirectionIn,
		WAMessageID:    &waID,
		Text:           msg.Text,
		Type:           msg.Type,
		Raw:            msg.Raw,
		Timestamp:      msg.Timestamp,
	})
	if err != nil {
		return false, err
	}
	if result.Duplicate {
		return true, nil
	}

	publishEvent(ctx, d.events, domain.NewEvent(domain.EventMessageReceived, orgID, map[string]any{
		"conversation_id": conv.ID,
		"contact_id":      contact.ID,
		"account_id":      account.ID,
		"phone_number":    phone,
		"wa_message_id":   waID,
		"text":            msg.Text,
		"type":            result.Message.Type,
		"ai_enabled":      conv.AIEnabled,
	}))

	slog.Info("Message processed successfully",
		"wa_message_id", waID,
		"conversation_id", conv.ID,
		"ai_enabled", conv.AIEnabled,
		"content_preview", preview(text, 50),
	)

	return false, nil
}

func (d *Dispatcher) ensureLeadAndDeal(ctx context.Context, conv *domain.Conversation, contact *domain.Contact, phone string) error {
	title := "Lead WhatsApp " + phone

	if conv.LeadID == nil {
		lead := &domain.Lead{
			OrganizationID:       conv.OrganizationID,
			Name:                 title,
			Source:               domain.ContactSourceWhatsApp,
			ConvertedToContactID: &contact.ID,
		}
		if err := d.crm.CreateLead(ctx, lead); err != nil {
			return fmt.Errorf("create lead: %w", err)
		}
		if err := d.conversationRepo.LinkLead(ctx, conv.OrganizationID, conv.ID, lead.ID); err != nil {
			return fmt.Errorf("link lead: %w", err)
		}
		conv.LeadID = &lead.ID
	}

	hasDeal, err := d.crm.HasDealWithTag(ctx, conv.OrganizationID, contact.ID, dealTag)
	if err != nil {
		return fmt.Errorf("check deal: %w", err)
	}
	if hasDeal {
		return nil
	}

	tags, _ := json.Marshal([]string{dealTag})
	deal := &domain.Deal{
		OrganizationID: conv.OrganizationID,
		Title:          title,
		ContactID:      contact.ID,
		Tags:           string(tags),
	}
	if err := d.crm.CreateDeal(ctx, deal); err != nil {
		return fmt.Errorf("create deal: %w", err)
	}
	return nil
}

// finishLog updates the audit log status; failures are only logged
func (d *Dispatcher) finishLog(ctx context.Context, id, status, errText string) {
	if id == "" {
		return
	}
	var errLog *string
	if errText != "" {
		errLog = &errText
	}
	if err := d.webhookRepo.UpdateStatus(ctx, id, status, errLog); err != nil {
		slog.Error("Failed to update webhook status",
			"error", err,
			"webhook_id", id,
			"status", status,
		)
	}
}

// auditPayload stores the body as-is when it is JSON, otherwise as a JSON string
func auditPayload(payload []byte) json.RawMessage {
	if json.Valid(payload) {
		return json.RawMessage(payload)
	}
	quoted, _ := json.Marshal(string(payload))
	return quoted
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
