package services

import (
	"context"
	"fmt"
	"strings"

	"crm-whatsapp/internal/core/domain"
	"crm-whatsapp/internal/core/ports"
)

// IdentityResolver maps a sender phone number to its contact and conversation,
// creating both on first sight
type IdentityResolver struct {
	contacts      ports.ContactRepository
	conversations ports.ConversationRepository
}

// NewIdentityResolver creates a new resolver with repositories injected
func NewIdentityResolver(contacts ports.ContactRepository, conversations ports.ConversationRepository) *IdentityResolver {
	return &IdentityResolver{
		contacts:      contacts,
		conversations: conversations,
	}
}

// NormalizePhone strips every non-digit and prefixes "+"
func NormalizePhone(raw string) string {
	var b strings.Builder
	b.Grow(len(raw) + 1)
	b.WriteByte('+')
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ContactDisplayName returns the trimmed profile name, or "WhatsApp <phone>"
func ContactDisplayName(name, phone string) string {
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		return trimmed
	}
	return "WhatsApp " + phone
}

// ResolveContact returns the contact for (org, phone). The name is only used
// when the contact is created.
func (r *IdentityResolver) ResolveContact(ctx context.Context, orgID, phone, name string) (*domain.Contact, error) {
	contact, err := r.contacts.GetOrCreate(ctx, orgID, phone, ContactDisplayName(name, phone), domain.ContactSourceWhatsApp)
	if err != nil {
		return nil, fmt.Errorf("resolve contact: %w", err)
	}
	return contact, nil
}

// ResolveConversation returns the conversation for (org, phone). New
// conversations inherit the account's AI default; creation writes no handoff log.
func (r *IdentityResolver) ResolveConversation(ctx context.Context, account *domain.Account, contact *domain.Contact, phone string) (*domain.Conversation, error) {
	conv, err := r.conversations.GetOrCreate(ctx, ports.ConversationSeed{
		OrganizationID: account.OrganizationID,
		AccountID:      account.ID,
		ContactID:      contact.ID,
		PhoneNumber:    phone,
		AIEnabled:      account.AIEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve conversation: %w", err)
	}
	return conv, nil
}
