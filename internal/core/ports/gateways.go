package ports

import (
	"context"

	"crm-whatsapp/internal/core/domain"
)

// WhatsAppSender delivers outbound text messages through the Cloud API
type WhatsAppSender interface {
	// SendText returns the provider message id
	SendText(ctx context.Context, phoneID, accessToken, to, text string) (string, error)
}

// MetaConversionsClient posts events to the Meta Conversions API.
// A non-nil error means the call never produced an answer.
type MetaConversionsClient interface {
	SendEvent(ctx context.Context, creds domain.MetaCredentials, req *domain.ConversionRequest, eventID string) (*domain.ProviderResponse, error)
}

// GoogleAdsClient uploads click conversions to Google Ads.
// A non-nil error means the call never produced an answer.
type GoogleAdsClient interface {
	UploadClickConversion(ctx context.Context, creds domain.GoogleCredentials, req *domain.ConversionRequest, gclid, orderID string) (*domain.ProviderResponse, error)
}

// EventPublisher fans domain events out to external consumers
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}
