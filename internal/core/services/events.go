package services

import (
	"context"
	"log/slog"

	"crm-whatsapp/internal/core/domain"
	"crm-whatsapp/internal/core/ports"
)

// publishEvent is best effort: consumers never block or fail the caller
func publishEvent(ctx context.Context, pub ports.EventPublisher, ev domain.Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, ev); err != nil {
		slog.Warn("Failed to publish event",
			"error", err,
			"type", ev.Type,
			"organization_id", ev.OrganizationID,
		)
	}
}
