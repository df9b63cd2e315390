package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes bundles the handlers mounted by NewRouter
type Routes struct {
	Webhook       *WebhookHandler
	Conversations *ConversationHandler
	Accounts      *AccountHandler
	Marketing     *MarketingHandler
	Dashboard     *DashboardHandler
	Events        http.Handler // websocket operator stream; optional

	InternalToken  string
	RequestTimeout time.Duration
}

// NewRouter wires every HTTP route
func NewRouter(routes Routes) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", routes.Dashboard.Health)

	// The websocket stream outlives any request timeout
	if routes.Events != nil {
		r.Method(http.MethodGet, "/ws/events", routes.Events)
	}

	r.Group(func(r chi.Router) {
		if routes.RequestTimeout > 0 {
			r.Use(middleware.Timeout(routes.RequestTimeout))
		}

		r.Get("/webhooks/whatsapp", routes.Webhook.HandleVerify)
		r.Post("/webhooks/whatsapp", routes.Webhook.HandleEvent)

		// Operator inbox, scoped by the auth gateway's headers
		r.Route("/api/whatsapp", func(r chi.Router) {
			r.Use(RequireOrganization)

			r.Get("/conversations", routes.Conversations.ListConversations)
			r.Get("/conversations/{id}/messages", routes.Conversations.ListMessages)
			r.Patch("/conversations/{id}/ai", routes.Conversations.ToggleAI)
			r.Post("/send", routes.Conversations.SendMessage)
			r.Get("/logs", routes.Conversations.ListHandoffLogs)
			r.Get("/messages/logs", routes.Conversations.ListMessageLogs)

			r.Get("/accounts", routes.Accounts.List)
			r.Post("/accounts", routes.Accounts.Connect)
			r.Delete("/accounts", routes.Accounts.Disconnect)
		})

		// Server-to-server endpoints
		r.Group(func(r chi.Router) {
			r.Use(RequireInternalToken(routes.InternalToken))

			r.Post("/api/conversions/meta", routes.Marketing.SendMetaConversion)
			r.Post("/api/conversions/google", routes.Marketing.SendGoogleConversion)
			r.Post("/api/ads/{platform}/ingest", routes.Marketing.IngestAds)

			r.Get("/api/system/metrics", routes.Dashboard.GetSystemMetrics)
			r.Get("/api/status", routes.Dashboard.GetStatus)
		})
	})

	return r
}
