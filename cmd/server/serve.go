package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"crm-whatsapp/internal/adapters/gateway"
	"crm-whatsapp/internal/adapters/handler"
	"crm-whatsapp/internal/adapters/messaging"
	"crm-whatsapp/internal/adapters/repository"
	"crm-whatsapp/internal/adapters/websocket"
	"crm-whatsapp/internal/config"
	"crm-whatsapp/internal/core/ports"
	"crm-whatsapp/internal/core/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	startedAt := time.Now()

	// Step 1: Configuration and logging
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogger(cfg.App)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Step 2: Infrastructure
	db, err := connectMariaDB(cfg.DB, 5, 2*time.Second)
	if err != nil {
		return err
	}
	defer db.Close()

	if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
		if err := repository.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	var rdb *redis.Client
	var dedup ports.DedupRepository
	if cfg.Redis.Enabled {
		rdb = connectRedis(cfg.Redis, 5, 2*time.Second)
	}
	if rdb != nil {
		defer rdb.Close()
		dedup = repository.NewRedisDedupRepository(rdb)
	} else {
		dedup = repository.NewMemoryDedupRepository(cfg.Redis.DedupTTL)
	}

	// Step 3: Event fan-out (operator consoles + broker)
	hub := websocket.NewEventHub(cfg.Ops.EventHubSecret)
	go hub.Run(ctx)

	publishers := []ports.EventPublisher{hub}
	var broker *messaging.AMQPPublisher
	if cfg.AMQP.URL != "" {
		broker, err = messaging.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			slog.Error("AMQP unavailable, events go to operator consoles only", "error", err)
		} else {
			defer broker.Close()
			publishers = append(publishers, broker)
		}
	}
	events := messaging.NewMultiPublisher(publishers...)

	// Step 4: Repositories
	mariadbRepo := repository.NewMariaDBRepository(db)
	contacts := repository.NewContactStore(db)
	conversations := repository.NewConversationStore(db)
	handoffs := repository.NewHandoffStore(db)
	messages := repository.NewMessageStore(db)

	// Step 5: Gateways
	whatsapp := gateway.NewWhatsAppClient(cfg.WhatsApp.GraphBaseURL, cfg.WhatsApp.GraphAPIVersion, cfg.WhatsApp.HTTPTimeout)
	metaCAPI := gateway.NewMetaConversionsClient(cfg.Conversions.MetaBaseURL, cfg.Conversions.HTTPTimeout)
	googleAds := gateway.NewGoogleAdsClient(cfg.Conversions.GoogleAdsBaseURL, cfg.Conversions.HTTPTimeout)

	// Step 6: Services
	identity := services.NewIdentityResolver(contacts, conversations)
	handoff := services.NewHandoffService(conversations, handoffs, events)
	writer := services.NewMessageWriter(messages, conversations, dedup, cfg.Redis.DedupTTL)
	dispatcher := services.NewDispatcher(mariadbRepo, mariadbRepo, conversations, mariadbRepo, identity, handoff, writer, events)
	outbound := services.NewOutboundService(conversations, mariadbRepo, handoff, whatsapp, writer, events)
	inbox := services.NewInboxService(conversations, messages, handoffs)
	accounts := services.NewAccountService(mariadbRepo, cfg.WhatsApp.VerifyToken)
	conversions := services.NewConversionService(mariadbRepo, metaCAPI, googleAds, events)
	ads := services.NewAdsIngestService(mariadbRepo)

	watchdog := services.NewWatchdog(mariadbRepo, services.WatchdogConfig{
		Interval:      cfg.Ops.WatchdogInterval,
		DiskPath:      cfg.Ops.DiskPath,
		DiskThreshold: cfg.Ops.DiskThreshold,
		Retention:     cfg.Ops.WebhookRetention,
	})
	go watchdog.Run(ctx)

	// Step 7: HTTP
	checks := map[string]handler.HealthCheck{
		"mariadb": db.PingContext,
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	if broker != nil {
		checks["amqp"] = broker.Ping
	}

	router := handler.NewRouter(handler.Routes{
		Webhook:       handler.NewWebhookHandler(dispatcher, accounts, cfg.WhatsApp.AppSecret),
		Conversations: handler.NewConversationHandler(handoff, outbound, inbox),
		Accounts:      handler.NewAccountHandler(accounts),
		Marketing:     handler.NewMarketingHandler(conversions, ads),
		Dashboard: handler.NewDashboardHandler(handler.DashboardConfig{
			Version:       cfg.App.Version,
			DiskPath:      cfg.Ops.DiskPath,
			DiskThreshold: cfg.Ops.DiskThreshold,
			Checks:        checks,
			ConnectedHub:  hub,
			StartedAt:     startedAt,
		}),
		Events:         hub,
		InternalToken:  cfg.App.InternalAPIToken,
		RequestTimeout: cfg.App.RequestTimeout,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
