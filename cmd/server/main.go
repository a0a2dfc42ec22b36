package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ignite/email-validator/internal/api"
	"github.com/ignite/email-validator/internal/config"
	"github.com/ignite/email-validator/internal/correction"
	"github.com/ignite/email-validator/internal/hubspot"
	"github.com/ignite/email-validator/internal/metrics"
	"github.com/ignite/email-validator/internal/pkg/logger"
	"github.com/ignite/email-validator/internal/service/validation"
	"github.com/ignite/email-validator/internal/storage"
	"github.com/ignite/email-validator/internal/webhook"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %w\n"+
			"  Hint: Run 'lsof -i :%d' to find the blocking process", port, addr, err, port)
	}
	ln.Close()
	return nil
}

func fatal(msg string, fields ...interface{}) {
	logger.Error(msg, fields...)
	_ = logger.Sync()
	os.Exit(1)
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fatal("failed to load config", "error", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	logger.Info("email validator starting",
		"environment", cfg.Environment,
		"storage", cfg.Storage.Type,
		"remove_gmail_aliases", cfg.Validation.RemoveGmailAliases,
		"check_australian_tlds", cfg.Validation.CheckAustralianTLDs,
	)

	// Pre-flight check: verify the target port is available
	host := cfg.Server.GetHost()
	if err := checkPortAvailable(host, cfg.Server.Port); err != nil {
		fatal("pre-flight check failed", "error", err)
	}

	ctx := context.Background()

	store, err := storage.New(ctx, cfg)
	if err != nil {
		fatal("failed to initialize storage", "error", err)
	}

	m := metrics.New()

	corrector := correction.New(correction.Options{
		RemoveGmailAliases:  cfg.Validation.RemoveGmailAliases,
		CheckAustralianTLDs: cfg.Validation.CheckAustralianTLDs,
	})
	validator := validation.NewService(corrector, store.KnownValid, store.Results, validation.Config{
		KnownValidTTL: cfg.Validation.KnownValidTTL(),
		ResultLogTTL:  cfg.Validation.ResultLogTTL(),
	})
	validator.SetMetrics(m)

	// CRM write-back is optional.
	var crm webhook.ContactUpdater
	if cfg.HubSpot.APIKey != "" {
		crm = hubspot.NewClient(cfg.HubSpot)
		logger.Info("hubspot contact updates enabled", "base_url", cfg.HubSpot.BaseURL)
	} else {
		logger.Info("hubspot contact updates disabled (no HUBSPOT_API_KEY)")
	}

	var dedupe webhook.Deduper
	if store.Redis != nil {
		dedupe = webhook.NewRedisDeduper(store.Redis, cfg.Webhook.DedupeTTL())
	}

	dispatcher := webhook.NewDispatcher(cfg.Webhook.TaskTimeout(), m)
	processor := webhook.NewProcessor(validator, crm, dedupe, m)
	gateway := webhook.NewGateway(webhook.GatewayConfig{
		ClientSecret:     cfg.HubSpot.ClientSecret,
		SkipVerification: cfg.HubSpot.SkipSignatureVerification,
		Environment:      cfg.Environment,
	}, processor, dispatcher)
	if cfg.HubSpot.ClientSecret == "" && !gatewaySkips(cfg) {
		logger.Warn("HUBSPOT_CLIENT_SECRET is not set; all webhook deliveries will be rejected")
	}

	handlers := api.NewHandlers(validator)
	if store.Archive != nil {
		handlers.SetArchive(store.Archive)
	}

	health := api.NewHealthChecker(cfg.Environment)
	if store.Redis != nil {
		health.AddCheck("redis", func(ctx context.Context) error { return store.Redis.Ping(ctx).Err() })
	}
	if cfg.Storage.Type == storage.TypePostgres {
		health.AddCheck("database", store.PingDatabase)
	}

	server := api.NewServer(cfg.Server, api.SetupRoutes(api.Routes{
		Handlers: handlers,
		Health:   health,
		Webhook:  gateway.HandleHubSpot,
		Metrics:  m.Handler(),
	}))

	// Setup graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", host, cfg.Server.Port)
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server error", "error", err)
		}
	}()

	<-done
	logger.Info("shutting down", "in_flight_webhooks", dispatcher.InFlight())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	// Let acknowledged webhook work finish before the stores close.
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Error("webhook tasks abandoned", "in_flight", dispatcher.InFlight(), "error", err)
	}
	if err := store.Close(); err != nil {
		logger.Error("storage close error", "error", err)
	}

	logger.Info("server stopped", "webhook_failures", dispatcher.Failures())
	_ = logger.Sync()
}

func gatewaySkips(cfg *config.Config) bool {
	return cfg.HubSpot.SkipSignatureVerification && !cfg.IsProduction()
}
