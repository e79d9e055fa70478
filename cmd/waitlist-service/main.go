package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"tastingroom/waitlist-service/internal/config"
	"tastingroom/waitlist-service/internal/httpapi"
	"tastingroom/waitlist-service/internal/logging"
	"tastingroom/waitlist-service/internal/notify"
	"tastingroom/waitlist-service/internal/queue"
	"tastingroom/waitlist-service/internal/store/airtable"
	"tastingroom/waitlist-service/internal/telemetry"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	shutdownTelemetry := telemetry.Setup("waitlist-service", cfg.OTLPEndpoint, cfg.OTLPInsecure)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	recordStore := airtable.New(airtable.Config{
		BaseURL: cfg.AirtableBaseURL,
		APIKey:  cfg.AirtableAPIKey,
		BaseID:  cfg.AirtableBaseID,
		Table:   cfg.AirtableTable,
		Timeout: cfg.StoreTimeout,
	})
	queueService := queue.NewService(recordStore, logger)
	provider := notify.NewProvider(notify.ProviderConfig{
		Kind:         cfg.SMSProvider,
		WebhookURL:   cfg.SMSWebhookURL,
		WebhookToken: cfg.SMSWebhookToken,
	}, logger)
	dispatcher := notify.NewDispatcher(recordStore, provider, notify.Config{
		Template:       cfg.SMSTemplate,
		From:           cfg.SMSFromNumber,
		DefaultCountry: cfg.DefaultCountryCode,
	}, logger)

	handler := httpapi.NewHandler(queueService, dispatcher)
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:    cfg.RateLimitPerMinute,
		IPBurst:        cfg.RateLimitBurst,
		ActorPerMinute: cfg.ActorRateLimitPerMinute,
		ActorBurst:     cfg.ActorRateLimitBurst,
	})

	chain := httpapi.AuthMiddleware(cfg.StaffAPIToken, handler.Routes())
	chain = limiter.Middleware(chain)
	chain = httpapi.LoggingMiddleware(logger, chain)
	otelHandler := otelhttp.NewHandler(chain, "waitlist-service")

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("waitlist-service listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
}
