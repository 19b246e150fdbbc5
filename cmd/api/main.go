package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mlaurent/clinic-voice-agent/cmd/mainconfig"
	"github.com/mlaurent/clinic-voice-agent/internal/api/router"
	"github.com/mlaurent/clinic-voice-agent/internal/calendar"
	"github.com/mlaurent/clinic-voice-agent/internal/calllog"
	appconfig "github.com/mlaurent/clinic-voice-agent/internal/config"
	"github.com/mlaurent/clinic-voice-agent/internal/conversation"
	"github.com/mlaurent/clinic-voice-agent/internal/events"
	"github.com/mlaurent/clinic-voice-agent/internal/http/handlers"
	"github.com/mlaurent/clinic-voice-agent/internal/observability/metrics"
	"github.com/mlaurent/clinic-voice-agent/internal/schedule"
	"github.com/mlaurent/clinic-voice-agent/internal/scheduling"
	"github.com/mlaurent/clinic-voice-agent/internal/session"
	"github.com/mlaurent/clinic-voice-agent/pkg/logging"
)

func main() {
	// Load .env in development; missing files are fine.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-voice-agent API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid practice timezone", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}
	hours, err := schedule.ParseWeeklyHours(cfg.BusinessHours)
	if err != nil {
		logger.Error("invalid business hours", "hours", cfg.BusinessHours, "error", err)
		os.Exit(1)
	}
	resolver := schedule.NewResolver(loc)

	// Calendar backend: Google Calendar in production, in-memory for
	// local development.
	var provider calendar.Provider
	if cfg.UseMemoryCalendar {
		provider = calendar.NewMemoryProvider()
		logger.Warn("using in-memory calendar; appointments will not survive a restart")
	} else {
		google, err := calendar.NewGoogleProvider(ctx, cfg.GoogleCalendarID, cfg.GoogleCredentialsJSON, loc)
		if err != nil {
			logger.Error("failed to initialize Google Calendar client", "error", err)
			os.Exit(1)
		}
		provider = google
	}

	// Session store.
	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	store := session.NewRedisStore(rdb, cfg.SessionTTL)

	negotiator := scheduling.NewNegotiator(provider, resolver, hours, cfg.ConsultDuration, cfg.MaxSearchProbes, logger)

	// Language model: Bedrock Converse, with an optional Gemini fallback.
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	var llm conversation.LLMClient = conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))
	if cfg.GeminiAPIKey != "" {
		gemini, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("failed to initialize Gemini client", "error", err)
			os.Exit(1)
		}
		defer gemini.Close()
		llm = conversation.NewFallbackLLMClient(llm, gemini, logger)
	}

	callMetrics := metrics.NewCallMetrics(nil)

	engine := conversation.NewEngine(llm, store, negotiator, conversation.EngineConfig{
		PracticeName:   cfg.PracticeName,
		HoursSpec:      cfg.BusinessHours,
		ModelID:        cfg.BedrockModelID,
		MaxTokens:      int32(cfg.LLMMaxTokens),
		LLMTimeout:     cfg.LLMTimeout,
		MaxSilentTurns: cfg.MaxSilentTurns,
		Location:       loc,
	}, callMetrics, logger)

	// Call lifecycle events.
	var queue events.Queue
	switch {
	case cfg.UseMemoryQueue:
		queue = events.NewMemoryQueue(0)
		logger.Warn("using in-memory call events queue")
	case cfg.CallEventsQueue != "":
		queue = events.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.CallEventsQueue)
	}
	var publisher *events.Publisher
	if queue != nil {
		publisher = events.NewPublisher(queue, logger)
	}

	// Durable call records, when Postgres is configured.
	var callRepo *calllog.Repository
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to Postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		callRepo = calllog.NewRepository(pool)
	} else {
		logger.Warn("DATABASE_URL not set; call records are disabled")
	}

	webhookCfg := handlers.VoiceWebhookConfig{
		Engine:    engine,
		Publisher: publisher,
		Token:     cfg.VoiceWebhookToken,
		Logger:    logger,
	}
	if callRepo != nil {
		webhookCfg.Recorder = callRepo
	}
	voiceHandler := handlers.NewVoiceWebhookHandler(webhookCfg)

	var adminHandler *handlers.AdminHandler
	if callRepo != nil {
		adminHandler = handlers.NewAdminHandler(callRepo, store, logger)
	} else {
		adminHandler = handlers.NewAdminHandler(nil, store, logger)
	}

	r := router.New(&router.Config{
		Logger:          logger,
		VoiceWebhooks:   voiceHandler,
		Admin:           adminHandler,
		AdminAuthSecret: cfg.AdminJWTSecret,
		MetricsHandler:  promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}
