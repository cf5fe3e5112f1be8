package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/assistant"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/auth"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/bus"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/chat"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/config"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/httpapi"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/kvstore"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/lifecycle"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/observability"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/quota"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/search"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/settings"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	store, err := kvstore.NewStore(ctx, cfg.StoreBackend, cfg.StorePath(), cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}
	defer store.Close()

	adapter, err := assistant.New(cfg.AssistantMode, cfg.AssistantHTTPURL, cfg.AssistantTimeout)
	if err != nil {
		logger.Fatal("assistant adapter init failed", zap.Error(err))
	}

	b := bus.New()
	repo := chat.NewRepository(store, logger)
	index := search.NewIndex(repo)
	themes := settings.NewThemes(store, b, logger)

	authSvc := auth.NewService(store, b, logger)
	deviceID := authSvc.EnsureDeviceID(ctx)

	gate := quota.NewGate(store, cfg.AnonMessageLimit, logger)
	gate.Bind(b)
	gate.SetAuthenticated(authSvc.IsAuthenticated(ctx))

	controller := lifecycle.NewController(repo, cfg.ReconcileDebounce, logger)
	controller.Bind(b)
	controller.SetAuthenticated(authSvc.IsAuthenticated(ctx))
	controller.SetChatSurface(true)
	controller.SetReconcileHook(metrics.ReconcileRuns.Inc)
	resumed := controller.Resume(ctx)
	logger.Info("session resumed",
		zap.String("session_id", resumed.ID),
		zap.Int("messages", len(resumed.Messages)),
		zap.String("device_id", deviceID),
	)
	metrics.StoredSessions.Set(float64(repo.Count(ctx)))

	api := httpapi.New(cfg, controller, repo, index, gate, authSvc, themes,
		adapter, metrics, b, deviceID, logger)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		_ = httpServer.Close()
	}

	// Flush the in-flight conversation so the next start resumes it.
	controller.SaveNow(shutdownCtx)
	logger.Info("shutdown complete")
}
