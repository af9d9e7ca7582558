package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/orchard/internal/config"
	"github.com/mamadbah2/orchard/internal/repository/mongodb"
	"github.com/mamadbah2/orchard/internal/repository/sheets"
	"github.com/mamadbah2/orchard/internal/scheduler"
	"github.com/mamadbah2/orchard/internal/server/handlers"
	"github.com/mamadbah2/orchard/internal/server/router"
	"github.com/mamadbah2/orchard/internal/service/applications"
	commandsvc "github.com/mamadbah2/orchard/internal/service/commands"
	whatsappsvc "github.com/mamadbah2/orchard/internal/service/whatsapp"
	"github.com/mamadbah2/orchard/pkg/clients/anthropic"
	whatsappclient "github.com/mamadbah2/orchard/pkg/clients/whatsapp"
	"github.com/mamadbah2/orchard/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)
	gin.SetMode(cfg.Server.GinMode)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	sheetsRepo, err := sheets.NewGoogleSheetRepository(startupCtx, cfg.Sheets, baseLogger.Named("repo.sheets"))
	if err != nil {
		baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
	}
	catalog := sheets.NewCatalog(sheetsRepo, cfg.Sheets, baseLogger.Named("repo.catalog"))
	journal := sheets.NewMovementJournal(sheetsRepo, cfg.Sheets.MovementsRange, baseLogger.Named("repo.journal"))

	mongoRepo, err := mongodb.NewRepository(startupCtx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
	if err != nil {
		baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
	}
	defer func() {
		if err := mongoRepo.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close mongodb connection", zap.Error(err))
		}
	}()
	if err := mongoRepo.EnsureIndexes(startupCtx); err != nil {
		baseLogger.Warn("failed to ensure mongodb indexes", zap.Error(err))
	}

	opts := []applications.Option{applications.WithLaborDayCost(cfg.Closure.LaborDayCost)}
	if cfg.Sheets.MovementsRange != "" {
		opts = append(opts, applications.WithJournal(journal))
	}
	appSvc := applications.NewService(mongoRepo.Applications(), mongoRepo.Movements(), catalog, baseLogger.Named("svc.applications"), opts...)
	commandDispatcher := commandsvc.NewService(appSvc, baseLogger.Named("svc.commands"))

	var aiClient anthropic.Client
	if cfg.AI.AnthropicKey != "" {
		aiClient = anthropic.NewClient(cfg.AI.AnthropicKey)
		baseLogger.Info("anthropic ai client enabled")
	} else {
		baseLogger.Warn("anthropic api key missing, natural language movement reports disabled")
	}

	whatsClient := whatsappclient.NewClient(cfg.WhatsApp)
	messagingSvc := whatsappsvc.NewMetaWhatsAppService(cfg.WhatsApp, whatsClient, aiClient, commandDispatcher, baseLogger.Named("svc.whatsapp"))

	engine := router.New(router.Handlers{
		Webhook:      handlers.NewWebhookHandler(messagingSvc, baseLogger.Named("handlers.whatsapp")),
		Applications: handlers.NewApplicationHandler(appSvc, baseLogger.Named("handlers.applications")),
		Catalog:      handlers.NewCatalogHandler(catalog, baseLogger.Named("handlers.catalog")),
	}, baseLogger.Named("router"))

	sched, err := scheduler.NewScheduler(*cfg, appSvc, messagingSvc, baseLogger.Named("scheduler"))
	if err != nil {
		baseLogger.Fatal("failed to init scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
