package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/knagasawa/bidsheet/internal/common"
	"github.com/knagasawa/bidsheet/internal/extract"
	"github.com/knagasawa/bidsheet/internal/pipeline"
	"github.com/knagasawa/bidsheet/internal/publish"
	"github.com/knagasawa/bidsheet/internal/server"
	"github.com/knagasawa/bidsheet/internal/tenant"
)

func main() {
	// Logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	log := logger.Sugar()

	// Env
	_ = godotenv.Load()
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	// Context with signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Center configs
	centers, err := tenant.NewFileProvider(cfg.Centers.Dir, cfg.Centers.CacheMax)
	if err != nil {
		log.Fatalf("center configs: %v", err)
	}

	// Document analysis (optional; the pipeline degrades without it)
	var analyzer extract.Analyzer
	if azure, err := extract.NewAzureClient(cfg.Azure.Endpoint, cfg.Azure.Key, nil, slogger); err != nil {
		log.Warnw("document analysis disabled", "error", err)
	} else {
		analyzer = azure
	}

	// Spreadsheet host
	token := func(ctx context.Context) (string, error) {
		if cfg.Host.AccessToken == "" {
			return "", errors.New("HOST_ACCESS_TOKEN not set")
		}
		return cfg.Host.AccessToken, nil
	}
	host := publish.NewSheetsHost(token, nil, slogger)

	backoff := publish.DefaultBackoff(slogger)
	backoff.Retries = cfg.Backoff.Retries
	backoff.Base = cfg.Backoff.Base
	backoff.Max = cfg.Backoff.Max

	defaults := publish.Options{
		TemplateID:         cfg.Host.TemplateID,
		FolderID:           cfg.Host.FolderID,
		ForceGenericCreate: cfg.Host.ForceGenericCreate,
		GroupParallelism:   cfg.Host.GroupParallelism,
	}

	extractor := &pipeline.Extractor{Centers: centers, Analyzer: analyzer, Logger: slogger}
	publisher := &pipeline.PublishRunner{
		Centers:  centers,
		Host:     host,
		Backoff:  backoff,
		Defaults: defaults,
		Logger:   slogger,
	}
	health := publish.NewPublisher(host, backoff, nil, slogger, defaults)

	srv := server.New(logger, extractor, publisher, health, cfg.Server.MaxUploadBytes)
	httpServer := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     srv.Router(),
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	go func() {
		log.Infof("HTTP serving on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
	fmt.Println("stopped.")
}
