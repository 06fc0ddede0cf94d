package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/api/handlers"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/api/middleware"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/config"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/database"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/jobs"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/logging"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/server"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/telemetry"
	"github.com/phuslu/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the docrag API server and the background ingestion worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides DOCRAG_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-worker", false, "Do not process queued ingestion jobs in this process")

	return cmd
}

// loadConfig loads configuration and sets up logging and telemetry for a
// command. The returned function flushes telemetry.
func loadConfig() (*config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	sampleRate := 0.1
	if cfg.Environment == "development" {
		sampleRate = 1.0
	}
	flush, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		Release:          cfg.SentryRelease,
		TracesSampleRate: sampleRate,
		Debug:            cfg.Debug,
	})
	if err != nil {
		log.Warn().Err(err).Msg("telemetry init failed, continuing without tracing")
		flush = func() {}
	}
	return cfg, flush, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, flush, err := loadConfig()
	if err != nil {
		return err
	}
	defer flush()

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	if noMigrate, _ := cmd.Flags().GetBool("no-migrate"); !noMigrate {
		if err := database.Migrate(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := NewComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()
	log.Info().Msg("connected to database")

	var worker *jobs.Worker
	if noWorker, _ := cmd.Flags().GetBool("no-worker"); !noWorker {
		processor := jobs.NewIngestionWorker(c.Jobs, c.Pipeline, jobs.IngestionWorkerConfig{
			Concurrency: cfg.WorkerConcurrency,
			MaxRetries:  cfg.MaxRetries,
		})
		worker = jobs.NewWorker(processor, cfg.WorkerPollInterval)
		c.Documents.OnJobQueued(worker.Wake)
		go worker.Start(ctx)
	}

	routerCfg := server.RouterConfig{
		MaxUploadBytes:    cfg.MaxUploadBytes,
		MaxRequestBytes:   cfg.MaxRequestBytes,
		Health:            c.Pool.Ping,
		DocumentHandler:   handlers.NewDocumentHandler(c.Documents),
		QueryHandler:      handlers.NewQueryHandler(c.Search, c.Ask),
		ExtractionHandler: handlers.NewExtractionHandler(c.Extraction),
		ClaimHandler:      handlers.NewClaimHandler(c.Coverage),
	}
	if cfg.AuthEnabled() {
		routerCfg.AuthValidator = middleware.NewStaticKeys(cfg.APIKeys)
	} else {
		log.Warn().Msg("no API keys configured, authentication is disabled")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.NewRouter(routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down...")

	if worker != nil {
		worker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server exited")
	return nil
}
