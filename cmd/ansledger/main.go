// Command ansledger runs the expense pipeline once: it crawls the
// open-data portal, consolidates and enriches the quarter filings,
// writes the CSV/ZIP outputs and, when a database is configured, loads
// the results for the API server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/cdamasceno/ansledger/internal/config"
	"github.com/cdamasceno/ansledger/internal/fetch"
	"github.com/cdamasceno/ansledger/internal/logging"
	"github.com/cdamasceno/ansledger/internal/pipeline"
	"github.com/cdamasceno/ansledger/internal/store"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"base_url", cfg.Fetch.BaseURL,
		"data_dir", cfg.Fetch.DataDir,
		"results_dir", cfg.Pipeline.ResultsDir,
		"max_periods", cfg.Fetch.MaxPeriods,
	)

	// Cancel the run on SIGINT/SIGTERM so partial downloads stop cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := fetch.NewClient(fetch.Config{
		BaseURL:         cfg.Fetch.BaseURL,
		DataDir:         cfg.Fetch.DataDir,
		Timeout:         cfg.Fetch.Timeout,
		DownloadTimeout: cfg.Fetch.DownloadTimeout,
	}, slog.Default())

	svc := pipeline.NewService(client, pipeline.Config{
		MaxPeriods: cfg.Fetch.MaxPeriods,
		ResultsDir: cfg.Pipeline.ResultsDir,
	}, slog.Default())

	result, err := svc.Run(ctx)
	if err != nil {
		slog.Error("pipeline run failed", "error", err)
		os.Exit(1)
	}

	slog.Info("pipeline run complete",
		"run_id", result.RunID.String(),
		"facts", len(result.Facts),
		"summaries", len(result.Summaries),
		"facts_path", result.FactsPath,
		"summaries_path", result.SummariesPath,
	)

	if cfg.Database.URL == "" {
		slog.Info("no database configured, skipping persistence")
		return
	}

	if err := persist(ctx, cfg, result); err != nil {
		slog.Error("failed to persist results", "error", err)
		os.Exit(1)
	}
	slog.Info("results persisted")
}

func persist(ctx context.Context, cfg *config.Config, result *pipeline.Result) error {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return err
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return err
	}

	st := store.New(pool)
	if err := st.EnsureSchema(ctx); err != nil {
		return err
	}
	return st.LoadRun(ctx, result.Enriched, result.Summaries)
}
