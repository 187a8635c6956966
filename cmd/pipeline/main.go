// The pipeline binary runs the full ingestion and analytics pipeline.
// With -once (or no RUN_AT configured) it runs a single pass and exits;
// with RUN_AT set it schedules a daily run and blocks until interrupted.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"gridpulse/internal/config"
	"gridpulse/internal/external"
	"gridpulse/internal/ingest"
	"gridpulse/internal/ledger"
	"gridpulse/internal/merge"
	"gridpulse/internal/pipeline"
	"gridpulse/internal/quality"
	"gridpulse/internal/scheduler"
	"gridpulse/internal/store"
)

const userAgent = "gridpulse-pipeline/1.0"

func main() {
	once := flag.Bool("once", false, "run a single pipeline pass and exit, ignoring RUN_AT")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("loading configuration failed", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})).With("service", cfg.Service, "env", cfg.Environment)
	slog.SetDefault(logger)

	runner := buildRunner(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once || cfg.Pipeline.RunAt == "" {
		if err := runner.Run(ctx); err != nil {
			logger.Error("pipeline run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	sched := scheduler.New(cfg.Pipeline.RunAt, func() {
		if err := runner.Run(ctx); err != nil {
			logger.Error("scheduled pipeline run failed", "error", err)
		}
	}, logger)

	if err := sched.Start(); err != nil {
		logger.Error("starting scheduler failed", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")
	sched.Stop()
}

// buildRunner wires the pipeline dependency graph from the configuration.
func buildRunner(cfg *config.Config, logger *slog.Logger) *pipeline.Runner {
	httpClient := &http.Client{Timeout: cfg.Upstream.Timeout}
	policy := external.DefaultRetryPolicy()

	noaaBase := external.NewBaseClient(httpClient, "noaa", policy, userAgent)
	eiaBase := external.NewBaseClient(httpClient, "eia", policy, userAgent)

	weatherClient := external.NewWeatherClient(noaaBase, external.WeatherClientConfig{
		BaseURL: cfg.Upstream.NOAABaseURL,
		Token:   cfg.Upstream.NOAAToken,
		Logger:  logger,
	})
	energyClient := external.NewEnergyClient(eiaBase, external.EnergyClientConfig{
		BaseURL: cfg.Upstream.EIABaseURL,
		APIKey:  cfg.Upstream.EIAAPIKey,
		Logger:  logger,
	})

	failureLedger := ledger.New(store.LedgerPath(cfg.DataDir), logger)
	if err := failureLedger.Load(); err != nil {
		// A corrupt ledger would re-fetch known-failed keys, which is safe;
		// losing the skip set is preferable to refusing to run.
		logger.Warn("loading failure ledger failed; starting empty", "error", err)
	}

	weatherStore := store.NewWeatherStore(cfg.DataDir, logger)
	energyStore := store.NewEnergyStore(cfg.DataDir, logger)

	sweeper := ingest.NewSweeper(ingest.SweeperConfig{
		Weather:      weatherClient,
		Energy:       energyClient,
		Ledger:       failureLedger,
		WeatherStore: weatherStore,
		EnergyStore:  energyStore,
		Cities:       cfg.Pipeline.Cities,
		LookbackDays: cfg.Pipeline.LookbackDays,
		Logger:       logger,
	})

	return pipeline.NewRunner(pipeline.RunnerConfig{
		Sweeper:   sweeper,
		Merger:    merge.New(weatherStore, energyStore, logger),
		Scorer:    quality.NewScorer(cfg.CityNames(), logger),
		Merged:    store.NewMergedWriter(cfg.DataDir, logger),
		Artifacts: store.NewArtifactWriter(cfg.DataDir, logger),
		Logger:    logger,
	})
}
