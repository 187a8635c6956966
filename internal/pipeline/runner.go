// Package pipeline orchestrates one full run: the ingestion sweep, the
// merge of the raw stores, quality scoring, and analytics artifact
// generation. Each stage hands a materialized value to the next; the
// orchestration itself holds no state between runs.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"gridpulse/internal/analytics"
	"gridpulse/internal/ingest"
	"gridpulse/internal/quality"
	"gridpulse/internal/types"
)

// Sweeper runs the ingestion sweep.
type Sweeper interface {
	Run(ctx context.Context) (ingest.Counters, error)
}

// Merger produces the merged record set from the raw stores.
type Merger interface {
	Merge() ([]types.MergedRecord, error)
}

// MergedWriter persists the scored merged set for one run.
type MergedWriter interface {
	Write(records []types.ScoredRecord, runDate time.Time) (string, error)
}

// ArtifactWriter persists the derived analytics outputs.
type ArtifactWriter interface {
	WriteSnapshot(snap types.AnalyticsSnapshot) error
	WriteQualityReport(report types.QualityReport) error
}

// RunnerConfig holds the dependencies for constructing a Runner.
type RunnerConfig struct {
	Sweeper   Sweeper
	Merger    Merger
	Scorer    *quality.Scorer
	Merged    MergedWriter
	Artifacts ArtifactWriter
	Logger    *slog.Logger
	Now       func() time.Time
}

// Runner executes pipeline runs.
type Runner struct {
	sweeper   Sweeper
	merger    Merger
	scorer    *quality.Scorer
	merged    MergedWriter
	artifacts ArtifactWriter
	logger    *slog.Logger
	now       func() time.Time
}

// NewRunner creates a Runner from the given configuration.
func NewRunner(cfg RunnerConfig) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{
		sweeper:   cfg.Sweeper,
		merger:    cfg.Merger,
		scorer:    cfg.Scorer,
		merged:    cfg.Merged,
		artifacts: cfg.Artifacts,
		logger:    logger,
		now:       now,
	}
}

// Run executes one complete pipeline run.
//
// A failed merge caused by missing raw input does not fail the run: the
// downstream stages still execute over an empty set and produce valid
// empty outputs, while the raw stores and ledger written by the sweep
// remain intact for the next run.
func (r *Runner) Run(ctx context.Context) error {
	runID := uuid.NewString()
	logger := r.logger.With("run_id", runID)
	started := r.now()

	logger.Info("pipeline run starting")

	counters, err := r.sweeper.Run(ctx)
	if err != nil {
		return err
	}

	merged, err := r.merger.Merge()
	if err != nil {
		if types.CodeOf(err) != types.ErrCodeStoreMissing {
			return err
		}
		logger.Error("raw input missing; producing empty outputs", "error", err)
		merged = nil
	}

	scored := r.scorer.Score(merged)
	report := quality.BuildReport(runID, scored, r.now())

	outputPath, err := r.merged.Write(scored, r.now())
	if err != nil {
		return err
	}
	if err := r.artifacts.WriteQualityReport(report); err != nil {
		return err
	}

	snapshot := analytics.Analyze(scored)
	if err := r.artifacts.WriteSnapshot(snapshot); err != nil {
		return err
	}

	logger.Info("pipeline run finished",
		"duration", r.now().Sub(started).String(),
		"fetched", counters.Fetched,
		"failed", counters.Failed,
		"merged_rows", len(scored),
		"average_quality_score", report.AverageQualityScore,
		"merged_output", outputPath,
	)

	return nil
}
