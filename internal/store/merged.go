package store

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gridpulse/internal/types"
)

// mergedHeader is the schema of the per-run merged output file.
var mergedHeader = []string{
	"date", "city", "region", "tmax_f", "tmin_f", "prcp", "snow", "snwd",
	"awnd", "tsun", "wdf2", "wsf2", "demand_mwh", "hours_reported",
	"observed_at", "has_missing_data", "is_outlier", "is_stale",
	"all_cities_present", "quality_score",
}

// MergedWriter writes the scored merged set to one tabular file per run,
// named with the run date for traceability. Each run produces a complete
// new file; existing files for the same day are overwritten whole.
type MergedWriter struct {
	dir    string
	logger *slog.Logger
}

// NewMergedWriter creates a MergedWriter rooted under dataDir.
func NewMergedWriter(dataDir string, logger *slog.Logger) *MergedWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &MergedWriter{dir: ProcessedDir(dataDir), logger: logger}
}

// Write persists the scored records and returns the output path. An empty
// set still produces a valid header-only file.
func (w *MergedWriter) Write(records []types.ScoredRecord, runDate time.Time) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", types.NewAppError(types.ErrCodeStoreIO, "creating processed directory", err)
	}

	path := filepath.Join(w.dir,
		fmt.Sprintf("merged_with_quality_flags_%s.csv", runDate.UTC().Format("20060102")))

	f, err := os.Create(path)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeStoreIO,
			fmt.Sprintf("creating merged output %s", path), err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(mergedHeader); err != nil {
		return "", types.NewAppError(types.ErrCodeStoreIO, "writing merged header", err)
	}

	for _, rec := range records {
		row := []string{
			rec.Date,
			rec.City,
			rec.Region,
			formatOptional(rec.TMaxF),
			formatOptional(rec.TMinF),
			formatOptional(rec.Prcp),
			formatOptional(rec.Snow),
			formatOptional(rec.Snwd),
			formatOptional(rec.Awnd),
			formatOptional(rec.Tsun),
			formatOptional(rec.Wdf2),
			formatOptional(rec.Wsf2),
			formatOptional(rec.DemandMWh),
			strconv.Itoa(rec.HoursReported),
			rec.ObservedAt.UTC().Format(observedAtFormat),
			strconv.FormatBool(rec.Flags.HasMissingData),
			strconv.FormatBool(rec.Flags.IsOutlier),
			strconv.FormatBool(rec.Flags.IsStale),
			strconv.FormatBool(rec.Flags.AllCitiesPresent),
			strconv.FormatFloat(rec.QualityScore, 'f', 2, 64),
		}
		if err := cw.Write(row); err != nil {
			return "", types.NewAppError(types.ErrCodeStoreIO, "writing merged row", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", types.NewAppError(types.ErrCodeStoreIO, "flushing merged output", err)
	}

	w.logger.Info("merged output written",
		"path", path,
		"rows", len(records),
	)

	return path, nil
}
