package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/klauspost/compress/zstd"

	"gridpulse/internal/types"
)

// Analytics artifact filenames. Every artifact is overwritten in full on
// each run; there is no incremental merging of derived data.
const (
	CorrelationsArtifact  = "correlations.json"
	SummaryStatsArtifact  = "summary_stats.json"
	QualityReportArtifact = "quality_report.json"
	HeatmapArtifact       = "heatmap.csv"
	TimeSeriesArtifact    = "timeseries.csv.zst"
)

var heatmapHeader = []string{"city", "temp_range", "day_type", "mean_demand_mwh"}

var timeseriesHeader = []string{
	"date", "city", "tmax_f", "tmin_f", "demand_mwh", "day_of_week", "month", "year",
}

// ArtifactWriter persists the analytics snapshot and quality report under
// the analytics directory. The time series is the largest artifact and is
// zstd-compressed; the rest stay as plain JSON/CSV for easy inspection.
type ArtifactWriter struct {
	dir    string
	logger *slog.Logger
}

// NewArtifactWriter creates an ArtifactWriter rooted under dataDir.
func NewArtifactWriter(dataDir string, logger *slog.Logger) *ArtifactWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArtifactWriter{dir: AnalyticsDir(dataDir), logger: logger}
}

// WriteSnapshot overwrites all four analytics artifacts from the snapshot.
func (w *ArtifactWriter) WriteSnapshot(snap types.AnalyticsSnapshot) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return types.NewAppError(types.ErrCodeStoreIO, "creating analytics directory", err)
	}

	if err := w.writeJSON(CorrelationsArtifact, snap.Correlations); err != nil {
		return err
	}
	if err := w.writeJSON(SummaryStatsArtifact, snap.Summary); err != nil {
		return err
	}
	if err := w.writeHeatmap(snap.Heatmap); err != nil {
		return err
	}
	if err := w.writeTimeSeries(snap.TimeSeries); err != nil {
		return err
	}

	w.logger.Info("analytics artifacts written",
		"dir", w.dir,
		"correlation_cities", len(snap.Correlations),
		"timeseries_rows", len(snap.TimeSeries),
		"heatmap_cells", len(snap.Heatmap),
	)

	return nil
}

// WriteQualityReport overwrites the quality report artifact.
func (w *ArtifactWriter) WriteQualityReport(report types.QualityReport) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return types.NewAppError(types.ErrCodeStoreIO, "creating analytics directory", err)
	}
	return w.writeJSON(QualityReportArtifact, report)
}

// ReadArtifact returns the raw bytes of a named artifact. Absence maps to
// ErrCodeNotFoundArtifact so the API layer can answer 404 cleanly.
func (w *ArtifactWriter) ReadArtifact(name string) ([]byte, error) {
	raw, err := os.ReadFile(filepath.Join(w.dir, name))
	if os.IsNotExist(err) {
		return nil, types.NewAppError(types.ErrCodeNotFoundArtifact,
			fmt.Sprintf("artifact %s has not been produced yet", name), err)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeStoreIO,
			fmt.Sprintf("reading artifact %s", name), err)
	}
	return raw, nil
}

func (w *ArtifactWriter) writeJSON(name string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return types.NewAppError(types.ErrCodeStoreIO,
			fmt.Sprintf("encoding artifact %s", name), err)
	}
	if err := os.WriteFile(filepath.Join(w.dir, name), raw, 0o644); err != nil {
		return types.NewAppError(types.ErrCodeStoreIO,
			fmt.Sprintf("writing artifact %s", name), err)
	}
	return nil
}

func (w *ArtifactWriter) writeHeatmap(cells []types.HeatmapCell) error {
	f, err := os.Create(filepath.Join(w.dir, HeatmapArtifact))
	if err != nil {
		return types.NewAppError(types.ErrCodeStoreIO, "creating heatmap artifact", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(heatmapHeader); err != nil {
		return types.NewAppError(types.ErrCodeStoreIO, "writing heatmap header", err)
	}
	for _, cell := range cells {
		row := []string{
			cell.City,
			cell.TempRange,
			string(cell.DayType),
			strconv.FormatFloat(cell.MeanDemandMWh, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return types.NewAppError(types.ErrCodeStoreIO, "writing heatmap row", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return types.NewAppError(types.ErrCodeStoreIO, "flushing heatmap artifact", err)
	}
	return nil
}

func (w *ArtifactWriter) writeTimeSeries(rows []types.TimeSeriesRow) error {
	f, err := os.Create(filepath.Join(w.dir, TimeSeriesArtifact))
	if err != nil {
		return types.NewAppError(types.ErrCodeStoreIO, "creating timeseries artifact", err)
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return types.NewAppError(types.ErrCodeStoreIO, "initializing zstd writer", err)
	}

	cw := csv.NewWriter(zw)
	if err := cw.Write(timeseriesHeader); err != nil {
		zw.Close()
		return types.NewAppError(types.ErrCodeStoreIO, "writing timeseries header", err)
	}
	for _, row := range rows {
		record := []string{
			row.Date,
			row.City,
			formatOptional(row.TMaxF),
			formatOptional(row.TMinF),
			formatOptional(row.DemandMWh),
			strconv.Itoa(row.DayOfWeek),
			strconv.Itoa(row.Month),
			strconv.Itoa(row.Year),
		}
		if err := cw.Write(record); err != nil {
			zw.Close()
			return types.NewAppError(types.ErrCodeStoreIO, "writing timeseries row", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		zw.Close()
		return types.NewAppError(types.ErrCodeStoreIO, "flushing timeseries artifact", err)
	}
	if err := zw.Close(); err != nil {
		return types.NewAppError(types.ErrCodeStoreIO, "closing zstd writer", err)
	}
	return nil
}
