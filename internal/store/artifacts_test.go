package store

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridpulse/internal/types"
)

func testSnapshot() types.AnalyticsSnapshot {
	return types.AnalyticsSnapshot{
		Correlations: map[string]types.CityCorrelation{
			"Austin": {PearsonCorrelation: 0.9, RSquared: 0.81},
		},
		TimeSeries: []types.TimeSeriesRow{
			{Date: "2024-01-05", City: "Austin", TMaxF: f64(95), DemandMWh: f64(24000), DayOfWeek: 4, Month: 1, Year: 2024},
		},
		Heatmap: []types.HeatmapCell{
			{City: "Austin", TempRange: ">90°F", DayType: types.DayTypeWeekday, MeanDemandMWh: 24000},
		},
		Summary: types.SummaryStats{
			OverallDemandMWhMean: 24000,
			DemandByCity:         map[string]float64{"Austin": 24000},
			DemandByDayType:      map[string]float64{"Weekday": 24000},
		},
	}
}

func TestWriteSnapshotProducesAllArtifacts(t *testing.T) {
	dir := t.TempDir()
	w := NewArtifactWriter(dir, testLogger())

	require.NoError(t, w.WriteSnapshot(testSnapshot()))

	for _, name := range []string{
		CorrelationsArtifact, SummaryStatsArtifact, HeatmapArtifact, TimeSeriesArtifact,
	} {
		_, err := os.Stat(filepath.Join(AnalyticsDir(dir), name))
		require.NoError(t, err, "artifact %s must exist", name)
	}
}

func TestWriteSnapshotCorrelationsDecode(t *testing.T) {
	dir := t.TempDir()
	w := NewArtifactWriter(dir, testLogger())
	require.NoError(t, w.WriteSnapshot(testSnapshot()))

	raw, err := w.ReadArtifact(CorrelationsArtifact)
	require.NoError(t, err)

	var decoded map[string]types.CityCorrelation
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, 0.9, decoded["Austin"].PearsonCorrelation)
	assert.Equal(t, 0.81, decoded["Austin"].RSquared)
}

func TestWriteSnapshotTimeSeriesIsCompressedCSV(t *testing.T) {
	dir := t.TempDir()
	w := NewArtifactWriter(dir, testLogger())
	require.NoError(t, w.WriteSnapshot(testSnapshot()))

	raw, err := os.ReadFile(filepath.Join(AnalyticsDir(dir), TimeSeriesArtifact))
	require.NoError(t, err)

	zr, err := zstd.NewReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer zr.Close()

	rows, err := csv.NewReader(zr).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, timeseriesHeader, rows[0])
	assert.Equal(t, []string{"2024-01-05", "Austin", "95", "", "24000", "4", "1", "2024"}, rows[1])
}

func TestWriteQualityReport(t *testing.T) {
	dir := t.TempDir()
	w := NewArtifactWriter(dir, testLogger())

	report := types.QualityReport{
		RunID:               "run-1",
		GeneratedAt:         time.Date(2024, 1, 6, 9, 0, 0, 0, time.UTC),
		TotalRows:           10,
		StaleRows:           2,
		AverageQualityScore: 72.5,
	}
	require.NoError(t, w.WriteQualityReport(report))

	raw, err := w.ReadArtifact(QualityReportArtifact)
	require.NoError(t, err)

	var decoded types.QualityReport
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, report, decoded)
}

func TestReadArtifactAbsentIsNotFound(t *testing.T) {
	w := NewArtifactWriter(t.TempDir(), testLogger())

	_, err := w.ReadArtifact(CorrelationsArtifact)
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeNotFoundArtifact, types.CodeOf(err))
}

func TestWriteSnapshotOverwritesPreviousRun(t *testing.T) {
	dir := t.TempDir()
	w := NewArtifactWriter(dir, testLogger())

	require.NoError(t, w.WriteSnapshot(testSnapshot()))

	empty := types.AnalyticsSnapshot{
		Correlations: map[string]types.CityCorrelation{},
		TimeSeries:   []types.TimeSeriesRow{},
		Heatmap:      []types.HeatmapCell{},
	}
	require.NoError(t, w.WriteSnapshot(empty))

	raw, err := w.ReadArtifact(CorrelationsArtifact)
	require.NoError(t, err)

	var decoded map[string]types.CityCorrelation
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Empty(t, decoded, "artifacts are full overwrites, not merges")
}
