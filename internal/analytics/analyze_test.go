package analytics

import (
	"math"
	"testing"

	"gridpulse/internal/types"
)

func f64(v float64) *float64 { return &v }

func record(date, city string, tmaxF, demand float64) types.ScoredRecord {
	return types.ScoredRecord{
		MergedRecord: types.MergedRecord{
			Date:      date,
			City:      city,
			TMaxF:     &tmaxF,
			TMinF:     f64(tmaxF - 20),
			DemandMWh: &demand,
		},
	}
}

// --- Test: bucketFor ---

func TestBucketFor(t *testing.T) {
	tests := []struct {
		tmaxF float64
		want  string
	}{
		{-10, "<50°F"},
		{49.99, "<50°F"},
		{50.0, "50-60°F"}, // left-closed: exactly 50 is not "<50°F"
		{59.99, "50-60°F"},
		{60.0, "60-70°F"},
		{70.0, "70-80°F"},
		{80.0, "80-90°F"},
		{89.99, "80-90°F"},
		{90.0, ">90°F"},
		{120, ">90°F"},
	}

	for _, tt := range tests {
		if got := bucketFor(tt.tmaxF); got != tt.want {
			t.Errorf("bucketFor(%v) = %q, want %q", tt.tmaxF, got, tt.want)
		}
	}
}

// --- Test: calendar helpers ---

func TestMondayIndexed(t *testing.T) {
	tests := []struct {
		date string
		want int
	}{
		{"2024-01-01", 0}, // Monday
		{"2024-01-05", 4}, // Friday
		{"2024-01-06", 5}, // Saturday
		{"2024-01-07", 6}, // Sunday
	}

	for _, tt := range tests {
		rows := timeSeries([]types.ScoredRecord{record(tt.date, "Austin", 70, 100)})
		if len(rows) != 1 {
			t.Fatalf("timeSeries produced %d rows, want 1", len(rows))
		}
		if rows[0].DayOfWeek != tt.want {
			t.Errorf("DayOfWeek(%s) = %d, want %d", tt.date, rows[0].DayOfWeek, tt.want)
		}
	}
}

func TestTimeSeriesDerivedColumnsAndOrder(t *testing.T) {
	rows := timeSeries([]types.ScoredRecord{
		record("2024-02-10", "Denver", 40, 800),
		record("2024-01-05", "Austin", 95, 24000),
	})

	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	first := rows[0]
	if first.Date != "2024-01-05" || first.City != "Austin" {
		t.Errorf("rows not sorted by date: first = %s/%s", first.Date, first.City)
	}
	if first.Month != 1 || first.Year != 2024 {
		t.Errorf("derived columns = month %d year %d, want 1 2024", first.Month, first.Year)
	}
}

// --- Test: correlations ---

func TestCorrelationsPerfectLinear(t *testing.T) {
	// Demand is an exact linear function of temperature, so r = 1.
	scored := []types.ScoredRecord{
		record("2024-01-01", "Austin", 60, 1200),
		record("2024-01-02", "Austin", 70, 1400),
		record("2024-01-03", "Austin", 80, 1600),
	}

	corr := correlations(scored)
	got, ok := corr["Austin"]
	if !ok {
		t.Fatal("Austin missing from correlation map")
	}
	if math.Abs(got.PearsonCorrelation-1) > 1e-9 {
		t.Errorf("Pearson = %v, want 1", got.PearsonCorrelation)
	}
	if math.Abs(got.RSquared-1) > 1e-9 {
		t.Errorf("R² = %v, want 1", got.RSquared)
	}
}

func TestCorrelationsNegative(t *testing.T) {
	scored := []types.ScoredRecord{
		record("2024-01-01", "Denver", 20, 2000),
		record("2024-01-02", "Denver", 40, 1500),
		record("2024-01-03", "Denver", 60, 1000),
	}

	corr := correlations(scored)
	got := corr["Denver"]
	if math.Abs(got.PearsonCorrelation+1) > 1e-9 {
		t.Errorf("Pearson = %v, want -1", got.PearsonCorrelation)
	}
}

func TestCorrelationsOmitsInsufficientData(t *testing.T) {
	scored := []types.ScoredRecord{
		record("2024-01-01", "Austin", 60, 1200), // single point
		{MergedRecord: types.MergedRecord{Date: "2024-01-01", City: "Boston", DemandMWh: f64(900)}}, // no temperature
		record("2024-01-01", "Denver", 50, 700), // zero variance pair below
		record("2024-01-02", "Denver", 50, 700),
	}

	corr := correlations(scored)
	if len(corr) != 0 {
		t.Errorf("correlation map = %v, want empty", corr)
	}
}

// --- Test: heatmap ---

func TestHeatmapFillsAllCellsPerCity(t *testing.T) {
	scored := []types.ScoredRecord{
		record("2024-01-05", "Austin", 95, 24000), // Friday, >90°F
		record("2024-01-06", "Austin", 95, 30000), // Saturday, >90°F
	}

	cells := heatmap(scored)
	if len(cells) != 12 {
		t.Fatalf("got %d cells, want 12 (6 buckets x 2 day types)", len(cells))
	}

	var weekday, weekend, zeros float64
	zeroCount := 0
	for _, c := range cells {
		if c.City != "Austin" {
			t.Fatalf("unexpected city %q", c.City)
		}
		switch {
		case c.TempRange == ">90°F" && c.DayType == types.DayTypeWeekday:
			weekday = c.MeanDemandMWh
		case c.TempRange == ">90°F" && c.DayType == types.DayTypeWeekend:
			weekend = c.MeanDemandMWh
		default:
			zeros += c.MeanDemandMWh
			zeroCount++
		}
	}

	if weekday != 24000 {
		t.Errorf("weekday >90°F mean = %v, want 24000", weekday)
	}
	if weekend != 30000 {
		t.Errorf("weekend >90°F mean = %v, want 30000", weekend)
	}
	if zeros != 0 || zeroCount != 10 {
		t.Errorf("unpopulated cells: sum %v over %d cells, want 0 over 10", zeros, zeroCount)
	}
}

func TestHeatmapBoundaryRecordBucketsRight(t *testing.T) {
	cells := heatmap([]types.ScoredRecord{record("2024-01-05", "Austin", 50.0, 1000)})

	for _, c := range cells {
		switch c.TempRange {
		case "50-60°F":
			if c.DayType == types.DayTypeWeekday && c.MeanDemandMWh != 1000 {
				t.Errorf("50-60°F weekday mean = %v, want 1000", c.MeanDemandMWh)
			}
		case "<50°F":
			if c.MeanDemandMWh != 0 {
				t.Errorf("<50°F mean = %v, want 0: tmax 50.0 belongs to 50-60°F", c.MeanDemandMWh)
			}
		}
	}
}

// --- Test: summary statistics ---

func TestSummarize(t *testing.T) {
	scored := []types.ScoredRecord{
		record("2024-01-05", "Austin", 90, 1000), // Friday
		record("2024-01-06", "Austin", 92, 3000), // Saturday
		record("2024-01-05", "Denver", 30, 2000), // Friday
	}

	stats := summarize(scored)

	if stats.OverallDemandMWhMean != 2000 {
		t.Errorf("demand mean = %v, want 2000", stats.OverallDemandMWhMean)
	}
	if math.Abs(stats.OverallDemandMWhStd-1000) > 1e-9 {
		t.Errorf("demand sample std = %v, want 1000", stats.OverallDemandMWhStd)
	}
	if got := stats.DemandByCity["Austin"]; got != 2000 {
		t.Errorf("Austin mean demand = %v, want 2000", got)
	}
	if got := stats.DemandByCity["Denver"]; got != 2000 {
		t.Errorf("Denver mean demand = %v, want 2000", got)
	}
	if got := stats.DemandByDayType["Weekday"]; got != 1500 {
		t.Errorf("weekday mean demand = %v, want 1500", got)
	}
	if got := stats.DemandByDayType["Weekend"]; got != 3000 {
		t.Errorf("weekend mean demand = %v, want 3000", got)
	}
}

func TestSampleStd(t *testing.T) {
	if got := sampleStd([]float64{5}); got != 0 {
		t.Errorf("sampleStd of one value = %v, want 0", got)
	}
	// Sample (n-1) std of {1,2,3,4} is sqrt(5/3).
	if got := sampleStd([]float64{1, 2, 3, 4}); math.Abs(got-math.Sqrt(5.0/3.0)) > 1e-9 {
		t.Errorf("sampleStd = %v, want %v", got, math.Sqrt(5.0/3.0))
	}
}

// --- Test: Analyze on empty input ---

func TestAnalyzeEmptyInput(t *testing.T) {
	snap := Analyze(nil)

	if snap.Correlations == nil || len(snap.Correlations) != 0 {
		t.Errorf("Correlations = %v, want empty non-nil map", snap.Correlations)
	}
	if snap.TimeSeries == nil || len(snap.TimeSeries) != 0 {
		t.Errorf("TimeSeries = %v, want empty non-nil slice", snap.TimeSeries)
	}
	if snap.Heatmap == nil || len(snap.Heatmap) != 0 {
		t.Errorf("Heatmap = %v, want empty non-nil slice", snap.Heatmap)
	}
	if snap.Summary.DemandByCity == nil {
		t.Error("Summary.DemandByCity is nil, want empty map")
	}
}
