package quality

import (
	"time"

	"gridpulse/internal/types"
)

// BuildReport summarizes a scored set into the run-level quality report.
// runID ties the report to the pipeline run that produced it. An empty set
// produces a valid all-zero report rather than an error, so a run with no
// merged rows still emits a well-formed artifact.
func BuildReport(runID string, scored []types.ScoredRecord, now time.Time) types.QualityReport {
	report := types.QualityReport{
		RunID:       runID,
		GeneratedAt: now.UTC(),
		TotalRows:   len(scored),
	}

	if len(scored) == 0 {
		return report
	}

	incompleteDates := make(map[string]struct{})
	var scoreSum float64

	for _, rec := range scored {
		if rec.Flags.HasMissingData {
			report.MissingDataRows++
		}
		if rec.Flags.IsOutlier {
			report.OutlierRows++
		}
		if rec.Flags.IsStale {
			report.StaleRows++
		}
		if !rec.Flags.AllCitiesPresent {
			incompleteDates[rec.Date] = struct{}{}
		}
		scoreSum += rec.QualityScore
	}

	report.IncompleteSyncDays = len(incompleteDates)
	report.AverageQualityScore = scoreSum / float64(len(scored))

	return report
}
