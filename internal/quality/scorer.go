// Package quality computes the per-record data quality flags, the derived
// 0-100 score, and the run-level quality report.
package quality

import (
	"log/slog"
	"time"

	"gridpulse/internal/types"
)

// Outlier bounds and staleness window for the quality checks.
const (
	tempLowF  = -50.0
	tempHighF = 130.0

	staleAfter = 48 * time.Hour
)

// checkCount is the number of independent quality checks per record.
const checkCount = 4

// Scorer evaluates the four quality checks against a merged record set.
//
// The staleness check compares observed_at against the scorer's wall clock
// at execution time, so two runs at different times may legitimately score
// the same record differently.
type Scorer struct {
	expectedCities []string
	logger         *slog.Logger
	now            func() time.Time // injectable for deterministic tests
}

// ScorerOption is a functional option for configuring a Scorer.
type ScorerOption func(*Scorer)

// WithNowFunc overrides the wall-clock source used by the staleness check.
func WithNowFunc(now func() time.Time) ScorerOption {
	return func(s *Scorer) {
		s.now = now
	}
}

// NewScorer creates a Scorer. expectedCities is the configured city list;
// the synchronization check passes for a date only when every expected city
// has a merged record on that date.
func NewScorer(expectedCities []string, logger *slog.Logger, opts ...ScorerOption) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scorer{
		expectedCities: expectedCities,
		logger:         logger,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score computes flags and score for every record. An empty input yields an
// empty (non-nil) result so downstream stages never see nil.
//
// The score is (1 - trueFlags/4) * 100: a record failing all four checks
// scores 0, one passing all four scores 100. The construction bounds the
// score to [0, 100].
func (s *Scorer) Score(records []types.MergedRecord) []types.ScoredRecord {
	scored := make([]types.ScoredRecord, 0, len(records))
	if len(records) == 0 {
		return scored
	}

	runTime := s.now().UTC()
	citiesByDate := s.citiesByDate(records)

	for _, rec := range records {
		flags := types.QualityFlags{
			HasMissingData:   hasMissingData(rec),
			IsOutlier:        isOutlier(rec),
			IsStale:          runTime.Sub(rec.ObservedAt) > staleAfter,
			AllCitiesPresent: s.allPresent(citiesByDate[rec.Date]),
		}

		score := (1 - float64(flags.TrueCount())/checkCount) * 100

		scored = append(scored, types.ScoredRecord{
			MergedRecord: rec,
			Flags:        flags,
			QualityScore: score,
		})
	}

	return scored
}

// citiesByDate indexes which cities have a record on each date. The
// synchronization flag is a per-date property: every record sharing a date
// gets the same value.
func (s *Scorer) citiesByDate(records []types.MergedRecord) map[string]map[string]struct{} {
	byDate := make(map[string]map[string]struct{})
	for _, rec := range records {
		cities, ok := byDate[rec.Date]
		if !ok {
			cities = make(map[string]struct{})
			byDate[rec.Date] = cities
		}
		cities[rec.City] = struct{}{}
	}
	return byDate
}

func (s *Scorer) allPresent(cities map[string]struct{}) bool {
	for _, name := range s.expectedCities {
		if _, ok := cities[name]; !ok {
			return false
		}
	}
	return true
}

// hasMissingData reports whether any field of the record is absent.
func hasMissingData(rec types.MergedRecord) bool {
	for _, v := range []*float64{
		rec.TMaxF, rec.TMinF, rec.Prcp, rec.Snow, rec.Snwd,
		rec.Awnd, rec.Tsun, rec.Wdf2, rec.Wsf2, rec.DemandMWh,
	} {
		if v == nil {
			return true
		}
	}
	return rec.ObservedAt.IsZero()
}

// isOutlier reports whether a present temperature falls outside the
// plausible [-50, 130] F range or a present demand total is negative.
// Absent values are the missing-data check's concern, not this one's.
func isOutlier(rec types.MergedRecord) bool {
	for _, t := range []*float64{rec.TMaxF, rec.TMinF} {
		if t != nil && (*t < tempLowF || *t > tempHighF) {
			return true
		}
	}
	return rec.DemandMWh != nil && *rec.DemandMWh < 0
}
