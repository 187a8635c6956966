// Package merge reconciles the two raw stores into one daily per-city
// record set: it normalizes weather temperatures to Fahrenheit via their
// unit tags, sums the hourly energy series to daily totals, and inner-joins
// the two sides on (date, city). A day missing either source is entirely
// absent from the result; that is intended completeness enforcement, not
// data loss.
package merge

import (
	"log/slog"
	"sort"

	"gridpulse/internal/store"
	"gridpulse/internal/types"
)

// hoursPerDay is the expected hourly coverage of a complete day.
const hoursPerDay = 24

// Merger reads both raw stores and produces the merged record set.
type Merger struct {
	weather *store.WeatherStore
	energy  *store.EnergyStore
	logger  *slog.Logger
}

// New creates a Merger over the two raw stores.
func New(weather *store.WeatherStore, energy *store.EnergyStore, logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{weather: weather, energy: energy, logger: logger}
}

// Merge loads both stores and joins them. A missing store file surfaces as
// an ErrCodeStoreMissing error with an empty result; callers report it and
// continue, since downstream stages handle an empty merged set.
//
// The result is sorted by (date, city) so repeated runs over the same
// stores produce identical output.
func (m *Merger) Merge() ([]types.MergedRecord, error) {
	weatherObs, err := m.weather.Load()
	if err != nil {
		return nil, err
	}
	energyObs, err := m.energy.Load()
	if err != nil {
		return nil, err
	}

	daily := m.aggregateDaily(energyObs)

	// Index daily energy by (date, city). Duplicate weather rows for a key
	// can only come from historic stores written before deduplication; the
	// first row wins.
	type joinKey struct{ date, city string }
	energyByKey := make(map[joinKey]types.DailyEnergy, len(daily))
	for _, d := range daily {
		energyByKey[joinKey{d.Date, d.City}] = d
	}

	seen := make(map[joinKey]struct{}, len(weatherObs))
	merged := make([]types.MergedRecord, 0, len(weatherObs))

	for _, w := range weatherObs {
		key := joinKey{w.Date, w.City}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		d, ok := energyByKey[key]
		if !ok {
			continue // inner join: no energy side, drop silently
		}

		rec := types.MergedRecord{
			Date:          w.Date,
			City:          w.City,
			Region:        d.Region,
			Prcp:          w.Prcp,
			Snow:          w.Snow,
			Snwd:          w.Snwd,
			Awnd:          w.Awnd,
			Tsun:          w.Tsun,
			Wdf2:          w.Wdf2,
			Wsf2:          w.Wsf2,
			HoursReported: d.HoursReported,
			ObservedAt:    w.ObservedAt,
		}

		if w.TMax != nil {
			f := w.TMax.Fahrenheit()
			rec.TMaxF = &f
		}
		if w.TMin != nil {
			f := w.TMin.Fahrenheit()
			rec.TMinF = &f
		}
		demand := d.DemandMWh
		rec.DemandMWh = &demand

		merged = append(merged, rec)
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Date != merged[j].Date {
			return merged[i].Date < merged[j].Date
		}
		return merged[i].City < merged[j].City
	})

	m.logger.Info("raw stores merged",
		"weather_rows", len(weatherObs),
		"energy_rows", len(energyObs),
		"daily_energy_rows", len(daily),
		"merged_rows", len(merged),
	)

	return merged, nil
}

// aggregateDaily sums hourly demand per (date, city, region), counting the
// contributing rows. Days with fewer than 24 hourly rows still produce a
// total; the shortfall is logged and carried on the record as
// HoursReported so consumers can judge confidence themselves.
func (m *Merger) aggregateDaily(observations []types.EnergyObservation) []types.DailyEnergy {
	type aggKey struct{ date, city, region string }

	totals := make(map[aggKey]*types.DailyEnergy)
	for _, obs := range observations {
		key := aggKey{obs.Date, obs.City, obs.Region}
		d, ok := totals[key]
		if !ok {
			d = &types.DailyEnergy{Date: obs.Date, City: obs.City, Region: obs.Region}
			totals[key] = d
		}
		d.DemandMWh += obs.DemandMWh
		d.HoursReported++
		if obs.ObservedAt.After(d.ObservedAt) {
			d.ObservedAt = obs.ObservedAt
		}
	}

	daily := make([]types.DailyEnergy, 0, len(totals))
	for _, d := range totals {
		if d.HoursReported < hoursPerDay {
			m.logger.Warn("partial-day demand total",
				"date", d.Date,
				"city", d.City,
				"region", d.Region,
				"hours_reported", d.HoursReported,
			)
		}
		daily = append(daily, *d)
	}

	sort.Slice(daily, func(i, j int) bool {
		if daily[i].Date != daily[j].Date {
			return daily[i].Date < daily[j].Date
		}
		return daily[i].City < daily[j].City
	})

	return daily
}
