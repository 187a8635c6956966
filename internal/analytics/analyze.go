// Package analytics derives the run's analytical outputs from the scored
// merged set: per-city temperature/demand correlation, a calendar-projected
// time series, a temperature-bucket demand heatmap, and global summary
// statistics. Analyze is a pure function of its input and is fully
// recomputed every run; there is no incremental state to drift.
package analytics

import (
	"math"
	"sort"
	"time"

	"gridpulse/internal/types"
)

// minCorrelationPoints is the fewest (temperature, demand) pairs a city
// needs before its correlation is reported.
const minCorrelationPoints = 2

// tempBuckets are the six fixed Fahrenheit ranges for the heatmap,
// left-closed/right-open except for the unbounded ends: a tmax of exactly
// 50.0 falls in "50-60°F", not "<50°F".
var tempBuckets = []struct {
	label string
	low   float64 // inclusive
	high  float64 // exclusive
}{
	{"<50°F", math.Inf(-1), 50},
	{"50-60°F", 50, 60},
	{"60-70°F", 60, 70},
	{"70-80°F", 70, 80},
	{"80-90°F", 80, 90},
	{">90°F", 90, math.Inf(1)},
}

var dayTypes = []types.DayType{types.DayTypeWeekday, types.DayTypeWeekend}

// Analyze computes the full analytics snapshot. An empty input yields a
// snapshot with empty (non-nil) collections so artifact writers and the API
// always have well-formed output.
func Analyze(scored []types.ScoredRecord) types.AnalyticsSnapshot {
	return types.AnalyticsSnapshot{
		Correlations: correlations(scored),
		TimeSeries:   timeSeries(scored),
		Heatmap:      heatmap(scored),
		Summary:      summarize(scored),
	}
}

// correlations computes the per-city Pearson correlation and R-squared
// between tmax_f and demand_mwh. Only rows with both values present
// contribute; cities with fewer than two usable points, or with zero
// variance on either axis, are omitted.
func correlations(scored []types.ScoredRecord) map[string]types.CityCorrelation {
	type pair struct{ x, y float64 }
	byCity := make(map[string][]pair)
	for _, rec := range scored {
		if rec.TMaxF == nil || rec.DemandMWh == nil {
			continue
		}
		byCity[rec.City] = append(byCity[rec.City], pair{*rec.TMaxF, *rec.DemandMWh})
	}

	result := make(map[string]types.CityCorrelation)
	for city, pairs := range byCity {
		if len(pairs) < minCorrelationPoints {
			continue
		}

		n := float64(len(pairs))
		var sumX, sumY float64
		for _, p := range pairs {
			sumX += p.x
			sumY += p.y
		}
		meanX := sumX / n
		meanY := sumY / n

		var cov, varX, varY float64
		for _, p := range pairs {
			dx := p.x - meanX
			dy := p.y - meanY
			cov += dx * dy
			varX += dx * dx
			varY += dy * dy
		}
		if varX == 0 || varY == 0 {
			continue
		}

		r := cov / math.Sqrt(varX*varY)
		result[city] = types.CityCorrelation{
			PearsonCorrelation: r,
			RSquared:           r * r,
		}
	}

	return result
}

// timeSeries projects the scored set into rows with derived day-of-week
// (Monday=0), month, and year columns, ordered by date then city.
func timeSeries(scored []types.ScoredRecord) []types.TimeSeriesRow {
	rows := make([]types.TimeSeriesRow, 0, len(scored))
	for _, rec := range scored {
		day, err := time.Parse(types.DateFormat, rec.Date)
		if err != nil {
			continue
		}
		rows = append(rows, types.TimeSeriesRow{
			Date:      rec.Date,
			City:      rec.City,
			TMaxF:     rec.TMaxF,
			TMinF:     rec.TMinF,
			DemandMWh: rec.DemandMWh,
			DayOfWeek: mondayIndexed(day.Weekday()),
			Month:     int(day.Month()),
			Year:      day.Year(),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Date != rows[j].Date {
			return rows[i].Date < rows[j].Date
		}
		return rows[i].City < rows[j].City
	})

	return rows
}

// heatmap computes mean demand per (city, temperature bucket, day type).
// Every city present in the data gets all twelve cells; combinations with
// no observations are filled with 0.
func heatmap(scored []types.ScoredRecord) []types.HeatmapCell {
	type cellKey struct {
		city    string
		bucket  string
		dayType types.DayType
	}
	type acc struct {
		sum   float64
		count int
	}

	sums := make(map[cellKey]*acc)
	citySet := make(map[string]struct{})

	for _, rec := range scored {
		if rec.TMaxF == nil || rec.DemandMWh == nil {
			continue
		}
		day, err := time.Parse(types.DateFormat, rec.Date)
		if err != nil {
			continue
		}
		citySet[rec.City] = struct{}{}

		key := cellKey{rec.City, bucketFor(*rec.TMaxF), dayTypeOf(day)}
		a, ok := sums[key]
		if !ok {
			a = &acc{}
			sums[key] = a
		}
		a.sum += *rec.DemandMWh
		a.count++
	}

	cities := make([]string, 0, len(citySet))
	for city := range citySet {
		cities = append(cities, city)
	}
	sort.Strings(cities)

	cells := make([]types.HeatmapCell, 0, len(cities)*len(tempBuckets)*len(dayTypes))
	for _, city := range cities {
		for _, bucket := range tempBuckets {
			for _, dt := range dayTypes {
				mean := 0.0
				if a, ok := sums[cellKey{city, bucket.label, dt}]; ok && a.count > 0 {
					mean = a.sum / float64(a.count)
				}
				cells = append(cells, types.HeatmapCell{
					City:          city,
					TempRange:     bucket.label,
					DayType:       dt,
					MeanDemandMWh: mean,
				})
			}
		}
	}

	return cells
}

// summarize computes the global descriptive statistics over present values.
func summarize(scored []types.ScoredRecord) types.SummaryStats {
	stats := types.SummaryStats{
		DemandByCity:    make(map[string]float64),
		DemandByDayType: make(map[string]float64),
	}
	if len(scored) == 0 {
		return stats
	}

	var demands, tmaxs, tmins []float64
	cityDemand := make(map[string][]float64)
	dayTypeDemand := make(map[types.DayType][]float64)

	for _, rec := range scored {
		if rec.TMaxF != nil {
			tmaxs = append(tmaxs, *rec.TMaxF)
		}
		if rec.TMinF != nil {
			tmins = append(tmins, *rec.TMinF)
		}
		if rec.DemandMWh == nil {
			continue
		}
		demands = append(demands, *rec.DemandMWh)
		cityDemand[rec.City] = append(cityDemand[rec.City], *rec.DemandMWh)
		if day, err := time.Parse(types.DateFormat, rec.Date); err == nil {
			dt := dayTypeOf(day)
			dayTypeDemand[dt] = append(dayTypeDemand[dt], *rec.DemandMWh)
		}
	}

	stats.OverallDemandMWhMean = mean(demands)
	stats.OverallDemandMWhStd = sampleStd(demands)
	stats.OverallTMaxFMean = mean(tmaxs)
	stats.OverallTMinFMean = mean(tmins)

	for city, values := range cityDemand {
		stats.DemandByCity[city] = mean(values)
	}
	for dt, values := range dayTypeDemand {
		stats.DemandByDayType[string(dt)] = mean(values)
	}

	return stats
}

// bucketFor assigns a temperature to its heatmap range label.
func bucketFor(tmaxF float64) string {
	for _, b := range tempBuckets {
		if tmaxF >= b.low && tmaxF < b.high {
			return b.label
		}
	}
	return tempBuckets[len(tempBuckets)-1].label
}

// dayTypeOf classifies Saturday and Sunday as weekend.
func dayTypeOf(day time.Time) types.DayType {
	if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return types.DayTypeWeekend
	}
	return types.DayTypeWeekday
}

// mondayIndexed converts Go's Sunday-indexed weekday to Monday=0..Sunday=6.
func mondayIndexed(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStd is the n-1 standard deviation; fewer than two values yield 0.
func sampleStd(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}
