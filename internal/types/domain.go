// Package types defines the shared domain model for the GridPulse pipeline:
// ingestion keys, source observations, merged records, quality scoring
// structures, and analytics outputs. It has no dependencies on other
// internal packages so that every layer can import it freely.
package types

import (
	"fmt"
	"time"
)

// Source identifies one of the two upstream datasets.
type Source string

const (
	SourceWeather Source = "weather"
	SourceEnergy  Source = "energy"
)

// DateFormat is the canonical day encoding used in fetch keys, raw store
// rows, and merged output (UTC calendar dates).
const DateFormat = "2006-01-02"

// FetchKey uniquely identifies one ingestion unit: one city, one calendar
// day, one upstream source. It is the identity key for both the failure
// ledger and raw-fetch deduplication.
type FetchKey struct {
	City   string `json:"city"`
	Date   string `json:"date"` // DateFormat
	Source Source `json:"source"`
}

// String renders the key in a stable, log-friendly form.
func (k FetchKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.City, k.Date, k.Source)
}

// City describes one configured city: its display name plus the identifiers
// the two upstream APIs need to address it.
type City struct {
	Name          string `json:"name" validate:"required"`
	NOAAStationID string `json:"noaa_station_id" validate:"required"`
	EIARegionCode string `json:"eia_region_code" validate:"required"`
}

// TemperatureUnit tags the encoding of a raw temperature value. The tag is
// set by the source client that produced the value; unit conversion is a
// pure function of this tag and never inferred from the value's
// representation.
type TemperatureUnit string

const (
	// UnitTenthsCelsius is the GHCND native encoding: integer tenths of a
	// degree Celsius (350 == 35.0 C).
	UnitTenthsCelsius TemperatureUnit = "tenths_celsius"
	// UnitFahrenheit is the merged-output encoding.
	UnitFahrenheit TemperatureUnit = "fahrenheit"
)

// Temperature is a raw temperature value together with its declared unit.
type Temperature struct {
	Value float64
	Unit  TemperatureUnit
}

// Fahrenheit converts the value to degrees Fahrenheit based on its unit tag.
func (t Temperature) Fahrenheit() float64 {
	switch t.Unit {
	case UnitTenthsCelsius:
		return (t.Value/10)*9/5 + 32
	default:
		return t.Value
	}
}

// WeatherObservation is one normalized daily weather record for a city,
// pivoted from the upstream per-datatype readings. Optional measurements are
// pointers; nil means the station did not report that datatype.
type WeatherObservation struct {
	Date string
	City string

	TMax *Temperature
	TMin *Temperature

	Prcp *float64 // precipitation, mm
	Snow *float64 // snowfall, mm
	Snwd *float64 // snow depth, mm
	Awnd *float64 // average wind speed
	Tsun *float64 // sunshine, minutes
	Wdf2 *float64 // direction of fastest 2-minute wind
	Wsf2 *float64 // fastest 2-minute wind speed

	// ObservedAt is when the source client obtained the record, used by the
	// staleness quality check.
	ObservedAt time.Time
}

// EnergyObservation is one hourly demand reading for a city's region.
type EnergyObservation struct {
	Date       string // calendar day the hour belongs to
	Hour       int    // 0..23
	City       string
	Region     string
	DemandMWh  float64
	ObservedAt time.Time
}

// DailyEnergy is the hourly series summed to one value per (date, city,
// region). HoursReported counts the hourly rows that contributed; a value
// below 24 marks a partial day.
type DailyEnergy struct {
	Date          string
	City          string
	Region        string
	DemandMWh     float64
	HoursReported int
	ObservedAt    time.Time
}

// MergedRecord is the inner join of one WeatherObservation with the
// aggregated daily energy for the same (date, city). It only exists when
// both sides are present.
type MergedRecord struct {
	Date   string
	City   string
	Region string

	TMaxF *float64
	TMinF *float64

	Prcp *float64
	Snow *float64
	Snwd *float64
	Awnd *float64
	Tsun *float64
	Wdf2 *float64
	Wsf2 *float64

	DemandMWh     *float64
	HoursReported int

	ObservedAt time.Time
}

// QualityFlags holds the four independent boolean quality checks computed
// per merged record. Each true flag lowers the quality score.
type QualityFlags struct {
	HasMissingData   bool `json:"has_missing_data"`
	IsOutlier        bool `json:"is_outlier"`
	IsStale          bool `json:"is_stale"`
	AllCitiesPresent bool `json:"all_cities_present"`
}

// TrueCount returns how many of the four checks fired.
func (f QualityFlags) TrueCount() int {
	n := 0
	for _, b := range []bool{f.HasMissingData, f.IsOutlier, f.IsStale, f.AllCitiesPresent} {
		if b {
			n++
		}
	}
	return n
}

// ScoredRecord is a merged record annotated with quality flags and the
// derived 0-100 score.
type ScoredRecord struct {
	MergedRecord
	Flags        QualityFlags
	QualityScore float64
}

// QualityReport summarizes a scoring run over the full merged set.
type QualityReport struct {
	RunID               string    `json:"run_id"`
	GeneratedAt         time.Time `json:"generated_at"`
	TotalRows           int       `json:"total_rows"`
	MissingDataRows     int       `json:"missing_data_rows"`
	OutlierRows         int       `json:"outlier_rows"`
	StaleRows           int       `json:"stale_rows"`
	IncompleteSyncDays  int       `json:"incomplete_sync_days"`
	AverageQualityScore float64   `json:"average_quality_score"`
}

// CityCorrelation holds the temperature-vs-demand correlation statistics for
// one city.
type CityCorrelation struct {
	PearsonCorrelation float64 `json:"pearson_correlation"`
	RSquared           float64 `json:"r_squared"`
}

// TimeSeriesRow is one row of the time-series projection: the core merged
// columns plus derived calendar columns for downstream plotting.
type TimeSeriesRow struct {
	Date      string   `json:"date"`
	City      string   `json:"city"`
	TMaxF     *float64 `json:"tmax_f"`
	TMinF     *float64 `json:"tmin_f"`
	DemandMWh *float64 `json:"demand_mwh"`
	DayOfWeek int      `json:"day_of_week"` // Monday=0 .. Sunday=6
	Month     int      `json:"month"`
	Year      int      `json:"year"`
}

// DayType classifies a date for heatmap grouping.
type DayType string

const (
	DayTypeWeekday DayType = "Weekday"
	DayTypeWeekend DayType = "Weekend"
)

// HeatmapCell is the mean demand for one (city, temperature bucket,
// day type) combination.
type HeatmapCell struct {
	City          string  `json:"city"`
	TempRange     string  `json:"temp_range"`
	DayType       DayType `json:"day_type"`
	MeanDemandMWh float64 `json:"mean_demand_mwh"`
}

// SummaryStats holds the global descriptive statistics computed each run.
type SummaryStats struct {
	OverallDemandMWhMean float64            `json:"overall_demand_mwh_mean"`
	OverallDemandMWhStd  float64            `json:"overall_demand_mwh_std"`
	OverallTMaxFMean     float64            `json:"overall_tmax_f_mean"`
	OverallTMinFMean     float64            `json:"overall_tmin_f_mean"`
	DemandByCity         map[string]float64 `json:"demand_by_city"`
	DemandByDayType      map[string]float64 `json:"demand_weekday_vs_weekend"`
}

// AnalyticsSnapshot is the fully recomputed analytics output of one run.
// It is derived state: always a complete overwrite, never merged
// incrementally with a previous snapshot.
type AnalyticsSnapshot struct {
	Correlations map[string]CityCorrelation `json:"correlations"`
	TimeSeries   []TimeSeriesRow            `json:"timeseries"`
	Heatmap      []HeatmapCell              `json:"heatmap"`
	Summary      SummaryStats               `json:"summary_stats"`
}
