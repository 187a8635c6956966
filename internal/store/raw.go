package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gridpulse/internal/types"
)

// Fixed header schemas for the two raw stores. The header is written once
// when the store is created; all subsequent writes append rows.
var (
	weatherHeader = []string{
		"date", "city", "tmax_f", "tmin_f", "prcp", "snow", "snwd",
		"awnd", "tsun", "wdf2", "wsf2", "observed_at",
	}
	energyHeader = []string{"date", "city", "region", "demand_mwh", "observed_at"}
)

// observedAtFormat is the timestamp encoding for the observed_at column.
const observedAtFormat = time.RFC3339

// WeatherStore is the append-only raw store for weather observations.
//
// Temperature cells keep their source encoding: values tagged
// tenths-Celsius are written as bare integers, Fahrenheit values always
// carry a decimal point. Readers recover the unit tag from that convention,
// so the tag survives the round trip through the fixed schema.
type WeatherStore struct {
	path   string
	logger *slog.Logger
}

// NewWeatherStore creates a WeatherStore rooted under dataDir.
func NewWeatherStore(dataDir string, logger *slog.Logger) *WeatherStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &WeatherStore{
		path:   filepath.Join(RawDir(dataDir), weatherFileName),
		logger: logger,
	}
}

// Path returns the backing CSV file path.
func (s *WeatherStore) Path() string { return s.path }

// Append writes one observation row, creating the store with its header
// first if it does not exist yet.
func (s *WeatherStore) Append(obs *types.WeatherObservation) error {
	row := []string{
		obs.Date,
		obs.City,
		formatTemperature(obs.TMax),
		formatTemperature(obs.TMin),
		formatOptional(obs.Prcp),
		formatOptional(obs.Snow),
		formatOptional(obs.Snwd),
		formatOptional(obs.Awnd),
		formatOptional(obs.Tsun),
		formatOptional(obs.Wdf2),
		formatOptional(obs.Wsf2),
		obs.ObservedAt.UTC().Format(observedAtFormat),
	}
	return appendRows(s.path, weatherHeader, [][]string{row})
}

// Keys returns the (city, date) fetch keys already present in the store.
// An absent store yields an empty set. The sweep uses this for raw-fetch
// deduplication, so a re-run never refetches or duplicates a stored unit.
func (s *WeatherStore) Keys() (map[types.FetchKey]struct{}, error) {
	rows, err := readRows(s.path, len(weatherHeader))
	if err != nil {
		if types.CodeOf(err) == types.ErrCodeStoreMissing {
			return map[types.FetchKey]struct{}{}, nil
		}
		return nil, err
	}

	keys := make(map[types.FetchKey]struct{}, len(rows))
	for _, row := range rows {
		keys[types.FetchKey{City: row[1], Date: row[0], Source: types.SourceWeather}] = struct{}{}
	}
	return keys, nil
}

// Load reads the full store into memory. A missing store file returns an
// ErrCodeStoreMissing error, which the merger reports without failing the
// surrounding run.
func (s *WeatherStore) Load() ([]types.WeatherObservation, error) {
	rows, err := readRows(s.path, len(weatherHeader))
	if err != nil {
		return nil, err
	}

	observations := make([]types.WeatherObservation, 0, len(rows))
	for i, row := range rows {
		obs := types.WeatherObservation{Date: row[0], City: row[1]}

		obs.TMax, err = parseTemperature(row[2])
		if err != nil {
			return nil, malformedRow(s.path, i, "tmax_f", err)
		}
		obs.TMin, err = parseTemperature(row[3])
		if err != nil {
			return nil, malformedRow(s.path, i, "tmin_f", err)
		}

		optional := []struct {
			name string
			cell string
			dst  **float64
		}{
			{"prcp", row[4], &obs.Prcp},
			{"snow", row[5], &obs.Snow},
			{"snwd", row[6], &obs.Snwd},
			{"awnd", row[7], &obs.Awnd},
			{"tsun", row[8], &obs.Tsun},
			{"wdf2", row[9], &obs.Wdf2},
			{"wsf2", row[10], &obs.Wsf2},
		}
		for _, col := range optional {
			*col.dst, err = parseOptional(col.cell)
			if err != nil {
				return nil, malformedRow(s.path, i, col.name, err)
			}
		}

		obs.ObservedAt, err = time.Parse(observedAtFormat, row[11])
		if err != nil {
			return nil, malformedRow(s.path, i, "observed_at", err)
		}

		observations = append(observations, obs)
	}

	return observations, nil
}

// EnergyStore is the append-only raw store for hourly demand readings. Each
// hourly reading is one row; a day with full coverage contributes 24 rows
// sharing the same date.
type EnergyStore struct {
	path   string
	logger *slog.Logger
}

// NewEnergyStore creates an EnergyStore rooted under dataDir.
func NewEnergyStore(dataDir string, logger *slog.Logger) *EnergyStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &EnergyStore{
		path:   filepath.Join(RawDir(dataDir), energyFileName),
		logger: logger,
	}
}

// Path returns the backing CSV file path.
func (s *EnergyStore) Path() string { return s.path }

// Append writes the hourly rows for one fetched unit. The whole unit goes
// through a single file handle and one flush, so a crash cannot strand a
// few hours of a day that dedup would then pin as complete.
func (s *EnergyStore) Append(observations []types.EnergyObservation) error {
	rows := make([][]string, 0, len(observations))
	for _, obs := range observations {
		rows = append(rows, []string{
			obs.Date,
			obs.City,
			obs.Region,
			strconv.FormatFloat(obs.DemandMWh, 'f', -1, 64),
			obs.ObservedAt.UTC().Format(observedAtFormat),
		})
	}
	return appendRows(s.path, energyHeader, rows)
}

// Keys returns the (city, date) fetch keys already present in the store.
func (s *EnergyStore) Keys() (map[types.FetchKey]struct{}, error) {
	rows, err := readRows(s.path, len(energyHeader))
	if err != nil {
		if types.CodeOf(err) == types.ErrCodeStoreMissing {
			return map[types.FetchKey]struct{}{}, nil
		}
		return nil, err
	}

	keys := make(map[types.FetchKey]struct{})
	for _, row := range rows {
		keys[types.FetchKey{City: row[1], Date: row[0], Source: types.SourceEnergy}] = struct{}{}
	}
	return keys, nil
}

// Load reads the full store into memory. Hour-of-day is not part of the
// schema; aggregation counts rows per day instead.
func (s *EnergyStore) Load() ([]types.EnergyObservation, error) {
	rows, err := readRows(s.path, len(energyHeader))
	if err != nil {
		return nil, err
	}

	observations := make([]types.EnergyObservation, 0, len(rows))
	for i, row := range rows {
		demand, err := strconv.ParseFloat(row[3], 64)
		if err != nil {
			return nil, malformedRow(s.path, i, "demand_mwh", err)
		}
		observedAt, err := time.Parse(observedAtFormat, row[4])
		if err != nil {
			return nil, malformedRow(s.path, i, "observed_at", err)
		}
		observations = append(observations, types.EnergyObservation{
			Date:       row[0],
			City:       row[1],
			Region:     row[2],
			DemandMWh:  demand,
			ObservedAt: observedAt,
		})
	}

	return observations, nil
}

// appendRows opens the store once, writes the header when the file is new
// or empty, then appends every row of the unit before flushing.
func appendRows(path string, header []string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return types.NewAppError(types.ErrCodeStoreIO, "creating raw store directory", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return types.NewAppError(types.ErrCodeStoreIO,
			fmt.Sprintf("opening raw store %s", path), err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return types.NewAppError(types.ErrCodeStoreIO,
			fmt.Sprintf("stat raw store %s", path), err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			return types.NewAppError(types.ErrCodeStoreIO, "writing raw store header", err)
		}
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return types.NewAppError(types.ErrCodeStoreIO, "writing raw store row", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return types.NewAppError(types.ErrCodeStoreIO, "flushing raw store", err)
	}

	return nil
}

// readRows reads all data rows (header excluded) from a raw store file.
func readRows(path string, wantFields int) ([][]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, types.NewAppError(types.ErrCodeStoreMissing,
			fmt.Sprintf("raw store %s not found; run data collection first", path), err)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeStoreIO,
			fmt.Sprintf("opening raw store %s", path), err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = wantFields

	var rows [][]string
	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeStoreIO,
				fmt.Sprintf("reading raw store %s", path), err)
		}
		if first {
			first = false
			continue // header
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// formatTemperature renders a temperature cell preserving its unit tag:
// tenths-Celsius as a bare integer, Fahrenheit with at least one decimal.
func formatTemperature(t *types.Temperature) string {
	if t == nil {
		return ""
	}
	if t.Unit == types.UnitTenthsCelsius {
		return strconv.FormatInt(int64(t.Value), 10)
	}
	s := strconv.FormatFloat(t.Value, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// parseTemperature recovers a temperature and its unit tag from a cell: an
// integer form means tenths-Celsius, a decimal form means Fahrenheit.
func parseTemperature(cell string) (*types.Temperature, error) {
	if cell == "" {
		return nil, nil
	}
	if !strings.Contains(cell, ".") {
		v, err := strconv.ParseInt(cell, 10, 64)
		if err != nil {
			return nil, err
		}
		return &types.Temperature{Value: float64(v), Unit: types.UnitTenthsCelsius}, nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return nil, err
	}
	return &types.Temperature{Value: v, Unit: types.UnitFahrenheit}, nil
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func parseOptional(cell string) (*float64, error) {
	if cell == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func malformedRow(path string, row int, column string, err error) error {
	return types.NewAppError(types.ErrCodeStoreIO,
		fmt.Sprintf("malformed %s in %s data row %d", column, path, row+1), err)
}
