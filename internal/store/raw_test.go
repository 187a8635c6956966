package store

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridpulse/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func f64(v float64) *float64 { return &v }

func testObservedAt() time.Time {
	return time.Date(2024, 1, 6, 8, 30, 0, 0, time.UTC)
}

func weatherObs(date, city string) *types.WeatherObservation {
	return &types.WeatherObservation{
		Date:       date,
		City:       city,
		TMax:       &types.Temperature{Value: 350, Unit: types.UnitTenthsCelsius},
		TMin:       &types.Temperature{Value: 100, Unit: types.UnitTenthsCelsius},
		Prcp:       f64(5.3),
		ObservedAt: testObservedAt(),
	}
}

func TestWeatherStoreAppendWritesHeaderOnce(t *testing.T) {
	s := NewWeatherStore(t.TempDir(), testLogger())

	require.NoError(t, s.Append(weatherObs("2024-01-05", "Austin")))
	require.NoError(t, s.Append(weatherObs("2024-01-04", "Austin")))

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(weatherHeader, ","), lines[0])
	assert.Equal(t, 1, strings.Count(string(raw), "observed_at"), "header must appear exactly once")
}

func TestWeatherStoreRoundTrip(t *testing.T) {
	s := NewWeatherStore(t.TempDir(), testLogger())

	obs := weatherObs("2024-01-05", "Austin")
	obs.Awnd = f64(21)
	require.NoError(t, s.Append(obs))

	loaded, err := s.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	got := loaded[0]
	assert.Equal(t, "2024-01-05", got.Date)
	assert.Equal(t, "Austin", got.City)

	// Tenths-Celsius values survive with their unit tag intact: written as a
	// bare integer, read back as tenths-Celsius.
	require.NotNil(t, got.TMax)
	assert.Equal(t, types.Temperature{Value: 350, Unit: types.UnitTenthsCelsius}, *got.TMax)
	assert.Equal(t, 95.0, got.TMax.Fahrenheit())

	require.NotNil(t, got.Prcp)
	assert.Equal(t, 5.3, *got.Prcp)
	require.NotNil(t, got.Awnd)
	assert.Equal(t, 21.0, *got.Awnd)

	assert.Nil(t, got.Snow)
	assert.Nil(t, got.Tsun)
	assert.Equal(t, testObservedAt(), got.ObservedAt)
}

func TestWeatherStoreFahrenheitCellsKeepDecimalForm(t *testing.T) {
	s := NewWeatherStore(t.TempDir(), testLogger())

	obs := weatherObs("2024-01-05", "Austin")
	obs.TMax = &types.Temperature{Value: 95, Unit: types.UnitFahrenheit}
	require.NoError(t, s.Append(obs))

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	// An integral Fahrenheit value is forced to decimal form so it cannot be
	// mistaken for tenths-Celsius on the way back in.
	assert.Contains(t, string(raw), ",95.0,")

	loaded, err := s.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.NotNil(t, loaded[0].TMax)
	assert.Equal(t, types.UnitFahrenheit, loaded[0].TMax.Unit)
	assert.Equal(t, 95.0, loaded[0].TMax.Fahrenheit())
}

func TestWeatherStoreKeys(t *testing.T) {
	s := NewWeatherStore(t.TempDir(), testLogger())

	require.NoError(t, s.Append(weatherObs("2024-01-05", "Austin")))
	require.NoError(t, s.Append(weatherObs("2024-01-05", "Denver")))

	keys, err := s.Keys()
	require.NoError(t, err)

	assert.Len(t, keys, 2)
	assert.Contains(t, keys, types.FetchKey{City: "Austin", Date: "2024-01-05", Source: types.SourceWeather})
	assert.Contains(t, keys, types.FetchKey{City: "Denver", Date: "2024-01-05", Source: types.SourceWeather})
}

func TestWeatherStoreKeysAbsentFileIsEmpty(t *testing.T) {
	s := NewWeatherStore(t.TempDir(), testLogger())

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestWeatherStoreLoadAbsentFileIsStoreMissing(t *testing.T) {
	s := NewWeatherStore(t.TempDir(), testLogger())

	_, err := s.Load()
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeStoreMissing, types.CodeOf(err))
}

func energyRows(date, city string, hours int) []types.EnergyObservation {
	rows := make([]types.EnergyObservation, 0, hours)
	for h := 0; h < hours; h++ {
		rows = append(rows, types.EnergyObservation{
			Date:       date,
			Hour:       h,
			City:       city,
			Region:     "ERCO",
			DemandMWh:  1000 + float64(h),
			ObservedAt: testObservedAt(),
		})
	}
	return rows
}

func TestEnergyStoreRoundTrip(t *testing.T) {
	s := NewEnergyStore(t.TempDir(), testLogger())

	require.NoError(t, s.Append(energyRows("2024-01-05", "Austin", 3)))

	loaded, err := s.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 3)

	assert.Equal(t, "2024-01-05", loaded[0].Date)
	assert.Equal(t, "Austin", loaded[0].City)
	assert.Equal(t, "ERCO", loaded[0].Region)
	assert.Equal(t, 1000.0, loaded[0].DemandMWh)
	assert.Equal(t, 1002.0, loaded[2].DemandMWh)
}

func TestEnergyStoreAppendWritesWholeUnitAtOnce(t *testing.T) {
	s := NewEnergyStore(t.TempDir(), testLogger())

	require.NoError(t, s.Append(energyRows("2024-01-05", "Austin", 24)))
	require.NoError(t, s.Append(energyRows("2024-01-04", "Austin", 24)))

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 49)
	assert.Equal(t, strings.Join(energyHeader, ","), lines[0])
	assert.Equal(t, 1, strings.Count(string(raw), "observed_at"), "header must appear exactly once")

	// Each unit's hours land contiguously in hour order.
	assert.True(t, strings.HasPrefix(lines[1], "2024-01-05,Austin,ERCO,1000,"))
	assert.True(t, strings.HasPrefix(lines[24], "2024-01-05,Austin,ERCO,1023,"))
	assert.True(t, strings.HasPrefix(lines[25], "2024-01-04,Austin,ERCO,1000,"))
}

func TestEnergyStoreAppendEmptyUnitIsNoOp(t *testing.T) {
	s := NewEnergyStore(t.TempDir(), testLogger())

	require.NoError(t, s.Append(nil))

	_, err := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err), "an empty unit must not create the store")
}

func TestEnergyStoreKeysDeduplicateHourlyRows(t *testing.T) {
	s := NewEnergyStore(t.TempDir(), testLogger())

	require.NoError(t, s.Append(energyRows("2024-01-05", "Austin", 24)))

	keys, err := s.Keys()
	require.NoError(t, err)

	// 24 hourly rows collapse to one fetch key.
	require.Len(t, keys, 1)
	assert.Contains(t, keys, types.FetchKey{City: "Austin", Date: "2024-01-05", Source: types.SourceEnergy})
}

func TestEnergyStoreLoadAbsentFileIsStoreMissing(t *testing.T) {
	s := NewEnergyStore(t.TempDir(), testLogger())

	_, err := s.Load()
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeStoreMissing, types.CodeOf(err))
}

func TestParseTemperatureConvention(t *testing.T) {
	tests := []struct {
		name string
		cell string
		want *types.Temperature
	}{
		{"empty is nil", "", nil},
		{"integer form is tenths celsius", "350", &types.Temperature{Value: 350, Unit: types.UnitTenthsCelsius}},
		{"negative integer form", "-100", &types.Temperature{Value: -100, Unit: types.UnitTenthsCelsius}},
		{"decimal form is fahrenheit", "95.0", &types.Temperature{Value: 95, Unit: types.UnitFahrenheit}},
		{"decimal with fraction", "72.5", &types.Temperature{Value: 72.5, Unit: types.UnitFahrenheit}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTemperature(tt.cell)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseTemperature("not-a-number")
	require.Error(t, err)
}
