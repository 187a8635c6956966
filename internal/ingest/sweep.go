// Package ingest implements the ingestion sweep: the ordered walk over the
// lookback window × configured cities × the two sources, gated by the
// failure ledger and deduplicated against the raw stores. The sweep is
// sequential by design; ordering across keys is deterministic
// (date-descending, configured city order, weather then energy).
package ingest

import (
	"context"
	"log/slog"
	"time"

	"gridpulse/internal/external"
	"gridpulse/internal/types"
)

// WeatherFetcher fetches one weather unit. A (nil, nil) return means the
// upstream has no data for the unit.
type WeatherFetcher interface {
	Fetch(ctx context.Context, city types.City, date string) (*types.WeatherObservation, error)
}

// EnergyFetcher fetches one energy unit. A (nil, nil) return means the
// upstream has no data for the unit.
type EnergyFetcher interface {
	Fetch(ctx context.Context, city types.City, date string) ([]types.EnergyObservation, error)
}

// FailureLedger gates fetches and records exhausted keys. Persist is called
// once per sweep, after the walk completes.
type FailureLedger interface {
	ShouldSkip(key types.FetchKey) bool
	MarkFailed(key types.FetchKey)
	Persist() error
}

// WeatherSink is the raw-store surface the sweep needs for weather.
type WeatherSink interface {
	Append(obs *types.WeatherObservation) error
	Keys() (map[types.FetchKey]struct{}, error)
}

// EnergySink is the raw-store surface the sweep needs for energy.
type EnergySink interface {
	Append(observations []types.EnergyObservation) error
	Keys() (map[types.FetchKey]struct{}, error)
}

// Counters reports what happened to each visited fetch key.
type Counters struct {
	Fetched     int // fetched and appended to a raw store
	Deduped     int // already present in the raw store, no network call
	Ledgered    int // skipped via the failure ledger, no network call
	NoData      int // upstream responded with nothing for the unit
	Failed      int // exhausted retries; added to the ledger
	BreakerOpen int // skipped because the circuit breaker was open; not ledgered
}

// SweeperConfig holds the dependencies for constructing a Sweeper.
type SweeperConfig struct {
	Weather      WeatherFetcher
	Energy       EnergyFetcher
	Ledger       FailureLedger
	WeatherStore WeatherSink
	EnergyStore  EnergySink
	Cities       []types.City
	LookbackDays int
	Logger       *slog.Logger
	Now          func() time.Time // injectable for tests
}

// Sweeper executes the ingestion sweep.
type Sweeper struct {
	weather      WeatherFetcher
	energy       EnergyFetcher
	ledger       FailureLedger
	weatherStore WeatherSink
	energyStore  EnergySink
	cities       []types.City
	lookbackDays int
	logger       *slog.Logger
	now          func() time.Time
}

// NewSweeper creates a Sweeper from the given configuration.
func NewSweeper(cfg SweeperConfig) *Sweeper {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Sweeper{
		weather:      cfg.Weather,
		energy:       cfg.Energy,
		ledger:       cfg.Ledger,
		weatherStore: cfg.WeatherStore,
		energyStore:  cfg.EnergyStore,
		cities:       cfg.Cities,
		lookbackDays: cfg.LookbackDays,
		logger:       logger,
		now:          now,
	}
}

// Run walks the full window and persists the ledger once at the end.
//
// Per-key failures never abort the sweep; they are counted, ledgered, and
// the walk continues. Only structural problems (a raw store that cannot be
// read or written, context cancellation) end the run early — and even then
// the ledger is persisted first, since it only ever contains keys whose
// retry sequence completed.
func (s *Sweeper) Run(ctx context.Context) (Counters, error) {
	var counters Counters

	weatherKeys, err := s.weatherStore.Keys()
	if err != nil {
		return counters, err
	}
	energyKeys, err := s.energyStore.Keys()
	if err != nil {
		return counters, err
	}

	// The most recent complete day is yesterday; upstream publishes with a
	// one-day lag.
	newest := s.now().UTC().AddDate(0, 0, -1)

	s.logger.Info("ingestion sweep starting",
		"lookback_days", s.lookbackDays,
		"cities", len(s.cities),
		"newest_date", newest.Format(types.DateFormat),
	)

	var sweepErr error

sweep:
	for offset := 0; offset < s.lookbackDays; offset++ {
		date := newest.AddDate(0, 0, -offset).Format(types.DateFormat)

		for _, city := range s.cities {
			if err := ctx.Err(); err != nil {
				sweepErr = err
				break sweep
			}

			s.sweepWeather(ctx, city, date, weatherKeys, &counters)
			s.sweepEnergy(ctx, city, date, energyKeys, &counters)
		}
	}

	if err := s.ledger.Persist(); err != nil {
		if sweepErr == nil {
			sweepErr = err
		} else {
			s.logger.Error("ledger persist failed after interrupted sweep", "error", err)
		}
	}

	s.logger.Info("ingestion sweep finished",
		"fetched", counters.Fetched,
		"deduped", counters.Deduped,
		"ledgered", counters.Ledgered,
		"nodata", counters.NoData,
		"failed", counters.Failed,
		"breaker_open", counters.BreakerOpen,
	)

	return counters, sweepErr
}

func (s *Sweeper) sweepWeather(ctx context.Context, city types.City, date string, present map[types.FetchKey]struct{}, counters *Counters) {
	key := types.FetchKey{City: city.Name, Date: date, Source: types.SourceWeather}
	if !s.shouldFetch(key, present, counters) {
		return
	}

	obs, err := s.weather.Fetch(ctx, city, date)
	if err != nil {
		s.recordFailure(key, err, counters)
		return
	}
	if obs == nil {
		s.logger.Debug("no data for unit", "key", key.String())
		counters.NoData++
		return
	}

	if err := s.weatherStore.Append(obs); err != nil {
		// A store write failure is structural, but losing one row does not
		// corrupt the append-only store; log and keep sweeping.
		s.logger.Error("appending weather observation failed",
			"key", key.String(),
			"error", err,
		)
		return
	}
	present[key] = struct{}{}
	counters.Fetched++
}

func (s *Sweeper) sweepEnergy(ctx context.Context, city types.City, date string, present map[types.FetchKey]struct{}, counters *Counters) {
	key := types.FetchKey{City: city.Name, Date: date, Source: types.SourceEnergy}
	if !s.shouldFetch(key, present, counters) {
		return
	}

	observations, err := s.energy.Fetch(ctx, city, date)
	if err != nil {
		s.recordFailure(key, err, counters)
		return
	}
	if len(observations) == 0 {
		s.logger.Debug("no data for unit", "key", key.String())
		counters.NoData++
		return
	}

	if err := s.energyStore.Append(observations); err != nil {
		s.logger.Error("appending energy observations failed",
			"key", key.String(),
			"error", err,
		)
		return
	}
	present[key] = struct{}{}
	counters.Fetched++
}

// shouldFetch applies the two gates that avoid network calls: raw-store
// deduplication and the failure ledger.
func (s *Sweeper) shouldFetch(key types.FetchKey, present map[types.FetchKey]struct{}, counters *Counters) bool {
	if _, ok := present[key]; ok {
		s.logger.Debug("unit already stored", "key", key.String())
		counters.Deduped++
		return false
	}
	if s.ledger.ShouldSkip(key) {
		s.logger.Info("skipping previously failed unit", "key", key.String())
		counters.Ledgered++
		return false
	}
	return true
}

// recordFailure classifies a fetch error. Breaker-open errors mean the key
// never got a real attempt sequence, so it is skipped for this run but not
// ledgered; everything else exhausted its retries and is ledgered.
func (s *Sweeper) recordFailure(key types.FetchKey, err error, counters *Counters) {
	if external.IsBreakerOpen(err) {
		s.logger.Warn("circuit breaker open; unit skipped without ledgering",
			"key", key.String(),
		)
		counters.BreakerOpen++
		return
	}

	s.logger.Error("fetch failed; unit ledgered",
		"key", key.String(),
		"code", string(types.CodeOf(err)),
		"error", err,
	)
	s.ledger.MarkFailed(key)
	counters.Failed++
}
