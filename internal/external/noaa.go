package external

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gridpulse/internal/types"
)

// weatherDatatypes is the fixed set of GHCND datatypes requested per
// (city, date). The source client pivots the per-datatype readings into one
// WeatherObservation.
var weatherDatatypes = []string{
	"TMAX", "TMIN", "PRCP", "SNOW", "SNWD", "AWND", "TSUN", "WDF2", "WSF2",
}

// WeatherClient fetches daily GHCND observations from the NOAA CDO API.
type WeatherClient struct {
	base    *BaseClient
	baseURL string
	token   types.SecretString
	logger  *slog.Logger
	now     func() time.Time
}

// WeatherClientConfig holds the settings for constructing a WeatherClient.
type WeatherClientConfig struct {
	BaseURL string
	Token   types.SecretString
	Logger  *slog.Logger
}

// NewWeatherClient creates a WeatherClient on top of the given BaseClient.
func NewWeatherClient(base *BaseClient, cfg WeatherClientConfig) *WeatherClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &WeatherClient{
		base:    base,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		logger:  logger,
		now:     time.Now,
	}
}

// noaaResponse mirrors the CDO v2 data envelope. A response with no results
// key (or an empty list) means the station has nothing for the requested
// day.
type noaaResponse struct {
	Results []noaaReading `json:"results"`
}

// noaaReading is one typed reading for a station and day.
type noaaReading struct {
	Date     string  `json:"date"`
	Datatype string  `json:"datatype"`
	Station  string  `json:"station"`
	Value    float64 `json:"value"`
}

// Fetch retrieves the weather observation for one city and day.
//
// Returns (nil, nil) when the upstream responded but has no data for the
// unit; that is not a failure and must not be ledgered. Temperatures are
// tagged with their GHCND native unit (tenths of a degree Celsius) so that
// downstream conversion is driven by the tag, never by value sniffing.
func (c *WeatherClient) Fetch(ctx context.Context, city types.City, date string) (*types.WeatherObservation, error) {
	q := url.Values{}
	q.Set("datasetid", "GHCND")
	q.Set("stationid", city.NOAAStationID)
	q.Set("startdate", date)
	q.Set("enddate", date)
	q.Set("datatypeid", strings.Join(weatherDatatypes, ","))
	q.Set("limit", "100")

	reqURL := fmt.Sprintf("%s/data?%s", c.baseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "building NOAA request", err)
	}
	req.Header.Set("token", c.token.Unmask())

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Anything but 200 must surface as a failure here. An error body would
	// decode into an empty results list and masquerade as a no-data day.
	if resp.StatusCode != http.StatusOK {
		return nil, errorFromStatus(resp.StatusCode,
			fmt.Sprintf("fetching NOAA data for %s on %s", city.Name, date))
	}

	var payload noaaResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamBadPayload,
			fmt.Sprintf("decoding NOAA response for %s on %s", city.Name, date), err)
	}

	if len(payload.Results) == 0 {
		c.logger.InfoContext(ctx, "no weather data for unit",
			"city", city.Name,
			"date", date,
		)
		return nil, nil
	}

	obs := &types.WeatherObservation{
		Date:       date,
		City:       city.Name,
		ObservedAt: c.now().UTC(),
	}

	for _, reading := range payload.Results {
		v := reading.Value
		switch reading.Datatype {
		case "TMAX":
			obs.TMax = &types.Temperature{Value: v, Unit: types.UnitTenthsCelsius}
		case "TMIN":
			obs.TMin = &types.Temperature{Value: v, Unit: types.UnitTenthsCelsius}
		case "PRCP":
			obs.Prcp = ptr(v)
		case "SNOW":
			obs.Snow = ptr(v)
		case "SNWD":
			obs.Snwd = ptr(v)
		case "AWND":
			obs.Awnd = ptr(v)
		case "TSUN":
			obs.Tsun = ptr(v)
		case "WDF2":
			obs.Wdf2 = ptr(v)
		case "WSF2":
			obs.Wsf2 = ptr(v)
		default:
			c.logger.DebugContext(ctx, "ignoring unrequested datatype",
				"datatype", reading.Datatype,
				"station", reading.Station,
			)
		}
	}

	return obs, nil
}

func ptr(v float64) *float64 { return &v }
