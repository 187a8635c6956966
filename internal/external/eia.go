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

// eiaPeriodFormat is the hourly period encoding used by the EIA v2 API.
const eiaPeriodFormat = "2006-01-02T15"

// EnergyClient fetches hourly electricity demand from the EIA v2 API.
type EnergyClient struct {
	base    *BaseClient
	baseURL string
	apiKey  types.SecretString
	logger  *slog.Logger
	now     func() time.Time
}

// EnergyClientConfig holds the settings for constructing an EnergyClient.
type EnergyClientConfig struct {
	BaseURL string
	APIKey  types.SecretString
	Logger  *slog.Logger
}

// NewEnergyClient creates an EnergyClient on top of the given BaseClient.
func NewEnergyClient(base *BaseClient, cfg EnergyClientConfig) *EnergyClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &EnergyClient{
		base:    base,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		logger:  logger,
		now:     time.Now,
	}
}

// eiaResponse mirrors the EIA v2 envelope. Demand values arrive as JSON
// numbers or quoted strings depending on the series, so they are decoded as
// json.Number.
type eiaResponse struct {
	Response struct {
		Data []eiaReading `json:"data"`
	} `json:"response"`
}

type eiaReading struct {
	Period     string      `json:"period"`
	Respondent string      `json:"respondent"`
	Value      json.Number `json:"value"`
}

// Fetch retrieves the hourly demand series (hours 00-23) for one city's
// region on one day.
//
// Returns (nil, nil) when the upstream responded but carries no rows for
// the unit; that is not a failure and must not be ledgered. Rows with a
// missing or unparsable value are dropped with a warning rather than
// failing the whole unit.
func (c *EnergyClient) Fetch(ctx context.Context, city types.City, date string) ([]types.EnergyObservation, error) {
	q := url.Values{}
	q.Set("api_key", c.apiKey.Unmask())
	q.Set("frequency", "hourly")
	q.Set("data[0]", "value")
	q.Add("facets[respondent][]", city.EIARegionCode)
	q.Set("start", date+"T00")
	q.Set("end", date+"T23")

	reqURL := fmt.Sprintf("%s/electricity/rto/region-data/data/?%s", c.baseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "building EIA request", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Anything but 200 must surface as a failure here. An error body would
	// decode into an empty data list and masquerade as a no-data day.
	if resp.StatusCode != http.StatusOK {
		return nil, errorFromStatus(resp.StatusCode,
			fmt.Sprintf("fetching EIA data for %s on %s", city.Name, date))
	}

	var payload eiaResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamBadPayload,
			fmt.Sprintf("decoding EIA response for %s on %s", city.Name, date), err)
	}

	if len(payload.Response.Data) == 0 {
		c.logger.InfoContext(ctx, "no energy data for unit",
			"city", city.Name,
			"region", city.EIARegionCode,
			"date", date,
		)
		return nil, nil
	}

	observedAt := c.now().UTC()
	observations := make([]types.EnergyObservation, 0, len(payload.Response.Data))

	for _, row := range payload.Response.Data {
		ts, err := time.Parse(eiaPeriodFormat, row.Period)
		if err != nil {
			c.logger.WarnContext(ctx, "dropping row with unparsable period",
				"period", row.Period,
				"region", city.EIARegionCode,
			)
			continue
		}

		demand, err := row.Value.Float64()
		if err != nil {
			c.logger.WarnContext(ctx, "dropping row with unparsable demand value",
				"period", row.Period,
				"value", row.Value.String(),
			)
			continue
		}

		observations = append(observations, types.EnergyObservation{
			Date:       ts.Format(types.DateFormat),
			Hour:       ts.Hour(),
			City:       city.Name,
			Region:     city.EIARegionCode,
			DemandMWh:  demand,
			ObservedAt: observedAt,
		})
	}

	if len(observations) == 0 {
		// Every row was unusable; treat like an empty response.
		return nil, nil
	}

	return observations, nil
}
