package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"provincecast/internal/httputil"
	"provincecast/internal/metrics"
)

// ErrPlaceNotFound is returned when the geocoding endpoint has no result for a
// place name.
var ErrPlaceNotFound = errors.New("place not geocodable")

const (
	defaultForecastURL  = "https://api.open-meteo.com/v1"
	defaultArchiveURL   = "https://archive-api.open-meteo.com/v1"
	defaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1"

	currentFields = "temperature_2m,relative_humidity_2m,precipitation,weather_code,cloud_cover,surface_pressure,wind_speed_10m"
	dailyFields   = "weather_code,temperature_2m_max,temperature_2m_min,precipitation_sum,precipitation_probability_max,wind_speed_10m_max"
	archiveFields = "temperature_2m_max,temperature_2m_min,precipitation_sum,weather_code,wind_speed_10m_max"
)

// Client talks to the Open-Meteo geocoding, forecast and archive APIs.
type Client struct {
	client       *http.Client
	breaker      *gobreaker.CircuitBreaker
	forecastURL  string
	archiveURL   string
	geocodingURL string
}

func NewClient() *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openmeteo",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
	return &Client{
		client:       httputil.NewClient(),
		breaker:      cb,
		forecastURL:  defaultForecastURL,
		archiveURL:   defaultArchiveURL,
		geocodingURL: defaultGeocodingURL,
	}
}

// SetBaseURLs overrides the API endpoints, used by tests.
func (c *Client) SetBaseURLs(forecast, archive, geocoding string) {
	c.forecastURL = forecast
	c.archiveURL = archive
	c.geocodingURL = geocoding
}

type GeocodingResponse struct {
	Results []GeocodingResult `json:"results"`
}

type GeocodingResult struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Geocode resolves a place name to coordinates, taking the first result.
func (c *Client) Geocode(ctx context.Context, place string) (lat, lon float64, err error) {
	u := fmt.Sprintf("%s/search?name=%s&count=1&language=en&format=json",
		c.geocodingURL, url.QueryEscape(place))

	body, err := c.get(ctx, "geocoding", u)
	if err != nil {
		return 0, 0, fmt.Errorf("geocode %q: %w", place, err)
	}

	var data GeocodingResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return 0, 0, fmt.Errorf("geocode %q: unmarshal: %w", place, err)
	}
	if len(data.Results) == 0 {
		return 0, 0, fmt.Errorf("geocode %q: %w", place, ErrPlaceNotFound)
	}
	return data.Results[0].Latitude, data.Results[0].Longitude, nil
}

type ForecastResponse struct {
	Current CurrentBlock `json:"current"`
	Daily   DailyBlock   `json:"daily"`
}

type CurrentBlock struct {
	Temperature   *float64 `json:"temperature_2m"`
	Humidity      *float64 `json:"relative_humidity_2m"`
	Precipitation *float64 `json:"precipitation"`
	WeatherCode   *int     `json:"weather_code"`
	CloudCover    *float64 `json:"cloud_cover"`
	Pressure      *float64 `json:"surface_pressure"`
	WindSpeed     *float64 `json:"wind_speed_10m"`
}

type DailyBlock struct {
	Time         []string   `json:"time"`
	WeatherCode  []*int     `json:"weather_code"`
	TempMax      []*float64 `json:"temperature_2m_max"`
	TempMin      []*float64 `json:"temperature_2m_min"`
	PrecipSum    []*float64 `json:"precipitation_sum"`
	PrecipProb   []*int     `json:"precipitation_probability_max"`
	WindSpeedMax []*float64 `json:"wind_speed_10m_max"`
}

// Forecast fetches the live forecast (current + daily blocks) for a location.
func (c *Client) Forecast(ctx context.Context, lat, lon float64) (*ForecastResponse, error) {
	u := fmt.Sprintf("%s/forecast?latitude=%.4f&longitude=%.4f&current=%s&daily=%s&timezone=auto",
		c.forecastURL, lat, lon, currentFields, dailyFields)

	body, err := c.get(ctx, "forecast", u)
	if err != nil {
		return nil, fmt.Errorf("fetch forecast: %w", err)
	}

	var data ForecastResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("fetch forecast: unmarshal: %w", err)
	}
	return &data, nil
}

type ArchiveResponse struct {
	Daily DailyBlock `json:"daily"`
}

// Archive fetches the daily historical archive for a date range, inclusive.
// The archive endpoint does not serve the current day.
func (c *Client) Archive(ctx context.Context, lat, lon float64, start, end time.Time) (*ArchiveResponse, error) {
	u := fmt.Sprintf("%s/archive?latitude=%.4f&longitude=%.4f&start_date=%s&end_date=%s&daily=%s&timezone=auto",
		c.archiveURL, lat, lon, start.Format("2006-01-02"), end.Format("2006-01-02"), archiveFields)

	body, err := c.get(ctx, "archive", u)
	if err != nil {
		return nil, fmt.Errorf("fetch archive: %w", err)
	}

	var data ArchiveResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("fetch archive: unmarshal: %w", err)
	}
	return &data, nil
}

// get issues a GET with retry on transient failures and a circuit breaker
// around the provider. Non-retryable statuses fail immediately.
func (c *Client) get(ctx context.Context, endpoint, url string) ([]byte, error) {
	var body []byte
	start := time.Now()

	operation := func() error {
		_, err := c.breaker.Execute(func() (any, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return nil, backoff.Permanent(err)
			}

			resp, err := c.client.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()

			metrics.ProviderCallsTotal.WithLabelValues(endpoint, fmt.Sprint(resp.StatusCode)).Inc()

			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return nil, fmt.Errorf("status %d", resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				b, _ := io.ReadAll(resp.Body)
				return nil, backoff.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, string(b)))
			}

			body, err = io.ReadAll(resp.Body)
			if err != nil {
				return nil, backoff.Permanent(fmt.Errorf("read body: %w", err))
			}
			return nil, nil
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(err)
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}

	metrics.ProviderCallLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	return body, nil
}
