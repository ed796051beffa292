package openweather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/country-lookup/internal/domain"
	"github.com/couchcryptid/country-lookup/internal/observability"
)

// maxIconBytes bounds icon downloads; OpenWeatherMap @2x icons are a few KB.
const maxIconBytes = 1 << 20

// Client implements domain.WeatherProvider and domain.IconFetcher using the
// OpenWeatherMap current weather API and its icon host.
type Client struct {
	apiKey      string
	httpClient  *http.Client
	baseURL     string
	iconBaseURL string
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewClient creates an OpenWeatherMap client.
func NewClient(apiKey, baseURL, iconBaseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:     strings.TrimRight(baseURL, "/"),
		iconBaseURL: strings.TrimRight(iconBaseURL, "/"),
		metrics:     metrics,
		logger:      logger,
	}
}

// CurrentWeather returns current conditions at the given coordinates in
// Kelvin and metres per second.
func (c *Client) CurrentWeather(ctx context.Context, at domain.Coordinates) (domain.WeatherSnapshot, error) {
	params := url.Values{
		"lat":   {strconv.FormatFloat(at.Lat, 'f', -1, 64)},
		"lon":   {strconv.FormatFloat(at.Lon, 'f', -1, 64)},
		"appid": {c.apiKey},
	}

	start := time.Now()
	snap, err := c.currentWeather(ctx, c.baseURL+"/weather?"+params.Encode())
	c.metrics.ObserveUpstream("weather", time.Since(start).Seconds(), err)
	if err != nil {
		return domain.WeatherSnapshot{}, fmt.Errorf("%w: %w", domain.ErrFetchFailed, err)
	}
	return snap, nil
}

// FetchIcon downloads the @2x PNG for an icon code such as "10d".
func (c *Client) FetchIcon(ctx context.Context, code string) ([]byte, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: empty icon code", domain.ErrFetchFailed)
	}

	start := time.Now()
	data, err := c.fetchIcon(ctx, fmt.Sprintf("%s/%s@2x.png", c.iconBaseURL, url.PathEscape(code)))
	c.metrics.ObserveUpstream("icon", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrFetchFailed, err)
	}
	return data, nil
}

func (c *Client) currentWeather(ctx context.Context, fullURL string) (domain.WeatherSnapshot, error) {
	resp, err := c.get(ctx, fullURL, "weather")
	if err != nil {
		return domain.WeatherSnapshot{}, err
	}
	defer resp.Body.Close()

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.WeatherSnapshot{}, fmt.Errorf("decode response: %w", err)
	}

	snap := domain.WeatherSnapshot{
		TemperatureK: body.Main.Temp,
		FeelsLikeK:   body.Main.FeelsLike,
		WindSpeedMps: body.Wind.Speed,
	}
	if len(body.Weather) > 0 {
		snap.IconCode = body.Weather[0].Icon
		snap.Description = body.Weather[0].Description
	}
	if body.Dt > 0 {
		snap.ObservedAt = time.Unix(body.Dt, 0).UTC()
	}
	return snap, nil
}

func (c *Client) fetchIcon(ctx context.Context, fullURL string) ([]byte, error) {
	resp, err := c.get(ctx, fullURL, "icon")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxIconBytes))
	if err != nil {
		return nil, fmt.Errorf("read icon: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("empty icon body")
	}
	return data, nil
}

// get issues a GET and returns the response only for a 200 status. The
// caller closes the body.
func (c *Client) get(ctx context.Context, fullURL, source string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", source, err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("openweather API error: status %d: %s", resp.StatusCode, body)
	}
	return resp, nil
}

// OpenWeatherMap API response types.

type response struct {
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Weather []condition `json:"weather"`
	Dt      int64       `json:"dt"`
}

type condition struct {
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}
