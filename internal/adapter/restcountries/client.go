package restcountries

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/country-lookup/internal/domain"
	"github.com/couchcryptid/country-lookup/internal/observability"
)

// fields limits the response to what the lookup renders.
const fields = "name,capital,area,population,languages,flags,latlng"

// Client implements domain.CountrySource using the REST Countries v3.1 API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a REST Countries client.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics,
		logger:  logger,
	}
}

// FetchCountries returns every country in a single request, in response order.
func (c *Client) FetchCountries(ctx context.Context) ([]domain.Country, error) {
	start := time.Now()
	countries, err := c.fetch(ctx)
	c.metrics.ObserveUpstream("countries", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrFetchFailed, err)
	}
	c.logger.Debug("countries fetched", "count", len(countries))
	return countries, nil
}

func (c *Client) fetch(ctx context.Context) ([]domain.Country, error) {
	u := c.baseURL + "/all?" + url.Values{"fields": {fields}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("countries request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("restcountries API error: status %d: %s", resp.StatusCode, body)
	}

	var payload []country
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	out := make([]domain.Country, 0, len(payload))
	for _, p := range payload {
		out = append(out, p.toDomain())
	}
	return out, nil
}

// REST Countries response types.

type country struct {
	Name struct {
		Common string `json:"common"`
	} `json:"name"`
	Capital    []string          `json:"capital"`
	Area       float64           `json:"area"`
	Population int64             `json:"population"`
	Languages  map[string]string `json:"languages"`
	Flags      struct {
		PNG string `json:"png"`
		SVG string `json:"svg"`
	} `json:"flags"`
	LatLng []float64 `json:"latlng"` // [lat, lon]
}

func (p country) toDomain() domain.Country {
	c := domain.Country{
		Name:       strings.TrimSpace(p.Name.Common),
		Area:       p.Area,
		Population: p.Population,
		Languages:  p.Languages,
		FlagURL:    p.Flags.PNG,
	}
	if len(p.Capital) > 0 {
		c.Capital = p.Capital[0]
	}
	if c.FlagURL == "" {
		c.FlagURL = p.Flags.SVG
	}
	if len(p.LatLng) == 2 {
		c.Coordinates = domain.Coordinates{Lat: p.LatLng[0], Lon: p.LatLng[1]}
	}
	return c
}
