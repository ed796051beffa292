package domain

import (
	"context"
	"errors"
	"time"
)

// ErrFetchFailed marks a failed call to an upstream source. Adapters wrap it
// together with the underlying cause.
var ErrFetchFailed = errors.New("fetch failed")

// WeatherSnapshot is the current weather at a point, in the source's units.
type WeatherSnapshot struct {
	TemperatureK float64   `json:"temperature_k"`
	FeelsLikeK   float64   `json:"feels_like_k"`
	WindSpeedMps float64   `json:"wind_speed_mps"`
	IconCode     string    `json:"icon_code,omitempty"`
	Description  string    `json:"description,omitempty"`
	ObservedAt   time.Time `json:"observed_at,omitzero"`
}

// WeatherProvider returns current conditions for a coordinate pair.
type WeatherProvider interface {
	CurrentWeather(ctx context.Context, at Coordinates) (WeatherSnapshot, error)
}

// IconFetcher returns the raw image bytes for a weather icon code.
type IconFetcher interface {
	FetchIcon(ctx context.Context, code string) ([]byte, error)
}
