package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// LookupEvent records a completed weather lookup for a resolved country.
type LookupEvent struct {
	ID           string      `json:"id"`
	Country      string      `json:"country"`
	Capital      string      `json:"capital,omitempty"`
	Coordinates  Coordinates `json:"coordinates"`
	TemperatureF string      `json:"temperature_f"`
	FeelsLikeF   string      `json:"feels_like_f"`
	WindMph      float64     `json:"wind_mph"`
	Description  string      `json:"description,omitempty"`
	IconCode     string      `json:"icon_code,omitempty"`
	ObservedAt   time.Time   `json:"observed_at,omitzero"`
	LookedUpAt   time.Time   `json:"looked_up_at"`
}

// LookupPublisher ships lookup events to a downstream sink.
type LookupPublisher interface {
	PublishLookup(ctx context.Context, event LookupEvent) error
}

// NewLookupEvent converts a country and its weather into display units and
// stamps the event with the current time.
func NewLookupEvent(c Country, w WeatherSnapshot) LookupEvent {
	now := clock.Now().UTC()
	return LookupEvent{
		ID:           lookupID(c.Name, now),
		Country:      c.Name,
		Capital:      c.Capital,
		Coordinates:  c.Coordinates,
		TemperatureF: KelvinToFahrenheit(w.TemperatureK),
		FeelsLikeF:   KelvinToFahrenheit(w.FeelsLikeK),
		WindMph:      MpsToMph(w.WindSpeedMps),
		Description:  w.Description,
		IconCode:     w.IconCode,
		ObservedAt:   w.ObservedAt,
		LookedUpAt:   now,
	}
}

// lookupID hashes the country name with the lookup time truncated to the
// minute, so repeated lookups within a minute share an ID downstream.
func lookupID(country string, at time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s", country, at.Truncate(time.Minute).Format(time.RFC3339))))
	return hex.EncodeToString(sum[:8])
}
