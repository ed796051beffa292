package lookup

import (
	"maps"

	"github.com/couchcryptid/country-lookup/internal/domain"
)

// View is the renderable snapshot of a session.
type View struct {
	ID      string `json:"id"`
	Input   string `json:"input"`
	Kind    string `json:"kind"`
	Count   int    `json:"count"`
	State   string `json:"state"`
	Loading bool   `json:"loading"`

	// Entries lists the matches when the query is ambiguous.
	Entries []Entry `json:"entries,omitempty"`

	// Country and Weather are set once a resolved country has settled.
	Country *domain.Country `json:"country,omitempty"`
	Weather *WeatherView    `json:"weather,omitempty"`

	Errors map[string]string `json:"errors,omitempty"`
}

// Entry is one row of an ambiguous match list.
type Entry struct {
	Country  domain.Country `json:"country"`
	Expanded bool           `json:"expanded"`
}

// WeatherView is the weather section in display units.
type WeatherView struct {
	Capital      string  `json:"capital"`
	TemperatureF string  `json:"temperature_f,omitempty"`
	FeelsLikeF   string  `json:"feels_like_f,omitempty"`
	WindMph      float64 `json:"wind_mph"`
	Description  string  `json:"description,omitempty"`
	IconBase64   string  `json:"icon_base64,omitempty"`
	Available    bool    `json:"available"`
}

func (s *Session) viewLocked() View {
	v := View{
		ID:      s.id,
		Input:   s.input,
		Kind:    s.match.Kind.String(),
		Count:   s.match.Count,
		State:   s.state.String(),
		Loading: s.loading,
	}

	if s.match.Kind == domain.Ambiguous {
		v.Entries = make([]Entry, 0, len(s.match.Countries))
		for _, c := range s.match.Countries {
			v.Entries = append(v.Entries, Entry{Country: c, Expanded: s.expansion.IsExpanded(c.Name)})
		}
	}

	if s.resolved != nil && !s.loading {
		c := *s.resolved
		v.Country = &c
		v.Weather = s.weatherViewLocked()
	}

	errs := maps.Clone(s.errs)
	if err := s.deps.Directory.LoadErr(); err != nil {
		if errs == nil {
			errs = make(map[string]string)
		}
		errs[sectionDirectory] = err.Error()
	}
	if len(errs) > 0 {
		v.Errors = errs
	}
	return v
}

func (s *Session) weatherViewLocked() *WeatherView {
	w := &WeatherView{Capital: s.resolved.Capital}
	if s.snapshot == nil {
		return w
	}
	w.Available = true
	w.TemperatureF = domain.KelvinToFahrenheit(s.snapshot.TemperatureK)
	w.FeelsLikeF = domain.KelvinToFahrenheit(s.snapshot.FeelsLikeK)
	w.WindMph = domain.MpsToMph(s.snapshot.WindSpeedMps)
	w.Description = s.snapshot.Description
	w.IconBase64 = s.iconBase64
	return w
}
