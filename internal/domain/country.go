package domain

import (
	"context"
	"sort"
	"strings"
)

// Coordinates is a WGS-84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Country is the reference data shown for a single country.
type Country struct {
	Name        string            `json:"name"`
	Capital     string            `json:"capital,omitempty"`
	Area        float64           `json:"area"`
	Population  int64             `json:"population"`
	Languages   map[string]string `json:"languages,omitempty"` // code -> display name
	FlagURL     string            `json:"flag_url,omitempty"`
	Coordinates Coordinates       `json:"coordinates"`
}

// LanguageNames returns the display names of the country's languages,
// ordered by language code so output is stable.
func (c Country) LanguageNames() []string {
	codes := make([]string, 0, len(c.Languages))
	for code := range c.Languages {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	names := make([]string, 0, len(codes))
	for _, code := range codes {
		names = append(names, c.Languages[code])
	}
	return names
}

// CountrySource fetches the full list of countries in one request.
type CountrySource interface {
	FetchCountries(ctx context.Context) ([]Country, error)
}

// Directory is the read-only list of countries for the life of the process,
// paired with a lower-cased name index. countries[i] and names[i] always
// describe the same country.
type Directory struct {
	countries []Country
	names     []string
}

// NewDirectory builds a directory from countries, preserving their order.
func NewDirectory(countries []Country) *Directory {
	d := &Directory{
		countries: make([]Country, len(countries)),
		names:     make([]string, len(countries)),
	}
	copy(d.countries, countries)
	for i, c := range d.countries {
		d.names[i] = strings.ToLower(c.Name)
	}
	return d
}

// LoadDirectory fetches every country from src. On failure it returns an
// empty, usable directory alongside the error.
func LoadDirectory(ctx context.Context, src CountrySource) (*Directory, error) {
	countries, err := src.FetchCountries(ctx)
	if err != nil {
		return NewDirectory(nil), err
	}
	return NewDirectory(countries), nil
}

// Len reports the number of countries. A nil directory is empty.
func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.countries)
}

// Filter returns the countries whose lower-cased name contains the
// lower-cased query, in directory order. An empty query matches everything.
func (d *Directory) Filter(query string) []Country {
	if d == nil {
		return nil
	}
	q := strings.ToLower(query)

	var out []Country
	for i, name := range d.names {
		if strings.Contains(name, q) {
			out = append(out, d.countries[i])
		}
	}
	return out
}
