// Package render turns session views into the HTML the browser displays.
// It holds no state beyond the parsed templates.
package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"time"

	"github.com/couchcryptid/country-lookup/internal/lookup"
)

//go:embed templates/*.html
var templateFS embed.FS

// DefaultPollInterval is how often the page refreshes the results region.
const DefaultPollInterval = 250 * time.Millisecond

var funcs = template.FuncMap{
	"number": func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) },
}

// Renderer executes the page and results templates.
type Renderer struct {
	tmpl *template.Template
	poll time.Duration
}

// New parses the embedded templates. poll is the page's refresh interval;
// zero selects DefaultPollInterval.
func New(poll time.Duration) (*Renderer, error) {
	tmpl, err := template.New("render").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Renderer{tmpl: tmpl, poll: poll}, nil
}

// Page writes the single-page shell: the filter input and an empty results region.
func (r *Renderer) Page(w io.Writer) error {
	return r.tmpl.ExecuteTemplate(w, "page", struct{ PollMillis int64 }{r.poll.Milliseconds()})
}

// Results writes the results region for v.
func (r *Renderer) Results(w io.Writer, v lookup.View) error {
	return r.tmpl.ExecuteTemplate(w, "results", v)
}
