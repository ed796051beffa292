package lookup

import (
	"context"
	"encoding/base64"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/country-lookup/internal/domain"
	"github.com/couchcryptid/country-lookup/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Sections of the results region whose failures are reported independently.
const (
	sectionDirectory = "directory"
	sectionWeather   = "weather"
	sectionIcon      = "icon"
)

const errWeatherDisabled = "weather lookups are disabled: no API key configured"

// State is the weather resolver's progress for the resolved country.
type State int

const (
	Idle     State = iota // no single country resolved
	Fetching              // weather requested, no response yet
	Settling              // weather settled, loading flag still set
	Ready                 // weather settled and loading flag cleared
)

func (s State) String() string {
	switch s {
	case Fetching:
		return "fetching"
	case Settling:
		return "settling"
	case Ready:
		return "ready"
	default:
		return "idle"
	}
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Directory   DirectorySource
	Weather     domain.WeatherProvider // nil disables weather lookups
	Icons       domain.IconFetcher
	Publisher   domain.LookupPublisher // optional
	Clock       clockwork.Clock
	SettleDelay time.Duration
	Metrics     *observability.Metrics
	Logger      *slog.Logger
}

// Session is one browser's lookup state: the query, its classification,
// per-entry expansion and the weather resolver for the resolved country.
//
// Upstream calls run on their own goroutines. Each carries the generation
// that was current when it was issued, and its result is dropped if the
// resolved country has changed since.
type Session struct {
	id     string
	deps   Deps
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	debounce    *Debouncer
	input       string
	inputSeq    uint64
	dir         *domain.Directory
	match       domain.Match
	expansion   *domain.Expansion
	resolved    *domain.Country
	generation  uint64
	state       State
	loading     bool
	weatherDone bool
	snapshot    *domain.WeatherSnapshot
	iconCode    string
	iconBase64  string
	published   bool
	errs        map[string]string
	lastSeen    time.Time
	closed      bool
}

func newSession(id string, deps Deps) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:        id,
		deps:      deps,
		ctx:       ctx,
		cancel:    cancel,
		debounce:  NewDebouncer(deps.Clock, deps.SettleDelay),
		expansion: domain.NewExpansion(),
		loading:   true,
		errs:      make(map[string]string),
		lastSeen:  deps.Clock.Now(),
	}
	s.mu.Lock()
	s.evaluateLocked(true)
	s.mu.Unlock()
	return s
}

func (s *Session) ID() string { return s.id }

// SetInput replaces the query and re-runs matching and weather resolution.
func (s *Session) SetInput(input string) View {
	v, _ := s.ApplyInput(input, 0)
	return v
}

// ApplyInput is SetInput for clients that number their updates. A non-zero
// seq at or below the last applied one is ignored and reported as false, so
// a request overtaken in transit cannot roll the query back. seq 0 is
// always applied.
func (s *Session) ApplyInput(input string, seq uint64) (View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSeen = s.deps.Clock.Now()
	if s.closed {
		return s.viewLocked(), false
	}
	if seq != 0 {
		if seq <= s.inputSeq {
			return s.viewLocked(), false
		}
		s.inputSeq = seq
	}
	if input != s.input {
		s.input = input
		s.evaluateLocked(true)
		s.deps.Metrics.Classifications.WithLabelValues(s.match.Kind.String()).Inc()
	} else {
		s.evaluateLocked(false)
	}
	return s.viewLocked(), true
}

// Toggle flips the expanded flag of a listed entry. It reports false when
// the name is not in the current list.
func (s *Session) Toggle(name string) (View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSeen = s.deps.Clock.Now()
	s.evaluateLocked(false)
	if s.match.Kind != domain.Ambiguous || !listed(s.match.Countries, name) {
		return s.viewLocked(), false
	}
	s.expansion.Toggle(name)
	return s.viewLocked(), true
}

// View returns the current renderable state, picking up a directory that
// finished loading since the last input.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.evaluateLocked(false)
	}
	return s.viewLocked()
}

// LastSeen is the time of the last client interaction.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = s.deps.Clock.Now()
	s.mu.Unlock()
}

// Close cancels in-flight requests and the pending timer. Late results are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.generation++
	s.debounce.Cancel()
	s.cancel()
}

// evaluateLocked re-derives the match and drives the weather resolver and
// debounce timer. inputChanged distinguishes a keystroke from a refresh.
func (s *Session) evaluateLocked(inputChanged bool) {
	dir := s.deps.Directory.Directory()
	if !inputChanged && dir == s.dir {
		return
	}
	s.dir = dir
	s.match = domain.Classify(s.input, dir)

	country, ok := s.match.Country()
	if !sameCountry(s.resolved, country, ok) {
		s.resolveLocked(country, ok)
	}

	holds := s.input != "" && s.match.Kind == domain.Resolved
	switch {
	case !holds:
		s.debounce.Cancel()
		s.loading = true
	case inputChanged || (s.loading && !s.debounce.Armed()):
		s.debounce.Arm(s.settle)
	}
	s.advanceLocked()
}

// resolveLocked starts a new generation for a changed resolved country.
func (s *Session) resolveLocked(c domain.Country, ok bool) {
	s.generation++
	s.snapshot = nil
	s.iconCode = ""
	s.iconBase64 = ""
	s.weatherDone = false
	s.published = false
	s.loading = true
	s.debounce.Cancel()
	delete(s.errs, sectionWeather)
	delete(s.errs, sectionIcon)

	if !ok {
		s.resolved = nil
		return
	}
	s.resolved = &c

	if s.deps.Weather == nil {
		s.errs[sectionWeather] = errWeatherDisabled
		s.weatherDone = true
		return
	}
	go s.fetchWeather(s.generation, c)
}

// advanceLocked derives the resolver state from what has arrived.
func (s *Session) advanceLocked() {
	switch {
	case s.resolved == nil:
		s.state = Idle
	case !s.weatherDone:
		s.state = Fetching
	case s.loading:
		s.state = Settling
	default:
		s.state = Ready
		s.publishLocked()
	}
}

func (s *Session) settle(token uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.debounce.Settle(token) {
		return
	}
	s.loading = false
	s.advanceLocked()
}

func (s *Session) fetchWeather(gen uint64, c domain.Country) {
	snap, err := s.deps.Weather.CurrentWeather(s.ctx, c.Coordinates)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		s.deps.Metrics.StaleResults.WithLabelValues(sectionWeather).Inc()
		return
	}
	s.weatherDone = true
	if err != nil {
		s.errs[sectionWeather] = err.Error()
		s.deps.Logger.Warn("weather fetch failed", "session", s.id, "country", c.Name, "error", err)
		s.advanceLocked()
		return
	}

	s.snapshot = &snap
	if snap.IconCode != s.iconCode {
		s.iconCode = snap.IconCode
		s.iconBase64 = ""
		if snap.IconCode != "" && s.deps.Icons != nil {
			go s.fetchIcon(gen, snap.IconCode)
		}
	}
	s.advanceLocked()
}

func (s *Session) fetchIcon(gen uint64, code string) {
	data, err := s.deps.Icons.FetchIcon(s.ctx, code)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || code != s.iconCode {
		s.deps.Metrics.StaleResults.WithLabelValues(sectionIcon).Inc()
		return
	}
	if err != nil {
		s.errs[sectionIcon] = err.Error()
		s.deps.Logger.Warn("icon fetch failed", "session", s.id, "icon", code, "error", err)
		return
	}
	s.iconBase64 = base64.StdEncoding.EncodeToString(data)
}

// publishLocked emits one lookup event per resolved country once its
// weather is shown. Publish failures only get logged.
func (s *Session) publishLocked() {
	if s.published || s.deps.Publisher == nil || s.snapshot == nil {
		return
	}
	s.published = true

	event := domain.NewLookupEvent(*s.resolved, *s.snapshot)
	go func() {
		if err := s.deps.Publisher.PublishLookup(s.ctx, event); err != nil {
			s.deps.Logger.Warn("lookup event publish failed", "session", s.id, "country", event.Country, "error", err)
		}
	}()
}

func sameCountry(current *domain.Country, next domain.Country, ok bool) bool {
	if current == nil || !ok {
		return current == nil && !ok
	}
	return current.Name == next.Name
}

func listed(countries []domain.Country, name string) bool {
	for _, c := range countries {
		if c.Name == name {
			return true
		}
	}
	return false
}
