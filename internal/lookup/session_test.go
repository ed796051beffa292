package lookup

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/country-lookup/internal/domain"
	"github.com/couchcryptid/country-lookup/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	china = domain.Country{
		Name:        "China",
		Capital:     "Beijing",
		Population:  1402112000,
		Languages:   map[string]string{"zho": "Chinese"},
		Coordinates: domain.Coordinates{Lat: 35, Lon: 105},
	}
	chile = domain.Country{
		Name:        "Chile",
		Capital:     "Santiago",
		Languages:   map[string]string{"spa": "Spanish"},
		Coordinates: domain.Coordinates{Lat: -30, Lon: -71},
	}
	germany = domain.Country{
		Name:        "Germany",
		Capital:     "Berlin",
		Coordinates: domain.Coordinates{Lat: 51, Lon: 9},
	}

	chinaWeather = domain.WeatherSnapshot{TemperatureK: 293.4, FeelsLikeK: 273, WindSpeedMps: 1, IconCode: "03d", Description: "scattered clouds"}
	chileWeather = domain.WeatherSnapshot{TemperatureK: 373, FeelsLikeK: 373, WindSpeedMps: 10, IconCode: "01n", Description: "clear sky"}
)

const waitFor = 2 * time.Second

// --- fakes ---

type fakeDirectory struct {
	mu  sync.Mutex
	dir *domain.Directory
	err error
}

func (f *fakeDirectory) Directory() *domain.Directory {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dir
}

func (f *fakeDirectory) LoadErr() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeDirectory) set(countries ...domain.Country) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dir = domain.NewDirectory(countries)
}

// fakeWeather answers by latitude. A gate for a latitude blocks that call
// until the gate is closed.
type fakeWeather struct {
	mu      sync.Mutex
	results map[float64]domain.WeatherSnapshot
	gates   map[float64]chan struct{}
	err     error
	calls   []domain.Coordinates
}

func newFakeWeather() *fakeWeather {
	return &fakeWeather{
		results: map[float64]domain.WeatherSnapshot{
			china.Coordinates.Lat: chinaWeather,
			chile.Coordinates.Lat: chileWeather,
		},
		gates: map[float64]chan struct{}{},
	}
}

func (f *fakeWeather) CurrentWeather(ctx context.Context, at domain.Coordinates) (domain.WeatherSnapshot, error) {
	f.mu.Lock()
	f.calls = append(f.calls, at)
	gate := f.gates[at.Lat]
	snap, err := f.results[at.Lat], f.err
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.WeatherSnapshot{}, ctx.Err()
		}
	}
	return snap, err
}

func (f *fakeWeather) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeIcons struct {
	mu    sync.Mutex
	err   error
	codes []string
}

func (f *fakeIcons) FetchIcon(_ context.Context, code string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes = append(f.codes, code)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("png-" + code), nil
}

type fakePublisher struct {
	events chan domain.LookupEvent
}

func (f *fakePublisher) PublishLookup(_ context.Context, event domain.LookupEvent) error {
	f.events <- event
	return nil
}

// --- helpers ---

type harness struct {
	clock     *clockwork.FakeClock
	dir       *fakeDirectory
	weather   *fakeWeather
	icons     *fakeIcons
	publisher *fakePublisher
	metrics   *observability.Metrics
	deps      Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:     clockwork.NewFakeClock(),
		dir:       &fakeDirectory{},
		weather:   newFakeWeather(),
		icons:     &fakeIcons{},
		publisher: &fakePublisher{events: make(chan domain.LookupEvent, 8)},
		metrics:   observability.NewMetricsForTesting(),
	}
	h.dir.set(china, chile, germany)
	h.deps = Deps{
		Directory:   h.dir,
		Weather:     h.weather,
		Icons:       h.icons,
		Publisher:   h.publisher,
		Clock:       h.clock,
		SettleDelay: settleDelay,
		Metrics:     h.metrics,
		Logger:      discardLogger(),
	}
	return h
}

func (h *harness) session(t *testing.T) *Session {
	t.Helper()
	s := newSession("test-session", h.deps)
	t.Cleanup(s.Close)
	return s
}

func waitState(t *testing.T, s *Session, state State) {
	t.Helper()
	require.Eventually(t, func() bool { return s.View().State == state.String() }, waitFor, 5*time.Millisecond,
		"want state %s", state)
}

func entryNames(v View) []string {
	out := make([]string, 0, len(v.Entries))
	for _, e := range v.Entries {
		out = append(out, e.Country.Name)
	}
	return out
}

// --- tests ---

func TestSession_ResolvedFlow(t *testing.T) {
	h := newHarness(t)
	s := h.session(t)

	v := s.SetInput("chin")
	assert.Equal(t, "resolved", v.Kind)
	assert.True(t, v.Loading)
	assert.Nil(t, v.Country, "details stay hidden while loading")

	waitState(t, s, Settling)

	h.clock.Advance(settleDelay - time.Millisecond)
	assert.True(t, s.View().Loading)

	h.clock.Advance(time.Millisecond)
	waitState(t, s, Ready)

	v = s.View()
	assert.False(t, v.Loading)
	require.NotNil(t, v.Country)
	assert.Equal(t, "China", v.Country.Name)
	require.NotNil(t, v.Weather)
	assert.True(t, v.Weather.Available)
	assert.Equal(t, "Beijing", v.Weather.Capital)
	assert.Equal(t, "68.7", v.Weather.TemperatureF)
	assert.Equal(t, "32.0", v.Weather.FeelsLikeF)
	assert.InDelta(t, 2.24, v.Weather.WindMph, 1e-9)
	assert.Equal(t, "scattered clouds", v.Weather.Description)

	want := base64.StdEncoding.EncodeToString([]byte("png-03d"))
	require.Eventually(t, func() bool { return s.View().Weather.IconBase64 == want }, waitFor, 5*time.Millisecond)

	select {
	case event := <-h.publisher.events:
		assert.Equal(t, "China", event.Country)
		assert.Equal(t, "68.7", event.TemperatureF)
	case <-time.After(waitFor):
		t.Fatal("lookup event not published")
	}
	assert.Equal(t, 1, h.weather.callCount())
}

func TestSession_TimerFiresBeforeWeatherArrives(t *testing.T) {
	h := newHarness(t)
	gate := make(chan struct{})
	h.weather.gates[china.Coordinates.Lat] = gate
	s := h.session(t)

	s.SetInput("chin")
	h.clock.Advance(settleDelay)
	require.Eventually(t, func() bool { return !s.View().Loading }, waitFor, 5*time.Millisecond)

	v := s.View()
	assert.Equal(t, Fetching.String(), v.State)
	require.NotNil(t, v.Weather)
	assert.False(t, v.Weather.Available)

	close(gate)
	waitState(t, s, Ready)
	assert.True(t, s.View().Weather.Available)
}

func TestSession_InterruptedConditionRestartsDebounce(t *testing.T) {
	h := newHarness(t)
	s := h.session(t)

	s.SetInput("chin")
	h.clock.Advance(500 * time.Millisecond)

	v := s.SetInput("ch")
	assert.Equal(t, "ambiguous", v.Kind)
	assert.True(t, v.Loading)

	s.SetInput("chin")
	h.clock.Advance(settleDelay - time.Millisecond)
	assert.True(t, s.View().Loading, "flag clears only a full delay after resumption")

	h.clock.Advance(time.Millisecond)
	require.Eventually(t, func() bool { return !s.View().Loading }, waitFor, 5*time.Millisecond)

	require.Eventually(t, func() bool { return h.weather.callCount() == 2 }, waitFor, 5*time.Millisecond,
		"passing through an ambiguous state re-triggers weather")
}

func TestSession_SameCountryNarrowingKeepsWeather(t *testing.T) {
	h := newHarness(t)
	s := h.session(t)

	s.SetInput("chin")
	waitState(t, s, Settling)

	h.clock.Advance(600 * time.Millisecond)
	s.SetInput("china")
	h.clock.Advance(600 * time.Millisecond)
	assert.True(t, s.View().Loading, "typing restarts the timer")

	h.clock.Advance(400 * time.Millisecond)
	waitState(t, s, Ready)

	assert.Equal(t, 1, h.weather.callCount(), "same resolved country must not refetch")
}

func TestSession_StaleWeatherIsDropped(t *testing.T) {
	h := newHarness(t)
	chinaGate := make(chan struct{})
	h.weather.gates[china.Coordinates.Lat] = chinaGate
	s := h.session(t)

	s.SetInput("chin")
	require.Eventually(t, func() bool { return h.weather.callCount() == 1 }, waitFor, 5*time.Millisecond)

	s.SetInput("chil")
	waitState(t, s, Settling)

	close(chinaGate)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(h.metrics.StaleResults.WithLabelValues(sectionWeather)) == 1
	}, waitFor, 5*time.Millisecond)

	h.clock.Advance(settleDelay)
	waitState(t, s, Ready)

	v := s.View()
	assert.Equal(t, "Chile", v.Country.Name)
	assert.Equal(t, "212.0", v.Weather.TemperatureF, "late China result must not overwrite Chile")
}

func TestSession_AmbiguousEntriesToggleIndependently(t *testing.T) {
	h := newHarness(t)
	s := h.session(t)

	v := s.SetInput("ch")
	assert.Equal(t, "ambiguous", v.Kind)
	assert.Equal(t, []string{"China", "Chile"}, entryNames(v))
	assert.Equal(t, Idle.String(), v.State)

	_, ok := s.Toggle("China")
	require.True(t, ok)
	v, ok = s.Toggle("Chile")
	require.True(t, ok)
	assert.True(t, v.Entries[0].Expanded)
	assert.True(t, v.Entries[1].Expanded)

	v, _ = s.Toggle("China")
	assert.False(t, v.Entries[0].Expanded)
	assert.True(t, v.Entries[1].Expanded)

	_, ok = s.Toggle("Germany")
	assert.False(t, ok, "only listed entries can be toggled")

	assert.Equal(t, 0, h.weather.callCount())
}

func TestSession_NoMatchAndTooMany(t *testing.T) {
	h := newHarness(t)
	countries := make([]domain.Country, 0, 11)
	for _, name := range []string{"Aa", "Ab", "Ac", "Ad", "Ae", "Af", "Ag", "Ah", "Ai", "Aj", "Ak"} {
		countries = append(countries, domain.Country{Name: name})
	}
	h.dir.set(countries...)
	s := h.session(t)

	assert.Equal(t, "too_many", s.View().Kind, "empty input matches everything")
	assert.Equal(t, "too_many", s.SetInput("a").Kind)
	assert.Empty(t, s.SetInput("a").Entries)

	v := s.SetInput("zzz")
	assert.Equal(t, "no_match", v.Kind)
	assert.Equal(t, Idle.String(), v.State)
	assert.Nil(t, v.Country)
}

func TestSession_WeatherFailureIsIsolated(t *testing.T) {
	h := newHarness(t)
	h.weather.err = errors.New("fetch failed: status 401")
	s := h.session(t)

	s.SetInput("chin")
	h.clock.Advance(settleDelay)
	waitState(t, s, Ready)

	v := s.View()
	require.NotNil(t, v.Country, "country details still render")
	assert.Equal(t, "China", v.Country.Name)
	require.NotNil(t, v.Weather)
	assert.False(t, v.Weather.Available)
	assert.Contains(t, v.Errors[sectionWeather], "401")
	assert.Empty(t, h.icons.codes)
	assert.Empty(t, h.publisher.events)
}

func TestSession_IconFailureIsIsolated(t *testing.T) {
	h := newHarness(t)
	h.icons.err = errors.New("icon host down")
	s := h.session(t)

	s.SetInput("chin")
	h.clock.Advance(settleDelay)
	waitState(t, s, Ready)

	require.Eventually(t, func() bool { return s.View().Errors[sectionIcon] != "" }, waitFor, 5*time.Millisecond)
	v := s.View()
	assert.True(t, v.Weather.Available)
	assert.Equal(t, "68.7", v.Weather.TemperatureF)
	assert.Empty(t, v.Weather.IconBase64)
}

func TestSession_WeatherDisabled(t *testing.T) {
	h := newHarness(t)
	h.deps.Weather = nil
	s := h.session(t)

	v := s.SetInput("chin")
	assert.Equal(t, Settling.String(), v.State)
	assert.Equal(t, errWeatherDisabled, v.Errors[sectionWeather])

	h.clock.Advance(settleDelay)
	waitState(t, s, Ready)
	assert.Equal(t, "China", s.View().Country.Name)
}

func TestSession_DirectoryArrivesLater(t *testing.T) {
	h := newHarness(t)
	h.dir.set()
	s := h.session(t)

	assert.Equal(t, "no_match", s.SetInput("chin").Kind)

	h.dir.set(china, chile)
	v := s.View()
	assert.Equal(t, "resolved", v.Kind)
	assert.True(t, v.Loading)

	h.clock.Advance(settleDelay)
	waitState(t, s, Ready)
	assert.Equal(t, 1, h.weather.callCount())
}

func TestSession_DirectoryErrorReported(t *testing.T) {
	h := newHarness(t)
	h.dir.set()
	h.dir.err = errors.New("countries unavailable")
	s := h.session(t)

	v := s.SetInput("chin")
	assert.Equal(t, "no_match", v.Kind)
	assert.Equal(t, "countries unavailable", v.Errors[sectionDirectory])
}

func TestSession_CloseDropsLateResults(t *testing.T) {
	h := newHarness(t)
	gate := make(chan struct{})
	h.weather.gates[china.Coordinates.Lat] = gate
	s := h.session(t)

	s.SetInput("chin")
	require.Eventually(t, func() bool { return h.weather.callCount() == 1 }, waitFor, 5*time.Millisecond)

	s.Close()
	h.clock.Advance(settleDelay)
	close(gate)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(h.metrics.StaleResults.WithLabelValues(sectionWeather)) == 1
	}, waitFor, 5*time.Millisecond)
	assert.True(t, s.View().Loading)
}

func TestSession_ApplyInputIgnoresOverlappedSeq(t *testing.T) {
	h := newHarness(t)
	s := h.session(t)

	v, ok := s.ApplyInput("chi", 3)
	require.True(t, ok)
	assert.Equal(t, "chi", v.Input)

	// "ch" was sent before "chi" but arrived after it.
	v, ok = s.ApplyInput("ch", 2)
	assert.False(t, ok)
	assert.Equal(t, "chi", v.Input)
	assert.Equal(t, "ambiguous", v.Kind)

	_, ok = s.ApplyInput("chi", 3)
	assert.False(t, ok, "a repeated seq is stale too")

	v, ok = s.ApplyInput("chin", 4)
	require.True(t, ok)
	assert.Equal(t, "resolved", v.Kind)

	v, ok = s.ApplyInput("ch", 0)
	assert.True(t, ok, "unnumbered updates always apply")
	assert.Equal(t, "ch", v.Input)
}

func TestSession_ClassificationsCountOnlyInputChanges(t *testing.T) {
	h := newHarness(t)
	s := h.session(t)

	assert.Zero(t, testutil.CollectAndCount(h.metrics.Classifications), "creating a session is not a query")

	s.SetInput("chin")
	s.SetInput("chin")
	s.View()
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.Classifications.WithLabelValues("resolved")), 0)

	s.SetInput("ch")
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.Classifications.WithLabelValues("ambiguous")), 0)
}
