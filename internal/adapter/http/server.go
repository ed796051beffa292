package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/country-lookup/internal/domain"
	"github.com/couchcryptid/country-lookup/internal/lookup"
	"github.com/couchcryptid/country-lookup/internal/render"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 4 << 10

// SessionStore creates, finds and ends lookup sessions.
type SessionStore interface {
	Create() *lookup.Session
	Get(id string) (*lookup.Session, bool)
	Delete(id string) bool
}

// Server serves the lookup page and API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	sessions   SessionStore
	countries  lookup.DirectorySource
	renderer   *render.Renderer
	logger     *slog.Logger
}

// NewServer wires every route onto a fresh mux. ready gates /readyz.
func NewServer(
	addr string,
	sessions SessionStore,
	countries lookup.DirectorySource,
	ready sharedobs.ReadinessChecker,
	renderer *render.Renderer,
	logger *slog.Logger,
) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		sessions:  sessions,
		countries: countries,
		renderer:  renderer,
		logger:    logger,
	}

	mux.HandleFunc("GET /{$}", s.handlePage)
	mux.HandleFunc("GET /api/countries", s.handleCountries)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("PUT /api/sessions/{id}/input", s.handleSetInput)
	mux.HandleFunc("GET /api/sessions/{id}/results", s.handleResults)
	mux.HandleFunc("POST /api/sessions/{id}/entries/{name}/toggle", s.handleToggle)

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handlePage(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	if err := s.renderer.Page(&buf); err != nil {
		s.renderFailed(w, "page", err)
		return
	}
	writeHTML(w, &buf)
}

type countriesResponse struct {
	Query     string           `json:"query"`
	Kind      string           `json:"kind"`
	Count     int              `json:"count"`
	Countries []domain.Country `json:"countries"`
}

func (s *Server) handleCountries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	m := domain.Classify(q, s.countries.Directory())

	resp := countriesResponse{Query: q, Kind: m.Kind.String(), Count: m.Count, Countries: m.Countries}
	if resp.Countries == nil {
		resp.Countries = []domain.Country{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	session := s.sessions.Create()
	sharedobs.WriteJSON(w, http.StatusCreated, session.View())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, session.View())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Delete(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// inputRequest carries the query text. Seq, when non-zero, must increase
// with every update from the same client.
type inputRequest struct {
	Input *string `json:"input"`
	Seq   uint64  `json:"seq,omitempty"`
}

func (s *Server) handleSetInput(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	var req inputRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Input == nil {
		writeError(w, http.StatusBadRequest, `missing "input" field`)
		return
	}
	view, applied := session.ApplyInput(*req.Input, req.Seq)
	if !applied {
		writeError(w, http.StatusConflict, "stale input sequence")
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, view)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := s.renderer.Results(&buf, session.View()); err != nil {
		s.renderFailed(w, "results", err)
		return
	}
	writeHTML(w, &buf)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	view, toggled := session.Toggle(r.PathValue("name"))
	if !toggled {
		writeError(w, http.StatusNotFound, "entry not listed")
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, view)
}

// session resolves the {id} path value, writing a 404 when it is unknown.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*lookup.Session, bool) {
	session, ok := s.sessions.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
	}
	return session, ok
}

func (s *Server) renderFailed(w http.ResponseWriter, name string, err error) {
	s.logger.Error("render failed", "template", name, "error", err)
	writeError(w, http.StatusInternalServerError, "render failed")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}

func writeHTML(w http.ResponseWriter, buf *bytes.Buffer) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w) //nolint:errcheck // client may have gone away
}
