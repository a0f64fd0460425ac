package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"happenings/internal/catalog"
	"happenings/internal/config"
	"happenings/internal/datekey"
	"happenings/internal/ics"
	appLog "happenings/internal/log"
	"happenings/internal/model"
	"happenings/internal/recurrence"
	"happenings/internal/venue"
)

// Server exposes the recurrence and venue core over HTTP. It owns no
// state besides the catalog store it reads from.
type Server struct {
	cfg   *config.Config
	store *catalog.Store
	loc   *time.Location
	mux   *http.ServeMux

	// now is the clock used for default windows.
	now func() time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, store *catalog.Store) (*Server, error) {
	loc, err := datekey.LoadZone(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:   cfg,
		store: store,
		loc:   loc,
		mux:   http.NewServeMux(),
		now:   time.Now,
	}
	s.registerRoutes()
	return s, nil
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Happenings", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/occurrences", s.handleOccurrences)
	s.mux.HandleFunc("POST /api/recurrence/preview", s.handlePreview)
	s.mux.HandleFunc("GET /api/events.ics", s.handleFeed)
	s.mux.HandleFunc("POST /api/venues/resolve", s.handleResolve)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// window reads start/end query parameters. start defaults to today in the
// configured zone and end to start + horizon_days - 1.
func (s *Server) window(r *http.Request) (model.Window, error) {
	q := r.URL.Query()
	start := datekey.Today(s.now(), s.loc)
	if v := q.Get("start"); v != "" {
		k, err := datekey.Parse(v)
		if err != nil {
			return model.Window{}, err
		}
		start = k
	}
	end := start.AddDays(s.cfg.HorizonDays - 1)
	if v := q.Get("end"); v != "" {
		k, err := datekey.Parse(v)
		if err != nil {
			return model.Window{}, err
		}
		end = k
	}
	if end.Before(start) {
		return model.Window{}, recurrence.ErrInvalidWindow
	}
	return model.Window{StartKey: start, EndKey: end}, nil
}

// occurrencesResponse is the JSON shape of /api/occurrences and
// /api/recurrence/preview.
type occurrencesResponse struct {
	EventID     string                `json:"event_id,omitempty"`
	Descriptor  recurrence.Descriptor `json:"descriptor"`
	Label       string                `json:"label"`
	Multiple    bool                  `json:"expands_to_multiple"`
	Window      model.Window          `json:"window"`
	Occurrences []model.Occurrence    `json:"occurrences"`
}

func (s *Server) expand(ev model.Event, win model.Window) (occurrencesResponse, error) {
	d, err := recurrence.InterpretRecurrence(ev)
	if err != nil {
		return occurrencesResponse{}, err
	}
	occ, err := recurrence.ExpandDescriptor(d, win, recurrence.Options{Location: s.loc})
	if err != nil {
		return occurrencesResponse{}, err
	}
	return occurrencesResponse{
		EventID:     ev.ID,
		Descriptor:  d,
		Label:       recurrence.LabelFromRecurrence(d),
		Multiple:    recurrence.ShouldExpandToMultiple(d),
		Window:      win,
		Occurrences: occ,
	}, nil
}

// handleOccurrences expands one catalog event.
//
// GET /api/occurrences?event=<id>&start=YYYY-MM-DD&end=YYYY-MM-DD
func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	win, err := s.window(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := r.URL.Query().Get("event")
	snap, _ := s.store.Current()
	ev, ok := snap.Event(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown event")
		return
	}

	resp, err := s.expand(ev, win)
	if err != nil {
		// Stored rows with bad dates are a data problem, not a client one.
		appLog.Error("api occurrences: expand failed", err, "event", id)
		writeError(w, http.StatusInternalServerError, "failed to expand event")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type previewRequest struct {
	Event model.Event `json:"event"`
	Start string      `json:"start"`
	End   string      `json:"end"`
}

// handlePreview expands unsaved recurrence fields, e.g. for a draft form.
//
// POST /api/recurrence/preview {"event": {...}, "start": "...", "end": "..."}
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	q := r.URL.Query()
	if req.Start != "" {
		q.Set("start", req.Start)
	}
	if req.End != "" {
		q.Set("end", req.End)
	}
	r.URL.RawQuery = q.Encode()

	win, err := s.window(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := s.expand(req.Event, win)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleFeed renders every catalog event as an iCalendar feed.
//
// GET /api/events.ics?start=&end=
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	win, err := s.window(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, _ := s.store.Current()

	body, err := ics.BuildFeed(snap.Events, win, ics.FeedOptions{
		Domain: s.cfg.FeedDomain,
		Name:   "Happenings",
		Stamp:  win.StartKey.Time(s.loc),
		Expand: recurrence.Options{Location: s.loc},
	})
	if err != nil {
		appLog.Error("api feed: build failed", err)
		writeError(w, http.StatusInternalServerError, "failed to build feed")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

type resolveRequest struct {
	venue.Input

	// Mode, when set, gates resolution through venue.ShouldResolveVenue.
	Mode  venue.EditMode `json:"mode,omitempty"`
	Draft map[string]any `json:"draft,omitempty"`
}

// handleResolve resolves a venue hint against the current catalog.
//
// POST /api/venues/resolve
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Mode != "" {
		gate := venue.GateArgs{
			Mode:              req.Mode,
			HasLocationIntent: venue.HasLocationIntent(req.UserMessage),
			DraftPayload:      req.Draft,
		}
		if !venue.ShouldResolveVenue(gate) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "skipped"})
			return
		}
	}

	snap, idx := s.store.Current()
	in := req.Input
	in.Catalog = snap.Venues
	in.AliasOverrides = snap.Aliases

	res := venue.ResolveVenueWithIndex(in, idx)
	appLog.Debug("api resolve", "kind", res.Kind(), "catalog_size", len(snap.Venues))
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
