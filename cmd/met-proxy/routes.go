package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mkarlsen/met-collection-proxy/pkg/cache"
	"github.com/mkarlsen/met-collection-proxy/pkg/client"
	"github.com/mkarlsen/met-collection-proxy/pkg/mediator"
	"github.com/mkarlsen/met-collection-proxy/pkg/scheduler"
)

const upstreamPrefix = "/public/collection/v1"

// Server is the HTTP route layer over the mediation core. It translates
// query parameters into upstream paths and cache keys, and reshapes
// composite responses; all upstream access goes through the mediator.
type Server struct {
	mediator *mediator.Mediator
	cfg      Config
	logger   zerolog.Logger
}

// NewServer creates the route layer.
func NewServer(m *mediator.Mediator, cfg Config, logger zerolog.Logger) *Server {
	return &Server{mediator: m, cfg: cfg, logger: logger}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/search", s.handleSearch)
		r.Get("/objects/{id}", s.handleObject)
		r.Get("/departments", s.handleDepartments)
		r.Get("/artist", s.handleArtist)
		r.Get("/department/{id}/search", s.handleDepartmentSearch)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// handleSearch proxies an image-bearing keyword search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		s.writeBadRequest(w, "missing query parameter q")
		return
	}

	path := upstreamPrefix + "/search?hasImages=true&q=" + url.QueryEscape(q)
	payload, err := s.mediator.Fetch(r.Context(), path, cache.Key("search-images", q))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, payload)
}

// handleObject proxies a single object-detail lookup.
func (s *Server) handleObject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	path := upstreamPrefix + "/objects/" + url.PathEscape(id)
	payload, err := s.mediator.Fetch(r.Context(), path, cache.Key("object-detail", id))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, payload)
}

// handleDepartments proxies the department listing.
func (s *Server) handleDepartments(w http.ResponseWriter, r *http.Request) {
	path := upstreamPrefix + "/departments"
	payload, err := s.mediator.Fetch(r.Context(), path, cache.Key("departments"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, payload)
}

// handleArtist runs the composite artist query: an artistOrCulture search
// followed by a bounded fan-out to object details.
func (s *Server) handleArtist(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		s.writeBadRequest(w, "missing query parameter name")
		return
	}

	searchPath := upstreamPrefix + "/search?artistOrCulture=true&q=" + url.QueryEscape(name)
	s.handleComposite(w, r, searchPath, cache.Key("search-artist", name))
}

// handleDepartmentSearch runs the composite department query.
func (s *Server) handleDepartmentSearch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	q := r.URL.Query().Get("q")
	if q == "" {
		s.writeBadRequest(w, "missing query parameter q")
		return
	}

	searchPath := upstreamPrefix + "/search?departmentId=" + url.QueryEscape(id) +
		"&q=" + url.QueryEscape(q)
	s.handleComposite(w, r, searchPath, cache.Key("search-department", id, q))
}

// handleComposite fetches a search result and fans out to object details.
// Individual object failures are dropped, not surfaced: the response is
// the subset that succeeded.
func (s *Server) handleComposite(w http.ResponseWriter, r *http.Request, searchPath, searchKey string) {
	payload, err := s.mediator.Fetch(r.Context(), searchPath, searchKey)
	if err != nil {
		s.writeError(w, err)
		return
	}

	ids := objectIDs(payload)
	if len(ids) > s.cfg.FanoutMaxObjects {
		ids = ids[:s.cfg.FanoutMaxObjects]
	}

	var mu sync.Mutex
	objects := make([]json.RawMessage, 0, len(ids))

	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(s.cfg.FanoutLimit)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			path := upstreamPrefix + "/objects/" + strconv.Itoa(id)
			detail, err := s.mediator.Fetch(ctx, path, cache.Key("object-detail", strconv.Itoa(id)))
			if err != nil {
				s.logger.Warn().
					Int("object_id", id).
					Err(err).
					Msg("Dropping failed object lookup")
				return nil
			}
			mu.Lock()
			objects = append(objects, detail)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	out, err := json.Marshal(map[string]any{
		"total":   len(objects),
		"objects": objects,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, out)
}

// objectIDs extracts the objectIDs field from a search payload. A missing
// or null field is an empty result, not an error.
func objectIDs(payload json.RawMessage) []int {
	var result struct {
		ObjectIDs []int `json:"objectIDs"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil
	}
	return result.ObjectIDs
}

func (s *Server) writeJSON(w http.ResponseWriter, payload json.RawMessage) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (s *Server) writeBadRequest(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeError maps a mediation failure onto an HTTP status.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var httpErr *client.HTTPError
	var netErr *client.NetworkError
	switch {
	case errors.Is(err, client.ErrForbidden):
		status = http.StatusBadGateway
	case errors.As(err, &httpErr):
		if httpErr.StatusCode == http.StatusNotFound {
			status = http.StatusNotFound
		} else {
			status = http.StatusBadGateway
		}
	case errors.As(err, &netErr),
		errors.Is(err, scheduler.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, scheduler.ErrClosed):
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
