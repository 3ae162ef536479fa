// Package api exposes the read and trigger surface over HTTP: stored
// records, search, stats, export, and on-demand harvest runs.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/webharvest/harvester/internal/engine"
	"github.com/webharvest/harvester/internal/export"
	"github.com/webharvest/harvester/internal/store"
)

// defaultListLimit bounds /api/data responses when no limit is given.
const defaultListLimit = 100

// Server routes API requests to the engine.
type Server struct {
	engine *engine.Engine
	router chi.Router
}

// NewServer creates the HTTP surface over an engine.
func NewServer(e *engine.Engine) *Server {
	s := &Server{engine: e}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/data", s.handleData)
		r.Get("/search", s.handleSearch)
		r.Get("/sources", s.handleSources)
		r.Get("/stats", s.handleStats)
		r.Get("/export/json", s.handleExportJSON)
		r.Get("/export/csv", s.handleExportCSV)
		r.Post("/scrape", s.handleScrape)
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe runs the server until the context is cancelled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	filter := store.Filter{
		Source:   r.URL.Query().Get("source"),
		Category: r.URL.Query().Get("category"),
		Limit:    queryInt(r, "limit", defaultListLimit),
		Offset:   queryInt(r, "offset", 0),
	}

	records, err := s.engine.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(records),
		"records": records,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing query parameter q"))
		return
	}

	records, err := s.engine.List(r.Context(), store.Filter{
		Query: q,
		Limit: queryInt(r, "limit", defaultListLimit),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   q,
		"count":   len(records),
		"records": records,
	})
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	stored, err := s.engine.StoredSources(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"configured": s.engine.Sources(),
		"stored":     stored,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"store": stats,
		"delay": s.engine.DelayStats(),
	})
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var (
		report any
		err    error
	)
	if name := r.URL.Query().Get("source"); name != "" {
		report, err = s.engine.RunSource(r.Context(), name)
		if errors.Is(err, engine.ErrUnknownSource) {
			writeError(w, http.StatusNotFound, err)
			return
		}
	} else {
		report, err = s.engine.RunOnce(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	records, err := s.engine.List(r.Context(), store.Filter{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="harvest.json"`)
	if err := export.JSON(w, records); err != nil {
		slog.Error("json export failed", "error", err)
	}
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	records, err := s.engine.List(r.Context(), store.Filter{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="harvest.csv"`)
	if err := export.CSV(w, records); err != nil {
		slog.Error("csv export failed", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
