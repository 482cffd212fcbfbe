package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ppiankov/crimestats/internal/logging"
)

// Server is the dashboard API server
type Server struct {
	data   *Dataset
	router *chi.Mux
	server *http.Server
}

// NewServer creates a server over the given dataset
func NewServer(data *Dataset) *Server {
	s := &Server{
		data:   data,
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/options", s.handleOptions)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/trend", s.handleTrend)
		r.Get("/composition", s.handleComposition)
		r.Get("/heatmap", s.handleHeatmap)
		r.Get("/records", s.handleRecords)
	})
}

// Router returns the underlying chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", addr, "records", len(s.data.Records))
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"status": "ok", "records": len(s.data.Records)})
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.data.Options())
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	records, ok := s.filtered(w, r)
	if !ok {
		return
	}
	writeJSON(w, ComputeMetrics(records))
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	records, ok := s.filtered(w, r)
	if !ok {
		return
	}
	writeJSON(w, Trend(records))
}

func (s *Server) handleComposition(w http.ResponseWriter, r *http.Request) {
	records, ok := s.filtered(w, r)
	if !ok {
		return
	}
	writeJSON(w, Composition(records))
}

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	records, ok := s.filtered(w, r)
	if !ok {
		return
	}
	writeJSON(w, Heatmap(records))
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	records, ok := s.filtered(w, r)
	if !ok {
		return
	}
	if records == nil {
		records = []Record{}
	}
	writeJSON(w, records)
}

func (s *Server) filtered(w http.ResponseWriter, r *http.Request) ([]Record, bool) {
	f, err := ParseFilter(r)
	if err != nil {
		logging.FromContext(r.Context()).Warn("bad filter", "query", r.URL.RawQuery, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return s.data.Filter(f), true
}

// ParseFilter reads city, type, from and to query parameters. city and type
// may repeat or hold several values separated by ";" or "|".
func ParseFilter(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	f := Filter{
		Cities: splitValues(q["city"]),
		Types:  splitValues(q["type"]),
	}

	var err error
	if f.FromYear, err = parseYear(q.Get("from")); err != nil {
		return Filter{}, fmt.Errorf("from: %w", err)
	}
	if f.ToYear, err = parseYear(q.Get("to")); err != nil {
		return Filter{}, fmt.Errorf("to: %w", err)
	}
	if f.FromYear != 0 && f.ToYear != 0 && f.FromYear > f.ToYear {
		return Filter{}, fmt.Errorf("from %d is after to %d", f.FromYear, f.ToYear)
	}
	return f, nil
}

// splitValues flattens repeated and joined values. City names contain
// commas ("Chicago, Illinois"), so commas never separate values.
func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.FieldsFunc(v, func(r rune) bool { return r == ';' || r == '|' }) {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parseYear(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	year, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid year %q", s)
	}
	return year, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
