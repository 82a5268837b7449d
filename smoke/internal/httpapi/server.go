// Package httpapi serves the smoke runner over HTTP: trigger a run, browse
// the history, download screenshots and scrape metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hazyhaar/sitesmoke/smoke/internal/safeurl"
	"github.com/hazyhaar/sitesmoke/smoke/result"
)

// RunFunc executes one smoke run. An empty url means the configured one.
type RunFunc func(ctx context.Context, url string, extended bool) (*result.Report, error)

// History is the read side of the run history.
type History interface {
	GetRun(ctx context.Context, id string) (*result.Report, error)
	ListRuns(ctx context.Context, limit int) ([]*result.Report, error)
	LatestRun(ctx context.Context, url string) (*result.Report, error)
}

// Server holds the API dependencies. History and Gatherer may be nil.
type Server struct {
	Run     RunFunc
	History History
	// DefaultURL is the target /api/runs/latest reports on without ?url=.
	DefaultURL string
	Gatherer   prometheus.Gatherer
	Logger     *slog.Logger
}

type runRequest struct {
	URL      string `json:"url"`
	Extended bool   `json:"extended"`
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(headToGet)
	r.Use(securityHeaders)
	r.Use(requestID(s.Logger))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if s.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/runs", func(r chi.Router) {
		r.Post("/", s.createRun)
		r.Get("/", s.listRuns)
		r.Get("/latest", s.latestRun)
		r.Get("/{id}", s.getRun)
		r.Get("/{id}/screenshot", s.getScreenshot)
	})

	return r
}

func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	body := http.MaxBytesReader(w, r.Body, 64*1024)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}

	rep, err := s.Run(r.Context(), req.URL, req.Extended)
	var nav *result.NavigationError
	switch {
	case safeurl.Rejected(err):
		writeError(w, http.StatusBadRequest, err)
	case errors.As(err, &nav):
		writeJSON(w, http.StatusBadGateway, rep)
	case rep == nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		// A failed assertion is a completed run; the report says so.
		writeJSON(w, http.StatusCreated, rep)
	}
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("history is disabled"))
		return
	}
	runs, err := s.History.ListRuns(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []*result.Report{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// latestRun returns the newest run for ?url=, the configured target by
// default.
func (s *Server) latestRun(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("history is disabled"))
		return
	}
	target := r.URL.Query().Get("url")
	if target == "" {
		target = s.DefaultURL
	}
	rep, err := s.History.LatestRun(r.Context(), target)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if rep == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("no run for %s", target))
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) *result.Report {
	if s.History == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("history is disabled"))
		return nil
	}
	id := chi.URLParam(r, "id")
	rep, err := s.History.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return nil
	}
	if rep == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("run %s not found", id))
		return nil
	}
	return rep
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if rep := s.lookup(w, r); rep != nil {
		writeJSON(w, http.StatusOK, rep)
	}
}

// getScreenshot serves the file the run wrote. Runs share one screenshot
// path, so this is the latest capture at that path.
func (s *Server) getScreenshot(w http.ResponseWriter, r *http.Request) {
	rep := s.lookup(w, r)
	if rep == nil {
		return
	}
	if rep.Screenshot == "" {
		writeError(w, http.StatusNotFound, fmt.Errorf("run %s has no screenshot", rep.ID))
		return
	}

	f, err := os.Open(rep.Screenshot)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("screenshot: %w", err))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
