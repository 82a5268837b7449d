package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hazyhaar/sitesmoke/kit"
	"github.com/hazyhaar/sitesmoke/smoke/internal/safeurl"
	"github.com/hazyhaar/sitesmoke/smoke/result"
)

type memHistory map[string]*result.Report

func (h memHistory) GetRun(_ context.Context, id string) (*result.Report, error) {
	return h[id], nil
}

func (h memHistory) ListRuns(_ context.Context, limit int) ([]*result.Report, error) {
	var out []*result.Report
	for _, r := range h {
		if len(out) == limit {
			break
		}
		out = append(out, r)
	}
	return out, nil
}

func (h memHistory) LatestRun(_ context.Context, url string) (*result.Report, error) {
	var latest *result.Report
	for _, r := range h {
		if r.URL == url && (latest == nil || r.StartedAt.After(latest.StartedAt)) {
			latest = r
		}
	}
	return latest, nil
}

func newTestServer(t *testing.T, s *Server) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &Server{})

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID missing")
	}
}

func TestCreateRun(t *testing.T) {
	var gotURL, gotTransport string
	var gotExtended bool
	s := &Server{Run: func(ctx context.Context, url string, extended bool) (*result.Report, error) {
		gotURL, gotExtended, gotTransport = url, extended, kit.GetTransport(ctx)
		return &result.Report{ID: "run_1", URL: url, Passed: true}, nil
	}}
	srv := newTestServer(t, s)

	resp, err := http.Post(srv.URL+"/api/runs", "application/json",
		strings.NewReader(`{"url":"https://example.com/","extended":true}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status: got %d, want 201", resp.StatusCode)
	}
	var rep result.Report
	json.NewDecoder(resp.Body).Decode(&rep)
	if rep.ID != "run_1" {
		t.Errorf("ID: got %q", rep.ID)
	}
	if gotURL != "https://example.com/" || !gotExtended || gotTransport != "http" {
		t.Errorf("got url=%q extended=%v transport=%q", gotURL, gotExtended, gotTransport)
	}
}

func TestCreateRun_EmptyBody(t *testing.T) {
	called := false
	s := &Server{Run: func(_ context.Context, url string, _ bool) (*result.Report, error) {
		called = url == ""
		return &result.Report{ID: "run_1"}, nil
	}}
	srv := newTestServer(t, s)

	resp, err := http.Post(srv.URL+"/api/runs", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated || !called {
		t.Errorf("got status %d called=%v", resp.StatusCode, called)
	}
}

func TestCreateRun_Statuses(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"assertion failure is a completed run", &result.AssertionError{Check: "logo", Detail: "not visible"}, http.StatusCreated},
		{"navigation failure", &result.NavigationError{URL: "https://x/", Err: errors.New("dns")}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Server{Run: func(context.Context, string, bool) (*result.Report, error) {
				return &result.Report{ID: "run_1", Error: tt.err.Error()}, tt.err
			}}
			srv := newTestServer(t, s)

			resp, err := http.Post(srv.URL+"/api/runs", "application/json", strings.NewReader(`{}`))
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status: got %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestCreateRun_RejectedTarget(t *testing.T) {
	s := &Server{Run: func(context.Context, string, bool) (*result.Report, error) {
		return nil, safeurl.ErrPrivate
	}}
	srv := newTestServer(t, s)

	resp, err := http.Post(srv.URL+"/api/runs", "application/json", strings.NewReader(`{"url":"http://127.0.0.1/"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}

func TestCreateRun_BadBody(t *testing.T) {
	srv := newTestServer(t, &Server{Run: func(context.Context, string, bool) (*result.Report, error) {
		t.Error("run must not start")
		return nil, nil
	}})

	resp, err := http.Post(srv.URL+"/api/runs", "application/json", strings.NewReader(`{"url":`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}

func TestRuns_History(t *testing.T) {
	h := memHistory{"run_1": {ID: "run_1", Passed: true, StartedAt: time.Now()}}
	srv := newTestServer(t, &Server{History: h})

	resp, err := http.Get(srv.URL + "/api/runs?limit=5")
	if err != nil {
		t.Fatal(err)
	}
	var runs []result.Report
	json.NewDecoder(resp.Body).Decode(&runs)
	resp.Body.Close()
	if len(runs) != 1 {
		t.Errorf("runs: got %d, want 1", len(runs))
	}

	resp, _ = http.Get(srv.URL + "/api/runs/run_1")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("get: got %d, want 200", resp.StatusCode)
	}

	resp, _ = http.Get(srv.URL + "/api/runs/run_missing")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing: got %d, want 404", resp.StatusCode)
	}
}

func TestRuns_Latest(t *testing.T) {
	now := time.Now()
	h := memHistory{
		"run_1": {ID: "run_1", URL: "https://www.cloudbees.io/", StartedAt: now.Add(-time.Hour)},
		"run_2": {ID: "run_2", URL: "https://www.cloudbees.io/", StartedAt: now},
		"run_3": {ID: "run_3", URL: "https://example.com/", StartedAt: now.Add(time.Minute)},
	}
	srv := newTestServer(t, &Server{History: h, DefaultURL: "https://www.cloudbees.io/"})

	tests := []struct {
		query  string
		status int
		id     string
	}{
		{"", http.StatusOK, "run_2"},
		{"?url=https://example.com/", http.StatusOK, "run_3"},
		{"?url=https://nowhere.example/", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		resp, err := http.Get(srv.URL + "/api/runs/latest" + tt.query)
		if err != nil {
			t.Fatal(err)
		}
		var rep result.Report
		json.NewDecoder(resp.Body).Decode(&rep)
		resp.Body.Close()
		if resp.StatusCode != tt.status {
			t.Errorf("%q: status got %d, want %d", tt.query, resp.StatusCode, tt.status)
		}
		if rep.ID != tt.id {
			t.Errorf("%q: id got %q, want %q", tt.query, rep.ID, tt.id)
		}
	}
}

func TestRuns_HistoryDisabled(t *testing.T) {
	srv := newTestServer(t, &Server{})

	resp, err := http.Get(srv.URL + "/api/runs")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", resp.StatusCode)
	}
}

func TestScreenshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shot.png")
	png := []byte("\x89PNG\r\n\x1a\nfake")
	if err := os.WriteFile(path, png, 0o644); err != nil {
		t.Fatal(err)
	}
	h := memHistory{
		"run_1": {ID: "run_1", Screenshot: path},
		"run_2": {ID: "run_2"},
	}
	srv := newTestServer(t, &Server{History: h})

	resp, err := http.Get(srv.URL + "/api/runs/run_1/screenshot")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type: got %q", ct)
	}
	if string(body) != string(png) {
		t.Errorf("body: got %q", body)
	}

	resp, _ = http.Get(srv.URL + "/api/runs/run_2/screenshot")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("no screenshot: got %d, want 404", resp.StatusCode)
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "sitesmoke_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()
	srv := newTestServer(t, &Server{Gatherer: reg})

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "sitesmoke_test_total 1") {
		t.Errorf("metrics: got %s", body)
	}
}
