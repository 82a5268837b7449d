// Package result defines the outcome types of a smoke run: per-check results,
// the run report, and the typed errors that abort a run. It has no browser
// dependency so sinks, the history store and remote consumers can share it.
package result

import "time"

// Severity tells whether a check can fail the run.
type Severity string

const (
	Hard Severity = "hard" // failure fails the run
	Soft Severity = "soft" // failure is downgraded to a warning
)

// Status is the outcome of a single check.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusWarn Status = "warn" // soft check did not hold
	StatusSkip Status = "skip"
)

// Check is the result of one assertion against the page.
type Check struct {
	Name       string   `json:"name"`
	Severity   Severity `json:"severity"`
	Status     Status   `json:"status"`
	Selector   string   `json:"selector,omitempty"` // selector that matched, or was tried
	Detail     string   `json:"detail,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

// Failed reports whether the check fails the run.
func (c Check) Failed() bool {
	return c.Status == StatusFail && c.Severity == Hard
}

// Preflight summarises the plain HTTP fetch made before the browser starts.
type Preflight struct {
	StatusCode     int    `json:"status_code"`
	Title          string `json:"title,omitempty"`
	HasDescription bool   `json:"has_description"`
	ScriptShell    bool   `json:"script_shell"` // body looks like an empty JS app shell
}

// Report is the outcome of a whole smoke run.
type Report struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	Engine      string     `json:"engine"`
	Extended    bool       `json:"extended"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  time.Time  `json:"finished_at"`
	Passed      bool       `json:"passed"`
	Checks      []Check    `json:"checks"`
	Screenshot  string     `json:"screenshot,omitempty"`
	HeroExcerpt string     `json:"hero_excerpt,omitempty"`
	Preflight   *Preflight `json:"preflight,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Add appends a check result.
func (r *Report) Add(c Check) {
	r.Checks = append(r.Checks, c)
}

// Check returns the named check result, if it ran.
func (r *Report) Check(name string) (Check, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return Check{}, false
}

// Warnings returns the soft checks that did not hold.
func (r *Report) Warnings() []Check {
	var out []Check
	for _, c := range r.Checks {
		if c.Status == StatusWarn {
			out = append(out, c)
		}
	}
	return out
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
