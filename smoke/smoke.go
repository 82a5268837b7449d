// Package smoke runs a homepage smoke test: it loads a page in a real
// browser, asserts that the navigation, brand logo and hero are rendered,
// optionally spot-checks accessibility attributes, and captures a full-page
// screenshot whether the run passed or not.
//
// The sequence is linear. The first hard failure stops the remaining checks;
// soft checks only warn. Results stream to sinks as they complete and the
// final Report can be kept in a SQLite history.
package smoke

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/hazyhaar/sitesmoke/smoke/internal/browser"
	"github.com/hazyhaar/sitesmoke/smoke/internal/check"
	"github.com/hazyhaar/sitesmoke/smoke/internal/config"
	"github.com/hazyhaar/sitesmoke/smoke/internal/excerpt"
	"github.com/hazyhaar/sitesmoke/smoke/internal/fetcher"
	"github.com/hazyhaar/sitesmoke/smoke/internal/pwdriver"
	"github.com/hazyhaar/sitesmoke/smoke/internal/safeurl"
	"github.com/hazyhaar/sitesmoke/smoke/internal/sink"
	"github.com/hazyhaar/sitesmoke/smoke/internal/store"
	"github.com/hazyhaar/sitesmoke/smoke/result"
)

// Names of the run steps that are not page checks.
const (
	StepPreflight  = "preflight"
	StepNavigate   = "navigate"
	StepScreenshot = "screenshot"
)

// Page is a loaded page as the checks see it.
type Page = check.Page

// LoadOptions bound page navigation.
type LoadOptions = check.LoadOptions

// Engine opens pages in a browser. The rod and playwright engines both
// implement it.
type Engine interface {
	Name() string
	// Open navigates to url and returns once the network is idle. A
	// failure to load is a *result.NavigationError.
	Open(ctx context.Context, url string, opts LoadOptions) (Page, error)
	Close() error
}

// NewEngine builds the engine selected by cfg.Engine.
func NewEngine(cfg *Config, logger *slog.Logger) (Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Engine {
	case "", "rod":
		return browser.NewManager(browser.Config{
			RemoteURL:        cfg.Browser.Remote,
			Headful:          cfg.Browser.Mode == "headful",
			Stealth:          cfg.Browser.Stealth,
			XvfbDisplay:      cfg.Browser.XvfbDisplay,
			ResourceBlocking: cfg.Browser.ResourceBlocking,
			UserAgent:        cfg.Browser.UserAgent,
			ViewportWidth:    cfg.Browser.ViewportWidth,
			ViewportHeight:   cfg.Browser.ViewportHeight,
			RecycleInterval:  cfg.Browser.RecycleInterval,
			Logger:           logger,
		}), nil
	case "playwright":
		return pwdriver.New(pwdriver.Config{
			Headless:       cfg.Browser.Mode != "headful",
			ViewportWidth:  cfg.Browser.ViewportWidth,
			ViewportHeight: cfg.Browser.ViewportHeight,
			UserAgent:      cfg.Browser.UserAgent,
			Install:        cfg.Browser.InstallPlaywright,
			Logger:         logger,
		}), nil
	}
	return nil, fmt.Errorf("smoke: unknown engine %q", cfg.Engine)
}

// RunOptions override the configuration for a single run.
type RunOptions struct {
	// URL replaces the configured target when set.
	URL string `json:"url,omitempty"`
	// Extended adds the accessibility checks. It can only turn them on.
	Extended bool `json:"extended,omitempty"`
}

// Runner executes smoke runs. Runs are serialised: a Runner drives one
// browser session at a time.
type Runner struct {
	cfg     *config.Config
	title   *regexp.Regexp
	engine  Engine
	fetch   *fetcher.Fetcher
	excerpt *excerpt.Builder
	sinkR   *sink.Router
	history *store.Store
	mu      sync.Mutex
	logger  *slog.Logger

	// targetCheck vets URLs that come from remote callers, including each
	// redirect hop of their preflight.
	targetCheck func(ctx context.Context, url string) error
}

// Option configures a Runner.
type Option func(*Runner)

// WithEngine sets the engine instead of building one from the configuration.
func WithEngine(e Engine) Option {
	return func(r *Runner) { r.engine = e }
}

// WithSinks adds output sinks.
func WithSinks(sinks ...Sink) Option {
	return func(r *Runner) {
		for _, s := range sinks {
			r.sinkR.Add(s)
		}
	}
}

// WithHistory saves every report to h.
func WithHistory(h *History) Option {
	return func(r *Runner) { r.history = h }
}

// New creates a Runner. The configuration must be valid.
func New(cfg *Config, logger *slog.Logger, opts ...Option) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	fopts := []fetcher.Option{fetcher.WithLogger(logger)}
	if cfg.Browser.UserAgent != "" {
		fopts = append(fopts, fetcher.WithUserAgent(cfg.Browser.UserAgent))
	}

	r := &Runner{
		cfg:     cfg,
		title:   cfg.TitleRegexp(),
		fetch:   fetcher.New(fopts...),
		excerpt: excerpt.New(0),
		sinkR:   sink.NewRouter(logger),
		logger:  logger,
		targetCheck: func(ctx context.Context, url string) error {
			return safeurl.Validate(ctx, url, nil)
		},
	}
	for _, o := range opts {
		o(r)
	}

	if r.engine == nil {
		e, err := NewEngine(cfg, logger)
		if err != nil {
			return nil, err
		}
		r.engine = e
	}
	return r, nil
}

// Config returns the runner's configuration.
func (r *Runner) Config() *Config { return r.cfg }

// History returns the run history, nil when disabled.
func (r *Runner) History() *History { return r.history }

// Close shuts down the engine and the sinks.
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.engine.Close()
	if serr := r.sinkR.Close(); serr != nil && err == nil {
		err = serr
	}
	return err
}

// Run executes one smoke run. The returned report is never nil. The error
// is a *result.NavigationError when the page could not be loaded and a
// *result.AssertionError for the first failed hard check.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*result.Report, error) {
	return r.execute(ctx, opts, false)
}

// execute runs one smoke run. guarded runs come from remote callers with a
// URL override: they always preflight so that redirects are vetted.
func (r *Runner) execute(ctx context.Context, opts RunOptions, guarded bool) (*result.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	url := opts.URL
	if url == "" {
		url = r.cfg.URL
	}
	rep := &result.Report{
		ID:        result.NewRunID(),
		URL:       url,
		Engine:    r.engine.Name(),
		Extended:  opts.Extended || r.cfg.Extended,
		StartedAt: time.Now().UTC(),
	}
	r.logger.Info("smoke: run started",
		"run_id", rep.ID, "url", url, "engine", rep.Engine, "extended", rep.Extended)

	runErr := r.run(ctx, rep, guarded)

	rep.FinishedAt = time.Now().UTC()
	rep.Passed = runErr == nil
	if runErr != nil {
		rep.Error = runErr.Error()
		r.logger.Error("smoke: run failed", "run_id", rep.ID, "url", url, "error", runErr)
	} else {
		r.logger.Info("smoke: run passed",
			"run_id", rep.ID, "url", url, "duration_ms", rep.Duration().Milliseconds())
	}

	// Delivery must not depend on the caller still waiting.
	outCtx := context.WithoutCancel(ctx)
	if err := r.sinkR.SendReport(outCtx, rep); err != nil {
		r.logger.Warn("smoke: report delivery failed", "run_id", rep.ID, "error", err)
	}
	if r.history != nil {
		if err := r.history.SaveRun(outCtx, rep); err != nil {
			r.logger.Warn("smoke: save history failed", "run_id", rep.ID, "error", err)
		}
		r.prune(outCtx, rep.StartedAt)
	}
	return rep, runErr
}

// prune applies the history retention.
func (r *Runner) prune(ctx context.Context, now time.Time) {
	keep := r.cfg.History.Retention
	if keep <= 0 {
		return
	}
	n, err := r.history.Prune(ctx, now.Add(-keep))
	if err != nil {
		r.logger.Warn("smoke: prune history failed", "error", err)
		return
	}
	if n > 0 {
		r.logger.Info("smoke: history pruned", "removed", n, "retention", keep)
	}
}

// guards reports whether a remote caller's URL override must be vetted.
func (r *Runner) guards(url string) bool {
	return url != "" && !r.cfg.Serve.AllowPrivateTargets
}

// checkRemoteTarget vets a URL override sent by a remote caller.
func (r *Runner) checkRemoteTarget(ctx context.Context, url string) error {
	if !r.guards(url) {
		return nil
	}
	return r.targetCheck(ctx, url)
}

// preflightEnabled: a remote browser may sit on another network than this
// process, so the plain GET says little about it and is skipped.
func (r *Runner) preflightEnabled(guarded bool) bool {
	if guarded {
		return true
	}
	return !r.cfg.SkipPreflight && r.cfg.Browser.Remote == ""
}

func (r *Runner) run(ctx context.Context, rep *result.Report, guarded bool) error {
	if r.preflightEnabled(guarded) {
		pctx := ctx
		if guarded {
			pctx = fetcher.WithRedirectGuard(ctx, r.targetCheck)
		}
		if err := r.preflight(pctx, rep); err != nil {
			return err
		}
	}

	start := time.Now()
	page, err := r.engine.Open(ctx, rep.URL, LoadOptions{
		Timeout:    r.cfg.Timeouts.Navigation,
		IdleWindow: r.cfg.Timeouts.IdleWindow,
	})
	if err != nil {
		var nav *result.NavigationError
		if !errors.As(err, &nav) {
			err = &result.NavigationError{URL: rep.URL, Err: err}
		}
		r.record(ctx, rep, result.Check{
			Name: StepNavigate, Severity: result.Hard, Status: result.StatusFail,
			Detail: err.Error(), DurationMS: time.Since(start).Milliseconds(),
		})
		return err
	}
	defer page.Close()

	r.record(ctx, rep, result.Check{
		Name: StepNavigate, Severity: result.Hard, Status: result.StatusPass,
		Detail:     fmt.Sprintf("loaded in %s", time.Since(start).Round(time.Millisecond)),
		DurationMS: time.Since(start).Milliseconds(),
	})

	checkErr := r.runChecks(ctx, page, rep)
	if checkErr == nil {
		r.heroExcerpt(ctx, page, rep)
	}

	shotErr := r.capture(ctx, page, rep)
	if checkErr != nil {
		if shotErr != nil {
			r.logger.Warn("smoke: screenshot of failed run not saved", "run_id", rep.ID, "error", shotErr)
		}
		return checkErr
	}
	return shotErr
}

// preflight GETs the page over plain HTTP. It only warns: whether the page
// loads is for the browser to decide. The one exception is a redirect the
// target guard rejects, which stops the run.
func (r *Runner) preflight(ctx context.Context, rep *result.Report) error {
	start := time.Now()
	c := result.Check{Name: StepPreflight, Severity: result.Soft}

	pf, err := r.fetch.Fetch(ctx, rep.URL)
	c.DurationMS = time.Since(start).Milliseconds()
	if safeurl.Rejected(err) {
		c.Severity = result.Hard
		c.Status = result.StatusFail
		c.Detail = err.Error()
		r.record(ctx, rep, c)
		return err
	}
	if err != nil {
		c.Status = result.StatusWarn
		c.Detail = fmt.Sprintf("plain HTTP GET failed: %v; continuing with the browser", err)
		r.record(ctx, rep, c)
		return nil
	}
	rep.Preflight = pf

	switch {
	case pf.StatusCode >= 400:
		c.Status = result.StatusWarn
		c.Detail = fmt.Sprintf("plain HTTP GET answered %d; continuing with the browser", pf.StatusCode)
	case pf.ScriptShell:
		c.Status = result.StatusPass
		c.Detail = fmt.Sprintf("status %d, body is a script shell; content renders client-side", pf.StatusCode)
	default:
		c.Status = result.StatusPass
		c.Detail = fmt.Sprintf("status %d", pf.StatusCode)
	}
	r.record(ctx, rep, c)
	return nil
}

// runChecks runs the page checks in order and stops at the first hard
// failure.
func (r *Runner) runChecks(ctx context.Context, p Page, rep *result.Report) error {
	cc := r.cfg.Checks
	to := r.cfg.Timeouts

	steps := []func() result.Check{
		func() result.Check { return check.Title(ctx, p, r.title) },
		func() result.Check { return check.Navigation(ctx, p, cc.Navigation) },
		func() result.Check { return check.Visible(ctx, p, check.NameLogo, cc.Logo, to.Assert, to.Poll) },
		func() result.Check { return check.Visible(ctx, p, check.NameHero, cc.Hero, to.Assert, to.Poll) },
		func() result.Check { return check.ViewportSize(ctx, p) },
	}
	if rep.Extended {
		steps = append(steps,
			func() result.Check { return check.MetaDescription(ctx, p) },
			func() result.Check { return check.Visible(ctx, p, check.NameHeading, cc.Heading, to.Assert, to.Poll) },
			func() result.Check { return check.ImageAlts(ctx, p, cc.MaxImages) },
		)
	}

	for _, step := range steps {
		c := step()
		r.record(ctx, rep, c)
		if c.Failed() {
			return &result.AssertionError{Check: c.Name, Detail: c.Detail}
		}
	}
	return nil
}

func (r *Runner) heroExcerpt(ctx context.Context, p Page, rep *result.Report) {
	html, err := p.OuterHTML(ctx, r.cfg.Checks.Hero)
	if err != nil {
		r.logger.Debug("smoke: hero html unavailable", "run_id", rep.ID, "error", err)
		return
	}
	rep.HeroExcerpt = r.excerpt.Build(html, rep.URL)
}

// capture saves a full-page screenshot. It runs even when the caller's
// context is done, bounded by the navigation timeout.
func (r *Runner) capture(ctx context.Context, p Page, rep *result.Report) error {
	shotCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.Timeouts.Navigation)
	defer cancel()

	start := time.Now()
	path := r.cfg.ScreenshotPath()
	c := result.Check{Name: StepScreenshot, Severity: result.Hard}

	err := writeScreenshot(shotCtx, p, path)
	c.DurationMS = time.Since(start).Milliseconds()
	if err != nil {
		c.Status = result.StatusFail
		c.Detail = err.Error()
		r.record(shotCtx, rep, c)
		return &result.AssertionError{Check: c.Name, Detail: c.Detail}
	}

	rep.Screenshot = path
	c.Status = result.StatusPass
	c.Detail = path
	r.record(shotCtx, rep, c)
	return nil
}

func writeScreenshot(ctx context.Context, p Page, path string) error {
	data, err := p.Screenshot(ctx, true)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("smoke: mkdir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("smoke: write screenshot: %w", err)
	}
	return nil
}

// record appends c to the report, logs it and streams it to the sinks.
func (r *Runner) record(ctx context.Context, rep *result.Report, c result.Check) {
	rep.Add(c)

	attrs := []any{"run_id", rep.ID, "check", c.Name, "status", c.Status, "duration_ms", c.DurationMS}
	if c.Selector != "" {
		attrs = append(attrs, "selector", c.Selector)
	}
	switch c.Status {
	case result.StatusFail:
		r.logger.Warn("smoke: check failed", append(attrs, "detail", c.Detail)...)
	case result.StatusWarn:
		r.logger.Warn("smoke: check warning", append(attrs, "detail", c.Detail)...)
	default:
		r.logger.Debug("smoke: check done", attrs...)
	}

	if err := r.sinkR.SendCheck(context.WithoutCancel(ctx), rep.ID, c); err != nil {
		r.logger.Warn("smoke: check delivery failed", "check", c.Name, "error", err)
	}
}
