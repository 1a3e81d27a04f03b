// Package compositor bakes timed text and image overlays into a video by
// planning an ffmpeg filter graph and running it through an engine.
package compositor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/keagan/cutline/internal/overlays"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrBusy is returned when a composition is already running
var ErrBusy = errors.New("composition already in progress")

// Engine runs commands against a private file workspace
type Engine interface {
	Load(ctx context.Context) error
	WriteFile(name string, data []byte) error
	Exec(ctx context.Context, args []string) error
	ReadFile(name string) ([]byte, error)
	OnProgress(fn func(ratio float64))
	Close() error
}

// EngineFactory creates a fresh engine per job
type EngineFactory func() Engine

// Fetcher loads media bytes for a reference
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// Status is the observable compositor state
type Status struct {
	JobID    string `json:"jobId,omitempty"`
	Loading  bool   `json:"loading"`
	Progress int    `json:"progress"`
}

// Result is a finished composition
type Result struct {
	JobID   string
	Data    []byte
	Plan    *Plan
	Elapsed time.Duration
}

// Compositor runs one composition at a time
type Compositor struct {
	logger    zerolog.Logger
	newEngine EngineFactory
	fetcher   Fetcher
	assets    *overlays.Registry
	fetchers  int

	mu     sync.Mutex
	status Status
	subs   map[int]func(Status)
	nextID int
}

// Option configures a Compositor
type Option func(*Compositor)

// WithAssets resolves image references through a registry
func WithAssets(r *overlays.Registry) Option {
	return func(c *Compositor) { c.assets = r }
}

// WithFetchConcurrency bounds parallel media fetches
func WithFetchConcurrency(n int) Option {
	return func(c *Compositor) {
		if n > 0 {
			c.fetchers = n
		}
	}
}

// New creates a compositor
func New(logger zerolog.Logger, newEngine EngineFactory, fetcher Fetcher, opts ...Option) *Compositor {
	c := &Compositor{
		logger:    logger.With().Str("component", "compositor").Logger(),
		newEngine: newEngine,
		fetcher:   fetcher,
		fetchers:  4,
		subs:      make(map[int]func(Status)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status returns the current state
func (c *Compositor) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Progress returns the current percentage, 0 when idle
func (c *Compositor) Progress() int {
	return c.Status().Progress
}

// Loading reports whether a composition is running
func (c *Compositor) Loading() bool {
	return c.Status().Loading
}

// Subscribe registers fn for status changes and returns a function
// removing it.
func (c *Compositor) Subscribe(fn func(Status)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// Compose plans and runs a composition. Any failure aborts the whole job;
// no partial output is returned. Loading and progress are reset on every
// exit.
func (c *Compositor) Compose(ctx context.Context, req Request) (*Result, error) {
	jobID := uuid.NewString()
	if !c.begin(jobID) {
		return nil, ErrBusy
	}
	defer c.finish()

	logger := c.logger.With().Str("job", jobID).Logger()
	start := time.Now()

	res, err := c.run(ctx, logger, jobID, req)
	if err != nil {
		logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("composition failed")
		return nil, err
	}

	res.Elapsed = time.Since(start)
	logger.Info().
		Int("stages", len(res.Plan.Stages)).
		Int("bytes", len(res.Data)).
		Dur("elapsed", res.Elapsed).
		Msg("composition completed")
	return res, nil
}

func (c *Compositor) run(ctx context.Context, logger zerolog.Logger, jobID string, req Request) (*Result, error) {
	if c.assets != nil {
		req.Overlays = c.resolveAssets(req.Overlays)
	}

	plan, err := BuildPlan(req)
	if err != nil {
		return nil, fmt.Errorf("failed to build plan: %w", err)
	}
	logger.Debug().Str("graph", plan.FilterGraph()).Strs("args", plan.Args()).Msg("plan ready")

	files, err := c.fetchAll(ctx, plan)
	if err != nil {
		return nil, err
	}

	engine := c.newEngine()
	if err := engine.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load engine: %w", err)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to release engine")
		}
	}()

	engine.OnProgress(func(ratio float64) {
		c.setProgress(jobID, int(math.Round(ratio*100)))
	})

	for _, f := range files {
		if err := engine.WriteFile(f.name, f.data); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", f.name, err)
		}
	}

	if err := engine.Exec(ctx, plan.Args()); err != nil {
		return nil, fmt.Errorf("engine execution failed: %w", err)
	}

	data, err := engine.ReadFile(plan.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to read output: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("engine produced empty output")
	}

	return &Result{JobID: jobID, Data: data, Plan: plan}, nil
}

type workspaceFile struct {
	name string
	data []byte
}

// fetchAll loads every input concurrently. The returned slice keeps plan
// order so writes are deterministic.
func (c *Compositor) fetchAll(ctx context.Context, plan *Plan) ([]workspaceFile, error) {
	type job struct {
		name   string
		source Source
	}
	jobs := make([]job, 0, len(plan.Inputs)+1)
	for _, in := range plan.Inputs {
		jobs = append(jobs, job{in.Name, in.Source})
	}
	if plan.Font != nil {
		jobs = append(jobs, job{FontName, *plan.Font})
	}

	files := make([]workspaceFile, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.fetchers)
	for i, j := range jobs {
		g.Go(func() error {
			data := j.source.Data
			if len(data) == 0 {
				if c.fetcher == nil {
					return fmt.Errorf("no fetcher for %s", j.source.Ref)
				}
				var err error
				data, err = c.fetcher.Fetch(gctx, j.source.Ref)
				if err != nil {
					return fmt.Errorf("failed to fetch %s: %w", j.name, err)
				}
			}
			files[i] = workspaceFile{name: j.name, data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

func (c *Compositor) resolveAssets(list []overlays.Overlay) []overlays.Overlay {
	out := make([]overlays.Overlay, len(list))
	for i, o := range list {
		if o.Kind == overlays.KindImage && o.Image != nil {
			img := *o.Image
			img.Ref = c.assets.Resolve(img.Ref)
			o.Image = &img
		}
		out[i] = o
	}
	return out
}

func (c *Compositor) begin(jobID string) bool {
	c.mu.Lock()
	if c.status.Loading {
		c.mu.Unlock()
		return false
	}
	c.status = Status{JobID: jobID, Loading: true}
	c.unlockAndNotify()
	return true
}

func (c *Compositor) finish() {
	c.mu.Lock()
	c.status = Status{}
	c.unlockAndNotify()
}

func (c *Compositor) setProgress(jobID string, pct int) {
	pct = max(0, min(100, pct))
	c.mu.Lock()
	if !c.status.Loading || c.status.JobID != jobID || c.status.Progress == pct {
		c.mu.Unlock()
		return
	}
	c.status.Progress = pct
	c.unlockAndNotify()
}

// unlockAndNotify releases the lock and fans the status out to subscribers
func (c *Compositor) unlockAndNotify() {
	status := c.status
	subs := make([]func(Status), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(status)
	}
}
