// Package monitor reports calls that run longer than a bound without
// interrupting them.
package monitor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBound is the elapsed time after which a call is reported
const DefaultBound = 15 * time.Second

// Event describes a call that exceeded the bound
type Event struct {
	Name    string
	Args    any
	Elapsed time.Duration
	// Size is the length of the JSON encoded arguments
	Size int
}

// Reporter receives slow call events
type Reporter interface {
	Report(ctx context.Context, ev Event)
}

// ReporterFunc adapts a function to Reporter
type ReporterFunc func(ctx context.Context, ev Event)

// Report calls f
func (f ReporterFunc) Report(ctx context.Context, ev Event) { f(ctx, ev) }

// LogReporter writes events through zerolog
type LogReporter struct {
	logger zerolog.Logger
}

// NewLogReporter creates a reporter logging at warn level
func NewLogReporter(logger zerolog.Logger) *LogReporter {
	return &LogReporter{logger: logger.With().Str("component", "monitor").Logger()}
}

// Report logs the event
func (r *LogReporter) Report(_ context.Context, ev Event) {
	r.logger.Warn().
		Str("function", ev.Name).
		Interface("arguments", ev.Args).
		Dur("elapsed", ev.Elapsed).
		Int("size", ev.Size).
		Msg("call timeout")
}

// Watcher observes calls. It never cancels or fails them.
type Watcher struct {
	bound    time.Duration
	reporter Reporter
}

// NewWatcher creates a watcher; a non-positive bound uses DefaultBound
func NewWatcher(bound time.Duration, reporter Reporter) *Watcher {
	if bound <= 0 {
		bound = DefaultBound
	}
	return &Watcher{bound: bound, reporter: reporter}
}

// Bound returns the reporting threshold
func (w *Watcher) Bound() time.Duration {
	return w.bound
}

// Watch runs fn. If fn is still running once the watcher bound elapses an
// Event is reported; fn keeps running and its result is returned as is.
// A nil watcher just runs fn.
func Watch[T any](ctx context.Context, w *Watcher, name string, args any, fn func(context.Context) (T, error)) (T, error) {
	if w == nil || w.reporter == nil {
		return fn(ctx)
	}

	start := time.Now()
	timer := time.AfterFunc(w.bound, func() {
		size := 0
		if raw, err := json.Marshal(args); err == nil {
			size = len(raw)
		}
		w.reporter.Report(context.WithoutCancel(ctx), Event{
			Name:    name,
			Args:    args,
			Elapsed: time.Since(start),
			Size:    size,
		})
	})
	defer timer.Stop()

	return fn(ctx)
}
