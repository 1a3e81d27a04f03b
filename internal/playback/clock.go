// Package playback advances the session's current time at a fixed rate
// while playing.
package playback

import (
	"context"
	"sync"
	"time"

	"github.com/keagan/cutline/internal/session"
	"github.com/rs/zerolog"
)

// DefaultRate is the nominal tick rate in Hz
const DefaultRate = 60

// MaxEndFunc reports the furthest end of the timeline, in timeline pixels
type MaxEndFunc func() float64

// Stopper halts media playback on the canvas
type Stopper interface {
	Stop()
}

// Clock is a cooperative ticker. While running it advances the session
// position by pixelsPerSecond/rate every 1/rate seconds and stops with a
// reset to zero once the end of the timeline is reached. While stopped no
// goroutine exists.
type Clock struct {
	logger          zerolog.Logger
	state           *session.State
	maxEnd          MaxEndFunc
	pixelsPerSecond float64
	rate            int

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	onTick  func()
}

// New creates a stopped clock
func New(logger zerolog.Logger, state *session.State, pixelsPerSecond float64, rate int, maxEnd MaxEndFunc) *Clock {
	if rate <= 0 {
		rate = DefaultRate
	}
	return &Clock{
		logger:          logger.With().Str("component", "playback").Logger(),
		state:           state,
		maxEnd:          maxEnd,
		pixelsPerSecond: pixelsPerSecond,
		rate:            rate,
	}
}

// OnTick registers a callback run after every tick, typically a projection pass
func (c *Clock) OnTick(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTick = fn
}

// Step returns the per-tick advance in timeline pixels
func (c *Clock) Step() float64 {
	return c.pixelsPerSecond / float64(c.rate)
}

// Period returns the tick interval
func (c *Clock) Period() time.Duration {
	return time.Second / time.Duration(c.rate)
}

// Running reports whether the tick loop exists
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Start marks the session as playing and launches the tick loop. Calling
// Start while running does nothing.
func (c *Clock) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}

	c.state.SetPlaying(true)
	loopCtx, cancel := context.WithCancel(ctx)
	c.running = true
	c.cancel = cancel
	c.done = make(chan struct{})

	c.logger.Debug().Float64("step", c.Step()).Dur("period", c.Period()).Msg("playback started")
	go c.loop(loopCtx, c.done)
}

// Stop tears down the tick loop and clears the playing flag. Calling Stop
// while stopped does nothing beyond clearing the flag.
func (c *Clock) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.running = false
	c.cancel = nil
	c.done = nil
	c.mu.Unlock()

	c.state.SetPlaying(false)
	if cancel != nil {
		cancel()
		<-done
		c.logger.Debug().Float64("position", c.state.CurrentTime()).Msg("playback stopped")
	}
}

// Toggle flips between playing and paused. Pausing away from zero also
// stops canvas media playback.
func (c *Clock) Toggle(ctx context.Context, media Stopper) {
	if c.Running() {
		c.Stop()
	} else {
		c.Start(ctx)
	}
	if media != nil && c.state.CurrentTime() > 0 {
		media.Stop()
	}
}

// Tick advances the position by one step. It returns false once the end
// of the timeline was reached and playback stopped.
func (c *Clock) Tick() bool {
	wrapped := c.state.Advance(c.Step(), c.maxEnd())

	c.mu.Lock()
	onTick := c.onTick
	c.mu.Unlock()
	if onTick != nil {
		onTick()
	}
	return !wrapped
}

func (c *Clock) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.Period())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.Tick() {
				c.mu.Lock()
				if c.done == done {
					c.running = false
					c.cancel = nil
					c.done = nil
				}
				c.mu.Unlock()
				c.logger.Debug().Msg("playback reached end of timeline")
				return
			}
		}
	}
}
