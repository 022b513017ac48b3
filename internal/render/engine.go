// Package render turns the shared lighting state into LED frames at a fixed cadence.
package render

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-ledstrip/internal/led"
	"github.com/coreman2200/funtimes-ledstrip/internal/pixel"
	"github.com/coreman2200/funtimes-ledstrip/internal/state"
)

// DefaultPeriod is the tick cadence of Run.
const DefaultPeriod = 10 * time.Millisecond

const (
	rampSpan  = 150.0  // LEDs per full hue turn in Rainbow and Sleep
	rampSpeed = 6000.0 // LEDs the ramp travels per cycle
)

// DriverError wraps a failed flush. The state stays consistent; the strip
// may lag until the next successful tick.
type DriverError struct {
	Op  string
	Err error
}

func (e *DriverError) Error() string { return fmt.Sprintf("driver %s: %v", e.Op, e.Err) }
func (e *DriverError) Unwrap() error { return e.Err }

// Hooks are optional callbacks. None of them run with the state locked.
type Hooks struct {
	// Flushed receives a private copy of every frame pushed to the driver.
	Flushed func(frame []pixel.Raw)
	// DriverFailed is called for every failed flush.
	DriverFailed func(err error)
	// SleepDone fires when a Sleep cycle completes and the strip switches Off.
	SleepDone func()
}

// Stats are cumulative counters, safe to read from any goroutine.
type Stats struct {
	Ticks        uint64        `json:"ticks"`
	Frames       uint64        `json:"frames"`
	DriverErrors uint64        `json:"driver_errors"`
	LastTick     time.Duration `json:"last_tick_ns"`
}

// Engine owns the per-tick computation. It is driven by a single goroutine;
// RenderOnce must not be called concurrently with itself.
type Engine struct {
	st    *state.State
	drv   led.Driver
	hooks Hooks
	now   func() time.Time
	log   zerolog.Logger
	errs  zerolog.Logger

	// Sleep wrap detection, scoped to the engine rather than the shared state.
	prevProgress float64
	cycleStart   time.Time

	ticks, frames, driverErrors atomic.Uint64
	lastTick                    atomic.Int64
}

type Option func(*Engine)

func WithHooks(h Hooks) Option { return func(e *Engine) { e.hooks = h } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.log = l } }

func New(st *state.State, drv led.Driver, opts ...Option) *Engine {
	e := &Engine{
		st:  st,
		drv: drv,
		now: time.Now,
		log: log.With().Str("component", "render").Logger(),
	}
	for _, o := range opts {
		o(e)
	}
	e.errs = e.log.Sample(&zerolog.BurstSampler{Burst: 5, Period: 10 * time.Second})
	return e
}

// Progress is the position of elapsed within the current cycle, in [0,1).
func Progress(elapsed, interval time.Duration) float64 {
	if interval <= 0 || elapsed <= 0 {
		return 0
	}
	return float64(elapsed%interval) / float64(interval)
}

// RenderOnce computes one frame for instant now and flushes it if anything
// changed. The state lock is held for the whole computation and the flush.
func (e *Engine) RenderOnce(now time.Time) error {
	var (
		frame     []pixel.Raw
		flushErr  error
		sleepDone bool
	)

	e.st.Render(func(l *state.Lighting) {
		if !l.Start.Equal(e.cycleStart) {
			// new mode or restart: forget the previous cycle
			e.cycleStart = l.Start
			e.prevProgress = 0
		}
		p := Progress(now.Sub(l.Start), l.Interval)

		if l.Mode == state.Sleep {
			if p <= e.prevProgress && e.prevProgress > 0 {
				l.Mode = state.Off
				l.Interval = state.IntervalFor(state.Off, l.Hue)
				l.Start = now
				l.Dirty = true
				e.cycleStart = now
				e.prevProgress = 0
				sleepDone = true
			} else {
				e.prevProgress = p
			}
		}

		leds := e.drv.Leds()
		paint(leds, l, p)
		if l.Mode.Animated() {
			l.Dirty = true
		}
		if !l.Dirty {
			return
		}
		if err := e.drv.Render(); err != nil {
			// stays dirty: the next tick retries
			flushErr = &DriverError{Op: "render", Err: err}
			return
		}
		l.Dirty = false
		e.frames.Add(1)
		if e.hooks.Flushed != nil {
			frame = append([]pixel.Raw(nil), leds...)
		}
	})
	e.ticks.Add(1)

	if sleepDone {
		e.log.Info().Msg("sleep cycle complete, switching off")
		if e.hooks.SleepDone != nil {
			e.hooks.SleepDone()
		}
	}
	if frame != nil {
		e.hooks.Flushed(frame)
	}
	if flushErr != nil {
		e.driverErrors.Add(1)
		if e.hooks.DriverFailed != nil {
			e.hooks.DriverFailed(flushErr)
		}
		return flushErr
	}
	return nil
}

// paint fills leds for the active mode.
func paint(leds []pixel.Raw, l *state.Lighting, p float64) {
	switch l.Mode {
	case state.Off:
		fill(leds, pixel.Off)
	case state.Static:
		fill(leds, pixel.HSV(l.Hue, l.Sat, l.Val))
	case state.Rainbow:
		for i := range leds {
			leds[i] = pixel.HSV(rampHue(i, p), l.Sat, l.Val)
		}
	case state.Sleep:
		sat := l.Sat * (1 - p/2)
		val := l.Val * (1 - p)
		for i := range leds {
			leds[i] = pixel.HSV(rampHue(i, p), sat, val)
		}
	case state.Alarm:
		fill(leds, blink(p, pixel.Red))
	case state.ColorChase:
		fill(leds, pixel.HSV(p*360, l.Sat, l.Val))
	case state.Strobe:
		fill(leds, blink(p, pixel.White))
	case state.Identify:
		id := int(math.Floor(l.Hue))
		for i := range leds {
			if i == id {
				leds[i] = pixel.Red
			} else {
				leds[i] = pixel.White
			}
		}
	default:
		fill(leds, pixel.Off)
	}
}

// rampHue may exceed 360; pixel.HSV wraps it.
func rampHue(i int, p float64) float64 {
	return (float64(i) + rampSpeed*p) * (360 / rampSpan)
}

func blink(p float64, on pixel.Raw) pixel.Raw {
	if p >= 0.5 {
		return on
	}
	return pixel.Off
}

func fill(leds []pixel.Raw, p pixel.Raw) {
	for i := range leds {
		leds[i] = p
	}
}

// Off blanks the strip and flushes unconditionally. It does not take the state
// lock; call it only while no render loop is running.
func (e *Engine) Off() error {
	led.Fill(e.drv, pixel.Off)
	if err := e.drv.Render(); err != nil {
		return &DriverError{Op: "off", Err: err}
	}
	return nil
}

// Run ticks every period until ctx is done, then turns the strip off.
// Driver errors are logged and retried on the next tick.
func (e *Engine) Run(ctx context.Context, period time.Duration) error {
	if period <= 0 {
		period = DefaultPeriod
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	e.log.Info().Dur("period", period).Int("leds", len(e.drv.Leds())).Msg("render loop started")
	for {
		select {
		case <-ctx.Done():
			e.log.Info().Msg("render loop stopping")
			return e.Off()
		case <-ticker.C:
			e.tick()
		}
	}
}

func (e *Engine) tick() {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Msg("render tick panicked")
		}
	}()
	start := time.Now()
	if err := e.RenderOnce(e.now()); err != nil {
		e.errs.Warn().Err(err).Msg("frame not flushed")
	}
	e.lastTick.Store(int64(time.Since(start)))
}

func (e *Engine) Stats() Stats {
	return Stats{
		Ticks:        e.ticks.Load(),
		Frames:       e.frames.Load(),
		DriverErrors: e.driverErrors.Load(),
		LastTick:     time.Duration(e.lastTick.Load()),
	}
}

// LedCount is the strip length the engine renders.
func (e *Engine) LedCount() int { return len(e.drv.Leds()) }
