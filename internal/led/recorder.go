package led

import (
	"errors"
	"sync"

	"github.com/coreman2200/funtimes-ledstrip/internal/pixel"
)

// ErrInjected is what a Recorder returns from Render when told to fail.
var ErrInjected = errors.New("injected render failure")

// Recorder keeps the last rendered frame in memory. It backs the "null"
// driver and the tests.
type Recorder struct {
	mu       sync.Mutex
	leds     []pixel.Raw
	last     []pixel.Raw
	renders  int
	failNext int
	closed   bool
}

func NewRecorder(count int) *Recorder {
	return &Recorder{leds: make([]pixel.Raw, count)}
}

func (r *Recorder) Leds() []pixel.Raw { return r.leds }

func (r *Recorder) Render() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext > 0 {
		r.failNext--
		return ErrInjected
	}
	if r.last == nil {
		r.last = make([]pixel.Raw, len(r.leds))
	}
	copy(r.last, r.leds)
	r.renders++
	return nil
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// FailNext makes the next n calls to Render fail.
func (r *Recorder) FailNext(n int) {
	r.mu.Lock()
	r.failNext = n
	r.mu.Unlock()
}

// Renders counts successful renders.
func (r *Recorder) Renders() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.renders
}

// Last returns a copy of the last successfully rendered frame.
func (r *Recorder) Last() []pixel.Raw {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]pixel.Raw(nil), r.last...)
}

func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
