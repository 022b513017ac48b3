package led

import (
	"math"

	"github.com/coreman2200/funtimes-ledstrip/internal/pixel"
)

// Limiter keeps a frame inside a power envelope before it reaches the wire.
// The zero value lets every frame through untouched.
//
//   - WhiteCap caps r+g+b of a single LED, in linear units (3.0 = full white,
//     0 or >= 3 disables).
//   - LimitAmps is the supply budget for the whole strip (0 disables).
//   - ChanMilliAmps is the draw of one channel at full scale; WS2812 is ~20.
//   - Knee is the fraction of the budget where soft limiting begins; the
//     limited draw approaches the budget asymptotically.
type Limiter struct {
	WhiteCap      float64
	LimitAmps     float64
	ChanMilliAmps float64
	Knee          float64
}

const (
	defaultChanMilliAmps = 20.0
	defaultKnee          = 0.9
)

func (l Limiter) enabled() bool {
	return (l.WhiteCap > 0 && l.WhiteCap < 3) || l.LimitAmps > 0
}

// EstimateMilliAmps is the draw of leds at the given brightness.
func (l Limiter) EstimateMilliAmps(leds []pixel.Raw, brightness float64) float64 {
	var total float64
	for _, p := range leds {
		total += load(p, brightness)
	}
	return total * l.chanMilliAmps()
}

func (l Limiter) chanMilliAmps() float64 {
	if l.ChanMilliAmps > 0 {
		return l.ChanMilliAmps
	}
	return defaultChanMilliAmps
}

// load is r+g+b of one LED in linear units after brightness.
func load(p pixel.Raw, brightness float64) float64 {
	return (float64(p.R()) + float64(p.G()) + float64(p.B())) / 255 * brightness
}

// scales writes into out the factor each LED is dimmed by, on top of
// brightness, and reports whether any LED is dimmed at all.
func (l Limiter) scales(leds []pixel.Raw, brightness float64, out []float64) bool {
	for i := range out {
		out[i] = 1
	}
	if !l.enabled() {
		return false
	}

	// per-LED white cap
	limited := false
	var total float64
	for i, p := range leds {
		s := load(p, brightness)
		if l.WhiteCap > 0 && l.WhiteCap < 3 && s > l.WhiteCap {
			out[i] = l.WhiteCap / s
			s = l.WhiteCap
			limited = true
		}
		total += s
	}

	// whole-strip budget with a soft knee
	budget := l.LimitAmps * 1000
	total *= l.chanMilliAmps()
	if budget <= 0 || total <= 0 {
		return limited
	}
	knee := l.Knee
	if knee <= 0 || knee >= 1 {
		knee = defaultKnee
	}
	kneeMA := knee * budget
	if total <= kneeMA {
		return limited
	}
	// past the knee the draw bends toward the budget without reaching it
	span := budget - kneeMA
	target := kneeMA + span*(1-math.Exp(-(total-kneeMA)/span))
	g := target / total
	for i := range out {
		out[i] *= g
	}
	return true
}
