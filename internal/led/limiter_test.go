package led

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/funtimes-ledstrip/internal/pixel"
)

func whiteStrip(n int) []pixel.Raw {
	leds := make([]pixel.Raw, n)
	for i := range leds {
		leds[i] = pixel.White
	}
	return leds
}

func TestLimiterZeroValuePassesThrough(t *testing.T) {
	leds := whiteStrip(4)
	out := make([]float64, 4)
	assert.False(t, Limiter{}.scales(leds, 1, out))
	assert.Equal(t, []float64{1, 1, 1, 1}, out)
}

func TestLimiterBudgetClamp(t *testing.T) {
	// 10 white LEDs at 60mA each: 600mA against a 300mA budget
	leds := whiteStrip(10)
	lim := Limiter{LimitAmps: 0.3, ChanMilliAmps: 20}
	assert.InDelta(t, 600, lim.EstimateMilliAmps(leds, 1), 1e-9)

	out := make([]float64, len(leds))
	require.True(t, lim.scales(leds, 1, out))
	var total float64
	for i, p := range leds {
		total += load(p, out[i]) * 20
	}
	assert.LessOrEqual(t, total, 300.0)
	assert.InDelta(t, 0.5, out[0], 1e-3)
}

func TestLimiterSoftKnee(t *testing.T) {
	// 570mA against 600mA: past the 0.9 knee, under the budget
	leds := whiteStrip(10)
	leds[0] = pixel.RGB(1, 0.5, 0)
	lim := Limiter{LimitAmps: 0.6}
	total := lim.EstimateMilliAmps(leds, 1)
	require.Greater(t, total, 540.0)
	require.Less(t, total, 600.0)

	out := make([]float64, len(leds))
	require.True(t, lim.scales(leds, 1, out))
	assert.Less(t, out[1], 1.0)
	assert.Greater(t, out[1], 540/total, "never below the knee")
}

func TestLimiterKneeSetting(t *testing.T) {
	leds := whiteStrip(10)
	leds[0] = pixel.RGB(1, 0.5, 0)
	soft := make([]float64, len(leds))
	early := make([]float64, len(leds))
	require.True(t, Limiter{LimitAmps: 0.6}.scales(leds, 1, soft))
	require.True(t, Limiter{LimitAmps: 0.6, Knee: 0.5}.scales(leds, 1, early))
	assert.Less(t, early[1], soft[1], "a lower knee starts dimming sooner")
}

func TestLimiterUnderKneeUntouched(t *testing.T) {
	leds := whiteStrip(2)
	out := make([]float64, 2)
	assert.False(t, Limiter{LimitAmps: 1}.scales(leds, 1, out))
	assert.Equal(t, []float64{1, 1}, out)
}

func TestLimiterWhiteCap(t *testing.T) {
	leds := []pixel.Raw{pixel.White, pixel.Red}
	out := make([]float64, 2)
	require.True(t, Limiter{WhiteCap: 1.5}.scales(leds, 1, out))
	assert.InDelta(t, 0.5, out[0], 1e-9)
	assert.Equal(t, 1.0, out[1], "single channel red is under the cap")

	// brightness already keeps white under the cap
	assert.False(t, Limiter{WhiteCap: 1.5}.scales(leds, 0.5, out))
}

func TestStripAppliesLimiter(t *testing.T) {
	full, fullBuf := newRecordedStrip(t, 3, "GRB")
	Fill(full, pixel.White)
	require.NoError(t, full.Render())

	capped, cappedBuf := newRecordedStrip(t, 3, "GRB")
	capped.lim = Limiter{WhiteCap: 1.5}
	Fill(capped, pixel.White)
	require.NoError(t, capped.Render())

	assert.Equal(t, fullBuf.Len(), cappedBuf.Len())
	assert.False(t, bytes.Equal(fullBuf.Bytes(), cappedBuf.Bytes()))

	// the cap equals half brightness for full white
	half, halfBuf := newRecordedStrip(t, 3, "GRB")
	half.brightness = 0.5
	Fill(half, pixel.White)
	require.NoError(t, half.Render())
	assert.Equal(t, halfBuf.Bytes(), cappedBuf.Bytes())
}
