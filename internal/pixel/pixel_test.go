package pixel_test

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/coreman2200/funtimes-ledstrip/internal/pixel"
)

var TestHSVIsExpectedColor = []struct {
	H, S, V float64
	Expect  Raw
}{
	{0, 1, 1, Red},
	{120, 1, 1, Green},
	{240, 1, 1, Blue},
	{360, 1, 1, Red},
	{-120, 1, 1, Blue},
	{60, 1, 1, Raw{0, 255, 255, 0}},
	{180, 1, 1, Raw{255, 255, 0, 0}},
	{300, 1, 1, Raw{255, 0, 255, 0}},
	{30, 1, 1, Raw{0, 128, 255, 0}},
	{0, 1, 0.5, Raw{0, 0, 128, 0}},
	{0, 2, 7, Red},
}

func TestHSV(t *testing.T) {
	for k, v := range TestHSVIsExpectedColor {
		t.Run("Given HSV"+strconv.Itoa(k), func(t *testing.T) {
			assert.Equal(t, v.Expect, HSV(v.H, v.S, v.V))
		})
	}
}

func TestHSVGrayWhenUnsaturated(t *testing.T) {
	for _, h := range []float64{0, 45, 200, 359.9, -33} {
		for _, v := range []float64{0, 0.25, 0.5, 1} {
			p := HSV(h, 0, v)
			assert.Equal(t, p.R(), p.G())
			assert.Equal(t, p.G(), p.B())
			assert.Equal(t, uint8(v*255+0.5), p.R())
			assert.Equal(t, uint8(0), p[3])
		}
	}
	assert.Equal(t, White, HSV(77, 0, 1))
}

func TestHSVBlackWhenNoValue(t *testing.T) {
	for _, h := range []float64{0, 90, 181, 720, -5} {
		for _, s := range []float64{0, 0.3, 1} {
			assert.Equal(t, Off, HSV(h, s, 0))
		}
	}
}

func TestHSVWrapsHue(t *testing.T) {
	for _, h := range []float64{13, 97.5, 250} {
		assert.Equal(t, HSV(h, 0.8, 0.6), HSV(h+360*5, 0.8, 0.6))
		assert.Equal(t, HSV(h, 0.8, 0.6), HSV(h-360*3, 0.8, 0.6))
	}
}

func TestNamedColorsAreSingleChannel(t *testing.T) {
	assert.Equal(t, [3]uint8{255, 0, 0}, [3]uint8{Red.R(), Red.G(), Red.B()})
	assert.Equal(t, [3]uint8{0, 255, 0}, [3]uint8{Green.R(), Green.G(), Green.B()})
	assert.Equal(t, [3]uint8{0, 0, 255}, [3]uint8{Blue.R(), Blue.G(), Blue.B()})
	assert.Equal(t, uint32(0xFF0000), Red.Word())
	assert.Equal(t, uint32(0xFFFFFF), White.Word())
	assert.Equal(t, uint32(0), Off.Word())
}

func TestRGBClamps(t *testing.T) {
	assert.Equal(t, Raw{0, 255, 255, 0}, RGB(2, 1, -1))
	assert.Equal(t, Raw{64, 128, 191, 0}, RGB(0.75, 0.5, 0.25))
}

func TestNRGBABrightness(t *testing.T) {
	c := White.NRGBA(0.5)
	assert.Equal(t, uint8(127), c.R)
	assert.Equal(t, uint8(255), c.A)
	assert.Equal(t, uint8(255), Red.NRGBA(1).R)
	assert.Equal(t, uint8(0), Red.NRGBA(0).R)
}

func TestScaled(t *testing.T) {
	assert.Equal(t, Raw{127, 127, 127, 0}, White.Scaled(0.5))
	assert.Equal(t, Red, Red.Scaled(1))
	assert.Equal(t, Off, Blue.Scaled(0))
}
