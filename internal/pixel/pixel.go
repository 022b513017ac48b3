// Package pixel converts colors into the raw per-LED words the strip driver expects.
package pixel

import (
	"image/color"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Raw is one LED slot in driver order: blue, green, red, unused.
// This matches the little-endian 0x00RRGGBB word of ws281x controllers;
// check the target driver before reordering.
type Raw [4]byte

const (
	blueOffset  = 0
	greenOffset = 1
	redOffset   = 2
)

var (
	White = Raw{255, 255, 255, 0}
	Red   = Raw{0, 0, 255, 0}
	Green = Raw{0, 255, 0, 0}
	Blue  = Raw{255, 0, 0, 0}
	Off   = Raw{0, 0, 0, 0}
)

func (p Raw) R() uint8 { return p[redOffset] }
func (p Raw) G() uint8 { return p[greenOffset] }
func (p Raw) B() uint8 { return p[blueOffset] }

// Word packs the pixel as 0x00RRGGBB.
func (p Raw) Word() uint32 {
	return uint32(p.R())<<16 | uint32(p.G())<<8 | uint32(p.B())
}

// NRGBA scales the pixel by brightness (0..1) for image-based drivers.
func (p Raw) NRGBA(brightness float64) color.NRGBA {
	if brightness >= 1 {
		return color.NRGBA{R: p.R(), G: p.G(), B: p.B(), A: 255}
	}
	if brightness <= 0 {
		return color.NRGBA{A: 255}
	}
	return color.NRGBA{
		R: uint8(float64(p.R()) * brightness),
		G: uint8(float64(p.G()) * brightness),
		B: uint8(float64(p.B()) * brightness),
		A: 255,
	}
}

// Scaled dims the pixel by f (0..1), truncating each channel.
func (p Raw) Scaled(f float64) Raw {
	c := p.NRGBA(f)
	return Raw{c.B, c.G, c.R, 0}
}

// RGB builds a pixel from channels in [0,1]; out-of-range input is clamped.
func RGB(r, g, b float64) Raw {
	return pack(colorful.Color{R: r, G: g, B: b})
}

// HSV converts hue in degrees (any value, wrapped), saturation and value in
// [0,1] (clamped) to a raw pixel.
func HSV(h, s, v float64) Raw {
	h = math.Mod(math.Mod(h, 360)+360, 360)
	if math.IsNaN(h) || h >= 360 {
		h = 0
	}
	return pack(colorful.Hsv(h, clamp01(s), clamp01(v)))
}

func pack(c colorful.Color) Raw {
	r, g, b := c.Clamped().RGB255()
	return Raw{b, g, r, 0}
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return math.Min(math.Max(x, 0), 1)
}
