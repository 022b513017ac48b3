package state

import (
	"errors"
	"fmt"
	"strings"
)

// Mode is one of the fixed strip animations. The numeric values are part of the
// control API and must not be renumbered.
type Mode uint8

const (
	Off Mode = iota
	Static
	Rainbow
	Sleep
	Alarm
	ColorChase
	Strobe
	Identify

	modeCount
)

// ErrInvalidModeCode is returned when a numeric code names no Mode.
var ErrInvalidModeCode = errors.New("invalid mode code")

var modeNames = [modeCount]string{
	Off:        "OFF",
	Static:     "STATIC",
	Rainbow:    "RAINBOW",
	Sleep:      "SLEEP",
	Alarm:      "ALARM",
	ColorChase: "COLORCHASE",
	Strobe:     "STROBE",
	Identify:   "IDENTIFY",
}

func (m Mode) String() string {
	if m < modeCount {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// Valid reports whether m is one of the declared modes.
func (m Mode) Valid() bool { return m < modeCount }

// Animated reports whether the mode redraws every tick.
func (m Mode) Animated() bool {
	switch m {
	case Rainbow, Sleep, Alarm, ColorChase, Strobe:
		return true
	}
	return false
}

// ModeFromCode maps a numeric code to its Mode.
func ModeFromCode(code uint8) (Mode, error) {
	m := Mode(code)
	if !m.Valid() {
		return Off, fmt.Errorf("%w: %d", ErrInvalidModeCode, code)
	}
	return m, nil
}

// ParseMode resolves a mode name, ignoring case.
func ParseMode(name string) (Mode, bool) {
	for i, n := range modeNames {
		if strings.EqualFold(n, name) {
			return Mode(i), true
		}
	}
	return Off, false
}

// Modes lists every mode in code order.
func Modes() []Mode {
	out := make([]Mode, 0, modeCount)
	for m := Off; m < modeCount; m++ {
		out = append(out, m)
	}
	return out
}

// ModeCodes maps each mode name to its numeric code, for discovery.
func ModeCodes() map[string]uint8 {
	out := make(map[string]uint8, modeCount)
	for m := Off; m < modeCount; m++ {
		out[m.String()] = uint8(m)
	}
	return out
}

// Component selects one HSV channel of the lighting state.
type Component uint8

const (
	H Component = iota
	S
	V
)

func (c Component) String() string {
	switch c {
	case H:
		return "HUE"
	case S:
		return "SAT"
	case V:
		return "VAL"
	}
	return fmt.Sprintf("Component(%d)", uint8(c))
}

// ParseComponent accepts h/s/v or hue/sat/val in any case.
func ParseComponent(name string) (Component, bool) {
	switch strings.ToLower(name) {
	case "h", "hue":
		return H, true
	case "s", "sat":
		return S, true
	case "v", "val":
		return V, true
	}
	return H, false
}
