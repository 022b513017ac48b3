// Package state holds the single lighting record shared between the control
// surface and the render loop.
package state

import (
	"math"
	"sync"
	"time"
)

// IdleInterval is the cycle length of modes that do not animate on a period.
const IdleInterval = 300000 * time.Millisecond

// Lighting is the mutable record. Only the render loop touches it directly,
// through State.Render.
type Lighting struct {
	Hue      float64
	Sat      float64
	Val      float64
	Mode     Mode
	Interval time.Duration
	Start    time.Time
	Dirty    bool
}

// Snapshot is a read-only copy handed to the control surface.
type Snapshot struct {
	Hue      float64 `json:"hue"`
	Sat      float64 `json:"sat"`
	Val      float64 `json:"val"`
	Mode     Mode    `json:"mode"`
	ModeName string  `json:"mode_name"`
}

// State guards one Lighting record with a single mutex.
type State struct {
	mu      sync.Mutex
	l       Lighting
	version uint64
	now     func() time.Time
}

type Option func(*State)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *State) { s.now = now }
}

// New returns a State with the power-on defaults.
func New(opts ...Option) *State {
	s := &State{now: time.Now}
	for _, o := range opts {
		o(s)
	}
	s.l = Lighting{
		Hue:      0,
		Sat:      1,
		Val:      1,
		Mode:     Off,
		Interval: IdleInterval,
		Start:    s.now(),
		Dirty:    true,
	}
	return s
}

// IntervalFor returns the animation cycle length of mode m at the given hue.
// ColorChase and Strobe derive their period from hue; the result is truncated
// to whole milliseconds and is never zero.
func IntervalFor(m Mode, hue float64) time.Duration {
	switch m {
	case Alarm:
		return 1000 * time.Millisecond
	case ColorChase:
		return time.Duration(500+int64(9500*(hue/360))) * time.Millisecond
	case Strobe:
		return time.Duration(50+int64(950*(hue/360))) * time.Millisecond
	default:
		return IdleInterval
	}
}

// Snapshot copies the user-visible fields.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Hue:      s.l.Hue,
		Sat:      s.l.Sat,
		Val:      s.l.Val,
		Mode:     s.l.Mode,
		ModeName: s.l.Mode.String(),
	}
}

// Version increases on every mutation. Readers compare it to detect change.
func (s *State) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// SetMode switches the active animation and restarts its cycle.
func (s *State) SetMode(m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.l.Interval = IntervalFor(m, s.l.Hue)
	s.l.Dirty = true
	s.l.Start = s.now()
	s.l.Mode = m
	s.version++
}

// SetModeByCode is SetMode for the numeric API. Unknown codes leave the state
// unchanged.
func (s *State) SetModeByCode(code uint8) (Mode, error) {
	m, err := ModeFromCode(code)
	if err != nil {
		return Off, err
	}
	s.SetMode(m)
	return m, nil
}

// SetComponent writes one HSV channel and returns the stored value.
// Hue wraps into [0,360); saturation and value clamp to [0,1].
func (s *State) SetComponent(c Component, v float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stored float64
	switch c {
	case H:
		s.l.Hue = CanonicalHue(v)
		// hue-dependent periods must follow the new hue
		if s.l.Mode == ColorChase || s.l.Mode == Strobe {
			s.l.Interval = IntervalFor(s.l.Mode, s.l.Hue)
		}
		stored = s.l.Hue
	case S:
		s.l.Sat = clamp01(v)
		stored = s.l.Sat
	case V:
		s.l.Val = clamp01(v)
		stored = s.l.Val
	}
	s.l.Dirty = true
	s.version++
	return stored
}

// SetComponentInt takes hue in whole degrees and saturation/value as a byte.
func (s *State) SetComponentInt(c Component, v int16) float64 {
	switch c {
	case H:
		return s.SetComponent(c, float64(((int(v)%360)+360)%360))
	default:
		b := min(max(int(v), 0), 255)
		return s.SetComponent(c, float64(b)/255.0)
	}
}

// Component reads one HSV channel.
func (s *State) Component(c Component) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch c {
	case H:
		return s.l.Hue
	case S:
		return s.l.Sat
	default:
		return s.l.Val
	}
}

// Render runs fn with exclusive access to the record. It exists for the render
// loop, which may only change Mode (Sleep completion), Start and Dirty.
func (s *State) Render(fn func(l *Lighting)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mode := s.l.Mode
	fn(&s.l)
	if s.l.Mode != mode {
		s.version++
	}
}

// CanonicalHue wraps any finite angle into [0,360). Non-finite input maps to 0.
func CanonicalHue(v float64) float64 {
	h := math.Mod(math.Mod(v, 360)+360, 360)
	if math.IsNaN(h) {
		return 0
	}
	return h
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(math.Max(v, 0), 1)
}
