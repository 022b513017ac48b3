package led

import (
	"fmt"
	"image"
	"strings"
	"sync"

	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/extra/devices/screen"
	"periph.io/x/host/v3"

	"github.com/coreman2200/funtimes-ledstrip/internal/pixel"
)

// DefaultSPIFreq suits WS2812 strips driven through nrzled.
const DefaultSPIFreq = 2500 * physic.KiloHertz

// nrzled always emits green, red, blue.
const drawerOrder = "GRB"

// Strip renders the LED buffer as a 1xN image onto a periph display.Drawer:
// an nrzled SPI device on hardware, a terminal screen in simulation.
type Strip struct {
	mu         sync.Mutex
	drawer     display.Drawer
	port       spi.PortCloser
	leds       []pixel.Raw
	img        *image.NRGBA
	brightness float64
	remap      [3]int
	lim        Limiter
	scale      []float64
}

// NewSPI opens an SPI port and drives a WS281x strip through nrzled.
func NewSPI(o Options) (*Strip, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%w: host init: %v", ErrInit, err)
	}
	p, err := spireg.Open(o.SPIPort)
	if err != nil {
		return nil, fmt.Errorf("%w: open spi port %q: %v", ErrInit, o.SPIPort, err)
	}
	freq := o.SPIFreq
	if freq == 0 {
		freq = DefaultSPIFreq
	}
	d, err := nrzled.NewSPI(p, &nrzled.Opts{
		NumPixels: o.Count,
		Channels:  3,
		Freq:      freq,
	})
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("%w: nrzled on %s with %d leds: %v", ErrInit, p, o.Count, err)
	}
	_ = d.Halt()
	s := NewDrawer(d, o)
	s.port = p
	return s, nil
}

// NewConsole prints frames to the terminal instead of driving hardware.
func NewConsole(o Options) (*Strip, error) {
	o.ColorOrder = drawerOrder
	return NewDrawer(screen.New(o.Count), o), nil
}

// NewDrawer wraps an already opened drawer.
func NewDrawer(d display.Drawer, o Options) *Strip {
	b := o.Brightness
	if b <= 0 || b > 1 {
		b = 1
	}
	return &Strip{
		drawer:     d,
		leds:       make([]pixel.Raw, o.Count),
		img:        image.NewNRGBA(image.Rect(0, 0, o.Count, 1)),
		brightness: b,
		remap:      channelRemap(o.ColorOrder),
		lim:        o.Power,
		scale:      make([]float64, o.Count),
	}
}

func (s *Strip) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drawer == nil {
		return "strip{closed}"
	}
	return s.drawer.String()
}

func (s *Strip) Leds() []pixel.Raw { return s.leds }

func (s *Strip) Render() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drawer == nil {
		return fmt.Errorf("strip closed")
	}
	s.lim.scales(s.leds, s.brightness, s.scale)
	for x, p := range s.leds {
		c := p.NRGBA(s.brightness * s.scale[x])
		ch := [3]uint8{c.R, c.G, c.B}
		c.R, c.G, c.B = ch[s.remap[0]], ch[s.remap[1]], ch[s.remap[2]]
		s.img.SetNRGBA(x, 0, c)
	}
	if err := s.drawer.Draw(s.drawer.Bounds(), s.img, image.Point{}); err != nil {
		return fmt.Errorf("draw %s: %w", s.drawer, err)
	}
	return nil
}

func (s *Strip) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drawer == nil {
		return nil
	}
	err := s.drawer.Halt()
	s.drawer = nil
	if s.port != nil {
		if cerr := s.port.Close(); err == nil {
			err = cerr
		}
		s.port = nil
	}
	return err
}

// channelRemap returns, for each image channel R,G,B, the source channel that
// lands on the wire where the strip expects it. The drawer sends image
// channels in drawerOrder; the strip reads them in order.
func channelRemap(order string) [3]int {
	identity := [3]int{0, 1, 2}
	order = strings.ToUpper(order)
	if len(order) != 3 || order == drawerOrder {
		return identity
	}
	idx := func(c byte) int { return strings.IndexByte("RGB", c) }
	var out [3]int
	for pos := 0; pos < 3; pos++ {
		img, src := idx(drawerOrder[pos]), idx(order[pos])
		if src < 0 {
			return identity
		}
		out[img] = src
	}
	return out
}
