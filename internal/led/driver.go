package led

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/funtimes-ledstrip/internal/pixel"
)

// ErrInit marks a driver that could not be constructed. Startup must not
// continue into the render loop after it.
var ErrInit = errors.New("led driver init")

// Driver abstracts the strip hardware. Leds exposes a buffer of exactly N slots,
// fixed at construction; Render pushes its contents to the LEDs.
type Driver interface {
	Leds() []pixel.Raw
	Render() error
	Close() error
}

// Options are passed through from bootstrap; the render engine never reads them.
type Options struct {
	Kind       string // spi | pwm | sim | null
	Count      int
	GPIO       int
	ColorOrder string // wire order, e.g. GRB
	Brightness float64
	Power      Limiter

	SPIPort string
	SPIFreq physic.Frequency
}

// Open builds the driver named by o.Kind.
func Open(o Options) (Driver, error) {
	if o.Count <= 0 {
		return nil, fmt.Errorf("%w: invalid LED count: %d", ErrInit, o.Count)
	}
	var (
		d   Driver
		err error
	)
	switch o.Kind {
	case "spi":
		d, err = NewSPI(o)
	case "pwm":
		d, err = NewPWM(o)
	case "sim", "":
		d, err = NewConsole(o)
	case "null":
		d = NewRecorder(o.Count)
	default:
		err = fmt.Errorf("%w: unknown driver %q", ErrInit, o.Kind)
	}
	// constructors return typed nils on failure
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Fill sets every slot of d to p.
func Fill(d Driver, p pixel.Raw) {
	leds := d.Leds()
	for i := range leds {
		leds[i] = p
	}
}
