//go:build !(linux && ws2811)

package led

import (
	"fmt"

	"github.com/coreman2200/funtimes-ledstrip/internal/pixel"
)

type PWM struct{}

// NewPWM needs linux and the ws2811 build tag (libws2811 installed).
func NewPWM(o Options) (*PWM, error) {
	return nil, fmt.Errorf("%w: pwm driver not compiled in (build with -tags ws2811 on linux)", ErrInit)
}

func (p *PWM) Leds() []pixel.Raw { return nil }
func (p *PWM) Render() error     { return fmt.Errorf("pwm driver not supported on this build") }
func (p *PWM) Close() error      { return nil }
