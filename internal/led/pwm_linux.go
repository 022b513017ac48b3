//go:build linux && ws2811

package led

/*
#cgo LDFLAGS: -lws2811
#include <stdlib.h>
#include <stdint.h>
#include <ws2811/ws2811.h>
*/
import "C"
import (
	"fmt"
	"strings"
	"sync"
	"unsafe"

	"github.com/coreman2200/funtimes-ledstrip/internal/pixel"
)

// PWM drives the strip through the rpi_ws281x library (DMA + PWM on GPIO).
type PWM struct {
	mu    sync.Mutex
	dev   *C.ws2811_t
	count int
	leds  []pixel.Raw

	lim        Limiter
	brightness float64
	scale      []float64
}

func NewPWM(o Options) (*PWM, error) {
	p := &PWM{
		count: o.Count,
		leds:  make([]pixel.Raw, o.Count),
		lim:   o.Power,
		scale: make([]float64, o.Count),
	}

	p.dev = (*C.ws2811_t)(C.calloc(1, C.size_t(unsafe.Sizeof(*p.dev))))
	if p.dev == nil {
		return nil, fmt.Errorf("%w: calloc ws2811_t failed", ErrInit)
	}
	p.dev.freq = 800000
	p.dev.dmanum = 10

	ch := &p.dev.channel[0]
	ch.gpionum = C.int(o.GPIO)
	ch.count = C.int(o.Count)
	ch.invert = 0
	switch strings.ToUpper(o.ColorOrder) {
	case "RGB":
		ch.strip_type = C.WS2811_STRIP_RGB
	case "BRG":
		ch.strip_type = C.WS2811_STRIP_BRG
	default:
		ch.strip_type = C.WS2811_STRIP_GRB
	}
	b := o.Brightness
	if b <= 0 || b > 1 {
		b = 1
	}
	ch.brightness = C.uint8_t(int(b*255) & 0xFF)
	p.brightness = b

	if st := C.ws2811_init(p.dev); st != C.WS2811_SUCCESS {
		C.free(unsafe.Pointer(p.dev))
		p.dev = nil
		return nil, fmt.Errorf("%w: ws2811_init on gpio %d with %d leds: %d", ErrInit, o.GPIO, o.Count, int(st))
	}
	return p, nil
}

func (p *PWM) Leds() []pixel.Raw { return p.leds }

func (p *PWM) Render() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dev == nil {
		return fmt.Errorf("pwm not initialized")
	}
	out := unsafe.Slice((*C.ws2811_led_t)(unsafe.Pointer(p.dev.channel[0].leds)), p.count)
	// the channel applies brightness itself; the limiter only adds dimming
	if p.lim.scales(p.leds, p.brightness, p.scale) {
		for i, px := range p.leds {
			out[i] = C.ws2811_led_t(px.Scaled(p.scale[i]).Word())
		}
	} else {
		for i, px := range p.leds {
			out[i] = C.ws2811_led_t(px.Word())
		}
	}
	if st := C.ws2811_render(p.dev); st != C.WS2811_SUCCESS {
		return fmt.Errorf("ws2811_render failed: %d", int(st))
	}
	return nil
}

func (p *PWM) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dev != nil {
		C.ws2811_fini(p.dev)
		C.free(unsafe.Pointer(p.dev))
		p.dev = nil
	}
	return nil
}
