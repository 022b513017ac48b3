package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env"
	"gopkg.in/yaml.v3"
)

type LogCfg struct {
	Level  string `yaml:"level"`
	JSON   bool   `yaml:"json"`
	Colors bool   `yaml:"colors"`
}

// PowerCfg bounds the strip's draw; zero values disable each limit.
type PowerCfg struct {
	LimitAmps     float64 `yaml:"limit_amps"`
	WhiteCap      float64 `yaml:"white_cap"`
	ChanMilliAmps float64 `yaml:"chan_ma"`
	Knee          float64 `yaml:"knee,omitempty"` // fraction of the budget where dimming starts
}

type SPI struct {
	Port    string `yaml:"port"`     // periph port name, "" for the first one
	FreqKHz int    `yaml:"freq_khz"` // e.g. 2500
}

type Config struct {
	Driver     string  `yaml:"driver"` // "spi" | "pwm" | "sim" | "null"
	GPIO       int     `yaml:"gpio"`
	Count      int     `yaml:"count"`
	ColorOrder string  `yaml:"color_order"`
	Brightness float64 `yaml:"brightness"`

	Tick            Duration `yaml:"tick"`
	Addr            string   `yaml:"addr"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`

	Power PowerCfg `yaml:"power"`
	SPI   SPI      `yaml:"spi,omitempty"`
	Log   LogCfg   `yaml:"log"`
}

// Env lists the environment overrides. Unset variables leave the file value.
type Env struct {
	Driver     string        `env:"STRIPD_DRIVER"`
	Addr       string        `env:"STRIPD_ADDR"`
	Count      int           `env:"STRIPD_LED_COUNT"`
	GPIO       int           `env:"STRIPD_GPIO"`
	Brightness float64       `env:"STRIPD_BRIGHTNESS"`
	LogLevel   string        `env:"STRIPD_LOG_LEVEL"`
	Tick       time.Duration `env:"STRIPD_TICK"`
	LimitAmps  float64       `env:"STRIPD_LIMIT_AMPS"`
}

func Default() *Config {
	return &Config{
		Driver:          "sim",
		GPIO:            18,
		Count:           300,
		ColorOrder:      "GRB",
		Brightness:      1.0,
		Tick:            Duration(10 * time.Millisecond),
		Addr:            ":3030",
		ShutdownTimeout: Duration(5 * time.Second),
		SPI:             SPI{FreqKHz: 2500},
		Log:             LogCfg{Level: "info", Colors: true},
	}
}

// LoadFile overlays the keys present in path onto c. Keys the file omits keep
// their current value; keys it sets are taken as written, zero included, so
// Validate sees them. On error c is left untouched.
func (c *Config) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	next := *c
	if err := yaml.Unmarshal(b, &next); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	*c = next
	return nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// ApplyEnv overlays the STRIPD_* variables that are set. Like LoadFile it
// keeps what the environment says, so STRIPD_LED_COUNT=0 fails Validate.
func (c *Config) ApplyEnv() error {
	e := Env{
		Driver:     c.Driver,
		Addr:       c.Addr,
		Count:      c.Count,
		GPIO:       c.GPIO,
		Brightness: c.Brightness,
		LogLevel:   c.Log.Level,
		Tick:       c.Tick.D(),
		LimitAmps:  c.Power.LimitAmps,
	}
	// unset variables leave the prefilled field alone
	if err := env.Parse(&e); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	c.Driver = e.Driver
	c.Addr = e.Addr
	c.Count = e.Count
	c.GPIO = e.GPIO
	c.Brightness = e.Brightness
	c.Log.Level = e.LogLevel
	c.Tick = Duration(e.Tick)
	c.Power.LimitAmps = e.LimitAmps
	return nil
}

// Validate rejects values the daemon cannot start with.
func (c *Config) Validate() error {
	switch c.Driver {
	case "spi", "pwm", "sim", "null":
	default:
		return fmt.Errorf("unknown driver %q", c.Driver)
	}
	if c.Count <= 0 {
		return fmt.Errorf("count must be positive, got %d", c.Count)
	}
	if c.Brightness <= 0 || c.Brightness > 1 {
		return fmt.Errorf("brightness must be in (0,1], got %v", c.Brightness)
	}
	if c.Tick <= 0 {
		return fmt.Errorf("tick must be positive")
	}
	if c.Power.LimitAmps < 0 || c.Power.WhiteCap < 0 || c.Power.ChanMilliAmps < 0 {
		return fmt.Errorf("power limits must not be negative")
	}
	if c.Power.Knee < 0 || c.Power.Knee >= 1 {
		return fmt.Errorf("power knee must be in [0,1), got %v", c.Power.Knee)
	}
	return nil
}

// Duration is a time.Duration that reads and writes as "10ms" in YAML.
type Duration time.Duration

func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}
