package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stripd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
driver: spi
count: 144
color_order: RGB
brightness: 0.5
tick: 20ms
addr: ":8080"
spi:
  port: /dev/spidev0.0
  freq_khz: 3200
power:
  limit_amps: 4.5
  white_cap: 2
  knee: 0.8
log:
  level: debug
`), 0644))

	c := Default()
	require.NoError(t, c.LoadFile(path))
	assert.Equal(t, "spi", c.Driver)
	assert.Equal(t, 144, c.Count)
	assert.Equal(t, "RGB", c.ColorOrder)
	assert.Equal(t, 0.5, c.Brightness)
	assert.Equal(t, 20*time.Millisecond, c.Tick.D())
	assert.Equal(t, "/dev/spidev0.0", c.SPI.Port)
	assert.Equal(t, 3200, c.SPI.FreqKHz)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, 4.5, c.Power.LimitAmps)
	assert.Equal(t, 2.0, c.Power.WhiteCap)
	assert.Equal(t, 0.8, c.Power.Knee)
	assert.Equal(t, 18, c.GPIO, "omitted keys keep the default")
	assert.Equal(t, 5*time.Second, c.ShutdownTimeout.D())
	require.NoError(t, c.Validate())
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("count: 12\ntick: soon\n"), 0644))
	c := Default()
	assert.Error(t, c.LoadFile(path))
	assert.Equal(t, Default(), c, "a failed load changes nothing")
}

func TestLoadFileMissing(t *testing.T) {
	c := Default()
	err := c.LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	c := Default()
	c.Count = 60
	require.NoError(t, Save(path, c))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "tick: 10ms")

	back := &Config{}
	require.NoError(t, back.LoadFile(path))
	assert.Equal(t, c, back)
}

func TestInvalidFileValuesReachValidate(t *testing.T) {
	cases := map[string]string{
		"negative count":      "count: -5\n",
		"zero count":          "count: 0\n",
		"negative brightness": "brightness: -0.5\n",
		"zero brightness":     "brightness: 0\n",
		"zero tick":           "tick: 0s\n",
		"negative limit":      "power:\n  limit_amps: -1\n",
		"knee at budget":      "power:\n  knee: 1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "stripd.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0644))

			c := Default()
			require.NoError(t, c.LoadFile(path))
			require.NoError(t, c.ApplyEnv())
			assert.Error(t, c.Validate())
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("STRIPD_DRIVER", "null")
	t.Setenv("STRIPD_LED_COUNT", "42")
	t.Setenv("STRIPD_TICK", "5ms")
	t.Setenv("STRIPD_LOG_LEVEL", "warn")
	t.Setenv("STRIPD_LIMIT_AMPS", "2.5")

	c := Default()
	require.NoError(t, c.ApplyEnv())
	assert.Equal(t, "null", c.Driver)
	assert.Equal(t, 42, c.Count)
	assert.Equal(t, 5*time.Millisecond, c.Tick.D())
	assert.Equal(t, "warn", c.Log.Level)
	assert.Equal(t, 2.5, c.Power.LimitAmps)
	assert.Equal(t, 18, c.GPIO)
}

func TestApplyEnvKeepsExplicitZero(t *testing.T) {
	t.Setenv("STRIPD_LED_COUNT", "0")
	c := Default()
	require.NoError(t, c.ApplyEnv())
	assert.Equal(t, 0, c.Count)
	assert.Error(t, c.Validate())
}

func TestApplyEnvBadValue(t *testing.T) {
	t.Setenv("STRIPD_LED_COUNT", "many")
	assert.Error(t, Default().ApplyEnv())
}

func TestValidate(t *testing.T) {
	require.NoError(t, Default().Validate())

	cases := map[string]func(*Config){
		"driver":     func(c *Config) { c.Driver = "laser" },
		"count":      func(c *Config) { c.Count = 0 },
		"brightness": func(c *Config) { c.Brightness = 1.5 },
		"tick":       func(c *Config) { c.Tick = 0 },
		"power":      func(c *Config) { c.Power.LimitAmps = -1 },
		"chan_ma":    func(c *Config) { c.Power.ChanMilliAmps = -20 },
		"knee":       func(c *Config) { c.Power.Knee = -0.1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
