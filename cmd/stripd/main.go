package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/funtimes-ledstrip/internal/api"
	"github.com/coreman2200/funtimes-ledstrip/internal/config"
	diag "github.com/coreman2200/funtimes-ledstrip/internal/diagnostics"
	"github.com/coreman2200/funtimes-ledstrip/internal/led"
	"github.com/coreman2200/funtimes-ledstrip/internal/pixel"
	"github.com/coreman2200/funtimes-ledstrip/internal/render"
	"github.com/coreman2200/funtimes-ledstrip/internal/state"
)

var version = "dev"

func main() {
	// ---- Flags (remain usable; config.yaml and STRIPD_* override them) ----
	def := config.Default()
	var (
		driver     = flag.String("driver", def.Driver, "driver: spi | pwm | sim | null")
		count      = flag.Int("count", def.Count, "number of LEDs on the strip")
		gpio       = flag.Int("gpio", def.GPIO, "PWM data pin (BCM number) for rpi_ws281x")
		colorOrder = flag.String("color", def.ColorOrder, "LED color order (e.g. GRB, RGB)")
		brightness = flag.Float64("brightness", def.Brightness, "brightness ceiling 0..1")
		tick       = flag.Duration("tick", def.Tick.D(), "render tick period")
		addr       = flag.String("addr", def.Addr, "HTTP listen address")
		limitAmps  = flag.Float64("limit-amps", 0, "strip current budget in amps (0 = unlimited)")
		spiPort    = flag.String("spi-port", "", "SPI port name (default: first available)")
		logLevel   = flag.String("log-level", def.Log.Level, "debug | info | warn | error")
		logJSON    = flag.Bool("log-json", false, "emit JSON logs")
		noColor    = flag.Bool("no-color", false, "disable colored console logs")
		configPath = flag.String("config", "config.yaml", "path to config.yaml")
		saveConfig = flag.Bool("save-config", false, "write the effective config to -config and exit")
	)
	flag.Parse()

	// flag defaults come from config.Default, so every flag is taken as given
	cfg := config.Default()
	cfg.Driver = *driver
	cfg.Count = *count
	cfg.GPIO = *gpio
	cfg.ColorOrder = *colorOrder
	cfg.Brightness = *brightness
	cfg.Tick = config.Duration(*tick)
	cfg.Addr = *addr
	cfg.Power.LimitAmps = *limitAmps
	cfg.SPI.Port = *spiPort
	cfg.Log = config.LogCfg{Level: *logLevel, JSON: *logJSON, Colors: !*noColor}

	// ---- Load config.yaml (optional) ----
	fileErr := cfg.LoadFile(*configPath)
	envErr := cfg.ApplyEnv()

	setupLogging(cfg.Log.Level, cfg.Log.JSON, cfg.Log.Colors)
	if fileErr != nil && !errors.Is(fileErr, os.ErrNotExist) {
		log.Warn().Err(fileErr).Str("path", *configPath).Msg("config load failed; proceeding with flags")
	}
	if envErr != nil {
		log.Fatal().Err(envErr).Msg("invalid STRIPD_* environment")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if *saveConfig {
		if err := config.Save(*configPath, cfg); err != nil {
			log.Fatal().Err(err).Str("path", *configPath).Msg("save config")
		}
		log.Info().Str("path", *configPath).Msg("config written")
		return
	}

	// ---- Driver ----
	drv, err := led.Open(led.Options{
		Kind:       cfg.Driver,
		Count:      cfg.Count,
		GPIO:       cfg.GPIO,
		ColorOrder: cfg.ColorOrder,
		Brightness: cfg.Brightness,
		SPIPort:    cfg.SPI.Port,
		SPIFreq:    physic.Frequency(cfg.SPI.FreqKHz) * physic.KiloHertz,
		Power: led.Limiter{
			WhiteCap:      cfg.Power.WhiteCap,
			LimitAmps:     cfg.Power.LimitAmps,
			ChanMilliAmps: cfg.Power.ChanMilliAmps,
			Knee:          cfg.Power.Knee,
		},
	})
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Driver).Msg("LED driver init failed")
	}

	// ---- State, hub, engine ----
	st := state.New()
	hub := api.NewHub(api.DefaultFrameGap)
	eng := render.New(st, drv, render.WithHooks(render.Hooks{
		Flushed:      func(frame []pixel.Raw) { hub.Frame(frame) },
		DriverFailed: func(err error) { hub.Diag(diag.DriverFlush(err, cfg.Driver)) },
		SleepDone:    func() { hub.Diag(diag.SleepDone()) },
	}))

	if err := eng.Off(); err != nil {
		log.Warn().Err(err).Msg("initial blank failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Run render loop & server ----
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := eng.Run(ctx, cfg.Tick.D()); err != nil {
			log.Error().Err(err).Msg("final blank failed")
		}
	}()

	srv := api.New(st, eng, hub, api.Options{Addr: cfg.Addr, Version: version, Driver: cfg.Driver})
	log.Info().
		Str("version", version).
		Str("driver", cfg.Driver).
		Int("count", cfg.Count).
		Dur("tick", cfg.Tick.D()).
		Msg("stripd starting")
	if err := srv.Run(ctx, cfg.ShutdownTimeout.D()); err != nil {
		log.Error().Err(err).Msg("http server crashed")
		stop()
	}

	// ---- Graceful shutdown ----
	<-ctx.Done()
	log.Info().Msg("shutting down")
	wg.Wait()
	if err := drv.Close(); err != nil {
		log.Warn().Err(err).Msg("driver close")
	}
}

func setupLogging(level string, useJSON bool, colors bool) {
	zerolog.TimeFieldFormat = time.RFC3339

	if useJSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.Kitchen,
			NoColor:    !colors,
		})
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
