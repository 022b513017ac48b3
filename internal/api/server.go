// Package api exposes the lighting state over HTTP and websockets.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-ledstrip/internal/render"
	"github.com/coreman2200/funtimes-ledstrip/internal/state"
)

// Engine is the part of the render engine the control surface reports on.
type Engine interface {
	Stats() render.Stats
	LedCount() int
}

type Options struct {
	Addr    string
	Version string
	Driver  string
}

type Server struct {
	st   *state.State
	eng  Engine
	hub  *Hub
	opts Options

	started time.Time
	log     zerolog.Logger
}

func New(st *state.State, eng Engine, hub *Hub, o Options) *Server {
	if o.Version == "" {
		o.Version = "dev"
	}
	return &Server{
		st:      st,
		eng:     eng,
		hub:     hub,
		opts:    o,
		started: time.Now(),
		log:     log.With().Str("component", "api").Logger(),
	}
}

// Handler returns the routed mux wrapped in CORS, request id and access log
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /all_modes", s.handleAllModes)
	mux.HandleFunc("GET /mode", s.handleGetMode)
	mux.HandleFunc("GET /mode/{mode}", s.handleSetMode)
	mux.HandleFunc("GET /plain/{target}", s.handlePlain)
	mux.HandleFunc("GET /state", s.handleState)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.hub.HandleFramesWS)
	mux.HandleFunc("GET /diag", s.hub.HandleDiagWS)
	mux.HandleFunc("GET /control", s.handleControlWS)
	mux.HandleFunc("GET /{component}", s.handleGetComponent)
	mux.HandleFunc("GET /{component}/{value}", s.handleSetComponent)

	return withCORS(withRequestID(s.log, withAccessLog(mux)))
}

// Run serves until ctx is cancelled, then shuts down gracefully within
// shutdownTimeout. The hub is run alongside and closes its subscribers on exit.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go s.hub.Run(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error().Err(err).Msg("http server shutdown")
		}
	}()

	s.log.Info().Str("addr", s.opts.Addr).Str("driver", s.opts.Driver).Msg("HTTP server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	text(w, http.StatusOK, "RGB Strip Controller API v%s", s.opts.Version)
}

func (s *Server) handleAllModes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, state.ModeCodes())
}

func (s *Server) handleGetMode(w http.ResponseWriter, r *http.Request) {
	text(w, http.StatusOK, "Current mode: %s", s.st.Snapshot().Mode)
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("mode")
	m, err := s.applyMode(raw)
	if err != nil {
		text(w, http.StatusNotFound, "Unknown mode: %s", raw)
		return
	}
	zerolog.Ctx(r.Context()).Info().Stringer("mode", m).Msg("mode updated")
	text(w, http.StatusOK, "Updated mode: %s", m)
}

// applyMode accepts a mode name in any case or its numeric code.
func (s *Server) applyMode(raw string) (state.Mode, error) {
	if m, ok := state.ParseMode(raw); ok {
		s.st.SetMode(m)
		return m, nil
	}
	code, err := strconv.ParseUint(raw, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("unknown mode %q", raw)
	}
	return s.st.SetModeByCode(uint8(code))
}

func (s *Server) handleGetComponent(w http.ResponseWriter, r *http.Request) {
	c, ok := state.ParseComponent(r.PathValue("component"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	text(w, http.StatusOK, "Current %s: %s", c, formatValue(s.st.Component(c)))
}

// handleSetComponent treats an integer literal as the 0..255 / degree form and
// anything else as a float in native units.
func (s *Server) handleSetComponent(w http.ResponseWriter, r *http.Request) {
	c, ok := state.ParseComponent(r.PathValue("component"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	raw := r.PathValue("value")
	var v float64
	if n, err := strconv.ParseInt(raw, 10, 16); err == nil {
		v = s.st.SetComponentInt(c, int16(n))
	} else if f, err := strconv.ParseFloat(raw, 32); err == nil {
		v = s.st.SetComponent(c, f)
	} else {
		http.NotFound(w, r)
		return
	}
	zerolog.Ctx(r.Context()).Info().Stringer("component", c).Float64("value", v).Msg("component updated")
	text(w, http.StatusOK, "Updated %s: %s", c, formatValue(v))
}

func (s *Server) handlePlain(w http.ResponseWriter, r *http.Request) {
	target := r.PathValue("target")
	if strings.EqualFold(target, "mode") {
		text(w, http.StatusOK, "%s", strings.ToLower(s.st.Snapshot().Mode.String()))
		return
	}
	c, ok := state.ParseComponent(target)
	if !ok {
		http.NotFound(w, r)
		return
	}
	text(w, http.StatusOK, "%s", formatValue(s.st.Component(c)))
}

// handleState serves the snapshot with the state version as its ETag.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	// read the version first: a racing write makes the tag stale, never the body
	tag := strconv.Quote(strconv.FormatUint(s.st.Version(), 10))
	w.Header().Set("ETag", tag)
	if r.Header.Get("If-None-Match") == tag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, s.st.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.eng.Stats()
	frames, diags, controls := s.hub.Clients()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"version":       s.opts.Version,
		"uptime_s":      time.Since(s.started).Seconds(),
		"frames":        stats.Frames,
		"ticks":         stats.Ticks,
		"driver_errors": stats.DriverErrors,
		"last_tick_us":  stats.LastTick.Microseconds(),
		"led_count":     s.eng.LedCount(),
		"driver":        s.opts.Driver,
		"clients":       map[string]int{"ws": frames, "diag": diags, "control": controls},
	})
}

// controlMsg is one /control command. Mode takes a name or a numeric code.
type controlMsg struct {
	Mode any      `json:"mode"`
	H    *float64 `json:"h"`
	S    *float64 `json:"s"`
	V    *float64 `json:"v"`
}

type controlReply struct {
	state.Snapshot
	Error string `json:"error,omitempty"`
}

// handleControlWS applies JSON commands and answers each with the resulting
// snapshot.
func (s *Server) handleControlWS(w http.ResponseWriter, r *http.Request) {
	conn, release, err := s.hub.subscribe(w, r, s.hub.controls)
	if err != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("websocket upgrade")
		return
	}
	defer release()
	l := zerolog.Ctx(r.Context())
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var reply controlReply
		var msg controlMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			reply.Error = "invalid json: " + err.Error()
		} else if err := s.applyControl(msg); err != nil {
			reply.Error = err.Error()
		}
		if reply.Error != "" {
			l.Warn().Str("error", reply.Error).Msg("control command rejected")
		}
		reply.Snapshot = s.st.Snapshot()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(reply); err != nil {
			return
		}
	}
}

// applyControl sets components before the mode so hue-dependent intervals
// see the new hue either way.
func (s *Server) applyControl(msg controlMsg) error {
	if msg.H != nil {
		s.st.SetComponent(state.H, *msg.H)
	}
	if msg.S != nil {
		s.st.SetComponent(state.S, *msg.S)
	}
	if msg.V != nil {
		s.st.SetComponent(state.V, *msg.V)
	}
	switch m := msg.Mode.(type) {
	case nil:
	case string:
		if _, err := s.applyMode(m); err != nil {
			return err
		}
	case float64:
		if m < 0 || m > math.MaxUint8 || m != math.Trunc(m) {
			return fmt.Errorf("%w: %v", state.ErrInvalidModeCode, m)
		}
		if _, err := s.st.SetModeByCode(uint8(m)); err != nil {
			return err
		}
	default:
		return fmt.Errorf("mode must be a name or a code, got %T", m)
	}
	return nil
}

func text(w http.ResponseWriter, status int, format string, args ...any) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, format, args...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// formatValue prints the shortest single-precision form: 120, 0.5, 0.003921569.
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 32)
}
