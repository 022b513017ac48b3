package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	diag "github.com/coreman2200/funtimes-ledstrip/internal/diagnostics"
	"github.com/coreman2200/funtimes-ledstrip/internal/pixel"
)

// DefaultFrameGap throttles the preview stream to ~20 fps regardless of the
// render cadence.
const DefaultFrameGap = 50 * time.Millisecond

const writeWait = 200 * time.Millisecond

type frameMsg struct {
	T       int64  `json:"t"`
	FrameID uint64 `json:"frame_id"`
	RGB     []byte `json:"rgb"`
}

// Hub fans rendered frames and diagnostics out to websocket subscribers.
// Frame and Diag never block; all writes happen on the Run goroutine.
type Hub struct {
	mu       sync.Mutex
	frames   map[*websocket.Conn]bool
	diags    map[*websocket.Conn]bool
	controls map[*websocket.Conn]bool

	throttle *rate.Limiter
	now      func() time.Time
	frameID  uint64
	pending  *frameMsg

	frameReady chan struct{}
	diagQueue  chan diag.Diagnostic

	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewHub(gap time.Duration) *Hub {
	if gap <= 0 {
		gap = DefaultFrameGap
	}
	return &Hub{
		frames:     map[*websocket.Conn]bool{},
		diags:      map[*websocket.Conn]bool{},
		controls:   map[*websocket.Conn]bool{},
		throttle:   rate.NewLimiter(rate.Every(gap), 1),
		now:        time.Now,
		frameReady: make(chan struct{}, 1),
		diagQueue:  make(chan diag.Diagnostic, 32),
		upgrader:   websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		log:        log.With().Str("component", "hub").Logger(),
	}
}

// Frame queues a flushed frame for the preview stream. Frames arriving within
// the throttle gap of the last accepted one are dropped.
func (h *Hub) Frame(frame []pixel.Raw) {
	now := h.now()
	h.mu.Lock()
	h.frameID++
	if len(h.frames) == 0 || !h.throttle.AllowN(now, 1) {
		h.mu.Unlock()
		return
	}
	rgb := make([]byte, 0, len(frame)*3)
	for _, p := range frame {
		rgb = append(rgb, p.R(), p.G(), p.B())
	}
	h.pending = &frameMsg{T: now.UnixNano(), FrameID: h.frameID, RGB: rgb}
	h.mu.Unlock()

	select {
	case h.frameReady <- struct{}{}:
	default:
	}
}

// Diag queues a diagnostic for /diag subscribers, dropping it when the queue is full.
func (h *Hub) Diag(d diag.Diagnostic) {
	select {
	case h.diagQueue <- d:
	default:
		h.log.Debug().Str("code", d.Code).Msg("diag queue full, dropped")
	}
}

// Run delivers queued messages until ctx is done, then closes every subscriber.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-h.frameReady:
			h.mu.Lock()
			msg := h.pending
			h.pending = nil
			h.mu.Unlock()
			if msg != nil {
				b, _ := json.Marshal(msg)
				h.broadcast(h.frames, b)
			}
		case d := <-h.diagQueue:
			b, _ := json.Marshal(d)
			h.broadcast(h.diags, b)
		}
	}
}

func (h *Hub) broadcast(set map[*websocket.Conn]bool, b []byte) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			h.log.Debug().Err(err).Msg("write to subscriber")
		}
	}
}

// Clients reports the number of frame, diagnostic and control subscribers.
func (h *Hub) Clients() (frames, diags, controls int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.frames), len(h.diags), len(h.controls)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range []map[*websocket.Conn]bool{h.frames, h.diags, h.controls} {
		for c := range set {
			c.Close()
			delete(set, c)
		}
	}
}

// subscribe upgrades the request and registers the connection in set. The
// returned release func unregisters and closes it.
func (h *Hub) subscribe(w http.ResponseWriter, r *http.Request, set map[*websocket.Conn]bool) (*websocket.Conn, func(), error) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, nil, err
	}
	h.mu.Lock()
	set[conn] = true
	h.mu.Unlock()
	return conn, func() {
		h.mu.Lock()
		delete(set, conn)
		h.mu.Unlock()
		conn.Close()
	}, nil
}

// serveSubscriber keeps a push-only connection open until the peer goes away.
func (h *Hub) serveSubscriber(w http.ResponseWriter, r *http.Request, set map[*websocket.Conn]bool) {
	conn, release, err := h.subscribe(w, r, set)
	if err != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("websocket upgrade")
		return
	}
	go func() {
		defer release()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	h.serveSubscriber(w, r, h.frames)
}

func (h *Hub) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	h.serveSubscriber(w, r, h.diags)
}
