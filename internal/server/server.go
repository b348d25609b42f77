// Package server exposes the relay over HTTP: a health probe and the
// WebSocket endpoint that streams tracking payloads back per frame.
package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/motionlab/facerelay/internal/engine"
	"github.com/motionlab/facerelay/internal/facetrack"
	"github.com/motionlab/facerelay/internal/httputil"
	"github.com/motionlab/facerelay/internal/imgcodec"
	"github.com/motionlab/facerelay/internal/monitoring"
	"github.com/motionlab/facerelay/internal/payload"
	"github.com/motionlab/facerelay/internal/timeutil"
	"github.com/motionlab/facerelay/internal/version"
	"github.com/motionlab/facerelay/internal/wire"
)

// errorBackoff paces the loop after an engine fault so a wedged engine
// does not spin the connection at full frame rate.
const errorBackoff = 10 * time.Millisecond

// Server handles HTTP and WebSocket traffic for the relay. Each
// WebSocket connection gets its own tracker; the engine is shared.
type Server struct {
	engine        engine.Engine
	clock         timeutil.Clock
	detectTimeout time.Duration
	upgrader      websocket.Upgrader
}

// New creates a Server backed by the given engine. A non-positive
// detectTimeout selects the default per-frame deadline.
func New(eng engine.Engine, clock timeutil.Clock, detectTimeout time.Duration) *Server {
	if detectTimeout <= 0 {
		detectTimeout = facetrack.DetectTimeout
	}
	return &Server{
		engine:        eng,
		clock:         clock,
		detectTimeout: detectTimeout,
		upgrader: websocket.Upgrader{
			// Browser capture clients connect from arbitrary origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Routes returns the HTTP routes served by the relay.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ws/track", s.handleTrack)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		monitoring.Logf("[Server] websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	monitoring.Logf("[Server] client connected: %s", conn.RemoteAddr())
	s.trackLoop(conn)
	monitoring.Logf("[Server] client disconnected: %s", conn.RemoteAddr())
}

// trackLoop reads framed messages until the connection fails, answering
// every frame with exactly one payload.
func (s *Server) trackLoop(conn *websocket.Conn) {
	tracker := facetrack.New(s.engine, s.clock)
	tracker.Timeout = s.detectTimeout

	for {
		msgType, buf, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				monitoring.Logf("[Server] read failed: %v", err)
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		out, backoff := s.handleFrame(tracker, buf)
		if err := conn.WriteJSON(out); err != nil {
			monitoring.Logf("[Server] write failed: %v", err)
			return
		}
		if backoff {
			s.clock.Sleep(errorBackoff)
		}
	}
}

// handleFrame turns one binary message into the value to send back. The
// second return reports whether the caller should pause before reading
// the next frame.
func (s *Server) handleFrame(tracker *facetrack.Tracker, buf []byte) (any, bool) {
	nowMs := s.clock.Now().UnixMilli()

	msg, err := wire.Parse(buf)
	if err != nil {
		monitoring.Logf("[Server] malformed message: %v", err)
		return payload.Empty(nowMs), false
	}
	tsMs := msg.Header.CaptureTS(nowMs)

	frame, ok := imgcodec.Decode(msg.Image)
	if !ok {
		monitoring.Logf("[Server] undecodable image (%d bytes)", len(msg.Image))
		p := payload.Build(nil, msg.Header, tracker.FPS(), nowMs)
		return p, false
	}

	result, err := tracker.Process(frame, tsMs)
	if err != nil {
		monitoring.Logf("[Server] frame processing failed: %v", err)
		return map[string]string{"error": err.Error()}, true
	}

	return payload.Build(result, msg.Header, tracker.FPS(), s.clock.Now().UnixMilli()), false
}
