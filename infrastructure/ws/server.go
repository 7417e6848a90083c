// Package ws is the WebSocket transport of the relay: the HTTP upgrade
// handler plus the per-connection read and write pumps.
package ws

import (
	"log/slog"
	"net/http"
	"relay-lab/contract"
	"relay-lab/domain"
	"relay-lab/sink"
	"time"

	"github.com/gorilla/websocket"
)

type Server struct {
	log         *slog.Logger
	service     contract.IRelayService
	bufferSize  int
	sinkTimeout time.Duration
	upgrader    websocket.Upgrader
}

func NewServer(log *slog.Logger, service contract.IRelayService,
	bufferSize int, sinkTimeout time.Duration) *Server {
	return &Server{
		log:         log,
		service:     service,
		bufferSize:  bufferSize,
		sinkTimeout: sinkTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin policy belongs to the fronting layer, not the relay.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler exposes the websocket endpoint and a liveness probe.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// handleWebSocket accepts one connection and blocks on its read pump until
// the client goes away. The optional userId query parameter carries the
// participant identity, absent for anonymous connections.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	participantID := domain.ParticipantID(r.URL.Query().Get("userId"))
	connSink := sink.NewConnectionSink(s.log, s.bufferSize, s.sinkTimeout)

	id, err := s.service.Connect(r.Context(), participantID, connSink)
	if err != nil {
		s.log.Error("Connection registration failed", "remote", r.RemoteAddr, "error", err)
		_ = conn.Close()
		return
	}

	newClient(s.log, conn, s.service, connSink, id, participantID).run()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
