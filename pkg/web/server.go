// Package web serves the live timing display: a websocket stream of state
// snapshots and lap events plus a small JSON API. The dashboards are plain
// browser apps, hence the permissive CORS setup.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"github.com/racelogger/laptimer-go/log"
	"github.com/racelogger/laptimer-go/pkg/session"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 3 * time.Second
)

type Server struct {
	addr string
	ctrl *session.Controller
	l    *log.Logger

	upgrader websocket.Upgrader
}

type Option func(*Server)

func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		s.l = l
	}
}

func NewServer(addr string, ctrl *session.Controller, opts ...Option) *Server {
	ret := &Server{
		addr: addr,
		ctrl: ctrl,
		l:    log.Default().Named("web"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the display runs on arbitrary devices in the paddock
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebsocket(ctx))
	mux.HandleFunc("/snapshot", s.handleSnapshot)
	mux.HandleFunc("/health", s.handleHealth)

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           cors.AllowAll().Handler(mux),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		//nolint:errcheck // best effort shutdown
		srv.Shutdown(shutdownCtx)
	}()
	s.l.Info("webserver starting", log.String("addr", s.addr))
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleWebsocket(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.l.Error("websocket upgrade failed", log.ErrorField(err))
			return
		}
		c := newClient(s, conn)
		s.l.Info("display connected",
			log.String("client", c.id),
			log.String("remote", r.RemoteAddr))
		go c.writePump()
		go c.forward(ctx)
		go c.readPump()
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.ctrl.CurrentSnapshot(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	//nolint:errcheck // client gone
	json.NewEncoder(w).Encode(snap)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	//nolint:errcheck // client gone
	json.NewEncoder(w).Encode(struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}{Status: "ok", Timestamp: time.Now()})
}
