package ws

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Options struct {
	SendBuffer    int
	PingInterval  time.Duration
	MaxFrameBytes int64
	CheckOrigin   func(r *http.Request) bool
}

type Server struct {
	upgrader websocket.Upgrader
	hub      *Hub
	rooms    RoomSvc
	limiter  Limiter
	validate *validator.Validate
	opts     Options

	mu    sync.Mutex
	conns map[*wsConn]struct{}
	wg    sync.WaitGroup
}

func NewServer(hub *Hub, rooms RoomSvc, limiter Limiter, opts Options) *Server {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 15 * time.Second
	}
	if opts.MaxFrameBytes <= 0 {
		opts.MaxFrameBytes = 16 << 10
	}
	return &Server{
		hub:      hub,
		rooms:    rooms,
		limiter:  limiter,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		opts:     opts,
		conns:    make(map[*wsConn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     opts.CheckOrigin,
		},
	}
}

// HandleWS upgrades GET /ws and serves one session until the peer goes away.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written the error response
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	c := newWsConn(conn, uuid.NewString(), s.opts.SendBuffer)
	if !s.track(c) {
		c.GoingAway()
		return
	}
	defer s.untrack(c)

	sess := NewSession(c, clientOrigin(r), s.hub, s.rooms, s.limiter, s.validate)
	sess.log.Debug("ws connected")

	go c.writeLoop(s.opts.PingInterval)
	s.readLoop(r.Context(), c, sess)

	// cleanup must finish even though the request is done
	sess.Close(context.WithoutCancel(r.Context()))
	_ = c.Close()
}

func (s *Server) readLoop(ctx context.Context, c *wsConn, sess *Session) {
	c.conn.SetReadLimit(s.opts.MaxFrameBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingInterval))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingInterval))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				sess.log.Debug("ws read failed", "err", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingInterval))
		sess.Handle(ctx, data)
	}
}

// Shutdown sends a going-away close to every live connection and waits for
// their sessions to clean up, or for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()

	for c := range conns {
		c.GoingAway()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) shuttingDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns == nil
}

func (s *Server) track(c *wsConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns == nil {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(c *wsConn) {
	s.mu.Lock()
	if s.conns != nil {
		delete(s.conns, c)
	}
	s.mu.Unlock()
	s.wg.Done()
}

// clientOrigin is the peer address without port. chi's RealIP middleware may
// already have replaced RemoteAddr with a bare IP.
func clientOrigin(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
