// Package ws is the WebSocket transport of the rendezvous server: HTTP
// upgrade, connection bookkeeping, readiness polling with a bounded worker
// pool, heartbeats, and dispatch of parsed frames to handlers.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/whisper/rendezvous/internal/logx"
	"github.com/whisper/rendezvous/internal/metrics"
	"github.com/whisper/rendezvous/internal/protocol"
	"github.com/whisper/rendezvous/internal/ratelimit"
)

// MaxMessageBytes caps one inbound message. It leaves room for a base64
// report screenshot.
const MaxMessageBytes = 4 << 20

// ServerConfig holds tunable parameters for the WebSocket server.
type ServerConfig struct {
	ListenAddr     string        // e.g. ":8080"
	WorkerPoolSize int           // max concurrent read workers
	MaxConnections int           // hard cap on live connections
	ReadTimeout    time.Duration // deadline for reading the rest of a ready frame
	WriteTimeout   time.Duration // deadline for one outbound frame
	Heartbeat      HeartbeatConfig

	// CORSOrigins applies to the plain HTTP endpoints.
	CORSOrigins []string
	// CheckOrigin vets the Origin header of upgrade requests. Nil accepts all.
	CheckOrigin func(origin string) bool
	// ConnectLimiter throttles upgrade attempts per IP. Nil disables it.
	ConnectLimiter *ratelimit.IPLimiter
}

// DefaultServerConfig returns production defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:     ":8080",
		WorkerPoolSize: 256,
		MaxConnections: 10000,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		Heartbeat:      DefaultHeartbeatConfig(),
	}
}

// Server upgrades HTTP requests with gobwas/ws, registers sockets with the
// poller and hands ready ones to a bounded pool of read workers.
type Server struct {
	config       ServerConfig
	epoll        *Epoll
	conns        *ConnectionManager
	workerPool   chan struct{}
	onMessage    func(conn *Connection, data []byte)
	onConnect    func(connID string)
	onDisconnect func(connID string)
	stats        func() any
	logger       zerolog.Logger

	mu         sync.Mutex // guards what Serve sets up against Shutdown and Addr
	httpServer *http.Server
	listener   net.Listener
	done       chan struct{}
	closeOnce  sync.Once
	loopDone   chan struct{}
	startedAt  time.Time
}

// NewServer creates a Server. onMessage is called from a worker goroutine for
// every complete data message.
func NewServer(config ServerConfig, onMessage func(conn *Connection, data []byte)) *Server {
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = 1
	}
	if config.Heartbeat.Interval <= 0 {
		config.Heartbeat = DefaultHeartbeatConfig()
	}
	return &Server{
		config:     config,
		conns:      NewConnectionManager(),
		workerPool: make(chan struct{}, config.WorkerPoolSize),
		onMessage:  onMessage,
		logger:     logx.Component("ws"),
		done:       make(chan struct{}),
		loopDone:   make(chan struct{}),
	}
}

// SetOnConnect registers a callback run after a connection is registered and
// before any of its frames are read.
func (s *Server) SetOnConnect(fn func(connID string)) {
	s.onConnect = fn
}

// SetOnDisconnect registers a callback run exactly once per connection when
// it is removed, whether by read error, close frame or heartbeat eviction.
func (s *Server) SetOnDisconnect(fn func(connID string)) {
	s.onDisconnect = fn
}

// SetStats adds the value returned by fn to the /health response.
func (s *Server) SetStats(fn func() any) {
	s.stats = fn
}

// Handler returns the HTTP routes: /ws, /health and /metrics.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	c := cors.New(cors.Options{
		AllowedOrigins: s.config.CORSOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})
	r.Use(c.Handler)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	upgrade := http.Handler(http.HandlerFunc(s.handleUpgrade))
	if s.config.ConnectLimiter != nil {
		upgrade = s.config.ConnectLimiter.Middleware(upgrade)
	}
	r.Method(http.MethodGet, "/ws", upgrade)

	return r
}

// Start listens on ListenAddr and serves until Shutdown.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("ws: listen %s: %w", s.config.ListenAddr, err)
	}
	return s.Serve(l)
}

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	ep, err := NewEpoll()
	if err != nil {
		return fmt.Errorf("ws: failed to create poller: %w", err)
	}
	hs := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.mu.Lock()
	s.epoll = ep
	s.startedAt = time.Now()
	s.listener = l
	s.httpServer = hs
	s.mu.Unlock()

	go s.startEventLoop()
	s.startHeartbeat(s.config.Heartbeat)

	s.logger.Info().
		Str("addr", l.Addr().String()).
		Int("workers", s.config.WorkerPoolSize).
		Int("max_conns", s.config.MaxConnections).
		Msg("server listening")

	if err := hs.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ws: http server error: %w", err)
	}
	return nil
}

// Addr returns the listening address once Serve has started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if s.conns.Count() >= s.config.MaxConnections {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}
	if origin := r.Header.Get("Origin"); s.config.CheckOrigin != nil && !s.config.CheckOrigin(origin) {
		s.logger.Warn().Str("origin", origin).Msg("upgrade rejected: origin not allowed")
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.logger.Debug().Err(err).Msg("upgrade failed")
		return
	}
	_ = conn.SetDeadline(time.Time{})

	c := newConnection(uuid.NewString(), conn, remoteIP(r.RemoteAddr), s.config.WriteTimeout)
	s.conns.Add(c)
	metrics.ConnectionsTotal.Inc()

	if s.onConnect != nil {
		s.onConnect(c.ID)
	}

	if err := c.Send(protocol.SessionCreatedMsg{ConnectionID: c.ID}); err != nil {
		s.logger.Debug().Err(err).Str("conn_id", c.ID).Msg("failed to send session-created")
		s.RemoveConnection(c)
		return
	}

	// Registered last so no frame is read before the connect hook ran.
	if err := s.epoll.Add(conn); err != nil {
		s.logger.Error().Err(err).Str("conn_id", c.ID).Msg("poller add failed")
		s.RemoveConnection(c)
		return
	}

	s.logger.Debug().
		Str("conn_id", c.ID).
		Int("fd", c.Fd).
		Int("total", s.conns.Count()).
		Msg("connection opened")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
		Uptime      string `json:"uptime"`
		Sessions    any    `json:"sessions,omitempty"`
	}{
		Status:      "ok",
		Connections: s.conns.Count(),
		Uptime:      time.Since(s.startedAt).Round(time.Second).String(),
	}
	if s.stats != nil {
		resp.Sessions = s.stats()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// startEventLoop waits for ready sockets and reads each on a worker, never
// running more than WorkerPoolSize workers.
func (s *Server) startEventLoop() {
	defer close(s.loopDone)

	for {
		select {
		case <-s.done:
			return
		default:
		}

		conns, err := s.epoll.Wait()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			if isEINTR(err) {
				continue
			}
			s.logger.Error().Err(err).Msg("poller wait failed")
			time.Sleep(10 * time.Millisecond)
			continue
		}

		for _, conn := range conns {
			s.workerPool <- struct{}{}
			go func() {
				defer func() { <-s.workerPool }()
				s.handleConn(conn)
			}()
		}
	}
}

// handleConn reads one frame from a ready socket. Control frames are handled
// in place; a data message goes to onMessage. Any read failure removes the
// connection.
func (s *Server) handleConn(netConn net.Conn) {
	defer s.epoll.Done(netConn)

	c := s.conns.GetByConn(netConn)
	if c == nil {
		return
	}
	if !c.processing.CompareAndSwap(false, true) {
		return
	}
	defer c.processing.Store(false)

	if s.config.ReadTimeout > 0 {
		_ = netConn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	}

	header, reader, err := wsutil.NextReader(s.epoll.Reader(netConn), ws.StateServerSide)
	if err != nil {
		s.logger.Debug().Err(err).Str("conn_id", c.ID).Msg("read failed")
		s.RemoveConnection(c)
		return
	}

	c.Touch()

	if header.OpCode.IsControl() {
		s.handleControl(c, header, reader)
		_ = netConn.SetReadDeadline(time.Time{})
		return
	}

	if header.Length > MaxMessageBytes {
		s.logger.Warn().Str("conn_id", c.ID).Int64("length", header.Length).Msg("message too large")
		s.closeWith(c, ws.StatusMessageTooBig, "message too large")
		return
	}

	data, err := io.ReadAll(io.LimitReader(reader, MaxMessageBytes+1))
	if err != nil {
		s.RemoveConnection(c)
		return
	}
	if len(data) > MaxMessageBytes {
		s.closeWith(c, ws.StatusMessageTooBig, "message too large")
		return
	}
	_ = netConn.SetReadDeadline(time.Time{})

	if len(data) == 0 || s.onMessage == nil {
		return
	}
	s.onMessage(c, data)
}

func (s *Server) handleControl(c *Connection, header ws.Header, reader io.Reader) {
	switch header.OpCode {
	case ws.OpClose:
		s.closeWith(c, ws.StatusNormalClosure, "")
	case ws.OpPing:
		payload, err := io.ReadAll(reader)
		if err != nil {
			s.RemoveConnection(c)
			return
		}
		if err := c.writeFrame(ws.NewPongFrame(payload)); err != nil {
			s.RemoveConnection(c)
		}
	default:
		// Pong: activity was already recorded.
		_, _ = io.Copy(io.Discard, reader)
	}
}

func (s *Server) closeWith(c *Connection, code ws.StatusCode, reason string) {
	_ = c.writeFrame(ws.NewCloseFrame(ws.NewCloseFrameBody(code, reason)))
	s.RemoveConnection(c)
}

// RemoveConnection unregisters c from the poller and the manager, closes it
// and fires the disconnect callback. Only the first call for a connection
// has any effect.
func (s *Server) RemoveConnection(c *Connection) {
	if s.epoll != nil {
		_ = s.epoll.Remove(c.Conn)
	}
	if !s.conns.Remove(c.ID) {
		return
	}
	metrics.ConnectionsTotal.Dec()

	if s.onDisconnect != nil {
		s.onDisconnect(c.ID)
	}

	s.logger.Debug().Str("conn_id", c.ID).Int("total", s.conns.Count()).Msg("connection closed")
}

// SendMessage writes an encoded text frame to connID.
func (s *Server) SendMessage(connID string, data []byte) error {
	c := s.conns.Get(connID)
	if c == nil {
		return fmt.Errorf("ws: connection %s not found", connID)
	}
	return c.WriteMessage(data)
}

// Notify delivers msg to connID. Unknown connections and write failures are
// dropped; a broken socket is removed by its next read.
func (s *Server) Notify(connID string, msg protocol.ServerMessage) {
	c := s.conns.Get(connID)
	if c == nil {
		return
	}
	if err := c.Send(msg); err != nil {
		s.logger.Debug().Err(err).Str("conn_id", connID).Str("type", msg.ServerType()).Msg("notify failed")
	}
}

// Connections returns the connection manager.
func (s *Server) Connections() *ConnectionManager {
	return s.conns
}

// Shutdown stops the listener and the event loop and closes every connection
// with a going-away frame. Disconnect callbacks are not fired.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down server")
	s.closeOnce.Do(func() { close(s.done) })

	s.mu.Lock()
	hs, ep := s.httpServer, s.epoll
	s.mu.Unlock()

	var err error
	if hs != nil {
		if err = hs.Shutdown(ctx); err != nil {
			err = fmt.Errorf("ws: http shutdown: %w", err)
		}
	}

	for _, c := range s.conns.All() {
		_ = c.writeFrame(ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusGoingAway, "server shutdown")))
		if ep != nil {
			_ = ep.Remove(c.Conn)
		}
		if s.conns.Remove(c.ID) {
			metrics.ConnectionsTotal.Dec()
		}
	}

	if ep != nil {
		_ = ep.Close()
		select {
		case <-s.loopDone:
		case <-ctx.Done():
		}
	}

	s.logger.Info().Msg("server stopped")
	return err
}

func remoteIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
