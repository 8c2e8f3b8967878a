package http2

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Server serves HTTP/2, cleartext (h2c) or over TLS with ALPN, in front of
// the same dispatcher as the HTTP/1 slot server.
type Server struct {
	addr   string
	server *http.Server
	h2     *http2.Server

	// TLS configuration for ALPN negotiation
	tlsConfig *tls.Config

	// Statistics
	stats struct {
		activeConnections atomic.Int64
		totalConnections  atomic.Uint64
	}

	mu     sync.Mutex
	ln     net.Listener
	closed bool
}

// Config contains HTTP/2 server configuration
type Config struct {
	Addr                 string
	Handler              http.Handler
	TLSConfig            *tls.Config
	MaxConcurrentStreams uint32
	MaxReadFrameSize     uint32
	IdleTimeout          time.Duration
}

// ServerStats holds connection counters.
type ServerStats struct {
	ActiveConnections int64  `json:"active_connections"`
	TotalConnections  uint64 `json:"total_connections"`
}

// NewServer creates a new HTTP/2 server
func NewServer(cfg Config) *Server {
	if cfg.MaxConcurrentStreams == 0 {
		cfg.MaxConcurrentStreams = 250
	}
	if cfg.MaxReadFrameSize == 0 {
		cfg.MaxReadFrameSize = 1 << 20
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 120 * time.Second
	}

	s := &Server{addr: cfg.Addr}

	s.h2 = &http2.Server{
		MaxConcurrentStreams: cfg.MaxConcurrentStreams,
		MaxReadFrameSize:     cfg.MaxReadFrameSize,
		IdleTimeout:          cfg.IdleTimeout,
	}

	s.server = &http.Server{
		Addr:        cfg.Addr,
		Handler:     cfg.Handler,
		IdleTimeout: cfg.IdleTimeout,
		ConnState:   s.trackConn,
	}

	if cfg.TLSConfig != nil {
		s.tlsConfig = cfg.TLSConfig.Clone()
		s.tlsConfig.NextProtos = []string{"h2", "http/1.1"}
		s.server.TLSConfig = s.tlsConfig
		http2.ConfigureServer(s.server, s.h2)
	} else {
		s.server.Handler = h2c.NewHandler(cfg.Handler, s.h2)
	}

	return s
}

func (s *Server) trackConn(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.stats.totalConnections.Add(1)
		s.stats.activeConnections.Add(1)
	case http.StateClosed, http.StateHijacked:
		s.stats.activeConnections.Add(-1)
	}
}

// LoadTLSConfig builds the server TLS configuration from a PEM certificate
// and key pair.
func LoadTLSConfig(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load key pair: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// TLS reports whether the server negotiates h2 over TLS.
func (s *Server) TLS() bool {
	return s.tlsConfig != nil
}

// ListenAndServe binds Addr and serves until Close.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Close. It returns nil after Close.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return errors.New("server is closed")
	}
	s.ln = ln
	s.mu.Unlock()

	var err error
	if s.tlsConfig != nil {
		log.Printf("🚀 HTTP/2 server on %s (h2 with ALPN)", ln.Addr())
		err = s.server.ServeTLS(ln, "", "")
	} else {
		log.Printf("🚀 HTTP/2 server on %s (h2c)", ln.Addr())
		err = s.server.Serve(ln)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Addr returns the listen address once serving, or nil.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Shutdown stops accepting and waits for active streams to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.server.Shutdown(ctx)
}

// Close shuts the server down immediately.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	return s.server.Close()
}

// Stats returns connection counters.
func (s *Server) Stats() ServerStats {
	return ServerStats{
		ActiveConnections: s.stats.activeConnections.Load(),
		TotalConnections:  s.stats.totalConnections.Load(),
	}
}
