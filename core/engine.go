package core

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/searchktools/tmplserve/core/arena"
	"github.com/searchktools/tmplserve/core/fscache"
	"github.com/searchktools/tmplserve/core/http"
	"github.com/searchktools/tmplserve/core/observability"
	"github.com/searchktools/tmplserve/core/pools"
	"github.com/searchktools/tmplserve/core/router"
	"github.com/searchktools/tmplserve/core/socket"
	"github.com/searchktools/tmplserve/core/template"
)

// Options configures a Server. They are copied by New and fixed from then on.
type Options struct {
	// Addr is the listen address; when empty ":Port" is used.
	Addr string
	Port int

	// Slots is the number of persistent workers, each with its own arena.
	Slots     int
	ArenaSize int

	ReadBufferSize int

	// IdleTimeout bounds the wait for the next request on a connection.
	IdleTimeout  time.Duration
	WriteTimeout time.Duration

	// CertFile and KeyFile enable HTTPS. A certificate that fails to load
	// falls back to plain HTTP with a warning.
	CertFile string
	KeyFile  string

	// Files is the filesystem for mappings and templates; nil reads the OS directly.
	Files fscache.FS

	Hooks router.Hooks

	// AccessLog logs every request line.
	AccessLog bool
}

// DefaultOptions returns the options used for zero fields.
func DefaultOptions() Options {
	return Options{
		Port:           8000,
		Slots:          64,
		ArenaSize:      arena.DefaultSize,
		ReadBufferSize: 8192,
		IdleTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
	}
}

func (o *Options) withDefaults() {
	def := DefaultOptions()
	if o.Port == 0 {
		o.Port = def.Port
	}
	if o.Addr == "" {
		o.Addr = fmt.Sprintf(":%d", o.Port)
	}
	if o.Slots <= 0 {
		o.Slots = def.Slots
	}
	if o.ArenaSize <= 0 {
		o.ArenaSize = def.ArenaSize
	}
	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = def.ReadBufferSize
	}
	if o.IdleTimeout == 0 {
		o.IdleTimeout = def.IdleTimeout
	}
	if o.WriteTimeout == 0 {
		o.WriteTimeout = def.WriteTimeout
	}
	if o.Files == nil {
		o.Files = fscache.OS{}
	}
}

// Server owns the mapping table, the stream registry and the slot pool,
// and runs the listener and one worker per slot.
type Server struct {
	opts Options

	table      *router.Table
	streams    *template.Registry
	templates  *template.Engine
	dispatcher *router.Dispatcher

	pool    *pools.SlotPool
	metrics *observability.Metrics
	monitor *observability.Monitor

	ln    net.Listener
	tls   bool
	quit  chan struct{}
	start time.Time

	started atomic.Bool
	done    atomic.Bool

	listenerWG sync.WaitGroup
	workersWG  sync.WaitGroup

	accepted atomic.Uint64
	dropped  atomic.Uint64
	requests atomic.Uint64
}

// New creates a server. Mappings and streams are registered before Start.
func New(opts Options) *Server {
	opts.withDefaults()

	s := &Server{
		opts:    opts,
		table:   router.NewTable(opts.Files),
		streams: template.NewRegistry(),
		monitor: observability.NewMonitor(),
		quit:    make(chan struct{}),
	}
	s.templates = template.New(s.streams, opts.Files)
	s.dispatcher = &router.Dispatcher{
		Table:     s.table,
		Files:     opts.Files,
		Templates: s.templates,
		Hooks:     opts.Hooks,
	}
	s.pool = pools.NewSlotPool(opts.Slots, opts.ArenaSize)
	s.metrics = observability.NewMetrics(s.pool.Free)
	return s
}

// Map registers route with its kind resolved from the target.
func (s *Server) Map(route, target string) bool {
	return s.table.Register(router.Mapping{Kind: router.Auto, Route: route, Target: target})
}

// MapFile serves the file target at exactly route.
func (s *Server) MapFile(route, target string) bool {
	return s.table.Register(router.Mapping{Kind: router.File, Route: route, Target: target})
}

// MapDir serves files below the directory target under the route prefix.
func (s *Server) MapDir(route, target string) bool {
	return s.table.Register(router.Mapping{Kind: router.Directory, Route: route, Target: target})
}

// MapTemplate renders the template target at exactly route.
func (s *Server) MapTemplate(route, target string) bool {
	return s.table.Register(router.Mapping{Kind: router.Template, Route: route, Target: target})
}

// Register appends a fully specified mapping.
func (s *Server) Register(m router.Mapping) bool {
	return s.table.Register(m)
}

// RegisterStream makes fn callable from templates as `call name;`.
func (s *Server) RegisterStream(name string, fn template.StreamFunc) {
	s.streams.Register(name, fn)
}

// Templates returns the template engine used by Template mappings.
func (s *Server) Templates() *template.Engine {
	return s.templates
}

// Metrics returns the server's Prometheus collectors.
func (s *Server) Metrics() *observability.Metrics {
	return s.metrics
}

// Addr returns the bound listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Start binds the listener and starts the workers and the accept loop.
// It returns once the server is accepting. A Start that fails to bind
// leaves the server unstarted and may be retried.
func (s *Server) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrServerStarted
	}
	s.table.Freeze()

	ln, err := socket.Listen(context.Background(), s.opts.Addr)
	if err != nil {
		s.started.Store(false)
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}

	if s.opts.CertFile != "" && s.opts.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(s.opts.CertFile, s.opts.KeyFile)
		if err != nil {
			log.Printf("warning: failed to load certificate, serving plain HTTP: %v", err)
		} else {
			ln = tls.NewListener(ln, &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			})
			s.tls = true
		}
	}

	s.ln = ln
	s.start = time.Now()

	for _, slot := range s.pool.Slots() {
		s.workersWG.Add(1)
		go s.worker(slot)
	}

	s.listenerWG.Add(1)
	go s.acceptLoop()

	scheme := "http"
	if s.tls {
		scheme = "https"
	}
	log.Printf("🚀 Serving %s on %s (%d slots, %d byte arenas, %d mappings)",
		scheme, ln.Addr(), s.pool.Len(), s.opts.ArenaSize, len(s.table.Mappings()))
	return nil
}

// Stop closes the listener, waits for the accept loop, closes in-flight
// connections and waits for every worker to return.
func (s *Server) Stop() error {
	if !s.started.Load() || s.ln == nil || !s.done.CompareAndSwap(false, true) {
		return ErrServerClosed
	}

	err := s.ln.Close()
	s.listenerWG.Wait()

	s.pool.CloseActive()
	close(s.quit)
	s.workersWG.Wait()
	s.pool.CloseActive()

	log.Printf("Server stopped: %d connections, %d requests", s.accepted.Load(), s.requests.Load())
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (s *Server) acceptLoop() {
	defer s.listenerWG.Done()

	var delay time.Duration
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.done.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.metrics.AcceptErrors.Inc()
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else if delay *= 2; delay > time.Second {
				delay = time.Second
			}
			log.Printf("warning: accept failed, retrying in %v: %v", delay, err)
			time.Sleep(delay)
			continue
		}
		delay = 0

		slot, ok := s.pool.Pop()
		if !ok {
			log.Printf("warning: no free slot, dropping connection from %s", conn.RemoteAddr())
			s.dropped.Add(1)
			s.metrics.Dropped.Inc()
			conn.Close()
			continue
		}

		socket.Tune(conn)
		s.accepted.Add(1)
		s.metrics.Accepted.Inc()

		slot.Assign(conn)
		slot.Wake()
	}
}

// worker serves the connections handed to slot until the server quits.
func (s *Server) worker(slot *pools.Slot) {
	defer s.workersWG.Done()

	br := bufio.NewReaderSize(nil, s.opts.ReadBufferSize)
	bw := bufio.NewWriterSize(nil, 4096)

	for slot.Wait(s.quit) {
		conn, peer := slot.Conn()
		if conn == nil {
			continue
		}
		s.metrics.ActiveSlots.Inc()

		br.Reset(conn)
		bw.Reset(conn)
		s.session(slot, conn, peer, br, bw)

		conn.Close()
		slot.Detach()
		br.Reset(nil)
		bw.Reset(nil)

		s.metrics.ActiveSlots.Dec()
		s.pool.Push(slot)
	}
}

// session serves requests on conn until the client stops asking for
// keep-alive, a request fails, or KeepAliveMax requests have been served.
func (s *Server) session(slot *pools.Slot, conn net.Conn, peer net.Addr, br *bufio.Reader, bw *bufio.Writer) {
	ctx := slot.Ctx

	for n := 1; ; n++ {
		ctx.Reset()
		ctx.Peer = peer

		if s.opts.IdleTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.opts.IdleTimeout))
		}
		if err := http.ReadRequest(br, ctx.Arena(), &ctx.Request); err != nil {
			if !quietError(err) {
				log.Printf("[slot %d] warning: failed to parse request from %s: %v", slot.Index, peer, err)
				s.metrics.ProtocolErrors.Inc()
			}
			return
		}

		if s.opts.AccessLog {
			log.Printf("[slot %d] %s %s %s %s", slot.Index, peer, ctx.Request.Version, ctx.Request.Method, ctx.Request.Target)
		}

		ctx.Prepare()
		if n >= http.KeepAliveMax {
			ctx.KeepAlive = false
		}
		s.Dispatch(ctx)
		s.finishHeaders(ctx)

		if s.opts.WriteTimeout > 0 {
			conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
		}
		err := http.WriteResponse(bw, &ctx.Response)
		ctx.Response.Release()
		slot.CountRequest()

		if err != nil {
			if !quietError(err) {
				log.Printf("[slot %d] warning: failed to send response to %s: %v", slot.Index, peer, err)
				s.metrics.ProtocolErrors.Inc()
			}
			return
		}
		if !ctx.KeepAlive {
			return
		}
	}
}

// Dispatch runs the request hook, the mapping table and the fallback
// handlers for a prepared context, and records the outcome.
func (s *Server) Dispatch(ctx *http.Context) router.Outcome {
	start := time.Now()
	outcome := s.dispatcher.Dispatch(ctx)
	d := time.Since(start)

	s.requests.Add(1)
	s.metrics.ObserveRequest(string(outcome), d)
	s.monitor.RecordRequest(string(outcome), d, outcome == router.OutcomeError)
	return outcome
}

func (s *Server) finishHeaders(ctx *http.Context) {
	if ctx.KeepAlive {
		ctx.Response.SetHeader(HeaderConnection, ConnKeepAlive)
		ctx.Response.SetHeader(HeaderKeepAlive, KeepAliveTimeout)
	} else {
		ctx.Response.SetHeader(HeaderConnection, ConnClose)
	}
	mimeType := ctx.MimeType
	if mimeType == "" {
		mimeType = DefaultMimeType
	}
	ctx.Response.SetHeader(HeaderContentType, mimeType)
}

// quietError reports errors that end a session normally: the peer went
// away, the idle deadline passed, or the server is stopping.
func quietError(err error) bool {
	if errors.Is(err, http.ErrClosed) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
