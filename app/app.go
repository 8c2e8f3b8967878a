package app

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/searchktools/tmplserve/config"
	"github.com/searchktools/tmplserve/core"
	"github.com/searchktools/tmplserve/core/codec"
	"github.com/searchktools/tmplserve/core/filetree"
	"github.com/searchktools/tmplserve/core/fscache"
	"github.com/searchktools/tmplserve/core/http2"
	"github.com/searchktools/tmplserve/core/pools"
	"github.com/searchktools/tmplserve/core/router"
)

const shutdownTimeout = 5 * time.Second

// App ties the slot server to its optional file cache, HTTP/2 front-end
// and admin endpoint.
type App struct {
	cfg    *config.Config
	server *core.Server
	files  *fscache.Cache
	h2     *http2.Server
	admin  *http.Server
}

// New creates an application instance. Mappings are registered on Server()
// before Run.
func New(cfg *config.Config, hooks router.Hooks) *App {
	a := &App{cfg: cfg}

	opts := cfg.Options()
	opts.Hooks = hooks
	if cfg.CacheFiles {
		files, err := fscache.New(cfg.CacheMaxFiles)
		if err != nil {
			log.Printf("warning: file cache disabled: %v", err)
		} else {
			a.files = files
			opts.Files = files
		}
	}

	a.server = core.New(opts)
	a.server.RegisterStream(filetree.StreamName, filetree.Stream(opts.Files))

	if cfg.H2CAddr != "" {
		h2cfg := http2.Config{
			Addr:    cfg.H2CAddr,
			Handler: http2.NewHandler(a.server, cfg.ArenaSize),
		}
		if cfg.CertFile != "" && cfg.KeyFile != "" {
			tlsConfig, err := http2.LoadTLSConfig(cfg.CertFile, cfg.KeyFile)
			if err != nil {
				log.Printf("warning: HTTP/2 falling back to h2c: %v", err)
			} else {
				h2cfg.TLSConfig = tlsConfig
			}
		}
		a.h2 = http2.NewServer(h2cfg)
	}
	if cfg.AdminAddr != "" {
		a.admin = &http.Server{
			Addr:              cfg.AdminAddr,
			Handler:           a.AdminHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return a
}

// Server returns the underlying server for mapping and stream registration.
func (a *App) Server() *core.Server {
	return a.server
}

// AdminHandler serves /metrics in the Prometheus format and /stats encoded
// per the Accept header.
func (a *App) AdminHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.server.Metrics().Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		c := codec.ForAccept(r.Header.Get(core.HeaderAccept))
		data, err := c.Encode(a.server.Stats())
		if err != nil {
			log.Printf("warning: failed to encode stats as %s: %v", c.Name(), err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set(core.HeaderContentType, c.ContentType())
		w.Write(data)
	})
	return mux
}

// Run starts every configured listener and blocks until ctx is cancelled,
// SIGINT or SIGTERM arrives, or a listener fails. It then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pools.ApplyGCConfig(pools.GCConfig{GOGC: a.cfg.GOGC})

	if err := a.server.Start(); err != nil {
		return err
	}
	log.Printf("🚀 tmplserve running on port %d [%s]", a.cfg.Port, a.cfg.Env)

	g, gctx := errgroup.WithContext(ctx)

	if a.h2 != nil {
		g.Go(func() error {
			return a.h2.ListenAndServe()
		})
	}
	if a.admin != nil {
		g.Go(func() error {
			log.Printf("Admin endpoint on %s", a.admin.Addr)
			if err := a.admin.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Printf("Shutting down...")
		return a.shutdown()
	})

	return g.Wait()
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if a.admin != nil {
		errs = append(errs, a.admin.Shutdown(ctx))
	}
	if a.h2 != nil {
		errs = append(errs, a.h2.Shutdown(ctx))
	}
	if err := a.server.Stop(); err != nil && !errors.Is(err, core.ErrServerClosed) {
		errs = append(errs, err)
	}
	if a.files != nil {
		errs = append(errs, a.files.Close())
	}
	log.Printf("%s", a.server.Stats())
	return errors.Join(errs...)
}

// Addr returns the slot server's bound address, or nil before Run.
func (a *App) Addr() net.Addr {
	return a.server.Addr()
}
