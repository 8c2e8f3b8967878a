package config

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/searchktools/tmplserve/core"
	"github.com/searchktools/tmplserve/core/arena"
)

// EnvPrefix prefixes environment overrides, e.g. TMPLSERVE_SLOTS=128.
const EnvPrefix = "TMPLSERVE"

// Config holds all application configuration.
type Config struct {
	Port           int           `config:"port"`
	Slots          int           `config:"slots"`
	ArenaSize      int           `config:"arena_size"`
	ReadBufferSize int           `config:"read_buffer_size"`
	IdleTimeout    time.Duration `config:"idle_timeout"`
	WriteTimeout   time.Duration `config:"write_timeout"`
	Env            string        `config:"env"`

	CertFile string `config:"cert_file"`
	KeyFile  string `config:"key_file"`

	// AdminAddr serves /metrics and /stats; empty disables it.
	AdminAddr string `config:"admin_addr"`
	// H2CAddr serves HTTP/2, over TLS with ALPN when CertFile and KeyFile
	// are set and as h2c otherwise; empty disables it.
	H2CAddr string `config:"h2c_addr"`

	CacheFiles    bool `config:"cache_files"`
	CacheMaxFiles int  `config:"cache_max_files"`

	GOGC      int  `config:"gogc"`
	AccessLog bool `config:"access_log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:           8000,
		Slots:          64,
		ArenaSize:      arena.DefaultSize,
		ReadBufferSize: 8192,
		IdleTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
		Env:            "development",
		CacheFiles:     true,
		CacheMaxFiles:  1024,
		GOGC:           200,
	}
}

// Load builds the configuration from defaults, an optional JSON file
// (-config), TMPLSERVE_* environment variables and command-line flags,
// later sources overriding earlier ones.
func Load(args []string) (*Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet("tmplserve", flag.ContinueOnError)
	file := fs.String("config", "", "JSON configuration file")
	def := Default()
	fs.Int("port", def.Port, "HTTP server port")
	fs.Int("slots", def.Slots, "number of connection slots")
	fs.Int("arena-size", def.ArenaSize, "per-slot arena size in bytes")
	fs.Int("read-buffer-size", def.ReadBufferSize, "per-slot read buffer size in bytes")
	fs.Duration("idle-timeout", def.IdleTimeout, "keep-alive idle timeout")
	fs.Duration("write-timeout", def.WriteTimeout, "response write timeout")
	fs.String("env", def.Env, "environment (development/production)")
	fs.String("cert-file", "", "TLS certificate file")
	fs.String("key-file", "", "TLS key file")
	fs.String("admin-addr", "", "admin listen address for /metrics and /stats")
	fs.String("h2c-addr", "", "HTTP/2 cleartext listen address")
	fs.Bool("cache-files", def.CacheFiles, "cache mapped files in memory")
	fs.Int("cache-max-files", def.CacheMaxFiles, "maximum number of cached files")
	fs.Int("gogc", def.GOGC, "GOGC percentage")
	fs.Bool("access-log", false, "log every request")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	m := NewManager()
	if *file != "" {
		if err := m.LoadFromJSON(*file); err != nil {
			return nil, err
		}
	}
	m.LoadFromEnv(EnvPrefix)
	fs.Visit(func(f *flag.Flag) {
		if f.Name != "config" {
			m.Set(strings.ReplaceAll(f.Name, "-", "_"), f.Value.String())
		}
	})

	if err := m.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Slots <= 0 {
		errs = append(errs, fmt.Errorf("slots must be positive, got %d", c.Slots))
	}
	if c.ArenaSize < 1024 {
		errs = append(errs, fmt.Errorf("arena_size must be at least 1024, got %d", c.ArenaSize))
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		errs = append(errs, errors.New("cert_file and key_file must be set together"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// IsProduction reports whether Env is "production".
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Options returns the server options for c.
func (c *Config) Options() core.Options {
	return core.Options{
		Port:           c.Port,
		Slots:          c.Slots,
		ArenaSize:      c.ArenaSize,
		ReadBufferSize: c.ReadBufferSize,
		IdleTimeout:    c.IdleTimeout,
		WriteTimeout:   c.WriteTimeout,
		CertFile:       c.CertFile,
		KeyFile:        c.KeyFile,
		AccessLog:      c.AccessLog && !c.IsProduction(),
	}
}
