package main

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v2"

	"github.com/blueberrycongee/ragcache"
	"github.com/blueberrycongee/ragcache/internal/config"
	"github.com/blueberrycongee/ragcache/internal/observability"
	"github.com/blueberrycongee/ragcache/internal/resilience"
	internalstore "github.com/blueberrycongee/ragcache/internal/store"
	"github.com/blueberrycongee/ragcache/pkg/store"
)

// env bundles what every command needs.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	store  store.Store
	cache  *ragcache.Cache[json.RawMessage]
}

func (e *env) Close() {
	if e.store != nil {
		_ = e.store.Close()
	}
}

func loadConfig(cctx *cli.Context) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path := cctx.String("config"); path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	return overridesFrom(cctx).apply(cfg)
}

// overrides are the global flags that take precedence over the config file.
type overrides struct {
	redisAddr string
	namespace string
	logLevel  string
}

func overridesFrom(cctx *cli.Context) overrides {
	return overrides{
		redisAddr: cctx.String("redis-addr"),
		namespace: cctx.String("namespace"),
		logLevel:  cctx.String("log-level"),
	}
}

// apply returns a validated copy of cfg with the overrides set. cfg itself
// is left alone, so it is safe to pass the config manager's snapshot.
func (o overrides) apply(cfg *config.Config) (*config.Config, error) {
	c := *cfg
	if o.redisAddr != "" {
		c.Backend = config.BackendRedis
		c.Redis.Addr = o.redisAddr
		c.Redis.ClusterAddrs = nil
		c.Redis.SentinelAddrs = nil
	}
	if o.namespace != "" {
		c.Cache.KeyNamespacePrefix = o.namespace
	}
	if o.logLevel != "" {
		c.Logging.Level = o.logLevel
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func openStore(cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	var s store.Store
	switch cfg.Backend {
	case config.BackendMemory:
		s = internalstore.NewMemoryStore(cfg.Memory)
	case config.BackendRedis:
		rs, err := internalstore.NewRedisStore(cfg.Redis)
		if err != nil {
			return nil, err
		}
		s = rs
	default:
		return nil, fmt.Errorf("unsupported backend: %q", cfg.Backend)
	}

	if !cfg.Breaker.Enabled {
		return s, nil
	}
	breaker := resilience.NewCircuitBreaker(string(cfg.Backend), cfg.Breaker)
	breaker.OnStateChange(func(name string, from, to resilience.CircuitState) {
		logger.Warn("store circuit breaker state changed", "store", name, "from", from.String(), "to", to.String())
	})
	return internalstore.NewBreakerStore(s, breaker), nil
}

func setup(cctx *cli.Context) (*env, error) {
	cfg, err := loadConfig(cctx)
	if err != nil {
		return nil, err
	}
	return setupWith(cfg)
}

func setupWith(cfg *config.Config, opts ...ragcache.Option) (*env, error) {
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	s, err := openStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}

	opts = append([]ragcache.Option{ragcache.WithLogger(logger)}, opts...)
	c, err := ragcache.New[json.RawMessage](s, cfg.Cache, opts...)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, store: s, cache: c}, nil
}

// parseVector reads a comma separated list of floats.
func parseVector(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	vec := make([]float64, 0, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("vector component %d: %w", i, err)
		}
		vec = append(vec, f)
	}
	return vec, nil
}

func printJSON(cctx *cli.Context, v any) error {
	return writeJSON(cctx.App.Writer, v)
}

func writeJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
