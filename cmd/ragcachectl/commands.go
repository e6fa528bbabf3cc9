package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/blueberrycongee/ragcache"
	"github.com/blueberrycongee/ragcache/internal/config"
	"github.com/blueberrycongee/ragcache/internal/observability"
)

var cmdStats = &cli.Command{
	Name:  "stats",
	Usage: "print entry count, capacity and threshold",
	Action: func(cctx *cli.Context) error {
		e, err := setup(cctx)
		if err != nil {
			return err
		}
		defer e.Close()

		stats := e.cache.Stats(cctx.Context)
		if !stats.StoreReachable {
			return errors.New("store unreachable")
		}
		return printJSON(cctx, stats)
	},
}

var cmdPing = &cli.Command{
	Name:  "ping",
	Usage: "check that the backing store answers",
	Action: func(cctx *cli.Context) error {
		e, err := setup(cctx)
		if err != nil {
			return err
		}
		defer e.Close()

		start := time.Now()
		if err := e.cache.Ping(cctx.Context); err != nil {
			return err
		}
		fmt.Fprintf(cctx.App.Writer, "ok (%s)\n", time.Since(start).Round(time.Microsecond))
		return nil
	},
}

var cmdLookup = &cli.Command{
	Name:      "lookup",
	Usage:     "look a query up as the application would",
	ArgsUsage: "<query>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "vector",
			Usage: "comma separated query embedding for semantic matching",
		},
	},
	Action: func(cctx *cli.Context) error {
		query := cctx.Args().First()
		if query == "" {
			return cli.Exit("must specify a query", 1)
		}
		vec, err := parseVector(cctx.String("vector"))
		if err != nil {
			return err
		}

		e, err := setup(cctx)
		if err != nil {
			return err
		}
		defer e.Close()

		return printJSON(cctx, e.cache.Lookup(cctx.Context, query, vec))
	},
}

var cmdDelete = &cli.Command{
	Name:      "delete",
	Usage:     "remove one query from the cache",
	ArgsUsage: "<query>",
	Action: func(cctx *cli.Context) error {
		query := cctx.Args().First()
		if query == "" {
			return cli.Exit("must specify a query", 1)
		}

		e, err := setup(cctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.cache.Delete(cctx.Context, query); err != nil {
			return err
		}
		fmt.Fprintf(cctx.App.Writer, "deleted %s\n", e.cache.Key(query))
		return nil
	},
}

var cmdClear = &cli.Command{
	Name:  "clear",
	Usage: "remove every key in the namespace",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "yes",
			Usage: "confirm the clear",
		},
	},
	Action: func(cctx *cli.Context) error {
		if !cctx.Bool("yes") {
			return cli.Exit("refusing to clear without --yes", 1)
		}

		e, err := setup(cctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.cache.Clear(cctx.Context); err != nil {
			return err
		}
		fmt.Fprintf(cctx.App.Writer, "cleared namespace %q\n", e.cfg.Cache.KeyNamespacePrefix)
		return nil
	},
}

var cmdServe = &cli.Command{
	Name:  "serve",
	Usage: "export cache metrics and follow configuration changes",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "metrics-addr",
			Usage:   "listen address for the Prometheus endpoint",
			Value:   ":9090",
			EnvVars: []string{"RAGCACHE_METRICS_ADDR"},
		},
		&cli.DurationFlag{
			Name:  "interval",
			Usage: "how often to refresh the entry count gauge",
			Value: 15 * time.Second,
		},
	},
	Action: func(cctx *cli.Context) error {
		path := cctx.String("config")
		if path == "" {
			return cli.Exit("serve requires --config", 1)
		}
		interval := cctx.Duration("interval")
		if err := checkInterval(interval); err != nil {
			return cli.Exit(err.Error(), 1)
		}

		ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		mgr, err := config.NewManager(path, nil)
		if err != nil {
			return err
		}
		defer mgr.Close()

		flags := overridesFrom(cctx)
		cfg, err := flags.apply(mgr.Get())
		if err != nil {
			return err
		}

		tp, err := observability.InitTracing(ctx, cfg.Tracing,
			observability.CacheAttributes(cfg.Cache.KeyNamespacePrefix, string(cfg.Backend))...)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()

		e, err := setupWith(cfg, ragcache.WithTracer(tp.Tracer()))
		if err != nil {
			return err
		}
		defer e.Close()

		// Only the threshold can change without rebuilding the cache.
		mgr.OnChange(func(reloaded *config.Config) {
			next, err := flags.apply(reloaded)
			if err != nil {
				e.logger.Error("rejected reloaded config", "error", err)
				return
			}
			if err := e.cache.UpdateThreshold(next.Cache.SimilarityThreshold); err != nil {
				e.logger.Error("rejected reloaded threshold", "error", err)
			}
		})
		if err := mgr.Watch(ctx); err != nil {
			e.logger.Warn("config hot-reload disabled", "error", err)
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			if err := e.cache.Ping(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte("ok"))
		})
		srv := &http.Server{
			Addr:              cctx.String("metrics-addr"),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			e.logger.Info("serving metrics", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			case err := <-errCh:
				return err
			case <-ticker.C:
				// Stats refreshes the entry gauge as a side effect.
				stats := e.cache.Stats(ctx)
				e.logger.Debug("cache stats", "entries", stats.EntryCount, "reachable", stats.StoreReachable)
			}
		}
	},
}

// checkInterval guards the stats ticker, which panics on a non-positive period.
func checkInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("--interval must be positive, got %s", d)
	}
	return nil
}
