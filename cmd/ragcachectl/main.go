// Package main is the entry point for ragcachectl, an operator tool for
// inspecting and maintaining a shared query cache.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/blueberrycongee/ragcache"
)

func main() {
	if err := run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	app := cli.App{
		Name:    "ragcachectl",
		Usage:   "inspect and maintain a ragcache namespace",
		Version: ragcache.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to YAML configuration file",
				EnvVars: []string{"RAGCACHE_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "Redis address, overrides the configuration file",
				EnvVars: []string{"RAGCACHE_REDIS_ADDR"},
			},
			&cli.StringFlag{
				Name:    "namespace",
				Usage:   "cache key namespace, overrides the configuration file",
				EnvVars: []string{"RAGCACHE_NAMESPACE"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level (debug, info, warn, error)",
				EnvVars: []string{"RAGCACHE_LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			cmdStats,
			cmdPing,
			cmdLookup,
			cmdDelete,
			cmdClear,
			cmdServe,
		},
	}
	return app.Run(args)
}
