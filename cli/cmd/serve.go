package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/kiln/adapter"
	adapterredis "github.com/pithecene-io/kiln/adapter/redis"
	"github.com/pithecene-io/kiln/adapter/webhook"
	"github.com/pithecene-io/kiln/cache"
	"github.com/pithecene-io/kiln/cache/memory"
	cacheredis "github.com/pithecene-io/kiln/cache/redis"
	caches3 "github.com/pithecene-io/kiln/cache/s3"
	"github.com/pithecene-io/kiln/cli/config"
	"github.com/pithecene-io/kiln/metrics"
	"github.com/pithecene-io/kiln/server"
)

// ServeCommand returns the serve command. Serve is the only command
// that runs the gateway; everything else talks to a running instance.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the render gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to kiln.yaml",
				Value:   "kiln.yaml",
			},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ic, err := buildCache(ctx, cfg.Cache)
	if err != nil {
		return fmt.Errorf("build cache: %w", err)
	}
	defer func() { _ = ic.Close() }()

	a, err := buildAdapter(cfg.Adapter)
	if err != nil {
		return fmt.Errorf("build adapter: %w", err)
	}
	if a != nil {
		defer func() { _ = a.Close() }()
	}

	routes, err := cfg.ServerRoutes()
	if err != nil {
		return fmt.Errorf("invalid routes: %w", err)
	}

	collector := metrics.NewCollector(cacheBackendName(cfg.Cache), cfg.ServiceName())

	srv, err := server.New(server.Config{
		Addr:            cfg.ListenAddr(),
		RevalidateToken: cfg.Server.RevalidateToken,
		Routes:          routes,
		Cache:           ic,
		Collector:       collector,
		Adapter:         a,
	})
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	return srv.Run(ctx)
}

// cacheBackendName normalizes the configured backend for metrics labels.
func cacheBackendName(cfg config.CacheConfig) string {
	if cfg.Backend == "" {
		return "memory"
	}
	return cfg.Backend
}

// buildCache creates the incremental cache backend from configuration.
func buildCache(ctx context.Context, cfg config.CacheConfig) (cache.Incremental, error) {
	switch cfg.Backend {
	case "", "memory":
		return memory.New(), nil

	case "redis":
		return cacheredis.New(cacheredis.Config{
			URL:        cfg.URL,
			Prefix:     cfg.Prefix,
			EvictAfter: cfg.EvictAfter.Duration,
		})

	case "s3":
		return caches3.New(ctx, caches3.Config{
			Bucket:       cfg.Bucket,
			Prefix:       cfg.Prefix,
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			UsePathStyle: cfg.S3PathStyle,
		})

	default:
		return nil, fmt.Errorf("unknown cache backend: %s (must be memory, redis, or s3)", cfg.Backend)
	}
}

// buildAdapter creates the notification adapter from configuration.
// Returns nil when no adapter is configured.
func buildAdapter(cfg config.AdapterConfig) (adapter.Adapter, error) {
	retries := -1
	if cfg.Retries != nil {
		retries = *cfg.Retries
	}

	switch cfg.Type {
	case "":
		return nil, nil

	case "redis":
		rc := adapterredis.Config{
			URL:     cfg.URL,
			Channel: cfg.Channel,
			Timeout: cfg.Timeout.Duration,
		}
		if retries >= 0 {
			rc.Retries = retries
		} else {
			rc.Retries = adapterredis.DefaultRetries
		}
		return adapterredis.New(rc)

	case "webhook":
		wc := webhook.Config{
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Timeout: cfg.Timeout.Duration,
		}
		if retries >= 0 {
			wc.Retries = retries
		} else {
			wc.Retries = webhook.DefaultRetries
		}
		return webhook.New(wc)

	default:
		return nil, fmt.Errorf("unknown adapter type: %s (must be redis or webhook)", cfg.Type)
	}
}
