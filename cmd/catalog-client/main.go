// Command catalog-client is a CLI for browsing a remote media-cataloging
// server: query scenes, performers, and server status, with a local
// tiered image cache.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/lmittmann/tint"

	catalogclient "github.com/mediakit/catalog-client"
	"github.com/mediakit/catalog-client/cache"
	"github.com/mediakit/catalog-client/catalog"
	"github.com/mediakit/catalog-client/credentials"
	"github.com/mediakit/catalog-client/dispatch"
	"github.com/mediakit/catalog-client/session"
	"github.com/mediakit/catalog-client/telemetry"
	"github.com/mediakit/catalog-client/trust"
)

var version = "dev"

type globals struct {
	Server        string   `help:"Catalog server URL." default:"http://localhost:9999"`
	APIKey        string   `name:"api-key" help:"API key reference (env:NAME, file:PATH, or a literal value)."`
	TrustHost     []string `help:"Extra hostnames whose self-signed certificates are trusted."`
	CacheDir      string   `help:"Directory for the durable image cache." type:"path"`
	LogLevel      string   `help:"Log level." enum:"debug,info,warn,error" default:"info"`
	LogFormat     string   `help:"Log format." enum:"text,json" default:"text"`
	MetricsListen string   `help:"Address to serve Prometheus metrics on (empty disables)."`
}

type cli struct {
	globals

	Status     statusCmd     `cmd:"" help:"Probe the server and print its status and version."`
	Scenes     scenesCmd     `cmd:"" help:"List scenes."`
	Performers performersCmd `cmd:"" help:"List performers."`
	Cache      cacheCmd      `cmd:"" help:"Manage the local image cache."`
}

type cacheCmd struct {
	Sweep cacheSweepCmd `cmd:"" help:"Remove expired entries from the durable cache."`
	Purge cachePurgeCmd `cmd:"" help:"Drop every cached entry for the configured server."`
}

// app is the composition root handed to command Run methods.
type app struct {
	ctx      context.Context
	logger   *slog.Logger
	boundary *session.Boundary
	client   *catalog.Client
	cache    *cache.Cache
}

func main() {
	var c cli
	k := kong.Parse(&c,
		kong.Name("catalog-client"),
		kong.Description("Client for a remote media-cataloging server."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, cleanup, err := newApp(ctx, c.globals)
	k.FatalIfErrorf(err)
	defer cleanup()

	k.FatalIfErrorf(k.Run(a))
}

func newApp(ctx context.Context, g globals) (*app, func(), error) {
	logger, err := newLogger(g.LogLevel, g.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)

	identity, err := identityFromURL(g.Server, g.APIKey)
	if err != nil {
		return nil, nil, err
	}

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if g.MetricsListen != "" {
		shutdown, err := telemetry.InitMetrics(ctx, telemetry.MetricsConfig{
			ServiceName:      "catalog-client",
			ServiceVersion:   version,
			EnablePrometheus: true,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("initialising metrics: %w", err)
		}
		cleanups = append(cleanups, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		})

		mux := http.NewServeMux()
		mux.Handle("/metrics", telemetry.PrometheusHandler())
		srv := &http.Server{Addr: g.MetricsListen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics listener failed", "error", err)
			}
		}()
		cleanups = append(cleanups, func() { _ = srv.Close() })
	}

	boundary := session.NewBoundary(identity, session.WithLogger(logger))
	boundary.OnAuthFailure(func(id catalogclient.Identity) {
		logger.Error("authentication rejected by server", "server", id.String())
	})

	resolver := credentials.NewResolver(credentials.WithLogger(logger))
	policy := trust.New(g.TrustHost...)

	dispatcher := dispatch.New(boundary, policy, dispatch.Config{
		Logger:      logger,
		KeyResolver: resolver.Resolve,
	})
	cleanups = append(cleanups, dispatcher.Close)

	client := catalog.NewClient(dispatcher)

	cacheDir := g.CacheDir
	if cacheDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("locating cache directory: %w", err)
		}
		cacheDir = filepath.Join(base, "catalog-client")
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("creating cache directory: %w", err)
	}

	imageCache, err := cache.New(boundary, cache.Config{
		Path:   filepath.Join(cacheDir, "images.db"),
		Fetch:  client.FetchImage,
		Logger: logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("opening image cache: %w", err)
	}
	cleanups = append(cleanups, func() { _ = imageCache.Close() })

	return &app{
		ctx:      ctx,
		logger:   logger,
		boundary: boundary,
		client:   client,
		cache:    imageCache,
	}, cleanup, nil
}

func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var handler slog.Handler
	switch format {
	case "text":
		handler = tint.NewHandler(os.Stderr, &tint.Options{Level: lvl})
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
	return slog.New(handler), nil
}

// identityFromURL builds the server identity from the --server URL and
// API key reference.
func identityFromURL(rawURL, apiKeyRef string) (catalogclient.Identity, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return catalogclient.Identity{}, fmt.Errorf("parsing server url: %w", err)
	}

	port := 0
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return catalogclient.Identity{}, fmt.Errorf("parsing server port: %w", err)
		}
	} else {
		switch u.Scheme {
		case "https":
			port = 443
		case "http":
			port = 80
		}
	}

	id := catalogclient.Identity{
		Host:      u.Hostname(),
		Port:      port,
		Scheme:    u.Scheme,
		APIKeyRef: apiKeyRef,
	}
	if err := id.Validate(); err != nil {
		return catalogclient.Identity{}, fmt.Errorf("invalid server url %q: %w", rawURL, err)
	}
	return id, nil
}
