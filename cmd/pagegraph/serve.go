package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/hanpama/pagegraph/internal/auth"
	"github.com/hanpama/pagegraph/internal/cms"
	"github.com/hanpama/pagegraph/internal/cmsrt"
	"github.com/hanpama/pagegraph/internal/dataloader"
	"github.com/hanpama/pagegraph/internal/dataloader/extension"
	"github.com/hanpama/pagegraph/internal/eventbus"
	"github.com/hanpama/pagegraph/internal/executor"
	"github.com/hanpama/pagegraph/internal/introspection"
	"github.com/hanpama/pagegraph/internal/logging"
	"github.com/hanpama/pagegraph/internal/otel"
	"github.com/hanpama/pagegraph/internal/server"
	"github.com/hanpama/pagegraph/internal/store/cachestore"
	"github.com/hanpama/pagegraph/internal/store/memstore"
	"github.com/hanpama/pagegraph/internal/store/mongostore"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type serveConfig struct {
	addr         string
	pretty       bool
	timeout      time.Duration
	maxBody      int64
	corsOrigins  stringListFlag
	driver       string
	fixture      string
	mongoURI     string
	mongoDB      string
	redisAddr    string
	retention    time.Duration
	maxBatch     int
	introspect   bool
	authSecret   string
	authIssuer   string
	logLevel     string
	logPretty    bool
	otelEndpoint string
	otelService  string
	metricsPath  string
}

func defaultServeConfig() serveConfig {
	return serveConfig{
		addr:        ":8080",
		timeout:     10 * time.Second,
		maxBody:     1 << 20,
		driver:      "memory",
		mongoURI:    "mongodb://localhost:27017",
		mongoDB:     "pagegraph",
		retention:   time.Minute,
		introspect:  true,
		authIssuer:  "pagegraph",
		logLevel:    "info",
		otelService: "pagegraph",
		metricsPath: "/metrics",
	}
}

func parseServeFlags(args []string) (serveConfig, error) {
	cfg := defaultServeConfig()
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&cfg.addr, "server.addr", cfg.addr, "HTTP listen address")
	fs.BoolVar(&cfg.pretty, "server.pretty", cfg.pretty, "Pretty-print JSON responses")
	fs.DurationVar(&cfg.timeout, "server.timeout", cfg.timeout, "Per-request timeout")
	fs.Int64Var(&cfg.maxBody, "server.max-body", cfg.maxBody, "Maximum request body size")
	fs.Var(&cfg.corsOrigins, "server.cors-origin", "Allowed CORS origin")
	fs.StringVar(&cfg.driver, "store.driver", cfg.driver, "memory or mongo")
	fs.StringVar(&cfg.fixture, "store.fixture", cfg.fixture, "JSON fixture for the memory store")
	fs.StringVar(&cfg.mongoURI, "mongo.uri", cfg.mongoURI, "MongoDB connection string")
	fs.StringVar(&cfg.mongoDB, "mongo.database", cfg.mongoDB, "MongoDB database")
	fs.StringVar(&cfg.redisAddr, "cache.redis-addr", cfg.redisAddr, "Redis address")
	fs.DurationVar(&cfg.retention, "cache.retention", cfg.retention, "Page type cache lifetime")
	fs.IntVar(&cfg.maxBatch, "loader.max-batch", cfg.maxBatch, "Maximum keys per loader batch")
	fs.BoolVar(&cfg.introspect, "graphql.introspection", cfg.introspect, "Enable GraphQL introspection")
	fs.StringVar(&cfg.authSecret, "auth.secret", cfg.authSecret, "HS256 secret of bearer tokens")
	fs.StringVar(&cfg.authIssuer, "auth.issuer", cfg.authIssuer, "Expected token issuer")
	fs.StringVar(&cfg.logLevel, "log.level", cfg.logLevel, "Log level")
	fs.BoolVar(&cfg.logPretty, "log.pretty", cfg.logPretty, "Human-readable logs")
	fs.StringVar(&cfg.otelEndpoint, "otel.endpoint", cfg.otelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&cfg.otelService, "otel.service", cfg.otelService, "OpenTelemetry service name")
	fs.StringVar(&cfg.metricsPath, "metrics.path", cfg.metricsPath, "Prometheus endpoint")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	switch cfg.driver {
	case "memory", "mongo":
	default:
		return cfg, fmt.Errorf("unknown -store.driver %q", cfg.driver)
	}
	if cfg.maxBatch < 0 {
		return cfg, fmt.Errorf("-loader.max-batch must not be negative")
	}
	return cfg, nil
}

// app is the wired server without its listener.
type app struct {
	handler http.Handler
	closers []func(context.Context) error
}

func (a *app) close(ctx context.Context) error {
	var result *multierror.Error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// abandon releases whatever was opened before failing with err. err comes
// back unwrapped when nothing fails to close.
func (a *app) abandon(err error) error {
	return withCleanup(err, a.close(context.Background()))
}

func withCleanup(err, cleanupErr error) error {
	if cleanupErr == nil {
		return err
	}
	return multierror.Append(err, cleanupErr)
}

func newApp(ctx context.Context, cfg serveConfig) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			err = a.abandon(err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	loaderMetrics := extension.NewLoaderMetrics()
	loaderMetrics.MustRegister(reg)
	cacheMetrics := cachestore.NewMetrics()
	cacheMetrics.MustRegister(reg)

	store, err := openStore(ctx, cfg, cacheMetrics, a)
	if err != nil {
		return nil, err
	}

	sch, err := cmsrt.LoadSchema()
	if err != nil {
		return nil, fmt.Errorf("build schema: %w", err)
	}
	rt, err := cmsrt.New(sch, store,
		cmsrt.WithLogger(logging.NewLogger("cmsrt")),
		cmsrt.WithLoaderOptions(cms.LoaderOptions{
			MaxBatch: cfg.maxBatch,
			Hooks: []dataloader.Hook{
				extension.NewLogger(logging.NewLogger("dataloader")),
				extension.NewPrometheusMetrics(loaderMetrics),
				extension.Events{},
			},
		}))
	if err != nil {
		return nil, fmt.Errorf("runtime: %w", err)
	}

	sopts := []server.Option{
		server.WithTimeout(cfg.timeout),
		server.WithMaxBodyBytes(cfg.maxBody),
		server.WithLogger(logging.NewLogger("http")),
	}
	if cfg.pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if len(cfg.corsOrigins) > 0 {
		sopts = append(sopts, server.WithCORS(cfg.corsOrigins...))
	}
	if cfg.authSecret != "" {
		sopts = append(sopts, server.WithAuthenticator(auth.NewAuthenticator(cfg.authSecret, cfg.authIssuer)))
	}
	var runtime executor.Runtime = rt
	execSchema := sch
	if cfg.introspect {
		wrapped := introspection.Wrap(rt, sch)
		runtime, execSchema = wrapped, wrapped.Schema()
	}
	h, err := server.New(runtime, execSchema, sopts...)
	if err != nil {
		return nil, fmt.Errorf("server init: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/graphql", h)
	mux.Handle("/schema", server.SchemaHandler(sch))
	if cfg.metricsPath != "" {
		mux.Handle(cfg.metricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	a.handler = mux
	return a, nil
}

// openStore builds the configured store and registers its cleanup on a.
func openStore(ctx context.Context, cfg serveConfig, metrics *cachestore.Metrics, a *app) (cms.Store, error) {
	var store cms.Store
	switch cfg.driver {
	case "mongo":
		ms, disconnect, err := mongostore.Connect(ctx, cfg.mongoURI, cfg.mongoDB)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, disconnect)
		store = ms
	default:
		f, err := loadFixture(cfg.fixture)
		if err != nil {
			return nil, err
		}
		store = memstore.New(f)
	}

	if cfg.retention <= 0 {
		return store, nil
	}
	cc := cachestore.Config{
		Retention: cfg.retention,
		KeyPrefix: "pagegraph:",
		Metrics:   metrics,
		Logger:    logging.NewLogger("cachestore"),
	}
	if cfg.redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.redisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		cc.Redis = client
	}
	return cachestore.New(store, cc), nil
}

func cmdServe(ctx context.Context, args []string) error {
	cfg, err := parseServeFlags(args)
	if err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return err
	}
	logger := logging.Setup(logging.Config{Level: cfg.logLevel, Pretty: cfg.logPretty})

	eventbus.Use(eventbus.New())
	shutdownTracing, err := otel.Setup(cfg.otelEndpoint, cfg.otelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return withCleanup(err, shutdownTracing(context.Background()))
	}
	a.closers = append([]func(context.Context) error{shutdownTracing}, a.closers...)

	srv := &http.Server{Addr: cfg.addr, Handler: a.handler, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.addr).Str("store", cfg.driver).Msg("GraphQL server listening")
		errCh <- srv.ListenAndServe()
	}()

	var result *multierror.Error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			result = multierror.Append(result, err)
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, fmt.Errorf("http shutdown: %w", err))
	}
	if err := a.close(shutdownCtx); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
