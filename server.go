package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/buker/todo-app/docs"
	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/penglongli/gin-metrics/ginmetrics"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const shutdownTimeout = 10 * time.Second

type routerOptions struct {
	sentry    bool
	monitor   *ginmetrics.Monitor
	staticDir string
}

func newRouter(h *TodoHandler, opts routerOptions) *gin.Engine {
	app := gin.New()
	app.Use(requestLogger(), gin.Recovery())
	if opts.sentry {
		app.Use(sentrygin.New(sentrygin.Options{
			Repanic: true,
		}))
	}
	if opts.monitor != nil {
		opts.monitor.UseWithoutExposingEndpoint(app)
	}
	app.Use(compress())

	app.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	app.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	h.register(app.Group("/api"))

	if opts.staticDir != "" {
		app.NoRoute(gin.WrapH(http.FileServer(http.Dir(opts.staticDir))))
	}
	return app
}

// compress gzips responses except DELETE, which has no body to compress.
func compress() gin.HandlerFunc {
	gz := gzip.Gzip(gzip.DefaultCompression)
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodDelete {
			c.Next()
			return
		}
		gz(c)
	}
}

// newMonitor configures the global gin-metrics monitor.
func newMonitor() *ginmetrics.Monitor {
	metrics := ginmetrics.GetMonitor()
	metrics.SetMetricPath("/metrics")
	metrics.SetSlowTime(10)
	// used to p95, p99
	metrics.SetDuration([]float64{0.1, 0.3, 1.2, 5, 10})
	return metrics
}

func openStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	switch cfg.Backend {
	case backendMongo:
		return NewMongoStore(ctx, cfg.Mongo)
	case backendDynamoDB:
		return NewDynamoStoreFromConfig(ctx, cfg.DynamoDB)
	case backendMemory:
		log.Warn("Using in-memory store, todos are lost on restart")
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// serve runs the API and metrics listeners until ctx is cancelled.
func serve(ctx context.Context, cfg *Config) error {
	if err := setupLogging(cfg.Log); err != nil {
		return err
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.Sentry.DSN,
		Environment:      cfg.Sentry.Environment,
		Release:          "todo-app@" + version,
		AttachStacktrace: true,
	}); err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	defer sentry.Flush(2 * time.Second)

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			log.WithError(err).Warn("Closing store")
		}
	}()

	prom, err := NewPrometheusTelemetry(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}
	telemetry := NewTelemetry(NewSentryTelemetry(sentry.CurrentHub()), prom)

	docs.SwaggerInfo.Title = "Todo API"
	docs.SwaggerInfo.Description = "Create, list, update, complete and delete todos"
	docs.SwaggerInfo.Version = version
	docs.SwaggerInfo.BasePath = "/api"

	monitor := newMonitor()
	app := newRouter(NewTodoHandler(store, telemetry), routerOptions{
		sentry:    true,
		monitor:   monitor,
		staticDir: cfg.Server.StaticDir,
	})

	servers := []*http.Server{{Addr: cfg.Server.Addr, Handler: app}}
	if cfg.Server.MetricsAddr != "" {
		metricRouter := gin.New()
		monitor.Expose(metricRouter)
		servers = append(servers, &http.Server{Addr: cfg.Server.MetricsAddr, Handler: metricRouter})
	}

	errc := make(chan error, len(servers))
	for _, srv := range servers {
		srv := srv
		go func() {
			log.Infof("Starting server on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- fmt.Errorf("listening on %s: %w", srv.Addr, err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info("Shutting down")
	case err = <-errc:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			log.WithError(serr).Warnf("Shutting down %s", srv.Addr)
		}
	}
	return err
}
