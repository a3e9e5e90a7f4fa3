package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/protomem/gatekeeper/internal/capture"
	"github.com/protomem/gatekeeper/internal/database"
	"github.com/protomem/gatekeeper/internal/engine"
	"github.com/protomem/gatekeeper/internal/env"
	"github.com/protomem/gatekeeper/internal/metrics"
	"github.com/protomem/gatekeeper/internal/version"
)

var _cfgFile = flag.String("cfg", "", "path to config file")

func init() {
	flag.Parse()
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	err := run(logger)
	if err != nil {
		trace := string(debug.Stack())
		logger.Error(err.Error(), "trace", trace)
		os.Exit(1)
	}
}

type config struct {
	httpHost string
	httpPort int
	db       struct {
		driver      string
		dsn         string
		automigrate bool
	}
	debounce struct {
		minInterval time.Duration
	}
	capture struct {
		queueSize int
	}
}

type application struct {
	config     config
	logger     *slog.Logger
	metrics    *metrics.Metrics
	sessions   engine.SessionStore
	subjects   engine.SubjectStore
	guard      *engine.Guard
	resolver   *engine.Resolver
	aggregator *engine.Aggregator
	pipeline   *capture.Pipeline
	wg         sync.WaitGroup
}

func run(logger *slog.Logger) error {
	var cfg config

	if *_cfgFile != "" {
		err := env.Load(*_cfgFile)
		if err != nil {
			return err
		}
	}

	cfg.httpHost = env.GetString("HTTP_HOST", "localhost")
	cfg.httpPort = env.GetInt("HTTP_PORT", 8080)
	cfg.db.driver = env.GetString("STORE_DRIVER", "postgres")
	cfg.db.dsn = env.GetString("DB_DSN", "postgres:postgres@localhost:5432/postgres")
	cfg.db.automigrate = env.GetBool("DB_AUTOMIGRATE", true)
	cfg.debounce.minInterval = env.GetDuration("DEBOUNCE_MIN_INTERVAL", engine.DefaultMinInterval)
	cfg.capture.queueSize = env.GetInt("CAPTURE_QUEUE_SIZE", capture.DefaultQueueSize)

	showVersion := flag.Bool("version", false, "display version and exit")

	flag.Parse()

	if *showVersion {
		fmt.Printf("version: %s\n", version.Get())
		return nil
	}

	app := &application{
		config:  cfg,
		logger:  logger,
		metrics: metrics.New(prometheus.DefaultRegisterer),
	}

	switch cfg.db.driver {
	case "memory":
		store := engine.NewMemoryStore()
		app.sessions = store
		app.subjects = store
	default:
		db, err := database.New(cfg.db.dsn, cfg.db.automigrate)
		if err != nil {
			return err
		}
		defer db.Close()

		app.sessions = database.NewSessionDAO(logger, db)
		app.subjects = database.NewSubjectDAO(logger, db)
	}

	app.guard = engine.NewGuard(cfg.debounce.minInterval)
	app.resolver = engine.NewResolver(logger, app.sessions)
	app.aggregator = engine.NewAggregator(app.sessions)
	app.pipeline = capture.NewPipeline(logger, app.guard, app.resolver, app.metrics, cfg.capture.queueSize)

	pipelineCtx, stopPipeline := context.WithCancel(context.Background())
	defer stopPipeline()

	app.background(func() {
		app.pipeline.Run(pipelineCtx)
	})

	return app.serveHTTP(stopPipeline)
}

func (app *application) background(fn func()) {
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		fn()
	}()
}
