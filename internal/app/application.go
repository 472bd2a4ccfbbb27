package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"spotter/internal/feed"
	"spotter/internal/gateway"
	"spotter/internal/logging"
	"spotter/internal/query"
	"spotter/internal/registry"
)

const shutdownTimeout = 5 * time.Second

// Application wires the registry, the feed ingestor and the HTTP gateway
type Application struct {
	config     Config
	logger     *logrus.Logger
	registry   *registry.Registry
	engine     *query.Engine
	ingestor   *feed.Ingestor
	feedConn   net.Conn
	listener   net.Listener
	server     *http.Server
	logRotator *logging.LogRotator
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	startedAt  time.Time

	errOnce sync.Once
	err     error
}

// NewApplication creates a new application instance
func NewApplication(config Config) *Application {
	ctx, cancel := context.WithCancel(context.Background())

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if config.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	return &Application{
		config: config,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start runs the application until SIGINT/SIGTERM or a fatal error
func (app *Application) Start() error {
	app.logger.WithFields(logrus.Fields{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	}).Info("Starting Spotter")

	if err := app.config.Validate(); err != nil {
		return err
	}

	if err := app.initializeComponents(); err != nil {
		app.closeResources()
		return fmt.Errorf("failed to initialize components: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	app.run()

	select {
	case sig := <-sigChan:
		app.logger.WithField("signal", sig.String()).Info("Received shutdown signal")
	case <-app.ctx.Done():
	}
	app.shutdown()

	return app.err
}

// initializeComponents builds every component and opens the feed
// connection and HTTP listener. Failing to reach the feed is fatal.
func (app *Application) initializeComponents() error {
	var err error

	if app.config.LogDir != "" {
		// The rotator reports its own problems to stderr only
		diag := logrus.New()
		diag.SetOutput(os.Stderr)
		diag.SetLevel(app.logger.GetLevel())

		app.logRotator, err = logging.NewLogRotator(logging.Options{
			Dir:           app.config.LogDir,
			UseUTC:        app.config.LogRotateUTC,
			RetentionDays: app.config.LogRetentionDays,
			Logger:        diag,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize log rotator: %w", err)
		}
		app.logger.SetOutput(io.MultiWriter(os.Stderr, app.logRotator))
	}

	app.registry = registry.New(registry.Options{
		Observer: app.config.Observer(),
		MaxRange: app.config.MaxRange,
		Logger:   app.logger,
	})
	app.engine = query.NewEngine(app.registry)

	app.ingestor = feed.NewIngestor(feed.Config{
		Addr:        app.config.FeedAddr,
		Format:      feed.Format(app.config.FeedFormat),
		MaxAge:      app.config.MaxAge,
		DialTimeout: app.config.DialTimeout,
		Backoff:     feed.DefaultBackoff(),
	}, app.registry, app.logger)

	app.feedConn, err = app.ingestor.Dial(app.ctx)
	if err != nil {
		return err
	}

	app.listener, err = net.Listen("tcp", app.config.ServeAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", app.config.ServeAddr, err)
	}
	app.server = gateway.NewServer(app.config.ServeAddr,
		gateway.New(app.engine, app.config.Observer(), app.logger))

	return nil
}

// run starts the long-lived goroutines
func (app *Application) run() {
	app.startedAt = time.Now()

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		if err := app.ingestor.Run(app.ctx, app.feedConn); err != nil {
			app.fail(fmt.Errorf("feed ingestion failed: %w", err))
		}
	}()

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.logger.WithField("addr", app.listener.Addr().String()).Info("HTTP server listening")
		if err := app.server.Serve(app.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.fail(fmt.Errorf("HTTP server failed: %w", err))
		}
	}()

	if app.logRotator != nil {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			app.logRotator.Start(app.ctx)
		}()
	}

	if app.config.SweepInterval > 0 {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			app.sweep()
		}()
	}

	if app.config.StatsInterval > 0 {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			app.reportStatistics()
		}()
	}

	app.logger.WithFields(logrus.Fields{
		"latitude":  app.config.Latitude,
		"longitude": app.config.Longitude,
		"feed":      app.config.FeedAddr,
	}).Info("All components started successfully")
}

// fail records the first fatal error and stops the application
func (app *Application) fail(err error) {
	app.errOnce.Do(func() {
		app.err = err
		app.logger.WithError(err).Error("Application error")
	})
	app.cancel()
}

// sweep evicts stale aircraft on a timer, independently of feed traffic
func (app *Application) sweep() {
	ticker := time.NewTicker(app.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-app.ctx.Done():
			return
		case <-ticker.C:
			app.registry.Evict(app.config.MaxAge)
		}
	}
}

// reportStatistics logs ingestion counters periodically
func (app *Application) reportStatistics() {
	ticker := time.NewTicker(app.config.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-app.ctx.Done():
			return
		case <-ticker.C:
			app.logStatistics()
		}
	}
}

func (app *Application) logStatistics() {
	stats := app.ingestor.Stats()

	successRate := 0.0
	if stats.Lines > 0 {
		successRate = float64(stats.Decoded) / float64(stats.Lines) * 100
	}

	app.logger.WithFields(logrus.Fields{
		"tracked":       app.registry.Len(),
		"lines":         stats.Lines,
		"decoded":       stats.Decoded,
		"corrected":     stats.Corrected,
		"empty":         stats.Empty,
		"bad_hex":       stats.BadHex,
		"idle":          stats.Idle,
		"decode_failed": stats.DecodeFailed,
		"evicted":       stats.Evicted,
		"reconnects":    stats.Reconnects,
		"success_rate":  fmt.Sprintf("%.2f%%", successRate),
		"uptime":        time.Since(app.startedAt).Round(time.Second).String(),
	}).Info("Ingestion statistics")
}

// shutdown gracefully shuts down the application
func (app *Application) shutdown() {
	app.logger.Info("Shutting down application")
	app.cancel()

	if app.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := app.server.Shutdown(ctx); err != nil {
			app.logger.WithError(err).Warn("HTTP server shutdown incomplete")
		}
		cancel()
	}

	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		app.logger.Info("All goroutines finished")
	case <-time.After(shutdownTimeout):
		app.logger.Warn("Shutdown timeout, forcing exit")
	}

	app.logger.Info("Shutdown completed")
	app.closeResources()
}

// closeResources releases whatever initializeComponents managed to open
func (app *Application) closeResources() {
	app.cancel()

	if app.feedConn != nil {
		_ = app.feedConn.Close()
	}
	if app.server == nil && app.listener != nil {
		_ = app.listener.Close()
	}
	if app.logRotator != nil {
		app.logger.SetOutput(os.Stderr)
		if err := app.logRotator.Close(); err != nil {
			app.logger.WithError(err).Warn("Failed to close log file")
		}
	}
}
