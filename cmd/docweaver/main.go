package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docweaver/internal/config"
	"git.home.luguber.info/inful/docweaver/internal/files"
	"git.home.luguber.info/inful/docweaver/internal/metastore"
	"git.home.luguber.info/inful/docweaver/internal/metrics"
	"git.home.luguber.info/inful/docweaver/internal/notify"
	"git.home.luguber.info/inful/docweaver/internal/objectstore"
	"git.home.luguber.info/inful/docweaver/internal/queue"
	"git.home.luguber.info/inful/docweaver/internal/resolver"
	"git.home.luguber.info/inful/docweaver/internal/templates"
	"git.home.luguber.info/inful/docweaver/internal/version"
	"git.home.luguber.info/inful/docweaver/internal/worker"
)

var CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"config.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `help:"Show version and exit"`

	Worker struct {
	} `cmd:"" help:"Consume render requests and assemble documents continuously"`

	Render struct {
		Project   string `help:"Project identifier" required:""`
		Session   string `help:"Session identifier" required:""`
		Iteration int    `help:"Iteration number" required:""`
		Stage     string `help:"Stage slug" required:""`
		Identity  string `help:"Document identity (root fragment id)" required:""`
		Key       string `help:"Document key (template kind)" required:""`
	} `cmd:"" help:"Render a single document once and exit"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`
}

func main() {
	ctx := kong.Parse(&CLI, kong.Vars{
		"version": fmt.Sprintf("docweaver %s (commit %s, built %s)",
			version.Version, version.GitCommit, version.BuildTime),
	})

	switch ctx.Command() {
	case "worker":
		if err := runWorker(); err != nil {
			slog.Error("Worker failed", "error", err)
			os.Exit(1)
		}
	case "render":
		if err := runRender(); err != nil {
			slog.Error("Render failed", "error", err)
			os.Exit(1)
		}
	case "init":
		if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("Init failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Configuration file created: %s\n", CLI.Config)
	}
}

func setupLogging(cfg *config.Config) *slog.Logger {
	level := cfg.LogLevel()
	if CLI.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// components holds everything both commands need; Close releases in reverse
// construction order.
type components struct {
	meta    *metastore.SQLiteStore
	objects *objectstore.FSStore
	gateway *files.Gateway
	catalog *templates.Catalog
	worker  *worker.Worker
	closers []func() error
}

func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			slog.Warn("Failed to close component", "error", err)
		}
	}
}

func buildComponents(cfg *config.Config, logger *slog.Logger, notifier notify.Notifier, recorder metrics.Recorder) (*components, error) {
	c := &components{}

	meta, err := metastore.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}
	c.meta = meta
	c.closers = append(c.closers, meta.Close)

	objects, err := objectstore.NewFSStore(cfg.Storage.BasePath)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open object store: %w", err)
	}
	c.objects = objects
	c.closers = append(c.closers, objects.Close)

	c.gateway = files.NewGateway(objects, meta, cfg.Storage.Bucket, logger)

	c.catalog = templates.NewCatalog(cfg.Templates.Dir, cfg.Templates.Kinds, logger)
	if err := c.catalog.Load(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	c.worker = worker.New(worker.Deps{
		Resolver:  resolver.New(meta, objects, logger),
		Templates: c.catalog,
		Gateway:   c.gateway,
		Notifier:  notifier,
		Recorder:  recorder,
		Logger:    logger,
	})
	return c, nil
}

func runWorker() error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}
	logger := setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(registry)
		srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: metrics.HTTPHandler(registry)}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("Metrics endpoint listening", "addr", cfg.Metrics.Listen)
	}

	notifier, err := notify.NewNATSNotifier(ctx, cfg.NATS.URL, cfg.NATS.NotifyStream, cfg.NATS.NotifyPrefix)
	if err != nil {
		return fmt.Errorf("failed to connect notifier: %w", err)
	}
	defer func() { _ = notifier.Close() }()

	c, err := buildComponents(cfg, logger, notifier, recorder)
	if err != nil {
		return err
	}
	defer c.Close()

	watcher, err := templates.NewWatcher(c.catalog, logger)
	if err != nil {
		return fmt.Errorf("failed to watch templates: %w", err)
	}
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to watch templates: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	q, err := queue.NewNATSQueue(ctx, cfg.NATS.URL, cfg.NATS.RenderStream, cfg.NATS.RenderSubject, logger)
	if err != nil {
		return fmt.Errorf("failed to connect render queue: %w", err)
	}
	defer func() { _ = q.Close() }()

	if cfg.Sweep.Enabled {
		sweeper, err := worker.NewSweeper(c.meta, q, c.catalog,
			cfg.SweepInterval(), cfg.SweepWindow(), logger)
		if err != nil {
			return err
		}
		if err := sweeper.Start(); err != nil {
			return err
		}
		defer func() { _ = sweeper.Stop() }()
	}

	logger.Info("Worker starting",
		"version", version.Version,
		"stream", cfg.NATS.RenderStream,
		"durable", cfg.NATS.RenderDurable,
		"templates", cfg.Templates.Dir)
	return c.worker.Run(ctx, q, cfg.NATS.RenderDurable)
}

// runRender renders one document directly from the metadata store. It is an
// operational escape hatch and publishes no events.
func runRender() error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}
	logger := setupLogging(cfg)

	c, err := buildComponents(cfg, logger, notify.NopNotifier{}, metrics.NoopRecorder{})
	if err != nil {
		return err
	}
	defer c.Close()

	req := queue.RenderRequest{
		ProjectID:            CLI.Render.Project,
		SessionID:            CLI.Render.Session,
		IterationNumber:      CLI.Render.Iteration,
		StageSlug:            CLI.Render.Stage,
		DocumentIdentity:     CLI.Render.Identity,
		DocumentKey:          CLI.Render.Key,
		SourceContributionID: CLI.Render.Identity,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := c.worker.ProcessRenderRequest(ctx, req); err != nil {
		return err
	}
	logger.Info("Document rendered", "identity", req.DocumentIdentity, "key", req.DocumentKey)
	return nil
}
