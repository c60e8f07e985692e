package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"virtnet/internal/adapter"
	"virtnet/internal/config"
	"virtnet/internal/handler"
	"virtnet/internal/hub"
	"virtnet/internal/logging"
	"virtnet/internal/metrics"
	"virtnet/internal/service"
	"virtnet/internal/watcher"
)

// serveFlags override config values when set
type serveFlags struct {
	addr     string
	source   string
	logLevel string
	storage  string
	dataPath string
	fixture  string
}

func newServeCmd(global *globalFlags) *cobra.Command {
	flags := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the virtual network HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, global, flags)
		},
	}
	cmd.Flags().StringVarP(&flags.addr, "addr", "a", "", "listen address (default :3000)")
	cmd.Flags().StringVar(&flags.source, "source", "", "neighbor source: neo4j, fixture or nmap")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn or error")
	cmd.Flags().StringVar(&flags.storage, "storage", "", "snapshot backend: jsonfile or sqlite")
	cmd.Flags().StringVar(&flags.dataPath, "data", "", "snapshot file or database path")
	cmd.Flags().StringVar(&flags.fixture, "fixture", "", "graph file for the fixture source")
	return cmd
}

func (f *serveFlags) apply(cfg *config.Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Server.Addr, f.addr)
	set(&cfg.Source, f.source)
	set(&cfg.Log.Level, f.logLevel)
	set(&cfg.Storage.Backend, f.storage)
	set(&cfg.Storage.Path, f.dataPath)
	set(&cfg.Fixture.Path, f.fixture)
}

func runServe(cmd *cobra.Command, global *globalFlags, flags *serveFlags) error {
	cfg, cfgPath, err := loadConfig(global)
	if err != nil {
		return err
	}
	flags.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logging.New(cfg.Log)
	defer log.Sync()
	defer log.Install()()
	logger := log.Logger

	if cfgPath != "" {
		logger.Info("config loaded", zap.String("path", cfgPath))
	} else {
		logger.Info("no config file found, using defaults")
	}
	logger.Info("starting virtnet", zap.String("version", Version), zap.String("config", cfg.Summary()))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Neighbor source
	src, err := buildSource(cfg, logger)
	if err != nil {
		return err
	}
	sources := adapter.NewRegistry(logger)
	if err := sources.Register(src); err != nil {
		return err
	}
	if err := sources.Start(ctx); err != nil {
		return err
	}

	// Persistence
	store, err := openStore(cfg.Storage)
	if err != nil {
		sources.Stop(context.Background())
		return err
	}
	defer store.Close()

	// Event bus subscribers
	reg := metrics.NewRegistry()
	events := hub.New(logger)
	go events.Run(ctx)

	bus := service.NewEventBus()
	bus.Subscribe(service.PersistOnChange(store, logger, reg.RecordPersistFailure))
	bus.Subscribe(reg.Observe)
	bus.Subscribe(events.Publish)

	svc := service.NewNetworkService(sources, bus, logger)
	if d := cfg.Server.SourceTimeout.Duration(); d > 0 {
		svc.SetTimeout(d)
	}
	if err := warmStart(ctx, svc, store, logger); err != nil {
		sources.Stop(context.Background())
		return err
	}

	// Hot reload of the log level and the fixture graph
	if paths, onChange := reloadTargets(cfg, cfgPath, log, sources); len(paths) > 0 {
		go func() {
			err := watcher.New(paths, onChange, logger).Watch(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("file watcher stopped", zap.Error(err))
			}
		}()
	}

	server := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: handler.NewRouter(svc, handler.Options{
			Logger:      logger,
			Metrics:     reg,
			Events:      events,
			CORSOrigins: cfg.Server.CORSOrigins,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout.Duration(),
		WriteTimeout: cfg.Server.WriteTimeout.Duration(),
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		runErr = fmt.Errorf("server: %w", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown error", zap.Error(err))
	}
	if err := store.Delete(shutdownCtx); err != nil {
		logger.Warn("failed to delete snapshot", zap.Error(err))
	}
	svc.Reset()
	if err := sources.Stop(shutdownCtx); err != nil {
		logger.Warn("source shutdown error", zap.Error(err))
	}

	logger.Info("server stopped")
	return runErr
}

// reloadTargets lists the files to watch and the reaction to each change.
// A changed config file only updates the log level; everything else needs
// a restart.
func reloadTargets(cfg *config.Config, cfgPath string, log *logging.Logger, sources *adapter.Registry) ([]string, func(string)) {
	abs := func(p string) string {
		if a, err := filepath.Abs(p); err == nil {
			return a
		}
		return p
	}

	actions := make(map[string]func())
	if cfgPath != "" {
		actions[abs(cfgPath)] = func() {
			next, _, err := config.LoadFromPath(cfgPath)
			if err == nil {
				err = next.ApplyEnv()
			}
			if err != nil {
				log.Warn("config reload failed", zap.Error(err))
				return
			}
			if !log.SetLevel(next.Log.Level) {
				log.Warn("ignoring unknown log level", zap.String("level", next.Log.Level))
			}
		}
	}
	if cfg.Source == string(adapter.SourceFixture) && cfg.Fixture.Watch && cfg.Fixture.Path != "" {
		actions[abs(cfg.Fixture.Path)] = func() {
			if err := sources.Reload(); err != nil {
				log.Warn("fixture reload failed", zap.Error(err))
			}
		}
	}

	paths := make([]string, 0, len(actions))
	for p := range actions {
		paths = append(paths, p)
	}
	return paths, func(path string) {
		if fn, ok := actions[abs(path)]; ok {
			fn()
		}
	}
}
