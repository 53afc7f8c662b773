package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/satwatch/internal/config"
	"github.com/ivlev/satwatch/internal/pipeline"
	"github.com/ivlev/satwatch/internal/profile"
	"github.com/ivlev/satwatch/internal/sessiondb"
	"github.com/ivlev/satwatch/internal/source"
	"github.com/ivlev/satwatch/internal/store"
	"github.com/ivlev/satwatch/internal/system"
	"github.com/ivlev/satwatch/internal/vision"
	"github.com/ivlev/satwatch/internal/web"
)

func main() {
	configPtr := flag.String("config", "", "Path to YAML config (built-in defaults when empty)")
	sourcePtr := flag.String("source", "", "Directory of recorded frames (overrides config)")
	listenPtr := flag.String("listen", "", "HTTP listen address (overrides config)")
	profilesPtr := flag.String("profiles", "", "Threshold profiles CSV (overrides config)")
	archivePtr := flag.String("archive", "", "SQLite session archive path (overrides config)")
	logLevelPtr := flag.String("log-level", "", "Log level: debug, info, warn, error")
	flag.Parse()

	cfg := config.Default()
	if *configPtr != "" {
		loaded, err := config.Load(*configPtr)
		if err != nil {
			logrus.Fatalf("Failed to load config %s: %v", *configPtr, err)
		}
		cfg = loaded
	}
	if *sourcePtr != "" {
		cfg.Source.Dir = *sourcePtr
	}
	if *listenPtr != "" {
		cfg.Listen = *listenPtr
	}
	if *profilesPtr != "" {
		cfg.Profiles = *profilesPtr
	}
	if *archivePtr != "" {
		cfg.Archive = *archivePtr
	}
	if *logLevelPtr != "" {
		cfg.LogLevel = *logLevelPtr
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Unknown log level %q, staying on info", cfg.LogLevel)
		} else {
			logger.SetLevel(level)
		}
	}

	system.InitResourceLimits(logger)

	holder, err := config.NewHolder(cfg.Settings)
	if err != nil {
		logger.Fatalf("Invalid analysis settings: %v", err)
	}

	finder, err := vision.NewFinder(cfg.Finder)
	if err != nil {
		logger.Fatalf("Cannot build candidate finder: %v", err)
	}

	profiles := profile.NewManager(logger)
	if cfg.Profiles != "" {
		if err := profiles.LoadCSV(cfg.Profiles); err != nil {
			logger.Fatalf("Cannot load threshold profiles: %v", err)
		}
	}

	series := store.New()
	monitor := pipeline.NewMonitor(logger, holder, finder, profiles, series)

	if cfg.Source.Dir != "" {
		interval := time.Duration(cfg.Source.FrameInterval * float64(time.Second))
		src, err := source.NewImageDirSource(cfg.Source.Dir, interval, cfg.Source.MaxWidth)
		if err != nil {
			logger.Fatalf("Cannot open frame source %s: %v", cfg.Source.Dir, err)
		}
		logger.Infof("Frame source: %s (%d frames, %.0fms interval)",
			cfg.Source.Dir, src.Len(), cfg.Source.FrameInterval*1000)
		monitor.SetSource(src, interval)
	} else {
		logger.Info("No frame source configured, waiting for /api/v1/source")
	}

	server := &http.Server{
		Addr:    cfg.Listen,
		Handler: web.NewHandler(monitor, holder, logger).Router(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return monitor.Run(ctx)
	})
	g.Go(func() error {
		logger.Infof("Listening on %s", cfg.Listen)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("Shutdown error: %v", err)
	}

	if cfg.Archive != "" {
		archiveSession(logger, cfg.Archive, holder.Load().ActiveProfile, series)
	}
	logger.Info("Stopped")
}

// archiveSession persists the finished run to the SQLite archive.
func archiveSession(logger *logrus.Logger, path, activeProfile string, series *store.Store) {
	archive, err := sessiondb.Open(path)
	if err != nil {
		logger.Errorf("Cannot open session archive: %v", err)
		os.Exit(1)
	}
	defer archive.Close()

	id, err := archive.SaveSession(activeProfile, series.All())
	if err != nil {
		logger.Errorf("Failed to archive session: %v", err)
		return
	}
	if id == "" {
		logger.Info("Empty run, nothing archived")
		return
	}
	logger.Infof("Session archived as %s (%d records)", id, series.Len())
}
