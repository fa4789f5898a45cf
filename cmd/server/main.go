package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/example/bikerides/internal/config"
	"github.com/example/bikerides/internal/directory"
	"github.com/example/bikerides/internal/dispatch"
	"github.com/example/bikerides/internal/geo"
	"github.com/example/bikerides/internal/geocode"
	httpapi "github.com/example/bikerides/internal/http"
	"github.com/example/bikerides/internal/ingest"
	"github.com/example/bikerides/internal/logging"
	"github.com/example/bikerides/internal/storage"
)

func main() {
	cfg, err := config.ReadServerConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	pflag.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "address to listen on")
	pflag.StringVar(&cfg.SeedFile, "seed-file", cfg.SeedFile, "YAML file with the rides a fresh directory starts with")
	pflag.StringVar(&cfg.StorageBackend, "storage", cfg.StorageBackend, "snapshot backend: file, memory, redis or postgres")
	pflag.Parse()
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slot, closeSlot, err := openSlot(ctx, cfg)
	if err != nil {
		logger.Error("open snapshot storage", "backend", cfg.StorageBackend, "error", err)
		os.Exit(1)
	}
	defer closeSlot()

	opts := directory.Options{
		Store:         storage.NewSnapshotStore(slot, cfg.SnapshotKey, logger),
		User:          directory.User{ID: cfg.UserID, Name: cfg.UserName},
		Center:        cfg.DefaultCenter(),
		StrictNumbers: cfg.StrictNumbers,
		Logger:        logger,
	}
	if cfg.SeedFile != "" {
		seed, err := directory.SeedFromFile(cfg.SeedFile)
		if err != nil {
			logger.Error("load seed file", "error", err)
			os.Exit(1)
		}
		opts.Seed = seed
	}

	var geocoder geocode.Geocoder
	if cfg.GeocoderKey != "" {
		mt := geocode.NewMapTilerClient(cfg.GeocoderEndpoint, cfg.GeocoderKey)
		mt.Language = cfg.GeocoderLanguage
		mt.Limit = cfg.GeocoderLimit
		geocoder = geocode.NewCache(mt, cfg.GeocodeCacheTTL)
	} else {
		logger.Info("geocoder disabled, GEOCODER_KEY not set")
	}

	hub := dispatch.NewHub(geocoder, cfg.SearchDebounce, logger)
	defer hub.Close()
	opts.Sinks = append(opts.Sinks, hub)

	if len(cfg.KafkaBrokers) > 0 {
		kp := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer kp.Close()
		opts.Sinks = append(opts.Sinks, kp)
	}

	dir := directory.New(ctx, opts)
	defer dir.Close()

	var locator geo.Locator
	if cfg.LocatorEndpoint != "" {
		locator = geo.NewHTTPLocator(cfg.LocatorEndpoint)
	}

	api := httpapi.NewServer(httpapi.Options{
		Directory:     dir,
		Geocoder:      geocoder,
		Hub:           hub,
		Locator:       locator,
		LocateTimeout: cfg.LocatorTimeout,
		Logger:        logger,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("bikerides listening", "addr", cfg.HTTPAddr, "storage", cfg.StorageBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("http server stopped", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	logger.Info("bikerides stopped")
}

func openSlot(ctx context.Context, cfg config.ServerConfig) (storage.Slot, func(), error) {
	noop := func() {}
	switch cfg.StorageBackend {
	case config.BackendMemory:
		return storage.NewMemorySlot(), noop, nil
	case config.BackendRedis:
		rs := storage.NewRedisSlot(cfg.RedisAddr, cfg.RedisPassword)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rs.Ping(pingCtx); err != nil {
			_ = rs.Close()
			return nil, noop, err
		}
		return rs, func() { _ = rs.Close() }, nil
	case config.BackendPostgres:
		ps, err := storage.NewPostgresSlot(ctx, cfg.PGDSN)
		if err != nil {
			return nil, noop, err
		}
		return ps, func() { _ = ps.Close() }, nil
	default:
		fs, err := storage.NewFileSlot(cfg.DataDir)
		if err != nil {
			return nil, noop, err
		}
		return fs, noop, nil
	}
}
