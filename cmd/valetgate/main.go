package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"valetgate/internal/blobstore"
	"valetgate/internal/config"
	"valetgate/internal/events"
	"valetgate/internal/gateway"
	"valetgate/internal/session"
	"valetgate/internal/valet"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func Run(ctx context.Context) error {

	handler := log.NewWithOptions(os.Stdout, log.Options{
		Level:           log.DebugLevel,
		TimeFormat:      time.RFC3339,
		ReportTimestamp: true,
		TimeFunction:    log.NowUTC,
		ReportCaller:    true,
	})

	slog.SetDefault(slog.New(handler))

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := newObjectStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create object store: %w", err)
	}

	sessions, closeSessions, err := newSessionStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create session store: %w", err)
	}
	defer closeSessions()

	publisher, closePublisher := newPublisher(cfg)
	defer closePublisher()

	decoder := valet.NewHS256([]byte(cfg.TokenSecret), cfg.TokenIssuer, time.Hour)

	server, err := gateway.NewServer(gateway.Config{
		MaxChunkBytes: cfg.MaxChunkBytes,
		Store:         store,
		Sessions:      sessions,
		Events:        publisher,
		Decoder:       decoder,
	})
	if err != nil {
		return fmt.Errorf("failed to create gateway server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 20 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      20 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	eg.Go(func() error {
		slog.Info("Starting gateway HTTP server", "addr", cfg.ListenAddr)
		err := httpServer.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	slog.Info("Gateway started", "storage", cfg.StorageBackend, "sessions", cfg.SessionBackend)
	return eg.Wait()
}

func newObjectStore(ctx context.Context, cfg *config.Config) (blobstore.ObjectStore, error) {
	switch cfg.StorageBackend {
	case config.StorageMinio:
		store, err := blobstore.NewMinio(blobstore.MinioConfig{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
			PathStyle: cfg.S3PathStyle,
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil

	case config.StorageLocal:
		absDataDir, err := filepath.Abs(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve data directory: %w", err)
		}
		if err := os.MkdirAll(absDataDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		return blobstore.NewLocal(absDataDir), nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func newSessionStore(ctx context.Context, cfg *config.Config) (session.Store, func(), error) {
	switch cfg.SessionBackend {
	case config.SessionsRedis:
		store := session.NewRedis(session.RedisConfig{
			Addr:     cfg.RedisAddr,
			DB:       cfg.RedisDB,
			Password: cfg.RedisPassword,
			TTL:      24 * time.Hour,
		})
		if err := store.Ping(ctx); err != nil {
			return nil, nil, fmt.Errorf("redis unreachable: %w", err)
		}
		return store, func() { _ = store.Close() }, nil

	case config.SessionsSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SessionDBPath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create session db directory: %w", err)
		}
		store, err := session.NewSQLite(cfg.SessionDBPath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil

	case config.SessionsMemory:
		return session.NewMemory(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}

func newPublisher(cfg *config.Config) (events.Publisher, func()) {
	if cfg.RedisAddr == "" {
		return events.Discard{}, func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		DB:       cfg.RedisDB,
		Password: cfg.RedisPassword,
	})
	return events.NewRedisPublisher(rdb, cfg.EventChannel), func() { _ = rdb.Close() }
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx); err != nil {
		slog.Error("Gateway exited with error", "error", err)
	}
}
