package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	goWA "github.com/MrEthical07/goWA"
	"github.com/MrEthical07/goWA/api"
	"github.com/MrEthical07/goWA/client"
	"github.com/MrEthical07/goWA/client/memory"
	"github.com/MrEthical07/goWA/config"
	"github.com/MrEthical07/goWA/internal/stream"
	"github.com/MrEthical07/goWA/internal/whatsapp"
	"github.com/MrEthical07/goWA/metrics/export/prometheus"
	"github.com/MrEthical07/goWA/middleware"
)

const (
	auditStreamMaxLen = 10000
	redisPingTimeout  = 5 * time.Second
)

// gateway owns everything serve starts. Close releases it in reverse
// order of construction.
type gateway struct {
	cfg    config.File
	logger *slog.Logger

	engine *goWA.Engine
	hub    *stream.Hub
	server *http.Server

	closers []func() error
}

// newGateway wires the engine, HTTP API and optional Redis from cfg. rdb
// overrides cfg.Redis when non-nil.
func newGateway(ctx context.Context, cfg config.File, logger *slog.Logger, rdb redis.UniversalClient) (_ *gateway, err error) {
	gw := &gateway{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			gw.Close()
		}
	}()

	if rdb == nil && cfg.Redis.Addr != "" {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Addr},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		gw.closers = append(gw.closers, rdb.Close)

		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		err = rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
	}

	factory, err := gw.clientFactory(ctx)
	if err != nil {
		return nil, err
	}

	sinks := goWA.MultiSink{goWA.NewLogSink(logger.With("component", "audit"))}
	if cfg.Redis.AuditStream != "" && rdb != nil {
		sinks = append(sinks, goWA.NewRedisStreamSink(rdb, cfg.Redis.AuditStream, auditStreamMaxLen))
	}

	builder := goWA.New().
		WithConfig(cfg.EngineConfig()).
		WithClientFactory(factory).
		WithLogger(logger).
		WithAuditSink(sinks)
	if rdb != nil {
		builder = builder.WithRedis(rdb)
	}
	gw.engine, err = builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	gw.closers = append(gw.closers, func() error { gw.engine.Close(); return nil })

	opts := api.Options{
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Logger:         logger.With("component", "http"),
	}
	if cfg.Auth.Enabled {
		manager, err := newTokenManager(cfg.Auth)
		if err != nil {
			return nil, err
		}
		opts.Verifier = middleware.Verifier(manager)
	}
	if cfg.Server.Events {
		gw.hub = stream.NewHub(stream.Options{
			Snapshot: gw.engine.ListStatuses,
			Logger:   logger.With("component", "events"),
		})
		unsubscribe := gw.engine.Subscribe(gw.hub.Publish)
		gw.closers = append(gw.closers, func() error {
			unsubscribe()
			gw.hub.Close()
			return nil
		})
		opts.Events = gw.hub
	}
	if cfg.Server.Metrics {
		opts.Metrics = prometheus.NewPrometheusExporter(gw.engine).Handler()
	}

	gw.server = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.New(gw.engine, opts),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	return gw, nil
}

func (gw *gateway) clientFactory(ctx context.Context) (client.Factory, error) {
	switch gw.cfg.WhatsApp.Driver {
	case config.DriverMemory:
		gw.logger.Warn("using in-memory client driver; no messages leave this process")
		return memory.NewFactory(memory.Options{
			AutoLogin:   true,
			EventBuffer: gw.cfg.Engine.EventBuffer,
		}), nil
	default:
		f, err := whatsapp.NewFactory(ctx, whatsapp.Config{
			DSN:           gw.cfg.WhatsApp.StoreDSN,
			EventBuffer:   gw.cfg.Engine.EventBuffer,
			AutoReconnect: gw.cfg.WhatsApp.AutoReconnect,
		}, gw.logger.With("component", "whatsapp"))
		if err != nil {
			return nil, err
		}
		gw.closers = append(gw.closers, f.Close)
		return f, nil
	}
}

// Handler returns the root HTTP handler.
func (gw *gateway) Handler() http.Handler { return gw.server.Handler }

// Run serves until ctx is done, then shuts the listener down gracefully.
func (gw *gateway) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		gw.logger.Info("listening", "addr", gw.server.Addr)
		errCh <- gw.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	gw.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), gw.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := gw.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Close stops the event hub, the engine and every client and store.
func (gw *gateway) Close() {
	for i := len(gw.closers) - 1; i >= 0; i-- {
		if err := gw.closers[i](); err != nil && !errors.Is(err, io.EOF) {
			gw.logger.Warn("close failed", "error", err)
		}
	}
	gw.closers = nil
}
