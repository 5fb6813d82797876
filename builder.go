package goWA

import (
	"errors"
	"log/slog"

	"github.com/MrEthical07/goWA/challenge"
	"github.com/MrEthical07/goWA/client"
	"github.com/MrEthical07/goWA/internal/audit"
	"github.com/MrEthical07/goWA/internal/bridge"
	"github.com/MrEthical07/goWA/internal/dispatch"
	"github.com/MrEthical07/goWA/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. A Builder can be built exactly once.
type Builder struct {
	config  Config
	factory client.Factory
	redis   redis.UniversalClient
	logger  *slog.Logger

	auditSink AuditSink

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithClientFactory sets the factory producing one messaging client per
// session. Required.
func (b *Builder) WithClientFactory(f client.Factory) *Builder {
	b.factory = f
	return b
}

// WithRedis enables the challenge image cache when Challenge.CacheTTL > 0.
func (b *Builder) WithRedis(rdb redis.UniversalClient) *Builder {
	b.redis = rdb
	return b
}

// WithLogger sets the structured logger. The default discards.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the sink fed by the audit dispatcher. Audit.Enabled
// must also be set for events to flow.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.factory == nil {
		return nil, errors.New("client factory required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	engine := &Engine{
		config:    cfg,
		logger:    logger,
		metrics:   NewMetrics(cfg.Metrics),
		observers: newObserverSet(),
	}

	// -------- AUDIT --------
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:     cfg.Audit.Enabled,
		BufferSize:  cfg.Audit.BufferSize,
		DropIfFull:  cfg.Audit.DropIfFull,
		SinkTimeout: cfg.Audit.SinkTimeout,
	}, b.auditSink)

	// -------- SESSIONS --------
	engine.bridge = bridge.New(logger.With("component", "bridge"), bridge.Hooks{
		Transition: engine.onTransition,
		Closed:     engine.onRemoteClose,
	})
	engine.registry = session.NewRegistry(session.Config{
		StartTimeout:  cfg.Session.StartTimeout,
		LogoutTimeout: cfg.Dispatch.LogoutTimeout,
	}, b.factory, engine.bridge.Attach)

	// -------- DISPATCH --------
	engine.dispatcher = dispatch.New(dispatch.Config{
		SendTimeout:            cfg.Dispatch.SendTimeout,
		AddressSuffix:          cfg.Dispatch.AddressSuffix,
		MaxBroadcastRecipients: cfg.Dispatch.MaxBroadcastRecipients,
	}, engine.registry, dispatch.Hooks{
		Sent: engine.onSent,
	}, logger.With("component", "dispatch"))

	// -------- CHALLENGE --------
	var cache challenge.Cache
	if b.redis != nil && cfg.Challenge.CacheTTL > 0 {
		cache = challenge.NewRedisCache(b.redis, cfg.Challenge.RedisPrefix)
	}
	engine.encoder = challenge.NewEncoder(challenge.Config{
		Size:     cfg.Challenge.Size,
		CacheTTL: cfg.Challenge.CacheTTL,
	}, cache)

	b.built = true

	return engine, nil
}
