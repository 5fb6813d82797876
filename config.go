package goWA

import (
	"errors"
	"strings"
	"time"
)

// Config is the complete engine configuration. It is copied by Build and
// treated as immutable afterwards.
type Config struct {
	Session   SessionConfig
	Dispatch  DispatchConfig
	Challenge ChallengeConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session startup.
type SessionConfig struct {
	// StartTimeout bounds the client's asynchronous login kickoff.
	StartTimeout time.Duration
	// EventBuffer is the per-session client event channel capacity.
	EventBuffer int
}

/*
====================================
DISPATCH CONFIG
====================================
*/

// DispatchConfig bounds every call made to a messaging client.
type DispatchConfig struct {
	SendTimeout   time.Duration
	LogoutTimeout time.Duration
	StateTimeout  time.Duration
	// AddressSuffix is appended to normalized recipient numbers.
	AddressSuffix string
	// MaxBroadcastRecipients caps one SendBroadcast. Zero means unlimited.
	MaxBroadcastRecipients int
}

/*
====================================
CHALLENGE CONFIG
====================================
*/

// ChallengeConfig controls pairing challenge rendering.
type ChallengeConfig struct {
	// Size is the PNG edge length in pixels.
	Size int
	// CacheTTL enables the Redis image cache when a Redis client is
	// configured. Zero disables it.
	CacheTTL    time.Duration
	RedisPrefix string
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// SinkTimeout bounds each delivery to the sink, e.g. one Redis XADD.
	SinkTimeout time.Duration
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			StartTimeout: 30 * time.Second,
			EventBuffer:  16,
		},
		Dispatch: DispatchConfig{
			SendTimeout:            30 * time.Second,
			LogoutTimeout:          15 * time.Second,
			StateTimeout:           5 * time.Second,
			AddressSuffix:          "@c.us",
			MaxBroadcastRecipients: 256,
		},
		Challenge: ChallengeConfig{
			Size:        256,
			CacheTTL:    0,
			RedisPrefix: "wa:qr",
		},
		Audit: AuditConfig{
			Enabled:     false,
			BufferSize:  1024,
			DropIfFull:  true,
			SinkTimeout: 2 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

// DefaultConfig returns the configuration used when Builder.WithConfig is
// never called.
func DefaultConfig() Config {
	return defaultConfig()
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	// Session
	if c.Session.StartTimeout <= 0 {
		return errors.New("session start timeout must be > 0")
	}
	if c.Session.EventBuffer <= 0 {
		return errors.New("session event buffer must be > 0")
	}

	// Dispatch
	if c.Dispatch.SendTimeout <= 0 {
		return errors.New("dispatch send timeout must be > 0")
	}
	if c.Dispatch.LogoutTimeout <= 0 {
		return errors.New("dispatch logout timeout must be > 0")
	}
	if c.Dispatch.StateTimeout <= 0 {
		return errors.New("dispatch state timeout must be > 0")
	}
	if !strings.HasPrefix(c.Dispatch.AddressSuffix, "@") || len(c.Dispatch.AddressSuffix) < 2 {
		return errors.New("dispatch address suffix must start with @ and name a server")
	}
	if strings.ContainsAny(c.Dispatch.AddressSuffix, " \t\r\n") {
		return errors.New("dispatch address suffix must not contain whitespace")
	}
	if c.Dispatch.MaxBroadcastRecipients < 0 {
		return errors.New("dispatch max broadcast recipients must be >= 0")
	}

	// Challenge
	if c.Challenge.Size < 64 || c.Challenge.Size > 2048 {
		return errors.New("challenge size must be between 64 and 2048")
	}
	if c.Challenge.CacheTTL < 0 {
		return errors.New("challenge cache TTL must be >= 0")
	}
	if c.Challenge.CacheTTL > 0 && c.Challenge.RedisPrefix == "" {
		return errors.New("challenge redis prefix required when caching is enabled")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("audit buffer size must be > 0 when audit is enabled")
	}
	if c.Audit.SinkTimeout < 0 {
		return errors.New("audit sink timeout must be >= 0")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("latency histograms require metrics to be enabled")
	}

	return nil
}
