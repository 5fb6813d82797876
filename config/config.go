// Package config loads the gateway binary's settings from a YAML file, an
// optional .env file and WAGW_* environment variables, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	goWA "github.com/MrEthical07/goWA"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "WAGW_"

// Client drivers.
const (
	DriverWhatsmeow = "whatsmeow"
	DriverMemory    = "memory"
)

// File is the gateway binary configuration.
type File struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Auth     AuthConfig     `yaml:"auth"`
	Redis    RedisConfig    `yaml:"redis"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	Engine   EngineConfig   `yaml:"engine"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	MaxUploadBytes    int64         `yaml:"max_upload_bytes"`
	Events            bool          `yaml:"events"`
	Metrics           bool          `yaml:"metrics"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AuthConfig enables bearer tokens on the HTTP routes.
type AuthConfig struct {
	Enabled       bool          `yaml:"enabled"`
	SigningMethod string        `yaml:"signing_method"`
	Secret        string        `yaml:"secret"`
	PrivateKey    string        `yaml:"private_key_file"`
	PublicKey     string        `yaml:"public_key_file"`
	Issuer        string        `yaml:"issuer"`
	Audience      string        `yaml:"audience"`
	AccessTTL     time.Duration `yaml:"access_ttl"`
}

// RedisConfig is optional; an empty Addr disables Redis-backed features.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// AuditStream, when set, sends audit events to this Redis stream.
	AuditStream string `yaml:"audit_stream"`
}

// WhatsAppConfig selects and configures the messaging client.
type WhatsAppConfig struct {
	Driver        string `yaml:"driver"`
	StoreDSN      string `yaml:"store_dsn"`
	AutoReconnect bool   `yaml:"auto_reconnect"`
}

// EngineConfig mirrors the tunable parts of goWA.Config.
type EngineConfig struct {
	StartTimeout           time.Duration `yaml:"start_timeout"`
	EventBuffer            int           `yaml:"event_buffer"`
	SendTimeout            time.Duration `yaml:"send_timeout"`
	LogoutTimeout          time.Duration `yaml:"logout_timeout"`
	StateTimeout           time.Duration `yaml:"state_timeout"`
	AddressSuffix          string        `yaml:"address_suffix"`
	MaxBroadcastRecipients int           `yaml:"max_broadcast_recipients"`
	ChallengeSize          int           `yaml:"challenge_size"`
	ChallengeCacheTTL      time.Duration `yaml:"challenge_cache_ttl"`
	AuditEnabled           bool          `yaml:"audit_enabled"`
	LatencyHistograms      bool          `yaml:"latency_histograms"`
}

// Default returns the configuration used when no file is given.
func Default() File {
	engine := goWA.DefaultConfig()
	return File{
		Server: ServerConfig{
			Addr:              ":3001",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			MaxUploadBytes:    16 << 20,
			Events:            true,
			Metrics:           true,
		},
		Log: LogConfig{Level: "info", Format: "text"},
		Auth: AuthConfig{
			SigningMethod: "hs256",
			AccessTTL:     24 * time.Hour,
		},
		WhatsApp: WhatsAppConfig{
			Driver:        DriverWhatsmeow,
			StoreDSN:      "file:wagw.db?_foreign_keys=on",
			AutoReconnect: true,
		},
		Engine: EngineConfig{
			StartTimeout:           engine.Session.StartTimeout,
			EventBuffer:            engine.Session.EventBuffer,
			SendTimeout:            engine.Dispatch.SendTimeout,
			LogoutTimeout:          engine.Dispatch.LogoutTimeout,
			StateTimeout:           engine.Dispatch.StateTimeout,
			AddressSuffix:          engine.Dispatch.AddressSuffix,
			MaxBroadcastRecipients: engine.Dispatch.MaxBroadcastRecipients,
			ChallengeSize:          engine.Challenge.Size,
			ChallengeCacheTTL:      engine.Challenge.CacheTTL,
			AuditEnabled:           engine.Audit.Enabled,
			LatencyHistograms:      engine.Metrics.EnableLatencyHistograms,
		},
	}
}

// Load builds a File from defaults, then path (if non-empty), then envFile
// (if present), then the process environment.
func Load(path, envFile string) (File, error) {
	cfg := Default()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return File{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return File{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
			return File{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return File{}, err
	}
	if err := cfg.Validate(); err != nil {
		return File{}, err
	}
	return cfg, nil
}

// Validate checks the settings the binary depends on. Engine settings are
// validated by goWA.Config.Validate.
func (f File) Validate() error {
	if strings.TrimSpace(f.Server.Addr) == "" {
		return errors.New("server.addr is required")
	}
	if f.Server.MaxUploadBytes <= 0 {
		return errors.New("server.max_upload_bytes must be > 0")
	}
	switch f.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", f.Log.Format)
	}
	if _, err := ParseLevel(f.Log.Level); err != nil {
		return err
	}
	switch f.WhatsApp.Driver {
	case DriverWhatsmeow:
		if f.WhatsApp.StoreDSN == "" {
			return errors.New("whatsapp.store_dsn is required for the whatsmeow driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("whatsapp.driver must be %s or %s, got %q", DriverWhatsmeow, DriverMemory, f.WhatsApp.Driver)
	}
	if f.Auth.Enabled {
		switch f.Auth.SigningMethod {
		case "hs256":
			if len(f.Auth.Secret) < 32 {
				return errors.New("auth.secret must be at least 32 bytes for hs256")
			}
		case "ed25519":
			if f.Auth.PublicKey == "" {
				return errors.New("auth.public_key_file is required for ed25519")
			}
		default:
			return fmt.Errorf("auth.signing_method must be hs256 or ed25519, got %q", f.Auth.SigningMethod)
		}
		if f.Auth.AccessTTL <= 0 {
			return errors.New("auth.access_ttl must be > 0")
		}
	}
	if f.Redis.AuditStream != "" && f.Redis.Addr == "" {
		return errors.New("redis.audit_stream requires redis.addr")
	}
	return nil
}

// EngineConfig converts the file's engine section into a goWA.Config.
func (f File) EngineConfig() goWA.Config {
	cfg := goWA.DefaultConfig()
	e := f.Engine
	cfg.Session.StartTimeout = e.StartTimeout
	cfg.Session.EventBuffer = e.EventBuffer
	cfg.Dispatch.SendTimeout = e.SendTimeout
	cfg.Dispatch.LogoutTimeout = e.LogoutTimeout
	cfg.Dispatch.StateTimeout = e.StateTimeout
	cfg.Dispatch.AddressSuffix = e.AddressSuffix
	cfg.Dispatch.MaxBroadcastRecipients = e.MaxBroadcastRecipients
	cfg.Challenge.Size = e.ChallengeSize
	cfg.Challenge.CacheTTL = e.ChallengeCacheTTL
	cfg.Audit.Enabled = e.AuditEnabled || f.Redis.AuditStream != ""
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = e.LatencyHistograms
	return cfg
}

type lookupFunc func(key string) (string, bool)

// applyEnv overlays WAGW_* variables. PORT is honored for platforms that
// only inject a port.
func applyEnv(cfg *File, lookup lookupFunc) error {
	if port, ok := lookup("PORT"); ok && port != "" {
		cfg.Server.Addr = ":" + port
	}

	strs := map[string]*string{
		"SERVER_ADDR":         &cfg.Server.Addr,
		"LOG_LEVEL":           &cfg.Log.Level,
		"LOG_FORMAT":          &cfg.Log.Format,
		"AUTH_SIGNING_METHOD": &cfg.Auth.SigningMethod,
		"AUTH_SECRET":         &cfg.Auth.Secret,
		"AUTH_PRIVATE_KEY":    &cfg.Auth.PrivateKey,
		"AUTH_PUBLIC_KEY":     &cfg.Auth.PublicKey,
		"AUTH_ISSUER":         &cfg.Auth.Issuer,
		"AUTH_AUDIENCE":       &cfg.Auth.Audience,
		"REDIS_ADDR":          &cfg.Redis.Addr,
		"REDIS_PASSWORD":      &cfg.Redis.Password,
		"REDIS_AUDIT_STREAM":  &cfg.Redis.AuditStream,
		"WHATSAPP_DRIVER":     &cfg.WhatsApp.Driver,
		"WHATSAPP_STORE_DSN":  &cfg.WhatsApp.StoreDSN,
		"ADDRESS_SUFFIX":      &cfg.Engine.AddressSuffix,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"AUTH_ENABLED":            &cfg.Auth.Enabled,
		"SERVER_EVENTS":           &cfg.Server.Events,
		"SERVER_METRICS":          &cfg.Server.Metrics,
		"WHATSAPP_AUTO_RECONNECT": &cfg.WhatsApp.AutoReconnect,
		"AUDIT_ENABLED":           &cfg.Engine.AuditEnabled,
		"LATENCY_HISTOGRAMS":      &cfg.Engine.LatencyHistograms,
	}
	for key, dst := range bools {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = b
		}
	}

	durations := map[string]*time.Duration{
		"AUTH_ACCESS_TTL":     &cfg.Auth.AccessTTL,
		"START_TIMEOUT":       &cfg.Engine.StartTimeout,
		"SEND_TIMEOUT":        &cfg.Engine.SendTimeout,
		"LOGOUT_TIMEOUT":      &cfg.Engine.LogoutTimeout,
		"STATE_TIMEOUT":       &cfg.Engine.StateTimeout,
		"CHALLENGE_CACHE_TTL": &cfg.Engine.ChallengeCacheTTL,
	}
	for key, dst := range durations {
		if v, ok := lookup(EnvPrefix + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = d
		}
	}

	ints := map[string]*int{
		"REDIS_DB":                 &cfg.Redis.DB,
		"MAX_BROADCAST_RECIPIENTS": &cfg.Engine.MaxBroadcastRecipients,
		"CHALLENGE_SIZE":           &cfg.Engine.ChallengeSize,
	}
	for key, dst := range ints {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = n
		}
	}
	return nil
}
