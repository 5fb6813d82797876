package goWA

import (
	"testing"
	"time"

	"github.com/MrEthical07/goWA/client/memory"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Dispatch.AddressSuffix != "@c.us" {
		t.Fatalf("expected @c.us suffix, got %q", cfg.Dispatch.AddressSuffix)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "audit sink timeout negative",
			mutate: func(c *Config) {
				c.Audit.SinkTimeout = -time.Second
			},
			wantValid: false,
		},
		{
			name: "send timeout zero",
			mutate: func(c *Config) {
				c.Dispatch.SendTimeout = 0
			},
			wantValid: false,
		},
		{
			name: "logout timeout negative",
			mutate: func(c *Config) {
				c.Dispatch.LogoutTimeout = -time.Second
			},
			wantValid: false,
		},
		{
			name: "state timeout zero",
			mutate: func(c *Config) {
				c.Dispatch.StateTimeout = 0
			},
			wantValid: false,
		},
		{
			name: "start timeout zero",
			mutate: func(c *Config) {
				c.Session.StartTimeout = 0
			},
			wantValid: false,
		},
		{
			name: "event buffer zero",
			mutate: func(c *Config) {
				c.Session.EventBuffer = 0
			},
			wantValid: false,
		},
		{
			name: "suffix without at",
			mutate: func(c *Config) {
				c.Dispatch.AddressSuffix = "c.us"
			},
			wantValid: false,
		},
		{
			name: "suffix bare at",
			mutate: func(c *Config) {
				c.Dispatch.AddressSuffix = "@"
			},
			wantValid: false,
		},
		{
			name: "suffix whatsapp net",
			mutate: func(c *Config) {
				c.Dispatch.AddressSuffix = "@s.whatsapp.net"
			},
			wantValid: true,
		},
		{
			name: "broadcast cap negative",
			mutate: func(c *Config) {
				c.Dispatch.MaxBroadcastRecipients = -1
			},
			wantValid: false,
		},
		{
			name: "broadcast cap unlimited",
			mutate: func(c *Config) {
				c.Dispatch.MaxBroadcastRecipients = 0
			},
			wantValid: true,
		},
		{
			name: "challenge size too small",
			mutate: func(c *Config) {
				c.Challenge.Size = 32
			},
			wantValid: false,
		},
		{
			name: "challenge cache without prefix",
			mutate: func(c *Config) {
				c.Challenge.CacheTTL = time.Minute
				c.Challenge.RedisPrefix = ""
			},
			wantValid: false,
		},
		{
			name: "audit enabled zero buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "histograms without metrics",
			mutate: func(c *Config) {
				c.Metrics.Enabled = false
				c.Metrics.EnableLatencyHistograms = true
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected invalid config, got nil")
			}
		})
	}
}

func TestBuilderRequiresFactory(t *testing.T) {
	if _, err := New().Build(); err == nil {
		t.Fatal("expected error without client factory")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithClientFactory(memory.NewFactory(memory.Options{}))
	e, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer e.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuilderRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dispatch.SendTimeout = 0
	_, err := New().WithConfig(cfg).WithClientFactory(memory.NewFactory(memory.Options{})).Build()
	if err == nil {
		t.Fatal("expected invalid config to fail Build")
	}
}
