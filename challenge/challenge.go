// Package challenge renders login challenges (QR payloads) as PNG data URLs.
//
// Encoding is stateless and lazy: nothing is rendered until a caller asks.
// An optional [Cache] keyed by the exact challenge string saves re-encoding
// when the same challenge is polled repeatedly; cache errors only cost a
// re-encode.
package challenge

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	qrcode "github.com/skip2/go-qrcode"
)

// ErrEmptyChallenge is returned when there is nothing to encode.
var ErrEmptyChallenge = errors.New("empty challenge")

const dataURLPrefix = "data:image/png;base64,"

// Config controls rendering and caching.
type Config struct {
	// Size is the PNG edge length in pixels. Defaults to 256.
	Size int
	// CacheTTL is how long rendered images stay cached. Zero disables caching.
	CacheTTL time.Duration
}

// Cache stores rendered data URLs. Get reports ok=false on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Encoder renders challenges. It is safe for concurrent use.
type Encoder struct {
	size    int
	ttl     time.Duration
	cache   Cache
	encodes atomic.Uint64
}

// NewEncoder returns an Encoder. cache may be nil.
func NewEncoder(cfg Config, cache Cache) *Encoder {
	if cfg.Size <= 0 {
		cfg.Size = 256
	}
	if cfg.CacheTTL <= 0 {
		cache = nil
	}
	return &Encoder{
		size:  cfg.Size,
		ttl:   cfg.CacheTTL,
		cache: cache,
	}
}

// PNG renders challenge as a PNG image.
func (e *Encoder) PNG(challenge string) ([]byte, error) {
	if challenge == "" {
		return nil, ErrEmptyChallenge
	}
	png, err := qrcode.Encode(challenge, qrcode.Medium, e.size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	e.encodes.Add(1)
	return png, nil
}

// DataURL renders challenge as a data:image/png;base64 URL, consulting the
// cache first.
func (e *Encoder) DataURL(ctx context.Context, challenge string) (string, error) {
	if challenge == "" {
		return "", ErrEmptyChallenge
	}

	key := cacheKey(challenge)
	if e.cache != nil {
		if v, ok, err := e.cache.Get(ctx, key); err == nil && ok {
			return v, nil
		}
	}

	png, err := e.PNG(challenge)
	if err != nil {
		return "", err
	}
	url := dataURLPrefix + base64.StdEncoding.EncodeToString(png)

	if e.cache != nil {
		_ = e.cache.Set(ctx, key, url, e.ttl)
	}
	return url, nil
}

// Encodes returns how many images were rendered (cache misses).
func (e *Encoder) Encodes() uint64 {
	return e.encodes.Load()
}

func cacheKey(challenge string) string {
	sum := sha256.Sum256([]byte(challenge))
	return hex.EncodeToString(sum[:])
}
