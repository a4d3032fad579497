package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// CacheConfig defines settings for the Redis response cache on profile
// reads. It is off by default: profiles are read rarely and the cache only
// pays off behind a busy dashboard.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	Prefix       string
	MaxBodyBytes int
}

// LoadCacheConfig reads CACHE_* variables. All methods are upper-cased.
func LoadCacheConfig() (CacheConfig, error) {
	r := &envReader{}
	cfg := CacheConfig{
		Enabled:      r.Bool("CACHE_ENABLED", false),
		Methods:      parseMethods(envStr("CACHE_METHODS", "GET")),
		TTL:          r.Dur("CACHE_TTL", 30*time.Second),
		Prefix:       envStr("CACHE_PREFIX", "snailmail:cache"),
		MaxBodyBytes: r.Int("CACHE_MAX_BODY_BYTES", 64<<10),
	}
	if err := r.Err(); err != nil {
		return CacheConfig{}, err
	}
	if cfg.TTL <= 0 {
		return CacheConfig{}, errors.Errorf("invalid CACHE_TTL: %s", cfg.TTL)
	}
	if cfg.MaxBodyBytes <= 0 {
		return CacheConfig{}, errors.Errorf("invalid CACHE_MAX_BODY_BYTES: %d", cfg.MaxBodyBytes)
	}
	return cfg, nil
}

func parseMethods(s string) map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}
