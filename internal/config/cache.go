package config

import "time"

// CacheConfig controls the availability response cache. Caching is
// display-only and explicitly bounded by a short TTL; the admission
// write path never reads through it.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

// LoadCacheConfig reads environment variables with defaults.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled: getenv("CACHE_ENABLED", "true") == "true",
		TTL:     getdur("CACHE_TTL", 10*time.Second),
		Prefix:  getenv("CACHE_PREFIX", "cache"),
	}
}
