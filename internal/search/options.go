package search

import (
	"os"
	"strconv"
	"time"
)

// OptionsFromEnv resolves engine tuning overrides from the environment.
// Unset or unparseable values keep the built-in defaults.
//
//	SEARCH_TOP_PER_DOCUMENT  diversity cap per document
//	SEARCH_BREADTH_FACTOR    returned breadth = limit * factor
//	SEARCH_OVERFETCH_FACTOR  per-backend fetch = max(20, limit * factor)
//	SEARCH_CACHE_TTL_SECONDS result cache lifetime
func OptionsFromEnv() Options {
	var opts Options
	if v := envInt("SEARCH_TOP_PER_DOCUMENT"); v > 0 {
		opts.TopPerDocument = v
	}
	if v := envInt("SEARCH_BREADTH_FACTOR"); v > 0 {
		opts.BreadthFactor = v
	}
	if v := envInt("SEARCH_OVERFETCH_FACTOR"); v > 0 {
		opts.OverFetchFactor = v
	}
	if v := envInt("SEARCH_CACHE_TTL_SECONDS"); v > 0 {
		opts.CacheTTL = time.Duration(v) * time.Second
	}
	return opts
}

// envInt parses an integer env var, returning 0 when unset or invalid.
func envInt(key string) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return 0
}
