package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: VINEC_[SECTION]_[KEY] (e.g., VINEC_SERVER_ADDRESS).
func ApplyEnvOverrides(cfg *Config) {
	// Compiler
	setEnvString(&cfg.Compiler.Mode, "VINEC_COMPILER_MODE")
	setEnvString(&cfg.Compiler.StyleBaseDir, "VINEC_COMPILER_STYLE_BASE_DIR")

	// Watch
	setEnvDuration(&cfg.Watch.Debounce, "VINEC_WATCH_DEBOUNCE")
	setEnvFloat64(&cfg.Watch.MaxRecompilesPerSecond, "VINEC_WATCH_MAX_RECOMPILES_PER_SECOND")

	// History
	setEnvBool(&cfg.History.Enabled, "VINEC_HISTORY_ENABLED")
	setEnvString(&cfg.History.Path, "VINEC_HISTORY_PATH")

	// Server
	setEnvBool(&cfg.Server.Enabled, "VINEC_SERVER_ENABLED")
	setEnvString(&cfg.Server.Address, "VINEC_SERVER_ADDRESS")

	// Tracing
	setEnvBool(&cfg.Tracing.Enabled, "VINEC_TRACING_ENABLED")
	setEnvString(&cfg.Tracing.OTLPEndpoint, "VINEC_TRACING_OTLP_ENDPOINT")

	// Cache
	setEnvInt(&cfg.Cache.GraphCapacity, "VINEC_CACHE_GRAPH_CAPACITY")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
