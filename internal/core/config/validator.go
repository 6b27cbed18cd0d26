package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

func validate(cfg *Config) error {
	for _, check := range []func(*Config) error{
		validateVersion,
		validateCompiler,
		validateWatch,
		validateHistory,
		validateServer,
		validateTracing,
	} {
		if err := check(cfg); err != nil {
			return err
		}
	}
	return nil
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateCompiler(cfg *Config) error {
	mode := strings.ToLower(strings.TrimSpace(cfg.Compiler.Mode))
	if mode != "development" && mode != "production" {
		return fmt.Errorf("compiler.mode must be one of: development, production")
	}
	cfg.Compiler.Mode = mode

	for i, pattern := range cfg.Compiler.CustomElements {
		if strings.TrimSpace(pattern) == "" {
			return fmt.Errorf("compiler.custom_elements[%d] must not be empty", i)
		}
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("compiler.custom_elements[%d]: invalid pattern %q: %w", i, pattern, err)
		}
	}
	for i, tag := range cfg.Compiler.TemplateTags {
		if !isIdentifier(tag) {
			return fmt.Errorf("compiler.template_tags[%d]: %q is not an identifier", i, tag)
		}
	}
	for lang, cmd := range cfg.Compiler.Preprocessors {
		if lang == "css" {
			return fmt.Errorf("compiler.preprocessors: css needs no preprocessor")
		}
		if strings.TrimSpace(cmd) == "" {
			return fmt.Errorf("compiler.preprocessors.%s must not be empty", lang)
		}
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must be >= 0")
	}
	if cfg.Watch.MaxRecompilesPerSecond < 0 {
		return fmt.Errorf("watch.max_recompiles_per_second must be >= 0")
	}
	for i, pattern := range cfg.Watch.Exclude.Files {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("watch.exclude.files[%d]: invalid pattern %q: %w", i, pattern, err)
		}
	}
	seen := make(map[string]bool, len(cfg.Watch.Paths))
	for i, p := range cfg.Watch.Paths {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("watch.paths[%d] must not be empty", i)
		}
		clean := filepath.Clean(p)
		if seen[clean] {
			return fmt.Errorf("duplicate watch path %q", p)
		}
		seen[clean] = true
	}
	return nil
}

func validateHistory(cfg *Config) error {
	if cfg.History.Enabled && strings.TrimSpace(cfg.History.Path) == "" {
		return fmt.Errorf("history.path must not be empty")
	}
	if cfg.History.Retention < 0 {
		return fmt.Errorf("history.retention must be >= 0")
	}
	return nil
}

func validateServer(cfg *Config) error {
	if !cfg.Server.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(cfg.Server.Address); err != nil {
		return fmt.Errorf("server.address %q: %w", cfg.Server.Address, err)
	}
	return nil
}

func validateTracing(cfg *Config) error {
	if cfg.Tracing.Enabled && strings.TrimSpace(cfg.Tracing.OTLPEndpoint) == "" {
		return fmt.Errorf("tracing.otlp_endpoint is required when tracing is enabled")
	}
	return nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
