package config

import (
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const DefaultFile = "vinec.toml"

type Config struct {
	Version  int      `toml:"version"`
	Compiler Compiler `toml:"compiler"`
	Watch    Watch    `toml:"watch"`
	History  History  `toml:"history"`
	Server   Server   `toml:"server"`
	Tracing  Tracing  `toml:"tracing"`
	Cache    Cache    `toml:"cache"`
	Build    Build    `toml:"build"`
}

type Compiler struct {
	Mode              string `toml:"mode"`
	NegativeBoolProps bool   `toml:"negative_bool_props"`
	// CustomElements are glob patterns matched against template tag names.
	CustomElements []string `toml:"custom_elements"`
	RuntimeModule  string   `toml:"runtime_module"`
	MacroModule    string   `toml:"macro_module"`
	StyleBaseDir   string   `toml:"style_base_dir"`
	TemplateTags   []string `toml:"template_tags"`
	// Preprocessors maps a style language (scss, less, ...) to a command
	// that reads the stylesheet on stdin and writes CSS on stdout.
	Preprocessors map[string]string `toml:"preprocessors"`
}

type Watch struct {
	Paths                  []string      `toml:"paths"`
	Debounce               time.Duration `toml:"debounce"`
	Exclude                Exclude       `toml:"exclude"`
	MaxRecompilesPerSecond float64       `toml:"max_recompiles_per_second"`
	Burst                  int           `toml:"burst"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type History struct {
	Enabled     bool          `toml:"enabled"`
	Path        string        `toml:"path"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
	Retention   time.Duration `toml:"retention"`
}

type Server struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	// MaxClients bounds concurrent HMR event streams.
	MaxClients int `toml:"max_clients"`
	// ConnectRate limits new HMR stream connections per second.
	ConnectRate float64 `toml:"connect_rate"`
}

type Tracing struct {
	Enabled      bool   `toml:"enabled"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
}

type Cache struct {
	GraphCapacity int `toml:"graph_capacity"`
	QueueCapacity int `toml:"queue_capacity"`
}

type Build struct {
	OutDir string `toml:"out_dir"`
	// Workers bounds batch compile concurrency. 0 uses one per CPU.
	Workers int `toml:"workers"`
}

// DefaultConfig returns the configuration used when no vinec.toml exists.
func DefaultConfig() *Config {
	cfg := &Config{History: History{Enabled: true}}
	applyDefaults(cfg)
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(data))
}

// Parse decodes and validates configuration text.
func Parse(data string) (*Config, error) {
	var cfg Config
	meta, err := toml.Decode(data, &cfg)
	if err != nil {
		return nil, err
	}
	// history.enabled defaults to true only when the key is absent.
	historySet := meta.IsDefined("history", "enabled")

	applyDefaults(&cfg)
	if !historySet {
		cfg.History.Enabled = true
	}
	ApplyEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.Compiler.Mode) == "" {
		cfg.Compiler.Mode = "development"
	}
	if strings.TrimSpace(cfg.Compiler.RuntimeModule) == "" {
		cfg.Compiler.RuntimeModule = "vue"
	}
	if strings.TrimSpace(cfg.Compiler.MacroModule) == "" {
		cfg.Compiler.MacroModule = "vue-vine"
	}
	if len(cfg.Compiler.TemplateTags) == 0 {
		cfg.Compiler.TemplateTags = []string{"template", "vine"}
	}

	if len(cfg.Watch.Paths) == 0 {
		cfg.Watch.Paths = []string{"."}
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 100 * time.Millisecond
	}
	if len(cfg.Watch.Exclude.Dirs) == 0 {
		cfg.Watch.Exclude.Dirs = []string{".git", "node_modules", "dist"}
	}
	if cfg.Watch.MaxRecompilesPerSecond == 0 {
		cfg.Watch.MaxRecompilesPerSecond = 20
	}
	if cfg.Watch.Burst <= 0 {
		cfg.Watch.Burst = 10
	}

	if strings.TrimSpace(cfg.History.Path) == "" {
		cfg.History.Path = ".vinec/history.db"
	}
	if cfg.History.BusyTimeout <= 0 {
		cfg.History.BusyTimeout = 5 * time.Second
	}
	if cfg.History.Retention == 0 {
		cfg.History.Retention = 7 * 24 * time.Hour
	}

	if strings.TrimSpace(cfg.Server.Address) == "" {
		cfg.Server.Address = "127.0.0.1:5178"
	}
	if cfg.Server.MaxClients <= 0 {
		cfg.Server.MaxClients = 32
	}
	if cfg.Server.ConnectRate <= 0 {
		cfg.Server.ConnectRate = 5
	}

	if strings.TrimSpace(cfg.Tracing.ServiceName) == "" {
		cfg.Tracing.ServiceName = "vinec"
	}

	if cfg.Cache.GraphCapacity <= 0 {
		cfg.Cache.GraphCapacity = 256
	}
	if cfg.Cache.QueueCapacity <= 0 {
		cfg.Cache.QueueCapacity = 1024
	}

	if strings.TrimSpace(cfg.Build.OutDir) == "" {
		cfg.Build.OutDir = "dist"
	}
}
