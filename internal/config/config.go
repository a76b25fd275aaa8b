// Package config loads server configuration from file, environment, and
// flags via viper. The search order is the explicit --config path, then
// ~/.timestep/timestep-config.yaml, then ./timestep-config.yaml, with
// TIMESTEP_* environment variables overriding file values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Timestep-AI/timestep-ai-sub004/internal/observability"
)

// Storage backends for threads and run state.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	EnableCORS   bool          `mapstructure:"enable_cors"`
	Debug        bool          `mapstructure:"debug"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	StreamMaxDuration   time.Duration `mapstructure:"stream_max_duration"`
	StreamMaxBytes      int64         `mapstructure:"stream_max_bytes"`
	StreamMaxConcurrent int           `mapstructure:"stream_max_concurrent"`
}

// StorageConfig selects where threads and items are persisted.
type StorageConfig struct {
	Backend     string `mapstructure:"backend"`
	DataDir     string `mapstructure:"data_dir"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
	CacheSize   int    `mapstructure:"cache_size"`
}

// RunStateConfig selects where paused-run snapshots are persisted.
type RunStateConfig struct {
	Backend string `mapstructure:"backend"`
	DataDir string `mapstructure:"data_dir"`
}

// RuntimeConfig holds model provider settings for agent turns.
type RuntimeConfig struct {
	APIKey       string   `mapstructure:"api_key"`
	BaseURL      string   `mapstructure:"base_url"`
	Model        string   `mapstructure:"model"`
	Instructions string   `mapstructure:"instructions"`
	GuardedTools []string `mapstructure:"guarded_tools"`
}

// Config is the full server configuration.
type Config struct {
	Server        ServerConfig         `mapstructure:"server"`
	Storage       StorageConfig        `mapstructure:"storage"`
	RunState      RunStateConfig       `mapstructure:"run_state"`
	Runtime       RuntimeConfig        `mapstructure:"runtime"`
	Observability observability.Config `mapstructure:"observability"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Host:                "localhost",
			Port:                8080,
			EnableCORS:          true,
			Debug:               false,
			ReadTimeout:         30 * time.Second,
			WriteTimeout:        10 * time.Minute,
			StreamMaxDuration:   5 * time.Minute,
			StreamMaxConcurrent: 64,
		},
		Storage: StorageConfig{
			Backend:   BackendMemory,
			DataDir:   filepath.Join(dataDir, "threads"),
			CacheSize: 256,
		},
		RunState: RunStateConfig{
			Backend: BackendMemory,
			DataDir: filepath.Join(dataDir, "runstate"),
		},
		Runtime: RuntimeConfig{
			Model: "gpt-4o-mini",
		},
		Observability: observability.DefaultConfig(),
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".timestep"
	}
	return filepath.Join(home, ".timestep")
}

// Load reads configuration from configPath if given, otherwise from the
// default search paths. Environment variables with the TIMESTEP prefix
// override file values (TIMESTEP_SERVER_PORT, TIMESTEP_RUNTIME_API_KEY).
func Load(configPath string) (Config, error) {
	v := viper.New()
	v.SetConfigName("timestep-config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".timestep"))
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TIMESTEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := Default()
	v.SetDefault("server.host", def.Server.Host)
	v.SetDefault("server.port", def.Server.Port)
	v.SetDefault("server.enable_cors", def.Server.EnableCORS)
	v.SetDefault("server.debug", def.Server.Debug)
	v.SetDefault("server.read_timeout", def.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", def.Server.WriteTimeout)
	v.SetDefault("server.stream_max_duration", def.Server.StreamMaxDuration)
	v.SetDefault("server.stream_max_bytes", def.Server.StreamMaxBytes)
	v.SetDefault("server.stream_max_concurrent", def.Server.StreamMaxConcurrent)

	v.SetDefault("storage.backend", def.Storage.Backend)
	v.SetDefault("storage.data_dir", def.Storage.DataDir)
	v.SetDefault("storage.postgres_dsn", def.Storage.PostgresDSN)
	v.SetDefault("storage.cache_size", def.Storage.CacheSize)

	v.SetDefault("run_state.backend", def.RunState.Backend)
	v.SetDefault("run_state.data_dir", def.RunState.DataDir)

	// Empty defaults keep these keys visible to AutomaticEnv.
	v.SetDefault("runtime.api_key", def.Runtime.APIKey)
	v.SetDefault("runtime.base_url", def.Runtime.BaseURL)
	v.SetDefault("runtime.model", def.Runtime.Model)
	v.SetDefault("runtime.instructions", def.Runtime.Instructions)

	v.SetDefault("observability.metrics.enabled", def.Observability.Metrics.Enabled)
	v.SetDefault("observability.tracing.enabled", def.Observability.Tracing.Enabled)
	v.SetDefault("observability.tracing.exporter", def.Observability.Tracing.Exporter)
	v.SetDefault("observability.tracing.otlp_endpoint", def.Observability.Tracing.OTLPEndpoint)
	v.SetDefault("observability.tracing.sample_rate", def.Observability.Tracing.SampleRate)
	v.SetDefault("observability.tracing.service_name", def.Observability.Tracing.ServiceName)
	v.SetDefault("observability.tracing.service_version", def.Observability.Tracing.ServiceVersion)
}

// Validate checks cross-field constraints that viper cannot express.
func (c Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	switch c.Storage.Backend {
	case BackendMemory, BackendFile:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage backend %q requires storage.postgres_dsn", BackendPostgres)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.RunState.Backend {
	case BackendMemory, BackendFile:
	default:
		return fmt.Errorf("unknown run_state backend %q", c.RunState.Backend)
	}
	return nil
}

// Addr returns the listen address in host:port form.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
