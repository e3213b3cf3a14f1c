// Package config loads configs/config.yml with environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"smartlift_monitor/internal/scheduler"
	"smartlift_monitor/internal/stream"
)

// EnvPrefix prefixes environment overrides, e.g. SMARTLIFT_STREAM_URL.
const EnvPrefix = "SMARTLIFT"

type Config struct {
	Port      string          `mapstructure:"port"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Server    ServerConfig    `mapstructure:"server"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Command   CommandConfig   `mapstructure:"command"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type ServerConfig struct {
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

type StreamConfig struct {
	URL       string          `mapstructure:"url"`
	Token     string          `mapstructure:"token"`
	LiftIDs   []string        `mapstructure:"lift_ids"`
	Reconnect ReconnectConfig `mapstructure:"reconnect"`
}

type ReconnectConfig struct {
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
}

type SyncConfig struct {
	BatchWindow  time.Duration `mapstructure:"batch_window"`
	MinRenderGap time.Duration `mapstructure:"min_render_gap"`
}

type CommandConfig struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type SimulatorConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Lifts   int           `mapstructure:"lifts"`
	Floors  int           `mapstructure:"floors"`
	Tick    time.Duration `mapstructure:"tick"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("db.path", "app.db")

	v.SetDefault("server.read_header_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 0) // streaming responses
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("stream.url", "http://localhost:8080/sim/stream")
	v.SetDefault("stream.token", "")
	v.SetDefault("stream.lift_ids", []string{})
	v.SetDefault("stream.reconnect.initial_delay", stream.DefaultInitialDelay)
	v.SetDefault("stream.reconnect.max_delay", stream.DefaultMaxDelay)

	v.SetDefault("sync.batch_window", scheduler.DefaultBatchWindow)
	v.SetDefault("sync.min_render_gap", scheduler.DefaultMinRenderGap)

	v.SetDefault("command.url", "http://localhost:8080/sim/commands")
	v.SetDefault("command.token", "")
	v.SetDefault("command.timeout", 5*time.Second)

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("simulator.enabled", true)
	v.SetDefault("simulator.lifts", 4)
	v.SetDefault("simulator.floors", 12)
	v.SetDefault("simulator.tick", time.Second)
}

// Load reads the config file at path (empty path: ./configs/config.yml when
// present) and applies SMARTLIFT_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs")
		v.SetConfigName("config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that have no sensible fallback.
func (c *Config) Validate() error {
	if c.Stream.URL == "" {
		return errors.New("stream.url is required")
	}
	if c.Sync.BatchWindow <= 0 {
		return fmt.Errorf("sync.batch_window must be positive, got %s", c.Sync.BatchWindow)
	}
	if c.Sync.MinRenderGap < 0 {
		return fmt.Errorf("sync.min_render_gap must not be negative, got %s", c.Sync.MinRenderGap)
	}
	if c.Simulator.Enabled && (c.Simulator.Lifts <= 0 || c.Simulator.Floors <= 0) {
		return errors.New("simulator.lifts and simulator.floors must be positive")
	}
	return nil
}
