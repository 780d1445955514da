package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. MISSIONCTL_SERVER_PORT.
const EnvPrefix = "MISSIONCTL"

// Config is the daemon configuration: defaults, then home/config.yaml, then
// MISSIONCTL_* environment variables. CLI flags are applied last by the caller.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Engine EngineConfig `yaml:"engine"`
	Auth   AuthConfig   `yaml:"auth"`
	Sinks  SinksConfig  `yaml:"sinks"`
	Log    LogConfig    `yaml:"log"`
}

type ServerConfig struct {
	Host         string   `yaml:"host" split_words:"true"`
	Port         int      `yaml:"port" split_words:"true"`
	// RPCAddr is the gRPC listen address; empty disables the listener.
	RPCAddr      string   `yaml:"rpc_addr" split_words:"true"`
	CORSOrigins  []string `yaml:"cors_origins" split_words:"true"`
	MaxBodyBytes int64    `yaml:"max_body_bytes" split_words:"true"`
	PprofAddr    string   `yaml:"pprof_addr" split_words:"true"`
}

type StoreConfig struct {
	// Driver is sqlite, sqlite3 or postgres.
	Driver string `yaml:"driver" split_words:"true"`
	DSN    string `yaml:"dsn" split_words:"true"`
}

type EngineConfig struct {
	Profile        string `yaml:"profile" split_words:"true"`
	Transactional  bool   `yaml:"transactional" split_words:"true"`
	SilentNotFound bool   `yaml:"silent_not_found" split_words:"true"`
	DedupeMentions bool   `yaml:"dedupe_mentions" split_words:"true"`
}

type AuthConfig struct {
	// Password gates the HTTP API (login cookie or X-API-Key). Empty disables the gate.
	Password string `yaml:"password" split_words:"true"`
}

type SinksConfig struct {
	SlackWebhookURL string   `yaml:"slack_webhook_url" split_words:"true"`
	SlackChannel    string   `yaml:"slack_channel" split_words:"true"`
	SlackUsername   string   `yaml:"slack_username" split_words:"true"`
	SlackEvents     []string `yaml:"slack_events" split_words:"true"`
	KafkaBrokers    []string `yaml:"kafka_brokers" split_words:"true"`
	KafkaTopic      string   `yaml:"kafka_topic" split_words:"true"`
}

type LogConfig struct {
	Level  string `yaml:"level" split_words:"true"`  // debug, info, warn, error
	Format string `yaml:"format" split_words:"true"` // text or json
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         3548,
			MaxBodyBytes: 1 << 20,
		},
		Store:  StoreConfig{Driver: "sqlite"},
		Engine: EngineConfig{Profile: "rich", Transactional: true},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Path returns the config file location under home.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// Load builds the configuration for home. A missing config file is not an error.
func Load(home string) (Config, error) {
	cfg := Default()
	if home != "" {
		data, err := os.ReadFile(Path(home))
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", Path(home), err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return cfg, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	sections := []struct {
		prefix string
		spec   any
	}{
		{EnvPrefix + "_SERVER", &cfg.Server},
		{EnvPrefix + "_STORE", &cfg.Store},
		{EnvPrefix + "_ENGINE", &cfg.Engine},
		{EnvPrefix + "_AUTH", &cfg.Auth},
		{EnvPrefix + "_SINKS", &cfg.Sinks},
		{EnvPrefix + "_LOG", &cfg.Log},
	}
	for _, s := range sections {
		if err := envconfig.Process(s.prefix, s.spec); err != nil {
			return fmt.Errorf("env %s_*: %w", s.prefix, err)
		}
	}
	return nil
}

// Validate checks enumerated settings.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case "", "sqlite", "sqlite3", "postgres":
	default:
		return fmt.Errorf("store.driver %q: want sqlite, sqlite3 or postgres", c.Store.Driver)
	}
	switch c.Engine.Profile {
	case "", "rich", "simple":
	default:
		return fmt.Errorf("engine.profile %q: want rich or simple", c.Engine.Profile)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format %q: want text or json", c.Log.Format)
	}
	return nil
}

// Save writes cfg to home/config.yaml.
func Save(home string, cfg Config) error {
	if err := os.MkdirAll(home, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(Path(home), data, 0o600)
}
