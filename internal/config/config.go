package config

import (
	"fmt"
	"os"
	"time"

	"emailai/pkg/config"
)

// Store driver
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Draft provider
const (
	ProviderTemplate = "template"
	ProviderReply    = "reply"
	ProviderOpenAI   = "openai"
)

type StoreConfig struct {
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`
}

type DraftConfig struct {
	Provider string        `yaml:"provider"`
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
}

type StatsConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// SessionConfig API 进程内每个 actor 的邮件缓存
type SessionConfig struct {
	IdleTTL       time.Duration `yaml:"idle_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type OutboxConfig struct {
	Interval   time.Duration `yaml:"interval"`
	BatchSize  int           `yaml:"batch_size"`
	MaxRetries int           `yaml:"max_retries"`
}

type Config struct {
	ServiceName string              `yaml:"service_name"`
	LogLevel    string              `yaml:"log_level"`
	Store       StoreConfig         `yaml:"store"`
	DB          config.DBConfig     `yaml:"db"`
	MQ          config.MQConfig     `yaml:"mq"`
	Redis       config.RedisConfig  `yaml:"redis"`
	JWT         config.JWTConfig    `yaml:"jwt"`
	Server      config.ServerConfig `yaml:"server"`
	OTel        config.OTelConfig   `yaml:"otel"`
	Draft       DraftConfig         `yaml:"draft"`
	Stats       StatsConfig         `yaml:"stats"`
	Sessions    SessionConfig       `yaml:"sessions"`
	Outbox      OutboxConfig        `yaml:"outbox"`
}

// Load 读取 configDir 下 base.yaml + <env>.yaml，再用环境变量覆盖
func Load(env, configDir string) (*Config, error) {
	cfg := defaults()
	if err := config.LoadInto(env, configDir, cfg); err != nil {
		return nil, err
	}

	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideOTelFromEnv(&cfg.OTel)
	overrideFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		ServiceName: "emailai",
		LogLevel:    "info",
		Store:       StoreConfig{Driver: DriverPostgres, SQLitePath: "emailai.db"},
		Server:      config.ServerConfig{Port: ":8080"},
		JWT:         config.JWTConfig{TTL: 24 * time.Hour},
		Draft:       DraftConfig{Provider: ProviderTemplate, Timeout: 10 * time.Second},
		Stats:       StatsConfig{CacheTTL: 5 * time.Minute},
		Sessions:    SessionConfig{IdleTTL: 30 * time.Minute, SweepInterval: time.Minute},
		Outbox:      OutboxConfig{Interval: time.Second, BatchSize: 100, MaxRetries: 5},
	}
}

func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Store.SQLitePath = v
	}
	if v := os.Getenv("DRAFT_PROVIDER"); v != "" {
		cfg.Draft.Provider = v
	}
	if v := os.Getenv("DRAFT_BASE_URL"); v != "" {
		cfg.Draft.BaseURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Draft.APIKey = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// Validate 检查枚举类配置
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Sessions.IdleTTL <= 0 || c.Sessions.SweepInterval <= 0 {
		return fmt.Errorf("sessions idle_ttl and sweep_interval must be positive")
	}
	switch c.Draft.Provider {
	case ProviderTemplate:
	case ProviderReply:
		if c.Draft.BaseURL == "" {
			return fmt.Errorf("draft provider %q requires base_url", c.Draft.Provider)
		}
	case ProviderOpenAI:
		if c.Draft.APIKey == "" {
			return fmt.Errorf("draft provider %q requires api_key", c.Draft.Provider)
		}
	default:
		return fmt.Errorf("unknown draft provider %q", c.Draft.Provider)
	}
	return nil
}
