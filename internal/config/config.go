package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full marketplace service configuration.
type Config struct {
	Environment string `mapstructure:"environment"`
	ListenAddr  string `mapstructure:"listen_addr"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	Postgres struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"postgres"`

	Dispatch struct {
		Interval       time.Duration `mapstructure:"interval"`
		BatchSize      int           `mapstructure:"batch_size"`
		WebhookTimeout time.Duration `mapstructure:"webhook_timeout"`
		MaxConcurrent  int           `mapstructure:"max_concurrent"`
		PlatformSecret string        `mapstructure:"platform_secret"`
	} `mapstructure:"dispatch"`

	Payment struct {
		FacilitatorURL     string        `mapstructure:"facilitator_url"`
		Timeout            time.Duration `mapstructure:"timeout"`
		StrictVerification bool          `mapstructure:"strict_verification"`
		Network            string        `mapstructure:"network"`
		AssetAddress       string        `mapstructure:"asset_address"`
	} `mapstructure:"payment"`

	Judge struct {
		APIKey  string        `mapstructure:"api_key"`
		BaseURL string        `mapstructure:"base_url"`
		Model   string        `mapstructure:"model"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"judge"`

	Slashing struct {
		// PenaltyUnit is the per-slash deduction in the smallest currency unit.
		PenaltyUnit string `mapstructure:"penalty_unit"`
	} `mapstructure:"slashing"`

	Dispute struct {
		QuorumVotes int `mapstructure:"quorum_votes"`
	} `mapstructure:"dispute"`

	Chain struct {
		RPCURL  string        `mapstructure:"rpc_url"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"chain"`

	Metrics struct {
		Enabled        bool `mapstructure:"enabled"`
		PrometheusPort int  `mapstructure:"prometheus_port"`
	} `mapstructure:"metrics"`

	Tracing struct {
		Enabled      bool    `mapstructure:"enabled"`
		OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
		SampleRate   float64 `mapstructure:"sample_rate"`
	} `mapstructure:"tracing"`
}

// Load reads configuration from an optional file plus AGORA_* env overrides.
// The file, when path is empty, is searched as agora.yaml in the working
// directory and $HOME.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("agora")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	v.SetEnvPrefix("AGORA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Missing config file is fine: defaults + env carry the service.
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

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("dispatch.interval", 5*time.Second)
	v.SetDefault("dispatch.batch_size", 10)
	v.SetDefault("dispatch.webhook_timeout", 30*time.Second)
	v.SetDefault("dispatch.max_concurrent", 4)
	v.SetDefault("payment.timeout", 10*time.Second)
	v.SetDefault("payment.strict_verification", false)
	v.SetDefault("payment.network", "avalanche-fuji")
	v.SetDefault("judge.model", "gpt-4o-mini")
	v.SetDefault("judge.timeout", 20*time.Second)
	v.SetDefault("slashing.penalty_unit", "100000000000000000") // 0.1 AVAX in wei
	v.SetDefault("dispute.quorum_votes", 2)
	v.SetDefault("chain.timeout", 15*time.Second)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.prometheus_port", 9091)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.sample_rate", 1.0)
}

// Validate rejects configurations the service cannot safely run with.
func (c *Config) Validate() error {
	if c.Dispatch.Interval <= 0 {
		return fmt.Errorf("config: dispatch.interval must be positive")
	}
	if c.Dispatch.BatchSize <= 0 {
		return fmt.Errorf("config: dispatch.batch_size must be positive")
	}
	if c.Dispatch.WebhookTimeout <= 0 {
		return fmt.Errorf("config: dispatch.webhook_timeout must be positive")
	}
	if c.Dispute.QuorumVotes < 1 {
		return fmt.Errorf("config: dispute.quorum_votes must be at least 1")
	}
	if strings.TrimSpace(c.Slashing.PenaltyUnit) == "" {
		return fmt.Errorf("config: slashing.penalty_unit is required")
	}
	return nil
}

// JudgeConfigured reports whether an external judgment service is usable.
func (c *Config) JudgeConfigured() bool {
	return strings.TrimSpace(c.Judge.APIKey) != ""
}
