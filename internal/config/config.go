package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Automation AutomationConfig `yaml:"automation" mapstructure:"automation"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Diagnostic DiagnosticConfig `yaml:"diagnostic" mapstructure:"diagnostic"`
	Quota      QuotaConfig      `yaml:"quota" mapstructure:"quota"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	RateLimit  RateLimitConfig  `yaml:"ratelimit" mapstructure:"ratelimit"`
	Niche      NicheConfig      `yaml:"niche" mapstructure:"niche"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AutomationConfig points at the automation backend hosting the search,
// ads, scoring and diagnostic workflows.
type AutomationConfig struct {
	BaseURL string    `yaml:"base_url" mapstructure:"base_url"`
	Token   string    `yaml:"token" mapstructure:"token"`
	Paths   PathsConf `yaml:"paths" mapstructure:"paths"`
}

// PathsConf overrides individual endpoint paths. Empty keeps the default.
type PathsConf struct {
	Search     string `yaml:"search" mapstructure:"search"`
	Ads        string `yaml:"ads" mapstructure:"ads"`
	Scoring    string `yaml:"scoring" mapstructure:"scoring"`
	Diagnostic string `yaml:"diagnostic" mapstructure:"diagnostic"`
}

// AnthropicConfig holds Anthropic API settings for the LLM diagnostic backend.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// DiagnosticConfig selects the deep-diagnostic backend.
type DiagnosticConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"` // "webhook" or "anthropic"
}

// QuotaConfig bounds the size of one pipeline request.
type QuotaConfig struct {
	MaxAreas   int `yaml:"max_areas" mapstructure:"max_areas"`
	MaxPerArea int `yaml:"max_per_area" mapstructure:"max_per_area"`
	MaxTotal   int `yaml:"max_total" mapstructure:"max_total"`
}

// PipelineConfig holds per-call timeouts, inter-call delays and request
// defaults.
type PipelineConfig struct {
	SearchTimeout     time.Duration `yaml:"search_timeout" mapstructure:"search_timeout"`
	DefaultTimeout    time.Duration `yaml:"default_timeout" mapstructure:"default_timeout"`
	DiagnosticTimeout time.Duration `yaml:"diagnostic_timeout" mapstructure:"diagnostic_timeout"`
	AdsDelay          time.Duration `yaml:"ads_delay" mapstructure:"ads_delay"`
	AIDelay           time.Duration `yaml:"ai_delay" mapstructure:"ai_delay"`
	DiagnosticDelay   time.Duration `yaml:"diagnostic_delay" mapstructure:"diagnostic_delay"`
	DefaultMinScore   int           `yaml:"default_min_score" mapstructure:"default_min_score"`
	DefaultMaxPerArea int           `yaml:"default_max_per_area" mapstructure:"default_max_per_area"`
	DefaultTenant     string        `yaml:"default_tenant" mapstructure:"default_tenant"`
}

// RateLimitConfig enables pacing shared across processes through Redis.
type RateLimitConfig struct {
	RedisAddr string `yaml:"redis_addr" mapstructure:"redis_addr"`
	Shared    bool   `yaml:"shared" mapstructure:"shared"`
}

// NicheConfig locates the niche keyword catalog.
type NicheConfig struct {
	CatalogPath string `yaml:"catalog_path" mapstructure:"catalog_path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validation modes.
const (
	ModeRead     = "read"     // store access only
	ModePipeline = "pipeline" // run, resume
	ModeServe    = "serve"    // pipeline plus the HTTP API
)

// Load reads configuration from .env.local, config.yaml and the environment.
func Load() (*Config, error) {
	// Missing .env.local is the normal case outside development.
	_ = godotenv.Load(".env.local")

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROSPECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "prospect.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("automation.base_url", "")
	v.SetDefault("automation.token", "")
	v.SetDefault("automation.paths.search", "")
	v.SetDefault("automation.paths.ads", "")
	v.SetDefault("automation.paths.scoring", "")
	v.SetDefault("automation.paths.diagnostic", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("diagnostic.provider", "webhook")
	v.SetDefault("quota.max_areas", 5)
	v.SetDefault("quota.max_per_area", 50)
	v.SetDefault("quota.max_total", 150)
	v.SetDefault("pipeline.search_timeout", 2*time.Minute)
	v.SetDefault("pipeline.default_timeout", 2*time.Minute)
	v.SetDefault("pipeline.diagnostic_timeout", 10*time.Minute)
	v.SetDefault("pipeline.ads_delay", 500*time.Millisecond)
	v.SetDefault("pipeline.ai_delay", time.Second)
	v.SetDefault("pipeline.diagnostic_delay", 2*time.Second)
	v.SetDefault("pipeline.default_min_score", 0)
	v.SetDefault("pipeline.default_max_per_area", 20)
	v.SetDefault("pipeline.default_tenant", "default")
	v.SetDefault("ratelimit.redis_addr", "")
	v.SetDefault("ratelimit.shared", false)
	v.SetDefault("niche.catalog_path", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the keys needed by the given mode are present. All
// problems are reported together.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case ModeRead, ModePipeline, ModeServe:
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	if mode == ModePipeline || mode == ModeServe {
		if c.Automation.BaseURL == "" {
			errs = append(errs, "automation.base_url is required")
		}
		switch c.Diagnostic.Provider {
		case "webhook":
		case "anthropic":
			if c.Anthropic.Key == "" {
				errs = append(errs, "anthropic.key is required when diagnostic.provider is anthropic")
			}
		default:
			errs = append(errs, "diagnostic.provider must be webhook or anthropic")
		}
		if c.RateLimit.Shared && c.RateLimit.RedisAddr == "" {
			errs = append(errs, "ratelimit.redis_addr is required when ratelimit.shared is on")
		}
		if c.Pipeline.DefaultMaxPerArea <= 0 {
			errs = append(errs, "pipeline.default_max_per_area must be > 0")
		}
		if c.Pipeline.DefaultMinScore < 0 || c.Pipeline.DefaultMinScore > 100 {
			errs = append(errs, "pipeline.default_min_score must be between 0 and 100")
		}
	}

	if mode == ModeServe && c.Server.Port <= 0 {
		errs = append(errs, "server.port must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
