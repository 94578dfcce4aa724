package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/schema-engine/internal/modescore"
	"github.com/sells-group/schema-engine/internal/selector"
)

// Config holds the full application configuration.
type Config struct {
	Tables   TablesConfig   `yaml:"tables" mapstructure:"tables"`
	Selector SelectorConfig `yaml:"selector" mapstructure:"selector"`
	Modes    ModesConfig    `yaml:"modes" mapstructure:"modes"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// TablesConfig locates the startup tables.
type TablesConfig struct {
	modescore.TableFiles `yaml:",inline" mapstructure:",squash"`

	// Instruments is the YAML file with instrument and percentile tables.
	Instruments string `yaml:"instruments" mapstructure:"instruments"`
}

// InstrumentsPath resolves the instruments file against the tables dir.
func (t TablesConfig) InstrumentsPath() string {
	return t.Path(t.Instruments)
}

// SelectorConfig configures schema selection.
type SelectorConfig struct {
	selector.Thresholds `yaml:",inline" mapstructure:",squash"`

	// Fallback names the policy applied when no primary clears the threshold.
	Fallback string `yaml:"fallback" mapstructure:"fallback"`
}

// ModesConfig configures mode scoring.
type ModesConfig struct {
	modescore.Options `yaml:",inline" mapstructure:",squash"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	// RetryAttempts and RetryBackoffMs govern retries of transient
	// database errors.
	RetryAttempts  int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoffMs int `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	RateLimit   float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst   int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SCHEMA_ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	files := modescore.DefaultTableFiles("tables")
	v.SetDefault("tables.dir", files.Dir)
	v.SetDefault("tables.delimiter", files.Delimiter)
	v.SetDefault("tables.schemas", files.Schemas)
	v.SetDefault("tables.modes", files.Modes)
	v.SetDefault("tables.mode_weights", files.ModeWeights)
	v.SetDefault("tables.coping_lifts", files.CopingLifts)
	v.SetDefault("tables.gate_deltas", files.GateDeltas)
	v.SetDefault("tables.coping_map", files.CopingMap)
	v.SetDefault("tables.instruments", "instruments.yaml")

	th := selector.DefaultThresholds()
	v.SetDefault("selector.primary_min", th.PrimaryMin)
	v.SetDefault("selector.secondary_min", th.SecondaryMin)
	v.SetDefault("selector.tertiary_min", th.TertiaryMin)
	v.SetDefault("selector.max_secondary_delta", th.MaxSecondaryDelta)
	v.SetDefault("selector.max_tertiary_delta", th.MaxTertiaryDelta)
	v.SetDefault("selector.tie_window", th.TieWindow)
	v.SetDefault("selector.fallback", selector.StrictPolicy{}.Name())

	v.SetDefault("modes.tau", modescore.DefaultTau)
	v.SetDefault("modes.coping_tau", modescore.DefaultCopingTau)
	v.SetDefault("modes.clip_negative", true)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "schema-engine.db")
	v.SetDefault("store.retry_attempts", 3)
	v.SetDefault("store.retry_backoff_ms", 200)
	v.SetDefault("batch.concurrency", 8)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 50)
	v.SetDefault("server.rate_burst", 100)
	v.SetDefault("server.cors_origins", []string{"*"})

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

// Validate checks the settings a command needs before any table is read.
// mode is one of "score", "batch" or "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "score":
	case "batch":
		if c.Batch.Concurrency < 1 || c.Batch.Concurrency > 256 {
			problems = append(problems, fmt.Sprintf("batch.concurrency must be between 1 and 256, got %d", c.Batch.Concurrency))
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Server.RateLimit <= 0 || c.Server.RateBurst < 1 {
			problems = append(problems, "server.rate_limit and server.rate_burst must be positive")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if err := c.Tables.ValidateDelimiter(); err != nil {
		problems = append(problems, fmt.Sprintf("tables.delimiter %q must be a single character or tab", c.Tables.Delimiter))
	}
	if !(c.Modes.Tau > 0) {
		problems = append(problems, fmt.Sprintf("modes.tau must be > 0, got %g", c.Modes.Tau))
	}
	if !(c.Modes.CopingTau > 0) {
		problems = append(problems, fmt.Sprintf("modes.coping_tau must be > 0, got %g", c.Modes.CopingTau))
	}

	th := c.Selector.Thresholds
	if th.SecondaryMin > th.PrimaryMin || th.TertiaryMin > th.PrimaryMin {
		problems = append(problems, "selector secondary_min and tertiary_min must not exceed primary_min")
	}
	if th.MaxSecondaryDelta < 0 || th.MaxTertiaryDelta < 0 || th.TieWindow < 0 {
		problems = append(problems, "selector deltas and tie_window must be >= 0")
	}
	if _, err := selector.PolicyByName(c.Selector.Fallback); err != nil {
		problems = append(problems, fmt.Sprintf("selector.fallback %q is not a known policy", c.Selector.Fallback))
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
		if c.Store.RetryAttempts < 0 || c.Store.RetryBackoffMs < 0 {
			problems = append(problems, "store.retry_attempts and store.retry_backoff_ms must be >= 0")
		}
	case "none", "":
	default:
		problems = append(problems, fmt.Sprintf("unknown store.driver %q", c.Store.Driver))
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
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
