package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Inventory InventoryConfig `yaml:"inventory" mapstructure:"inventory"`
	Ledger    LedgerConfig    `yaml:"ledger" mapstructure:"ledger"`
	Orders    OrdersConfig    `yaml:"orders" mapstructure:"orders"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
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

// InventoryConfig holds product classification and stock location settings.
// Empty location ids fall back to the referenced default, then to the first
// location of the matching usage.
type InventoryConfig struct {
	ProduceCodeRegex      string `yaml:"produce_code_regex" mapstructure:"produce_code_regex"`
	HarvestSourceLocation string `yaml:"harvest_source_location" mapstructure:"harvest_source_location"`
	HarvestDestLocation   string `yaml:"harvest_dest_location" mapstructure:"harvest_dest_location"`
	OrderDestLocation     string `yaml:"order_dest_location" mapstructure:"order_dest_location"`
	CatalogPath           string `yaml:"catalog_path" mapstructure:"catalog_path"`
}

// LedgerConfig configures journal posting.
type LedgerConfig struct {
	Precision int32  `yaml:"precision" mapstructure:"precision"`
	Journal   string `yaml:"journal" mapstructure:"journal"`
}

// OrdersConfig configures product order validation.
type OrdersConfig struct {
	JustificationMinLen int `yaml:"justification_min_len" mapstructure:"justification_min_len"`
}

// RetryConfig configures retries of inventory side effects.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FARM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "farm.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("inventory.produce_code_regex", "^70")
	v.SetDefault("ledger.precision", 2)
	v.SetDefault("ledger.journal", "GENERAL")
	v.SetDefault("orders.justification_min_len", 10)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 100)
	v.SetDefault("retry.max_backoff_ms", 2000)

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

// Validate checks the settings a command needs before it starts.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite", "postgres", "memory":
	default:
		problems = append(problems, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}
	if c.Store.Driver != "memory" && c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}
	if _, err := regexp.Compile(c.Inventory.ProduceCodeRegex); err != nil {
		problems = append(problems, "inventory.produce_code_regex does not compile")
	}
	if c.Ledger.Precision < 0 || c.Ledger.Precision > 6 {
		problems = append(problems, "ledger.precision must be between 0 and 6")
	}
	if c.Orders.JustificationMinLen < 0 {
		problems = append(problems, "orders.justification_min_len must be >= 0")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "migrate", "report":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
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
