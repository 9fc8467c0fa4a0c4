// Package config loads application configuration from file and
// environment and wires the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Ingest   IngestConfig   `yaml:"ingest" mapstructure:"ingest"`
	Classify ClassifyConfig `yaml:"classify" mapstructure:"classify"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// IngestConfig configures how listing files map to records.
type IngestConfig struct {
	// PathColumn is the listing column holding the captured file path.
	PathColumn string `yaml:"path_column" mapstructure:"path_column"`
	// SourceColumn optionally names a column holding the source id;
	// empty means the source is derived from the listing file stem.
	SourceColumn string `yaml:"source_column" mapstructure:"source_column"`
}

// ClassifyConfig configures filtering, learning and fusion.
type ClassifyConfig struct {
	ImageExtensions            []string `yaml:"image_extensions" mapstructure:"image_extensions"`
	MinRuleSupport             int      `yaml:"min_rule_support" mapstructure:"min_rule_support"`
	MinRuleConfidence          float64  `yaml:"min_rule_confidence" mapstructure:"min_rule_confidence"`
	AnomalyReportThreshold     float64  `yaml:"anomaly_report_threshold" mapstructure:"anomaly_report_threshold"`
	RuleAuthoritativeThreshold float64  `yaml:"rule_authoritative_threshold" mapstructure:"rule_authoritative_threshold"`
	MinTrainingRecords         int      `yaml:"min_training_records" mapstructure:"min_training_records"`
	MaxConcurrentSources       int      `yaml:"max_concurrent_sources" mapstructure:"max_concurrent_sources"`
}

// ServerConfig configures the HTTP classification service.
type ServerConfig struct {
	Port           int     `yaml:"port" mapstructure:"port"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
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
	v.SetEnvPrefix("WELLSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "./data/wellscan.db")
	v.SetDefault("ingest.path_column", "graphic_doc_name")
	v.SetDefault("ingest.source_column", "")
	v.SetDefault("classify.image_extensions", []string{})
	v.SetDefault("classify.min_rule_support", 2)
	v.SetDefault("classify.min_rule_confidence", 0.6)
	v.SetDefault("classify.anomaly_report_threshold", 0.5)
	v.SetDefault("classify.rule_authoritative_threshold", 0.8)
	v.SetDefault("classify.min_training_records", 5)
	v.SetDefault("classify.max_concurrent_sources", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit_rps", 20.0)
	v.SetDefault("server.rate_limit_burst", 40)
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

// Validate checks value bounds. Returns all problems at once so a bad
// config is fixed in one pass.
func (c *Config) Validate() error {
	var problems []string

	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, "server.port must be between 1 and 65535")
	}
	if c.Classify.MinRuleSupport < 1 {
		problems = append(problems, "classify.min_rule_support must be >= 1")
	}
	if c.Classify.MinTrainingRecords < 1 {
		problems = append(problems, "classify.min_training_records must be >= 1")
	}
	if c.Classify.MaxConcurrentSources < 1 || c.Classify.MaxConcurrentSources > 64 {
		problems = append(problems, "classify.max_concurrent_sources must be between 1 and 64")
	}
	for _, th := range []struct {
		name string
		val  float64
	}{
		{"classify.min_rule_confidence", c.Classify.MinRuleConfidence},
		{"classify.anomaly_report_threshold", c.Classify.AnomalyReportThreshold},
		{"classify.rule_authoritative_threshold", c.Classify.RuleAuthoritativeThreshold},
	} {
		if th.val < 0 || th.val > 1 {
			problems = append(problems, th.name+" must be between 0 and 1")
		}
	}

	if len(problems) > 0 {
		return eris.New("config: invalid configuration: " + strings.Join(problems, "; "))
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
