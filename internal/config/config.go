// Package config loads service settings from defaults, an optional YAML file
// and environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/example/cancer-check/internal/classifier"
	"github.com/example/cancer-check/internal/decision"
	"github.com/example/cancer-check/internal/logging"
)

// Config is the full service configuration.
type Config struct {
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Decision   DecisionConfig   `mapstructure:"decision"`
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Log        LogConfig        `mapstructure:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// ClassifierConfig locates the model artifact and shapes its output.
type ClassifierConfig struct {
	AssetsDir      string  `mapstructure:"assets_dir"`
	ModelName      string  `mapstructure:"model_name"`
	ScoreThreshold float32 `mapstructure:"score_threshold"`
	MaxResults     int     `mapstructure:"max_results"`
}

// DecisionConfig sets the rule for a positive finding.
type DecisionConfig struct {
	TargetLabel string  `mapstructure:"target_label"`
	Threshold   float32 `mapstructure:"threshold"`
}

// ServerConfig holds listener and gin settings.
type ServerConfig struct {
	Addr            string `mapstructure:"addr"`
	ShutdownSeconds int    `mapstructure:"shutdown_seconds"`
	Mode            string `mapstructure:"mode"`
}

// AuthConfig enables bearer token checks when JWTSecret is set.
type AuthConfig struct {
	JWTSecret   string `mapstructure:"jwt_secret"`
	JWTAudience string `mapstructure:"jwt_audience"`
}

// LogConfig sets the log level and the optional rotating file sink.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// MetricsConfig points StatsD emission at an agent. Empty StatsdAddr disables it.
type MetricsConfig struct {
	StatsdAddr string `mapstructure:"statsd_addr"`
	Namespace  string `mapstructure:"namespace"`
}

// numThreads is the inference thread hint; it is not configurable.
const numThreads = 4

var envBindings = map[string]string{
	"classifier.assets_dir":      "CLASSIFIER_ASSETS_DIR",
	"classifier.model_name":      "CLASSIFIER_MODEL_NAME",
	"classifier.score_threshold": "CLASSIFIER_SCORE_THRESHOLD",
	"classifier.max_results":     "CLASSIFIER_MAX_RESULTS",
	"decision.target_label":      "DECISION_TARGET_LABEL",
	"decision.threshold":         "DECISION_THRESHOLD",
	"server.addr":                "SERVER_ADDR",
	"server.shutdown_seconds":    "SERVER_SHUTDOWN_SECONDS",
	"server.mode":                "GIN_MODE",
	"auth.jwt_secret":            "JWT_SECRET",
	"auth.jwt_audience":          "JWT_AUDIENCE",
	"log.level":                  "LOG_LEVEL",
	"log.file":                   "LOG_FILE",
	"log.max_size_mb":            "LOG_MAX_SIZE_MB",
	"log.max_backups":            "LOG_MAX_BACKUPS",
	"log.max_age_days":           "LOG_MAX_AGE_DAYS",
	"metrics.statsd_addr":        "STATSD_ADDR",
	"metrics.namespace":          "METRICS_NAMESPACE",
}

func setDefaults(v *viper.Viper) {
	general := classifier.DefaultConfig()
	policy := decision.DefaultPolicy()

	v.SetDefault("classifier.assets_dir", "assets")
	v.SetDefault("classifier.model_name", general.ModelName)
	// The analyze flow narrows the general-purpose wrapper defaults.
	v.SetDefault("classifier.score_threshold", 0.5)
	v.SetDefault("classifier.max_results", 1)
	v.SetDefault("decision.target_label", policy.TargetLabel)
	v.SetDefault("decision.threshold", policy.Threshold)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_seconds", 15)
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("metrics.namespace", "cancer_check.")
}

// Load reads configuration. path may be empty, in which case only defaults and
// environment variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Auth.JWTSecret = strings.TrimSpace(cfg.Auth.JWTSecret)
	cfg.Auth.JWTAudience = strings.TrimSpace(cfg.Auth.JWTAudience)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Classifier.ScoreThreshold < 0 || c.Classifier.ScoreThreshold > 1 {
		errs = append(errs, fmt.Errorf("classifier.score_threshold %v outside [0,1]", c.Classifier.ScoreThreshold))
	}
	if c.Classifier.MaxResults <= 0 {
		errs = append(errs, fmt.Errorf("classifier.max_results must be positive, got %d", c.Classifier.MaxResults))
	}
	if strings.TrimSpace(c.Classifier.ModelName) == "" {
		errs = append(errs, errors.New("classifier.model_name is required"))
	}
	if c.Decision.Threshold < 0 || c.Decision.Threshold > 1 {
		errs = append(errs, fmt.Errorf("decision.threshold %v outside [0,1]", c.Decision.Threshold))
	}
	if strings.TrimSpace(c.Decision.TargetLabel) == "" {
		errs = append(errs, errors.New("decision.target_label is required"))
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("server.mode must be debug, release or test, got %q", c.Server.Mode))
	}
	if c.Server.ShutdownSeconds <= 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_seconds must be positive, got %d", c.Server.ShutdownSeconds))
	}
	return errors.Join(errs...)
}

// ClassifierSettings returns the classifier settings, with the fixed thread hint.
func (c *Config) ClassifierSettings() classifier.Config {
	return classifier.Config{
		ScoreThreshold: c.Classifier.ScoreThreshold,
		MaxResults:     c.Classifier.MaxResults,
		ModelName:      c.Classifier.ModelName,
		NumThreads:     numThreads,
	}
}

// Policy returns the decision policy.
func (c *Config) Policy() decision.Policy {
	return decision.Policy{TargetLabel: c.Decision.TargetLabel, Threshold: c.Decision.Threshold}
}

// LogOptions returns the logger settings.
func (c *Config) LogOptions() logging.Options {
	return logging.Options{
		Level:      c.Log.Level,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
	}
}
