package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all Appraise configuration.
type Config struct {
	Data    DataConfig
	Train   TrainConfig
	API     APIConfig
	Web     WebConfig
	Audit   AuditConfig
	Logging LoggingConfig
}

// DataConfig describes the training dataset.
type DataConfig struct {
	File     string  // CSV dataset path
	Target   string  // target column name
	TestSize float64 // held-out fraction for the test split
}

// TrainConfig holds training pipeline settings.
type TrainConfig struct {
	Seed      int64  // random seed for the split, forests and boosting
	Folds     int    // cross-validation fold count
	ModelPath string // artifact destination
}

// APIConfig holds the REST endpoint settings.
type APIConfig struct {
	Host string
	Port int
}

// WebConfig holds the dashboard settings.
type WebConfig struct {
	Port   int
	APIURL string // base URL of the prediction API the dashboard calls
}

// AuditConfig holds the audit trail destinations.
type AuditConfig struct {
	Path       string // NDJSON audit log path; empty disables the file sink
	MaxSize    int64  // rotation threshold in bytes; 0 disables rotation
	WebhookURL string // optional collector endpoint for batched events
	Stdout     bool   // also write NDJSON events to stdout
}

// LoggingConfig holds slog settings.
type LoggingConfig struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "text" or "json"
}

// Load reads configuration from an optional YAML file, APPRAISE_* environment
// variables and coded defaults. Environment variables override the file.
// A missing config file falls back to defaults; a malformed one is an error.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("data.file", "data/output.csv")
	v.SetDefault("data.target", "price")
	v.SetDefault("data.test_size", 0.2)
	v.SetDefault("train.seed", 42)
	v.SetDefault("train.folds", 5)
	v.SetDefault("train.model_path", "models/model.gob")
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8000)
	v.SetDefault("web.port", 8501)
	v.SetDefault("web.api_url", "http://localhost:8000")
	v.SetDefault("audit.path", "audit.ndjson")
	v.SetDefault("audit.max_size", int64(0))
	v.SetDefault("audit.webhook_url", "")
	v.SetDefault("audit.stdout", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetEnvPrefix("APPRAISE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
		}
	}

	cfg := Config{
		Data: DataConfig{
			File:     v.GetString("data.file"),
			Target:   v.GetString("data.target"),
			TestSize: v.GetFloat64("data.test_size"),
		},
		Train: TrainConfig{
			Seed:      v.GetInt64("train.seed"),
			Folds:     v.GetInt("train.folds"),
			ModelPath: v.GetString("train.model_path"),
		},
		API: APIConfig{
			Host: v.GetString("api.host"),
			Port: v.GetInt("api.port"),
		},
		Web: WebConfig{
			Port:   v.GetInt("web.port"),
			APIURL: v.GetString("web.api_url"),
		},
		Audit: AuditConfig{
			Path:       v.GetString("audit.path"),
			MaxSize:    v.GetInt64("audit.max_size"),
			WebhookURL: v.GetString("audit.webhook_url"),
			Stdout:     v.GetBool("audit.stdout"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
	}

	if cfg.Data.TestSize <= 0 || cfg.Data.TestSize >= 1 {
		return Config{}, fmt.Errorf("config: data.test_size must be in (0,1), got %v", cfg.Data.TestSize)
	}
	if cfg.Train.Folds < 2 {
		return Config{}, fmt.Errorf("config: train.folds must be at least 2, got %d", cfg.Train.Folds)
	}
	return cfg, nil
}
