// Package config loads the run configuration once at process entry. Values
// come from defaults, an optional content_agent.yaml file, the environment
// (CONTENT_ prefix) and finally command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/jonathan/course-content-pipeline/internal/types"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "CONTENT"

// Config represents the full run configuration.
type Config struct {
	Model       ModelConfig    `mapstructure:"model"`
	Generation  GenerateConfig `mapstructure:"generation"`
	Upload      UploadConfig   `mapstructure:"upload"`
	Labels      LabelsConfig   `mapstructure:"labels"`
	Log         LogConfig      `mapstructure:"log"`
	Metrics     MetricsConfig  `mapstructure:"metrics"`
	DatabaseURL string         `mapstructure:"database_url"` // optional Postgres mirror
}

// ModelConfig selects the generative model.
type ModelConfig struct {
	Name   string `mapstructure:"name" validate:"required"`
	Preset string `mapstructure:"preset" validate:"required,oneof=standard_response_json standard_response_text creative"`
	APIKey string `mapstructure:"api_key"`
}

// GenerateConfig controls the generation loop.
type GenerateConfig struct {
	Preset        string        `mapstructure:"preset" validate:"required"`
	SubtasksFile  string        `mapstructure:"subtasks_file"` // YAML preset overriding Preset
	MaxAttempts   int           `mapstructure:"max_attempts" validate:"min=1,max=10"`
	PaceInterval  int           `mapstructure:"pace_interval" validate:"min=1"`
	PaceDuration  time.Duration `mapstructure:"pace_duration" validate:"min=0"`
	ResultsPath   string        `mapstructure:"results_path" validate:"required"`
	KeyColumn     string        `mapstructure:"key_column"`
	DocumentsMode bool          `mapstructure:"documents_mode"` // whole text files are keys
}

// UploadConfig controls the publish loop.
type UploadConfig struct {
	Endpoint   string        `mapstructure:"endpoint" validate:"omitempty,url"`
	Prefix     string        `mapstructure:"prefix"`
	Action     string        `mapstructure:"action" validate:"required"`
	MaxRetries int           `mapstructure:"max_retries" validate:"min=1,max=10"`
	RetryDelay time.Duration `mapstructure:"retry_delay" validate:"min=0"`
	RPS        float64       `mapstructure:"rps" validate:"min=0"`
	LedgerPath string        `mapstructure:"ledger_path" validate:"required"`
}

// LabelsConfig locates the label file.
type LabelsConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
	File   string `mapstructure:"file"` // JSON run log, appended
}

// MetricsConfig configures the metrics textfile.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("model.name", "gemini-1.5-flash")
	v.SetDefault("model.preset", "standard_response_json")
	v.SetDefault("model.api_key", "")
	v.SetDefault("generation.preset", "seo")
	v.SetDefault("generation.subtasks_file", "")
	v.SetDefault("generation.max_attempts", 3)
	v.SetDefault("generation.pace_interval", 4)
	v.SetDefault("generation.pace_duration", 60*time.Second)
	v.SetDefault("generation.results_path", "responses.json")
	v.SetDefault("generation.key_column", "")
	v.SetDefault("generation.documents_mode", false)
	v.SetDefault("upload.endpoint", "")
	v.SetDefault("upload.prefix", "")
	v.SetDefault("upload.action", "create")
	v.SetDefault("upload.max_retries", 3)
	v.SetDefault("upload.retry_delay", time.Second)
	v.SetDefault("upload.rps", 0.0)
	v.SetDefault("upload.ledger_path", "failed_uploads.json")
	v.SetDefault("labels.path", "labels.json")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "content_agent.log")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("database_url", "")
}

// Load reads configuration. path selects an explicit config file; when empty
// an optional content_agent.{yaml,json} in the working directory is used.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("content_agent")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// unprefixed names used by the deployment environment
	if err := v.BindEnv("model.api_key", EnvPrefix+"_MODEL_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind api key: %w", err)
	}
	if err := v.BindEnv("database_url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind database url: %w", err)
	}

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate checks field ranges and enumerations. The first violation is
// returned as a ConfigurationError.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &types.ConfigurationError{
				Field:   fe.Namespace(),
				Message: fmt.Sprintf("failed %q validation (value %v)", fe.Tag(), fe.Value()),
			}
		}
		return &types.ConfigurationError{Message: err.Error()}
	}
	return nil
}

// RequireAPIKey reports a missing model credential.
func (c *Config) RequireAPIKey() error {
	if c.Model.APIKey == "" {
		return &types.ConfigurationError{Field: "model.api_key", Message: "API key not found (set GEMINI_API_KEY)"}
	}
	return nil
}

// RequireEndpoint reports a missing publish endpoint.
func (c *Config) RequireEndpoint() error {
	if c.Upload.Endpoint == "" {
		return &types.ConfigurationError{Field: "upload.endpoint", Message: "publish endpoint not set (use --endpoint or CONTENT_UPLOAD_ENDPOINT)"}
	}
	return nil
}
