// Package llm provides the generative-model client used by the pipeline.
// The pipeline only sees the Client interface; the Gemini implementation is
// selected and configured once at process entry.
package llm

import (
	"slices"
	"strings"

	"github.com/jonathan/course-content-pipeline/internal/types"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-1.5-flash"

// Generation preset names.
const (
	PresetJSON     = "standard_response_json"
	PresetText     = "standard_response_text"
	PresetCreative = "creative"
)

// GenerationConfig holds sampling parameters for one request.
type GenerationConfig struct {
	Temperature      float32
	TopP             float32
	TopK             int32
	MaxOutputTokens  int32
	ResponseMIMEType string
}

var presets = map[string]GenerationConfig{
	PresetJSON: {
		Temperature:      0.7,
		TopP:             0.95,
		TopK:             40,
		MaxOutputTokens:  8192,
		ResponseMIMEType: "application/json",
	},
	PresetText: {
		Temperature:      0.7,
		TopP:             0.95,
		TopK:             40,
		MaxOutputTokens:  8192,
		ResponseMIMEType: "text/plain",
	},
	PresetCreative: {
		Temperature:      1.0,
		TopP:             0.99,
		TopK:             50,
		MaxOutputTokens:  8192,
		ResponseMIMEType: "application/json",
	},
}

// Config selects the model and its generation parameters.
type Config struct {
	Model      string
	Preset     string
	Generation GenerationConfig
}

// Presets returns the available preset names, sorted.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NewConfig resolves a preset into a Config. An unknown preset is a
// ConfigurationError.
func NewConfig(model, preset string) (*Config, error) {
	if model == "" {
		model = DefaultModel
	}
	if preset == "" {
		preset = PresetJSON
	}
	gen, ok := presets[preset]
	if !ok {
		return nil, &types.ConfigurationError{
			Field:   "preset",
			Message: "invalid preset " + preset + ", available presets: " + strings.Join(Presets(), ", "),
		}
	}
	return &Config{Model: model, Preset: preset, Generation: gen}, nil
}

// DefaultConfig returns the JSON preset on the default model.
func DefaultConfig() *Config {
	cfg, _ := NewConfig(DefaultModel, PresetJSON)
	return cfg
}

// WithModel returns a copy of c using model.
func (c *Config) WithModel(model string) *Config {
	out := *c
	out.Model = model
	return &out
}
