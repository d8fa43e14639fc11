// Package config — .aitranslate.yaml configuration file support with
// environment-variable overrides.
//
// When a .aitranslate.yaml file exists next to the catalog, it supplies
// defaults for the target languages, provider settings, and translation
// context. Command-line flags override the environment, which overrides
// the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// FileName is the default config file name.
const FileName = ".aitranslate.yaml"

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// File is the top-level .aitranslate.yaml structure.
type File struct {
	// Catalog is the default catalog path relative to the config file.
	Catalog string `yaml:"catalog,omitempty"`
	// Languages is the default target-language list.
	Languages []string `yaml:"languages,omitempty"`
	// Context is an application description given to the translator with
	// every request.
	Context string `yaml:"context,omitempty"`
	// Prompt overrides the per-task prompt template
	// ({{targetLang}}, {{text}}, {{context}} placeholders).
	Prompt string `yaml:"prompt,omitempty"`
	// Concurrency bounds the number of in-flight translation requests.
	Concurrency int `yaml:"concurrency,omitempty"`
	// Provider holds the AI provider settings.
	Provider ProviderConfig `yaml:"provider,omitempty"`
}

// ProviderConfig selects and configures the AI provider.
type ProviderConfig struct {
	// ID: "openai", "google", "ollama", "custom-openai".
	ID string `yaml:"id,omitempty"`
	// Model is the model identifier.
	Model string `yaml:"model,omitempty"`
	// BaseURL overrides the provider's API base URL.
	BaseURL string `yaml:"base_url,omitempty"`
	// Timeout is the per-request timeout (e.g. "60s").
	Timeout Duration `yaml:"timeout,omitempty"`
	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy string `yaml:"proxy,omitempty"`
}

// Duration accepts "90s"-style values in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// DefaultConcurrency is used when neither flag, env, nor file set a bound.
const DefaultConcurrency = 3

// Load reads .aitranslate.yaml from dir. Returns nil if the file does not
// exist; a malformed file is an error.
func Load(dir string) (*File, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if f.Concurrency < 0 {
		return nil, fmt.Errorf("%s: concurrency must not be negative", path)
	}
	return &f, nil
}

// ---------------------------------------------------------------------------
// Environment overrides
// ---------------------------------------------------------------------------

// Env holds configuration read from AITRANSLATE_* environment variables.
type Env struct {
	APIKey  string        `env:"AITRANSLATE_API_KEY"`
	BaseURL string        `env:"AITRANSLATE_BASE_URL"`
	Model   string        `env:"AITRANSLATE_MODEL"`
	Proxy   string        `env:"AITRANSLATE_PROXY"`
	Timeout time.Duration `env:"AITRANSLATE_TIMEOUT"`
}

// ParseEnv loads the environment overrides.
func ParseEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}
