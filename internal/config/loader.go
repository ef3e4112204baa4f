package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. ${ENV} references anywhere in the file are
// expanded from the process environment before decoding, so API keys can
// stay out of the file itself.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands environment
// references, applies defaults, and validates the result. Useful in tests
// where configs are built from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(newExpandingReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.Defaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newExpandingReader returns a reader over raw with ${VAR} references
// replaced by environment values. Unset variables expand to the empty
// string, which Validate then reports for required fields.
func newExpandingReader(raw []byte) io.Reader {
	expanded := os.Expand(string(raw), func(key string) string {
		return os.Getenv(key)
	})
	return strings.NewReader(expanded)
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing every failure found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Providers.LLM.APIKey == "" {
		errs = append(errs, errors.New("providers.llm.api_key is required"))
	}
	if cfg.Providers.TTS.APIKey == "" {
		errs = append(errs, errors.New("providers.tts.api_key is required"))
	}
	if cfg.Pipeline.SynthesisTimeout < 0 {
		errs = append(errs, fmt.Errorf("pipeline.synthesis_timeout %v must not be negative", cfg.Pipeline.SynthesisTimeout.Std()))
	}
	if cfg.Pipeline.SynthesisAttempts < 0 {
		errs = append(errs, fmt.Errorf("pipeline.synthesis_attempts %d must not be negative", cfg.Pipeline.SynthesisAttempts))
	}

	return errors.Join(errs...)
}
