// Package config provides the configuration schema and loader for the
// ASHTRAA podcast audio server.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML configs can use "10s"-style strings.
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

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure, loaded from a YAML file with
// [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Session   SessionConfig   `yaml:"session"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":5011").
	ListenAddr string `yaml:"listen_addr"`

	// BaseURL is the public URL the server is reachable at, used to build
	// the retrieval locators stored with each segment
	// (e.g., "http://localhost:5011"). Defaults to "http://localhost" plus
	// the listen port.
	BaseURL string `yaml:"base_url"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// ProvidersConfig declares the external backends for each pipeline stage.
type ProvidersConfig struct {
	LLM ProviderEntry `yaml:"llm"`
	TTS ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the configuration block shared by both provider kinds.
type ProviderEntry struct {
	// APIKey authenticates against the provider. ${ENV} references are
	// expanded at load time.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a model within the provider (e.g., "gpt-4o-mini" for
	// the LLM, "aura-asteria-en" as the TTS fallback voice).
	Model string `yaml:"model"`
}

// SessionConfig locates conversation storage.
type SessionConfig struct {
	// Dir is the root directory holding one subdirectory per conversation.
	Dir string `yaml:"dir"`
}

// PipelineConfig tunes the synthesis stage of a chat turn.
type PipelineConfig struct {
	// SynthesisTimeout bounds each synthesis attempt. Zero means the
	// default of 30s; a hung network call never blocks a turn forever.
	SynthesisTimeout Duration `yaml:"synthesis_timeout"`

	// SynthesisAttempts is the total tries per segment, including the
	// first. Zero means the default of 2. When attempts are exhausted the
	// segment is skipped and its index stays consumed.
	SynthesisAttempts int `yaml:"synthesis_attempts"`
}

// Defaults fills unset fields with working values.
func (c *Config) Defaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":5011"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://localhost" + c.Server.ListenAddr
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Session.Dir == "" {
		c.Session.Dir = "AudioStream"
	}
	if c.Providers.LLM.Model == "" {
		c.Providers.LLM.Model = "gpt-4o-mini"
	}
	if c.Pipeline.SynthesisTimeout == 0 {
		c.Pipeline.SynthesisTimeout = Duration(30 * time.Second)
	}
	if c.Pipeline.SynthesisAttempts == 0 {
		c.Pipeline.SynthesisAttempts = 2
	}
}
