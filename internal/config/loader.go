package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"whisper"},
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// localLLMProviders run without credentials.
var localLLMProviders = []string{"ollama", "llamacpp", "llamafile"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
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

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	expandEnv(cfg)
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandEnv resolves $VAR and ${VAR} references in the provider entries so
// API keys can live in the environment instead of the config file. An unset
// variable expands to the empty string and is then caught by [Validate].
func expandEnv(cfg *Config) {
	for _, e := range []*ProviderEntry{&cfg.Providers.STT, &cfg.Providers.LLM} {
		e.APIKey = os.ExpandEnv(e.APIKey)
		e.BaseURL = os.ExpandEnv(e.BaseURL)
	}
}

// ApplyDefaults fills zero-valued fields with the documented defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Recording.SampleRate == 0 {
		cfg.Recording.SampleRate = 16000
	}
	if cfg.Recording.Channels == 0 {
		cfg.Recording.Channels = 1
	}
	if cfg.Recording.Bitrate == "" {
		cfg.Recording.Bitrate = "64k"
	}
	if cfg.Transcription.MaxUploadMB == 0 {
		cfg.Transcription.MaxUploadMB = 24
	}
	if cfg.Transcription.OverlapSeconds == 0 {
		cfg.Transcription.OverlapSeconds = 5
	}
	if cfg.Storage.OutputDir == "" {
		cfg.Storage.OutputDir = "output"
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 2000
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)

	// Credentials: a configured remote provider without an API key cannot
	// work, so that is an error rather than a warning.
	if cfg.Providers.STT.Name != "" && cfg.Providers.STT.APIKey == "" {
		errs = append(errs, fmt.Errorf("providers.stt.api_key is required for provider %q", cfg.Providers.STT.Name))
	}
	if name := cfg.Providers.LLM.Name; name != "" && cfg.Providers.LLM.APIKey == "" {
		if !slices.Contains(localLLMProviders, name) {
			errs = append(errs, fmt.Errorf("providers.llm.api_key is required for provider %q", name))
		}
	}

	if cfg.Providers.STT.Name == "" {
		slog.Warn("no STT provider configured; recordings cannot be transcribed")
	}
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; summary documents will not be generated")
	}

	// Recording
	if cfg.Recording.SampleRate < 8000 || cfg.Recording.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("recording.sample_rate %d is out of range [8000, 192000]", cfg.Recording.SampleRate))
	}
	if cfg.Recording.Channels < 1 || cfg.Recording.Channels > 2 {
		errs = append(errs, fmt.Errorf("recording.channels %d is out of range [1, 2]", cfg.Recording.Channels))
	}

	// Transcription
	if cfg.Transcription.MaxUploadMB < 0 {
		errs = append(errs, fmt.Errorf("transcription.max_upload_mb %d must not be negative", cfg.Transcription.MaxUploadMB))
	}
	if cfg.Transcription.MaxUploadMB > 25 {
		slog.Warn("transcription.max_upload_mb exceeds the 25MB limit of the Whisper API",
			"max_upload_mb", cfg.Transcription.MaxUploadMB)
	}
	if cfg.Transcription.OverlapSeconds < 0 {
		errs = append(errs, fmt.Errorf("transcription.overlap_seconds %.1f must not be negative", cfg.Transcription.OverlapSeconds))
	}
	if cfg.Transcription.Temperature < 0 || cfg.Transcription.Temperature > 1 {
		errs = append(errs, fmt.Errorf("transcription.temperature %.2f is out of range [0, 1]", cfg.Transcription.Temperature))
	}

	// Summarization
	if cfg.Summarization.Temperature < 0 || cfg.Summarization.Temperature > 2 {
		errs = append(errs, fmt.Errorf("summarization.temperature %.2f is out of range [0, 2]", cfg.Summarization.Temperature))
	}
	if cfg.Summarization.ChunkChars < 0 {
		errs = append(errs, fmt.Errorf("summarization.chunk_chars %d must not be negative", cfg.Summarization.ChunkChars))
	}

	// Watch
	if cfg.Watch.DebounceMS < 0 {
		errs = append(errs, fmt.Errorf("watch.debounce_ms %d must not be negative", cfg.Watch.DebounceMS))
	}

	return errors.Join(errs...)
}

// SummarizationEnabled reports whether the summary stage should run: the
// explicit flag when set, otherwise whenever an LLM provider is configured.
func (c *Config) SummarizationEnabled() bool {
	if c.Summarization.Enabled != nil {
		return *c.Summarization.Enabled
	}
	return c.Providers.LLM.Name != ""
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
