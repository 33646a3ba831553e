// Package config provides the configuration schema, loader, and provider
// registry for Lectio.
package config

// LogLevel controls log verbosity.
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

// Config is the root configuration structure for Lectio.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Providers     ProvidersConfig     `yaml:"providers"`
	Recording     RecordingConfig     `yaml:"recording"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Summarization SummarizationConfig `yaml:"summarization"`
	Storage       StorageConfig       `yaml:"storage"`
	Watch         WatchConfig         `yaml:"watch"`

	// Vocabulary lists course-specific terms (proper names, jargon) used to
	// correct likely transcription errors.
	Vocabulary []string `yaml:"vocabulary"`
}

// ServerConfig holds logging and telemetry settings.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr, when set, serves Prometheus metrics on this address in
	// watch mode (e.g. ":9090").
	MetricsAddr string `yaml:"metrics_addr"`
}

// ProvidersConfig declares which provider implementation to use for each
// remote stage. Each field selects a named provider registered in the
// [Registry].
type ProvidersConfig struct {
	STT ProviderEntry `yaml:"stt"`
	LLM ProviderEntry `yaml:"llm"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g. "whisper",
	// "openai", "anthropic", "ollama").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g. "whisper-1",
	// "gpt-4o").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above.
	Options map[string]any `yaml:"options"`
}

// RecordingConfig holds microphone capture settings.
type RecordingConfig struct {
	// SampleRate in Hz. Default: 16000.
	SampleRate int `yaml:"sample_rate"`

	// Channels is the capture channel count. Default: 1.
	Channels int `yaml:"channels"`

	// Bitrate is the M4A encode bitrate (e.g. "64k"). Default: "64k".
	Bitrate string `yaml:"bitrate"`

	// Device selects the input device by substring match. Empty uses the
	// system default input.
	Device string `yaml:"device"`
}

// TranscriptionConfig tunes the transcription stage.
type TranscriptionConfig struct {
	// MaxUploadMB is the provider upload limit in megabytes. Recordings over
	// this size are split into overlapping segments. Default: 24.
	MaxUploadMB int `yaml:"max_upload_mb"`

	// OverlapSeconds is the audio overlap between adjacent segments.
	// Default: 5.
	OverlapSeconds float64 `yaml:"overlap_seconds"`

	// MaxSegmentSeconds caps individual segment duration. Zero disables the
	// cap.
	MaxSegmentSeconds float64 `yaml:"max_segment_seconds"`

	// StrictSplit re-splits segments that still exceed the upload limit
	// instead of failing.
	StrictSplit bool `yaml:"strict_split"`

	// Language is the ISO-639-1 hint passed to the provider. Empty lets the
	// provider detect it.
	Language string `yaml:"language"`

	// Temperature is the decoding temperature, in [0, 1].
	Temperature float64 `yaml:"temperature"`

	// Prompt is an optional context hint sent with every request.
	Prompt string `yaml:"prompt"`
}

// SummarizationConfig tunes the summary document generation.
type SummarizationConfig struct {
	// Enabled turns the summary stage on. Default: true when an LLM
	// provider is configured.
	Enabled *bool `yaml:"enabled"`

	// MaxTokens caps completion tokens per request. Zero uses the provider
	// default.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature is the sampling temperature, in [0, 2].
	Temperature float64 `yaml:"temperature"`

	// ChunkChars is the character budget per transcript chunk.
	ChunkChars int `yaml:"chunk_chars"`

	// ChunkOverlapUnits is how many trailing paragraphs of one chunk repeat
	// at the head of the next.
	ChunkOverlapUnits int `yaml:"chunk_overlap_units"`

	// CourseName names the course in prompts.
	CourseName string `yaml:"course_name"`
}

// StorageConfig holds filesystem locations.
type StorageConfig struct {
	// OutputDir receives transcripts, metadata sidecars, and summary
	// documents. Default: "output".
	OutputDir string `yaml:"output_dir"`

	// TempDir holds intermediate audio segments. Default: the system temp
	// directory.
	TempDir string `yaml:"temp_dir"`
}

// WatchConfig configures drop-folder mode.
type WatchConfig struct {
	// Dir is the directory monitored for new recordings.
	Dir string `yaml:"dir"`

	// DebounceMS is how long a file must stay quiet before processing, in
	// milliseconds. Default: 2000.
	DebounceMS int `yaml:"debounce_ms"`
}
