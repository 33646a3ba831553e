// Package whisper implements stt.Provider against the OpenAI audio
// transcription API (Whisper). Any server that speaks the same HTTP surface
// works too by pointing BaseURL at it.
package whisper

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/lectio/lectio/pkg/provider/stt"
)

// Config holds the settings needed to construct a whisper Provider.
type Config struct {
	// APIKey authenticates against the transcription endpoint. Required.
	APIKey string

	// BaseURL overrides the API endpoint for self-hosted or proxied Whisper
	// servers. Empty means the OpenAI default.
	BaseURL string

	// Model is the transcription model name. Empty defaults to whisper-1.
	Model string

	// RequestTimeout bounds a single transcription call. Zero means no
	// per-call timeout beyond the caller's context.
	RequestTimeout time.Duration
}

// Provider implements stt.Provider using the OpenAI-compatible audio API.
type Provider struct {
	client  *goopenai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

var _ stt.Provider = (*Provider)(nil)

// New creates a whisper Provider from cfg.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("whisper: API key is required")
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = goopenai.Whisper1
	}

	return &Provider{
		client:  goopenai.NewClientWithConfig(clientCfg),
		model:   model,
		timeout: cfg.RequestTimeout,
		logger:  slog.Default().With("component", "stt.whisper"),
	}, nil
}

// Transcribe uploads the file in req and returns the verbose transcript.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*stt.Result, error) {
	if req.FilePath == "" {
		return nil, fmt.Errorf("whisper: file path is required")
	}
	if _, err := os.Stat(req.FilePath); err != nil {
		return nil, fmt.Errorf("whisper: stat audio file: %w", err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := p.client.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:       p.model,
		FilePath:    req.FilePath,
		Language:    req.Language,
		Prompt:      req.Prompt,
		Temperature: req.Temperature,
		Format:      goopenai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("whisper: create transcription: %w", err)
	}

	result := &stt.Result{
		Text:     resp.Text,
		Duration: resp.Duration,
		Language: resp.Language,
	}
	for _, seg := range resp.Segments {
		result.Segments = append(result.Segments, stt.Segment{
			ID:    seg.ID,
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		})
	}

	p.logger.Debug("transcription complete",
		"file", req.FilePath,
		"segments", len(result.Segments),
		"audio_seconds", result.Duration,
		"elapsed", time.Since(start))

	return result, nil
}
