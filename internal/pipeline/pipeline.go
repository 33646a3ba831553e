// Package pipeline wires transcription, normalization, and summarization
// into one end-to-end processing run for a recorded lecture.
//
// Retry policy lives here and only here: the whole Transcribe call and the
// whole Summarize call are each wrapped in [resilience.Retry]. Failures of
// individual segments or chunks inside those operations are handled (or
// skipped) by the layers themselves; re-running a middle piece in isolation
// would desynchronize the rolling context its neighbours were built with.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/lectio/lectio/internal/normalize"
	"github.com/lectio/lectio/internal/observe"
	"github.com/lectio/lectio/internal/resilience"
	"github.com/lectio/lectio/internal/summarize"
	"github.com/lectio/lectio/internal/transcribe"
)

// Result describes one completed pipeline run.
type Result struct {
	// Transcript is the finished transcript, after normalization and any
	// vocabulary correction.
	Transcript *transcribe.Transcript

	// Warnings are advisory findings from transcript verification. They do
	// not fail the run.
	Warnings []string

	// TranscriptPath is the plain-text transcript file.
	TranscriptPath string

	// MetadataPath is the JSON sidecar with timing and coverage details.
	MetadataPath string

	// NarrativePath, GuidePath, and RecapPath are the three Markdown
	// documents. Empty when summarization is disabled.
	NarrativePath string
	GuidePath     string
	RecapPath     string
}

// metadata is the JSON sidecar schema persisted next to the transcript.
type metadata struct {
	Source    string               `json:"source"`
	CreatedAt time.Time            `json:"created_at"`
	Duration  float64              `json:"duration_seconds"`
	WordCount int                  `json:"word_count"`
	Coverage  float64              `json:"coverage_percent"`
	Language  string               `json:"language,omitempty"`
	Warnings  []string             `json:"warnings,omitempty"`
	Segments  []transcribe.Segment `json:"segments,omitempty"`
}

// Option is a functional option for configuring a [Pipeline].
type Option func(*Pipeline)

// WithRetryConfig overrides the retry policy for the remote stages.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(p *Pipeline) {
		p.retry = cfg
	}
}

// WithMetrics sets the metrics instance. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithSummarizer enables the summary stage. Without it the pipeline stops
// after persisting the transcript.
func WithSummarizer(agg *summarize.Aggregator) Option {
	return func(p *Pipeline) {
		p.summarizer = agg
	}
}

// Pipeline processes one recording at a time from audio file to documents.
type Pipeline struct {
	transcriber *transcribe.Orchestrator
	summarizer  *summarize.Aggregator
	outputDir   string
	retry       resilience.RetryConfig
	metrics     *observe.Metrics
	logger      *slog.Logger
}

// New returns a Pipeline that writes its artifacts into outputDir.
func New(transcriber *transcribe.Orchestrator, outputDir string, opts ...Option) *Pipeline {
	p := &Pipeline{
		transcriber: transcriber,
		outputDir:   outputDir,
		retry:       resilience.DefaultRetryConfig(),
		logger:      slog.Default().With("component", "pipeline"),
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// Process runs the full pipeline for one audio file: transcribe, normalize,
// verify, summarize, and persist everything under the output directory.
func (p *Pipeline) Process(ctx context.Context, audioPath string) (*Result, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.process")
	defer span.End()

	start := time.Now()
	p.metrics.ActivePipelines.Add(ctx, 1)
	defer p.metrics.ActivePipelines.Add(ctx, -1)
	defer func() {
		p.metrics.PipelineDuration.Record(ctx, time.Since(start).Seconds())
	}()

	logger := observe.Logger(ctx).With("component", "pipeline", "source", audioPath)
	logger.Info("processing recording")

	if err := os.MkdirAll(p.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("pipeline: create output dir: %w", err)
	}

	transcript, err := p.transcribeStage(ctx, audioPath)
	if err != nil {
		return nil, err
	}

	transcript.Text = normalize.Clean(transcript.Text)
	transcript.WordCount = len(strings.Fields(transcript.Text))

	warnings := transcribe.Verify(transcript, transcript.Duration)
	for _, w := range warnings {
		logger.Warn("transcript verification", "finding", w)
	}
	p.metrics.TranscriptCoverage.Record(ctx, transcript.Coverage)

	base := baseName(audioPath)
	res := &Result{Transcript: transcript, Warnings: warnings}

	res.TranscriptPath = filepath.Join(p.outputDir, base+".txt")
	if err := os.WriteFile(res.TranscriptPath, []byte(transcript.Text), 0o644); err != nil {
		return nil, fmt.Errorf("pipeline: write transcript: %w", err)
	}

	res.MetadataPath = filepath.Join(p.outputDir, base+".json")
	if err := p.writeMetadata(res.MetadataPath, audioPath, transcript, warnings); err != nil {
		return nil, err
	}

	if p.summarizer != nil {
		docs, err := p.summarizeStage(ctx, transcript.Text)
		if err != nil {
			return nil, err
		}
		res.NarrativePath = filepath.Join(p.outputDir, base+"_notes.md")
		res.GuidePath = filepath.Join(p.outputDir, base+"_guide.md")
		res.RecapPath = filepath.Join(p.outputDir, base+"_recap.md")
		for _, doc := range []struct {
			path, content string
		}{
			{res.NarrativePath, docs.Narrative},
			{res.GuidePath, docs.Guide},
			{res.RecapPath, docs.Recap},
		} {
			if err := os.WriteFile(doc.path, []byte(doc.content), 0o644); err != nil {
				return nil, fmt.Errorf("pipeline: write document: %w", err)
			}
		}
	}

	logger.Info("recording processed",
		"duration", transcript.Duration,
		"words", transcript.WordCount,
		"coverage", transcript.Coverage,
		"warnings", len(warnings),
		"elapsed", time.Since(start))
	return res, nil
}

func (p *Pipeline) transcribeStage(ctx context.Context, audioPath string) (*transcribe.Transcript, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.transcribe")
	defer span.End()

	start := time.Now()
	defer func() {
		p.metrics.STTDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(observe.Attr("stage", "transcribe")))
	}()

	var transcript *transcribe.Transcript
	err := resilience.Retry(ctx, p.retry, func() error {
		var terr error
		transcript, terr = p.transcriber.Transcribe(ctx, audioPath)
		return terr
	})
	if err != nil {
		p.metrics.RecordProviderError(ctx, "pipeline", "stt")
		return nil, fmt.Errorf("pipeline: transcribe: %w", err)
	}
	return transcript, nil
}

func (p *Pipeline) summarizeStage(ctx context.Context, text string) (*summarize.Documents, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.summarize")
	defer span.End()

	start := time.Now()
	defer func() {
		p.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(observe.Attr("stage", "summarize")))
	}()

	var docs *summarize.Documents
	err := resilience.Retry(ctx, p.retry, func() error {
		var serr error
		docs, serr = p.summarizer.Summarize(ctx, text)
		return serr
	})
	if err != nil {
		p.metrics.RecordProviderError(ctx, "pipeline", "llm")
		return nil, fmt.Errorf("pipeline: summarize: %w", err)
	}
	return docs, nil
}

func (p *Pipeline) writeMetadata(path, source string, t *transcribe.Transcript, warnings []string) error {
	meta := metadata{
		Source:    source,
		CreatedAt: time.Now().UTC(),
		Duration:  t.Duration,
		WordCount: t.WordCount,
		Coverage:  t.Coverage,
		Language:  t.Language,
		Warnings:  warnings,
		Segments:  t.Segments,
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("pipeline: marshal metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("pipeline: write metadata: %w", err)
	}
	return nil
}

// baseName strips the directory and extension from an audio path.
func baseName(path string) string {
	b := filepath.Base(path)
	return strings.TrimSuffix(b, filepath.Ext(b))
}
