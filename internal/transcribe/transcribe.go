// Package transcribe turns an audio file into a single coverage-annotated
// transcript.
//
// Files under the configured upload limit go to the STT provider in one shot.
// Larger files are cut into overlapping segments by [media.Segmenter]; each
// segment is transcribed on its own, duplicate text introduced by the overlap
// lead-in is reconciled at segment boundaries, and timestamps are shifted back
// into the original file's timeline before merging. A failing segment is
// skipped with a warning rather than aborting the run; the transcript's
// coverage percentage reflects the loss.
package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lectio/lectio/internal/media"
	"github.com/lectio/lectio/internal/observe"
	"github.com/lectio/lectio/internal/phonetic"
	"github.com/lectio/lectio/pkg/provider/stt"
)

const (
	// defaultMaxUploadBytes stays under the ~25 MB service cap with margin.
	defaultMaxUploadBytes = 24 << 20

	defaultOverlapSeconds = 5
)

// Segment is one timestamped span of recognized speech, in the original
// file's timeline.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the aggregate result of transcribing one recording.
type Transcript struct {
	// Text is the full stitched transcript.
	Text string `json:"text"`

	// Segments are sorted by start time and never cover the same span twice.
	Segments []Segment `json:"segments,omitempty"`

	// Duration is the recording duration in seconds.
	Duration float64 `json:"duration"`

	// WordCount is recomputed from Text after stitching.
	WordCount int `json:"word_count"`

	// Coverage is processed duration / total duration × 100. Below 100 when
	// segments failed or were dropped.
	Coverage float64 `json:"coverage"`

	// Language is the recognized language, when the provider reports one.
	Language string `json:"language,omitempty"`
}

// Option is a functional option for configuring an [Orchestrator].
type Option func(*Orchestrator)

// WithMaxUploadBytes sets the byte size above which a file is transcribed in
// segments instead of a single upload. Default: 24 MB.
func WithMaxUploadBytes(n int64) Option {
	return func(o *Orchestrator) {
		o.maxUploadBytes = n
	}
}

// WithOverlapSeconds sets the audio overlap carried into each segment after
// the first. Default: 5 seconds.
func WithOverlapSeconds(s float64) Option {
	return func(o *Orchestrator) {
		o.overlapSeconds = s
	}
}

// WithMaxSegmentSeconds caps the duration of a single audio segment.
// Zero (the default) means no cap beyond the size-derived duration.
func WithMaxSegmentSeconds(s float64) Option {
	return func(o *Orchestrator) {
		o.maxSegmentSeconds = s
	}
}

// WithStrictSplit verifies every produced segment against the upload limit
// and re-splits until all fit, instead of trusting the size estimate.
func WithStrictSplit(strict bool) Option {
	return func(o *Orchestrator) {
		o.strictSplit = strict
	}
}

// WithTemperature sets the decoding temperature sent to the provider.
// Default: 0 (deterministic).
func WithTemperature(t float32) Option {
	return func(o *Orchestrator) {
		o.temperature = t
	}
}

// WithLanguage fixes the recognition language instead of auto-detection.
func WithLanguage(lang string) Option {
	return func(o *Orchestrator) {
		o.language = lang
	}
}

// WithPrompt passes decoding-bias context text to every provider call.
func WithPrompt(prompt string) Option {
	return func(o *Orchestrator) {
		o.prompt = prompt
	}
}

// WithVocabulary enables the phonetic vocabulary-correction stage over the
// final transcript text using the given matcher and course terms.
func WithVocabulary(m *phonetic.Matcher, terms []string) Option {
	return func(o *Orchestrator) {
		o.matcher = m
		o.vocabulary = terms
	}
}

// WithTempDir sets the directory for intermediate segment files.
// Default: a "lectio-segments" directory under the system temp dir.
func WithTempDir(dir string) Option {
	return func(o *Orchestrator) {
		o.tempDir = dir
	}
}

// WithMetrics substitutes the metrics instance. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// Orchestrator coordinates segmentation, provider calls, and transcript
// assembly. Safe for concurrent use once constructed.
type Orchestrator struct {
	provider stt.Provider
	tool     *media.Tool
	logger   *slog.Logger
	metrics  *observe.Metrics

	maxUploadBytes    int64
	overlapSeconds    float64
	maxSegmentSeconds float64
	strictSplit       bool
	temperature       float32
	language          string
	prompt            string
	tempDir           string

	matcher    *phonetic.Matcher
	vocabulary []string
}

// New returns an Orchestrator using provider for recognition and tool for
// probing and cutting audio.
func New(provider stt.Provider, tool *media.Tool, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider:       provider,
		tool:           tool,
		logger:         slog.Default().With("component", "transcribe"),
		metrics:        observe.DefaultMetrics(),
		maxUploadBytes: defaultMaxUploadBytes,
		overlapSeconds: defaultOverlapSeconds,
		tempDir:        filepath.Join(os.TempDir(), "lectio-segments"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Transcribe produces a Transcript for the audio file at path. The strategy
// is chosen purely by byte size against the configured upload limit.
func (o *Orchestrator) Transcribe(ctx context.Context, path string) (*Transcript, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("transcribe: stat %s: %w", path, err)
	}

	var t *Transcript
	if fi.Size() <= o.maxUploadBytes {
		t, err = o.singleShot(ctx, path)
	} else {
		o.logger.Info("file exceeds upload limit, transcribing in segments",
			"path", path, "size_bytes", fi.Size(), "limit_bytes", o.maxUploadBytes)
		t, err = o.chunked(ctx, path)
	}
	if err != nil {
		return nil, err
	}

	if o.matcher != nil && len(o.vocabulary) > 0 {
		corrected, corrections := o.matcher.CorrectText(t.Text, o.vocabulary)
		if len(corrections) > 0 {
			o.logger.Debug("vocabulary corrections applied", "count", len(corrections))
		}
		t.Text = corrected
	}

	t.WordCount = len(strings.Fields(t.Text))
	return t, nil
}

func (o *Orchestrator) singleShot(ctx context.Context, path string) (*Transcript, error) {
	res, err := o.provider.Transcribe(ctx, o.request(path))
	if err != nil {
		o.metrics.RecordProviderRequest(ctx, "transcribe", "stt", "error")
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	o.metrics.RecordProviderRequest(ctx, "transcribe", "stt", "ok")

	duration := res.Duration
	if duration == 0 {
		// The provider did not report a duration; fall back to probing.
		if probed, probeErr := o.tool.ProbeDuration(ctx, path); probeErr == nil {
			duration = probed
		} else {
			o.logger.Warn("duration probe failed", "path", path, "error", probeErr)
		}
	}

	t := &Transcript{
		Text:     strings.TrimSpace(res.Text),
		Duration: duration,
		Coverage: 100,
		Language: res.Language,
	}
	for _, s := range res.Segments {
		t.Segments = append(t.Segments, Segment{Start: s.Start, End: s.End, Text: s.Text})
	}
	return t, nil
}

func (o *Orchestrator) chunked(ctx context.Context, path string) (*Transcript, error) {
	total, err := o.tool.ProbeDuration(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	segmenter := media.NewSegmenter(o.tool, o.tempDir)
	split := segmenter.Segment
	if o.strictSplit {
		split = segmenter.SegmentStrict
	}
	splitStart := time.Now()
	audioSegs, err := split(ctx, path, o.maxUploadBytes, o.overlapSeconds, o.maxSegmentSeconds)
	if err != nil {
		return nil, fmt.Errorf("transcribe: segment audio: %w", err)
	}
	o.metrics.SegmentationDuration.Record(ctx, time.Since(splitStart).Seconds())
	defer media.Cleanup(audioSegs)

	var (
		parts     []string
		merged    []Segment
		processed float64
		language  string
		lastEnd   float64
	)

	for _, seg := range audioSegs {
		res, err := o.provider.Transcribe(ctx, o.request(seg.Path))
		if err != nil {
			o.logger.Warn("segment transcription failed, skipping",
				"index", seg.Index, "start", seg.Start, "error", err)
			o.metrics.RecordProviderRequest(ctx, "transcribe", "stt", "error")
			o.metrics.RecordSegment(ctx, "failed")
			continue
		}
		o.metrics.RecordProviderRequest(ctx, "transcribe", "stt", "ok")
		o.metrics.RecordSegment(ctx, "ok")
		if language == "" {
			language = res.Language
		}

		text := strings.TrimSpace(res.Text)
		if seg.Overlap > 0 && len(parts) > 0 {
			text = reconcileOverlap(parts[len(parts)-1], text)
		}
		if text != "" {
			parts = append(parts, text)
		}

		// Timestamps in the response are relative to the materialized cut,
		// which begins overlap seconds before the segment's planned start.
		offset := seg.Start - seg.Overlap
		for _, rs := range res.Segments {
			start, end := rs.Start+offset, rs.End+offset
			if end <= lastEnd {
				continue // span already covered by the previous segment
			}
			if start < lastEnd {
				start = lastEnd
			}
			merged = append(merged, Segment{Start: start, End: end, Text: rs.Text})
			lastEnd = end
		}

		processed += seg.End - seg.Start
	}

	coverage := 0.0
	if total > 0 {
		coverage = processed / total * 100
	}

	return &Transcript{
		Text:     strings.Join(parts, " "),
		Segments: merged,
		Duration: total,
		Coverage: coverage,
		Language: language,
	}, nil
}

func (o *Orchestrator) request(path string) stt.Request {
	return stt.Request{
		FilePath:    path,
		Language:    o.language,
		Prompt:      o.prompt,
		Temperature: o.temperature,
	}
}
