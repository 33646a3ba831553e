// Package summarize turns a lecture transcript into three Markdown documents:
// narrative notes, a structured action guide, and a conversational recap.
//
// The transcript is split into character-bounded chunks and each document is
// produced by one LLM call per chunk. The narrative pass runs first and is
// strictly sequential: chunk i+1's prompt carries the last few section
// headings produced for chunk i, so reordering would desynchronize heading
// continuity. The guide and recap passes then run concurrently; both work
// from the transcript chunk with the finished narrative part as supporting
// context, and the recap keeps its own sequential rolling context internally.
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/lectio/lectio/internal/chunk"
	"github.com/lectio/lectio/internal/observe"
	"github.com/lectio/lectio/pkg/provider/llm"
)

const (
	defaultChunkChars   = 12000
	defaultOverlapUnits = 2
	defaultTemperature  = 0.4

	// maxRecentHeadings bounds the rolling context passed between narrative
	// chunks.
	maxRecentHeadings = 5
)

// Documents holds the three rendered Markdown artifacts of one run.
type Documents struct {
	// Narrative is the long-form lecture notes document.
	Narrative string

	// Guide is the structured action guide rendered from merged JSON.
	Guide string

	// Recap is the conversational recap with one "## Segment N" per chunk.
	Recap string
}

// Option is a functional option for configuring an [Aggregator].
type Option func(*Aggregator)

// WithChunkChars sets the character budget per transcript chunk.
// Default: 12000.
func WithChunkChars(n int) Option {
	return func(a *Aggregator) {
		a.chunkChars = n
	}
}

// WithOverlapUnits sets how many trailing paragraphs (or sentences) of a
// chunk are repeated at the head of the next one. Default: 2.
func WithOverlapUnits(n int) Option {
	return func(a *Aggregator) {
		a.overlapUnits = n
	}
}

// WithTemperature sets the sampling temperature for all passes. Default: 0.4.
func WithTemperature(t float64) Option {
	return func(a *Aggregator) {
		a.temperature = t
	}
}

// WithMaxTokens caps completion tokens per call. Zero uses the provider
// default.
func WithMaxTokens(n int) Option {
	return func(a *Aggregator) {
		a.maxTokens = n
	}
}

// WithCourseName names the course in prompts so the model keeps terminology
// consistent with the syllabus.
func WithCourseName(name string) Option {
	return func(a *Aggregator) {
		a.courseName = name
	}
}

// WithMetrics substitutes the metrics instance. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Aggregator) {
		a.metrics = m
	}
}

// Aggregator produces the summary document set for one transcript.
// Safe for concurrent use once constructed.
type Aggregator struct {
	provider llm.Provider
	logger   *slog.Logger
	metrics  *observe.Metrics

	chunkChars   int
	overlapUnits int
	temperature  float64
	maxTokens    int
	courseName   string
}

// New returns an Aggregator that generates completions through provider.
func New(provider llm.Provider, opts ...Option) *Aggregator {
	a := &Aggregator{
		provider:     provider,
		logger:       slog.Default().With("component", "summarize"),
		metrics:      observe.DefaultMetrics(),
		chunkChars:   defaultChunkChars,
		overlapUnits: defaultOverlapUnits,
		temperature:  defaultTemperature,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Summarize generates all three documents for the given transcript text.
//
// A failed LLM call aborts the whole run with an error; the caller retries
// the entire operation. Re-generating only the failed chunk is not safe
// because its neighbours' rolling context would no longer match.
func (a *Aggregator) Summarize(ctx context.Context, text string) (*Documents, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("summarize: transcript text is empty")
	}

	chunks := chunk.Split(text, a.chunkChars, a.overlapUnits)
	a.logger.Info("summarizing transcript", "chunks", len(chunks), "chars", len(text))

	narrativeParts, err := a.narrativePass(ctx, chunks)
	if err != nil {
		return nil, err
	}

	// Guide and recap are independent of each other and only read the
	// finished narrative, so they can run side by side.
	var (
		guide string
		recap string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var gerr error
		guide, gerr = a.guidePass(gctx, chunks, narrativeParts)
		return gerr
	})
	g.Go(func() error {
		var rerr error
		recap, rerr = a.recapPass(gctx, chunks, narrativeParts)
		return rerr
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Documents{
		Narrative: strings.Join(narrativeParts, "\n\n"),
		Guide:     guide,
		Recap:     recap,
	}, nil
}

// narrativePass generates the long-form notes chunk by chunk, carrying the
// last few section headings forward as context.
func (a *Aggregator) narrativePass(ctx context.Context, chunks []chunk.Chunk) ([]string, error) {
	parts := make([]string, 0, len(chunks))
	var recentHeadings []string

	for _, c := range chunks {
		prompt := narrativePrompt(c, a.courseName, recentHeadings)
		content, err := a.complete(ctx, narrativeSystemPrompt, prompt)
		if err != nil {
			return nil, fmt.Errorf("summarize: narrative chunk %d/%d: %w", c.Index+1, c.Total, err)
		}
		parts = append(parts, strings.TrimSpace(content))
		a.metrics.RecordChunk(ctx, "narrative")

		recentHeadings = append(recentHeadings, extractHeadings(content)...)
		if len(recentHeadings) > maxRecentHeadings {
			recentHeadings = recentHeadings[len(recentHeadings)-maxRecentHeadings:]
		}
	}
	return parts, nil
}

// guidePass requests a fixed-schema JSON object per chunk and merges the
// results into one rendered guide. A chunk whose response cannot be parsed
// contributes nothing rather than aborting.
func (a *Aggregator) guidePass(ctx context.Context, chunks []chunk.Chunk, narrative []string) (string, error) {
	merger := newGuideMerger()

	for i, c := range chunks {
		prompt := guidePrompt(c, a.courseName, narrativeFor(narrative, i))
		content, err := a.complete(ctx, guideSystemPrompt, prompt)
		if err != nil {
			return "", fmt.Errorf("summarize: guide chunk %d/%d: %w", c.Index+1, c.Total, err)
		}

		a.metrics.RecordChunk(ctx, "guide")

		data, ok := parseGuide(content)
		if !ok {
			a.logger.Warn("guide response unparseable, skipping chunk contribution",
				"chunk", c.Index+1, "total", c.Total)
			continue
		}
		merger.add(data)
	}

	return renderGuide(merger.finalize()), nil
}

// recapPass generates the conversational recap, one "## Segment N" per
// chunk, rolling recent headings forward as a single semicolon-joined string.
func (a *Aggregator) recapPass(ctx context.Context, chunks []chunk.Chunk, narrative []string) (string, error) {
	parts := make([]string, 0, len(chunks))
	var rolling []string

	for i, c := range chunks {
		prompt := recapPrompt(c, a.courseName, narrativeFor(narrative, i), strings.Join(rolling, "; "))
		content, err := a.complete(ctx, recapSystemPrompt, prompt)
		if err != nil {
			return "", fmt.Errorf("summarize: recap chunk %d/%d: %w", c.Index+1, c.Total, err)
		}

		a.metrics.RecordChunk(ctx, "recap")

		content = strings.TrimSpace(content)
		heading := fmt.Sprintf("## Segment %d", c.Index+1)
		if !strings.Contains(content, heading) {
			content = heading + "\n\n" + content
		}
		parts = append(parts, content)

		rolling = append(rolling, extractHeadings(content)...)
		if len(rolling) > maxRecentHeadings {
			rolling = rolling[len(rolling)-maxRecentHeadings:]
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

func (a *Aggregator) complete(ctx context.Context, system, prompt string) (string, error) {
	messages := []llm.Message{{Role: "user", Content: prompt}}

	// Character-budgeted chunks stay well inside the window for typical
	// models; when a model with a small window is configured, fail before
	// the backend does with a message that names the knob to turn.
	if limits := a.provider.Limits(); limits.ContextWindow > 0 {
		est, err := a.provider.CountTokens(
			append([]llm.Message{{Role: "system", Content: system}}, messages...))
		if err == nil && est > limits.ContextWindow {
			return "", fmt.Errorf(
				"summarize: prompt of ~%d tokens exceeds the model's %d-token context window, lower the chunk size",
				est, limits.ContextWindow)
		}
	}

	resp, err := a.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     messages,
		Temperature:  a.temperature,
		MaxTokens:    a.maxTokens,
	})
	if err != nil {
		a.metrics.RecordProviderRequest(ctx, "summarize", "llm", "error")
		return "", err
	}
	a.metrics.RecordProviderRequest(ctx, "summarize", "llm", "ok")
	return resp.Content, nil
}

// narrativeFor returns the finished narrative part for chunk i, or "" when
// the index is out of range (defensive; the slices are built in lockstep).
func narrativeFor(narrative []string, i int) string {
	if i < len(narrative) {
		return narrative[i]
	}
	return ""
}

// extractHeadings returns the text of all second-level Markdown headings in
// content, in order.
func extractHeadings(content string) []string {
	var headings []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "## ") {
			headings = append(headings, strings.TrimSpace(strings.TrimPrefix(trimmed, "## ")))
		}
	}
	return headings
}
