package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/lectio/lectio/internal/observe"
	"github.com/lectio/lectio/internal/resilience"
	"github.com/lectio/lectio/internal/summarize"
	"github.com/lectio/lectio/internal/transcribe"
	"github.com/lectio/lectio/pkg/provider/llm"
	llmmock "github.com/lectio/lectio/pkg/provider/llm/mock"
	"github.com/lectio/lectio/pkg/provider/stt"
	sttmock "github.com/lectio/lectio/pkg/provider/stt/mock"

	"github.com/lectio/lectio/internal/media"
)

// probeRunner answers ffprobe with a fixed duration. The pipeline tests use
// small files so transcription always takes the single-shot path and never
// needs ffmpeg.
type probeRunner struct {
	duration string
}

func (r *probeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	if strings.Contains(name, "ffprobe") {
		return r.duration + "\n", nil
	}
	return "", nil
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lecture01.m4a")
	if err := os.WriteFile(path, []byte("tiny"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newPipeline(t *testing.T, sttP stt.Provider, llmP llm.Provider, outDir string) *Pipeline {
	t.Helper()
	tool := media.NewTool(media.WithRunner(&probeRunner{duration: "60.0"}))
	orch := transcribe.New(sttP, tool)

	opts := []Option{
		WithMetrics(testMetrics(t)),
		WithRetryConfig(resilience.RetryConfig{
			MaxAttempts: 2,
			BaseDelay:   time.Millisecond,
			MaxDelay:    time.Millisecond,
		}),
	}
	if llmP != nil {
		opts = append(opts, WithSummarizer(summarize.New(llmP)))
	}
	return New(orch, outDir, opts...)
}

func sttResult(text string) *stt.Result {
	return &stt.Result{
		Text:     text,
		Duration: 60,
		Language: "en",
		Segments: []stt.Segment{{ID: 0, Start: 0, End: 60, Text: text}},
	}
}

func TestProcess_PersistsTranscriptAndMetadata(t *testing.T) {
	outDir := t.TempDir()
	sttP := &sttmock.Provider{
		Fn: func(ctx context.Context, req stt.Request) (*stt.Result, error) {
			return sttResult("Welcome back everyone, today we continue with spectral graph theory."), nil
		},
	}

	p := newPipeline(t, sttP, nil, outDir)
	res, err := p.Process(context.Background(), writeAudio(t))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	text, err := os.ReadFile(res.TranscriptPath)
	if err != nil {
		t.Fatalf("transcript file: %v", err)
	}
	if !strings.Contains(string(text), "spectral graph theory") {
		t.Errorf("transcript content = %q", text)
	}

	data, err := os.ReadFile(res.MetadataPath)
	if err != nil {
		t.Fatalf("metadata file: %v", err)
	}
	var meta struct {
		Duration  float64 `json:"duration_seconds"`
		WordCount int     `json:"word_count"`
		Coverage  float64 `json:"coverage_percent"`
		Language  string  `json:"language"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		t.Fatalf("metadata unmarshal: %v", err)
	}
	if meta.Duration != 60 || meta.Coverage != 100 || meta.Language != "en" {
		t.Errorf("metadata = %+v", meta)
	}
	if meta.WordCount == 0 {
		t.Error("metadata word count is zero")
	}

	if res.NarrativePath != "" || res.GuidePath != "" || res.RecapPath != "" {
		t.Error("document paths set without a summarizer")
	}
}

func TestProcess_WritesSummaryDocuments(t *testing.T) {
	outDir := t.TempDir()
	sttP := &sttmock.Provider{
		Fn: func(ctx context.Context, req stt.Request) (*stt.Result, error) {
			return sttResult("Today we prove the Cheeger inequality for graph Laplacians."), nil
		},
	}
	llmP := &llmmock.Provider{
		CompleteFn: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			content := "## Cheeger Inequality\n\nNotes."
			if strings.Contains(req.SystemPrompt, "JSON") {
				content = `{"key_concepts": ["Cheeger inequality"]}`
			}
			return &llm.CompletionResponse{Content: content}, nil
		},
	}

	p := newPipeline(t, sttP, llmP, outDir)
	res, err := p.Process(context.Background(), writeAudio(t))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	for _, path := range []string{res.NarrativePath, res.GuidePath, res.RecapPath} {
		if path == "" {
			t.Fatal("missing document path")
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("document %s: %v", path, err)
		}
		if len(data) == 0 {
			t.Errorf("document %s is empty", path)
		}
	}
	if !strings.HasSuffix(res.NarrativePath, "lecture01_notes.md") {
		t.Errorf("NarrativePath = %q", res.NarrativePath)
	}
}

// cuttingRunner answers ffprobe with a fixed duration and materializes
// ffmpeg cut outputs, so transcription can take the chunked path.
type cuttingRunner struct {
	duration string
}

func (r *cuttingRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	if strings.Contains(name, "ffprobe") {
		return r.duration + "\n", nil
	}
	dst := args[len(args)-1]
	return "", os.WriteFile(dst, make([]byte, 10), 0o644)
}

// TestProcess_EndToEnd_ChunkedLecture drives a full run: a recording over the
// upload limit is cut into overlapping segments, transcribed per segment,
// reconciled, verified, persisted, and summarized into all three documents.
func TestProcess_EndToEnd_ChunkedLecture(t *testing.T) {
	outDir := t.TempDir()

	// 3000 bytes against a 1024-byte limit over 300 probed seconds: the
	// segmenter must plan at least two overlapping cuts.
	audio := filepath.Join(t.TempDir(), "lecture07.m4a")
	if err := os.WriteFile(audio, make([]byte, 3000), 0o644); err != nil {
		t.Fatal(err)
	}

	segTexts := map[string]*stt.Result{
		"seg_000": {
			Text:     "Welcome back, today we finish the proof where the cat sat on the",
			Segments: []stt.Segment{{Start: 0, End: 100, Text: "opening"}},
		},
		"seg_001": {
			Text:     "the cat sat on the mat and the lemma followed directly",
			Segments: []stt.Segment{{Start: 0, End: 105, Text: "middle"}},
		},
		"seg_002": {
			Text:     "which completes the argument, see you next week",
			Segments: []stt.Segment{{Start: 5, End: 105, Text: "closing"}},
		},
	}
	uploads := map[string]int{}
	sttP := &sttmock.Provider{
		Fn: func(_ context.Context, req stt.Request) (*stt.Result, error) {
			base := strings.TrimSuffix(filepath.Base(req.FilePath), filepath.Ext(req.FilePath))
			uploads[base]++
			res, ok := segTexts[base]
			if !ok {
				return nil, errors.New("unexpected upload " + base)
			}
			return res, nil
		},
	}
	llmP := &llmmock.Provider{
		CompleteFn: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			content := "## The Final Lemma\n\nThe proof closed out the series."
			if strings.Contains(req.SystemPrompt, "JSON") {
				content = `{"key_concepts": ["final lemma"], "assignments": []}`
			}
			return &llm.CompletionResponse{Content: content}, nil
		},
	}

	tool := media.NewTool(media.WithRunner(&cuttingRunner{duration: "300.0"}))
	orch := transcribe.New(sttP, tool,
		transcribe.WithTempDir(t.TempDir()),
		transcribe.WithMaxUploadBytes(1024),
	)
	p := New(orch, outDir,
		WithMetrics(testMetrics(t)),
		WithSummarizer(summarize.New(llmP)),
		WithRetryConfig(resilience.RetryConfig{
			MaxAttempts: 2,
			BaseDelay:   time.Millisecond,
			MaxDelay:    time.Millisecond,
		}),
	)

	res, err := p.Process(context.Background(), audio)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if len(uploads) < 2 {
		t.Fatalf("provider saw %d segment uploads, want at least 2: %v", len(uploads), uploads)
	}

	// The overlap between consecutive cuts must be reconciled away.
	text, err := os.ReadFile(res.TranscriptPath)
	if err != nil {
		t.Fatalf("transcript file: %v", err)
	}
	if n := strings.Count(string(text), "the cat sat on the"); n != 1 {
		t.Errorf("boundary phrase appears %d times, want exactly 1\ntext: %q", n, text)
	}
	if !strings.Contains(string(text), "see you next week") {
		t.Errorf("tail segment missing from transcript: %q", text)
	}

	// The reconstructed duration must survive segmentation within 1%.
	data, err := os.ReadFile(res.MetadataPath)
	if err != nil {
		t.Fatalf("metadata file: %v", err)
	}
	var meta struct {
		Duration float64 `json:"duration_seconds"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		t.Fatalf("metadata unmarshal: %v", err)
	}
	if meta.Duration < 297 || meta.Duration > 303 {
		t.Errorf("duration_seconds = %v, want within 1%% of 300", meta.Duration)
	}

	// All three documents must exist and be non-empty.
	for name, path := range map[string]string{
		"narrative": res.NarrativePath,
		"guide":     res.GuidePath,
		"recap":     res.RecapPath,
	} {
		if path == "" {
			t.Fatalf("%s document path not set", name)
		}
		doc, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("%s document: %v", name, err)
		}
		if len(doc) == 0 {
			t.Errorf("%s document is empty", name)
		}
	}
}

func TestProcess_RetriesTranscription(t *testing.T) {
	outDir := t.TempDir()
	calls := 0
	sttP := &sttmock.Provider{
		Fn: func(ctx context.Context, req stt.Request) (*stt.Result, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("rate limited")
			}
			return sttResult("second attempt succeeded just fine"), nil
		},
	}

	p := newPipeline(t, sttP, nil, outDir)
	if _, err := p.Process(context.Background(), writeAudio(t)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("provider called %d times, want 2", calls)
	}
}

func TestProcess_TranscriptionExhaustsRetries(t *testing.T) {
	outDir := t.TempDir()
	wantErr := errors.New("backend down")
	sttP := &sttmock.Provider{
		Fn: func(ctx context.Context, req stt.Request) (*stt.Result, error) {
			return nil, wantErr
		},
	}

	p := newPipeline(t, sttP, nil, outDir)
	_, err := p.Process(context.Background(), writeAudio(t))
	if !errors.Is(err, wantErr) {
		t.Fatalf("Process() error = %v, want wrapped %v", err, wantErr)
	}

	if entries, _ := os.ReadDir(outDir); len(entries) != 0 {
		t.Errorf("failed run left %d files in output dir", len(entries))
	}
}

func TestProcess_VerificationWarningsAreAdvisory(t *testing.T) {
	outDir := t.TempDir()
	sttP := &sttmock.Provider{
		Fn: func(ctx context.Context, req stt.Request) (*stt.Result, error) {
			// A one-hour lecture with three words of transcript.
			return &stt.Result{
				Text:     "almost nothing here",
				Duration: 3600,
				Language: "en",
				Segments: []stt.Segment{{Start: 0, End: 3600, Text: "almost nothing here"}},
			}, nil
		},
	}

	p := newPipeline(t, sttP, nil, outDir)
	res, err := p.Process(context.Background(), writeAudio(t))
	if err != nil {
		t.Fatalf("Process() error = %v, warnings must not fail the run", err)
	}
	if len(res.Warnings) == 0 {
		t.Error("expected verification warnings for a near-empty transcript")
	}

	data, err := os.ReadFile(res.MetadataPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "warnings") {
		t.Error("metadata sidecar missing warnings")
	}
}

func TestBaseName(t *testing.T) {
	for in, want := range map[string]string{
		"/tmp/rec/lecture01.m4a": "lecture01",
		"plain.wav":              "plain",
		"no_extension":           "no_extension",
	} {
		if got := baseName(in); got != want {
			t.Errorf("baseName(%q) = %q, want %q", in, got, want)
		}
	}
}
