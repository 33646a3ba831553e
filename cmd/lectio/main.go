// Command lectio records lectures, transcribes them, and generates study
// documents.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lectio/lectio/internal/config"
	"github.com/lectio/lectio/internal/health"
	"github.com/lectio/lectio/internal/media"
	"github.com/lectio/lectio/internal/observe"
	"github.com/lectio/lectio/internal/phonetic"
	"github.com/lectio/lectio/internal/pipeline"
	"github.com/lectio/lectio/internal/record"
	"github.com/lectio/lectio/internal/summarize"
	"github.com/lectio/lectio/internal/transcribe"
	"github.com/lectio/lectio/internal/watcher"
	"github.com/lectio/lectio/pkg/provider/llm"
	"github.com/lectio/lectio/pkg/provider/llm/anyllm"
	oaillm "github.com/lectio/lectio/pkg/provider/llm/openai"
	"github.com/lectio/lectio/pkg/provider/stt"
	"github.com/lectio/lectio/pkg/provider/stt/whisper"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "lectio.yaml", "path to the YAML configuration file")
	recordPath := flag.String("record", "", "record a lecture into the given .m4a file (stop with Ctrl+C)")
	processPath := flag.String("process", "", "transcribe and summarize the given audio file")
	watchMode := flag.Bool("watch", false, "process recordings dropped into the configured watch directory")
	listDevices := flag.Bool("devices", false, "list audio input devices and exit")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "lectio: config file %q not found (copy configs/example.yaml to get started)\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "lectio: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel))

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "lectio"})
	if err != nil {
		slog.Error("could not init telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(flushCtx)
	}()

	switch {
	case *listDevices:
		return runDevices()
	case *recordPath != "":
		return runRecord(ctx, cfg, *recordPath)
	case *processPath != "":
		return runProcess(ctx, cfg, *processPath)
	case *watchMode:
		return runWatch(ctx, cfg)
	default:
		flag.Usage()
		return 2
	}
}

// ── Modes ─────────────────────────────────────────────────────────────────────

func runDevices() int {
	devices, err := record.ListDevices()
	if err != nil {
		slog.Error("could not list devices", "err", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Println("no audio input devices found")
		return 0
	}
	for _, d := range devices {
		fmt.Printf("%3d  %-40s  %d ch  %.0f Hz\n", d.Index, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
	}
	return 0
}

func runRecord(ctx context.Context, cfg *config.Config, outPath string) int {
	tool := media.NewTool()
	session := record.NewSession(tool,
		record.WithSampleRate(cfg.Recording.SampleRate),
		record.WithChannels(cfg.Recording.Channels),
		record.WithBitrate(cfg.Recording.Bitrate),
		record.WithDevice(cfg.Recording.Device),
	)

	wavPath := strings.TrimSuffix(outPath, filepath.Ext(outPath)) + ".wav"
	slog.Info("recording, press Ctrl+C to stop", "file", outPath)
	if err := session.Record(ctx, wavPath); err != nil {
		slog.Error("recording failed", "err", err)
		return 1
	}

	// The signal context is spent once recording stops; finalize with a
	// fresh timeout so the encode is not cancelled too.
	finalizeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	if err := session.Finalize(finalizeCtx, wavPath, outPath); err != nil {
		slog.Error("finalize failed", "err", err)
		return 1
	}
	fmt.Printf("recording saved to %s\n", outPath)
	return 0
}

func runProcess(ctx context.Context, cfg *config.Config, audioPath string) int {
	p, err := buildPipeline(cfg, media.NewTool())
	if err != nil {
		slog.Error("could not build pipeline", "err", err)
		return 1
	}

	res, err := p.Process(ctx, audioPath)
	if err != nil {
		slog.Error("processing failed", "err", err)
		return 1
	}

	fmt.Printf("transcript: %s\n", res.TranscriptPath)
	for _, w := range res.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	if res.NarrativePath != "" {
		fmt.Printf("notes: %s\nguide: %s\nrecap: %s\n", res.NarrativePath, res.GuidePath, res.RecapPath)
	}
	return 0
}

func runWatch(ctx context.Context, cfg *config.Config) int {
	if cfg.Watch.Dir == "" {
		slog.Error("watch.dir is not configured")
		return 1
	}

	tool := media.NewTool()
	p, err := buildPipeline(cfg, tool)
	if err != nil {
		slog.Error("could not build pipeline", "err", err)
		return 1
	}

	if cfg.Server.MetricsAddr != "" {
		checks := health.New(
			health.MediaTools(tool),
			health.WritableDir("output-dir", cfg.Storage.OutputDir),
			health.WritableDir("watch-dir", cfg.Watch.Dir),
		)
		go serveHTTP(ctx, cfg.Server.MetricsAddr, checks)
	}

	w, err := watcher.New(cfg.Watch.Dir,
		func(ctx context.Context, path string) error {
			_, perr := p.Process(ctx, path)
			return perr
		},
		watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMS)*time.Millisecond),
	)
	if err != nil {
		slog.Error("could not start watcher", "err", err)
		return 1
	}

	slog.Info("watching for recordings, press Ctrl+C to stop", "dir", cfg.Watch.Dir)
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("watch error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// serveHTTP exposes the Prometheus scrape endpoint and health probes while
// watch mode runs.
func serveHTTP(ctx context.Context, addr string, checks *health.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	checks.Register(mux)

	srv := &http.Server{
		Addr:    addr,
		Handler: observe.Middleware(observe.DefaultMetrics())(mux),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics endpoint listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("metrics server error", "err", err)
	}
}

// ── Wiring ────────────────────────────────────────────────────────────────────

// buildPipeline assembles the full processing chain from configuration.
func buildPipeline(cfg *config.Config, tool *media.Tool) (*pipeline.Pipeline, error) {
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	sttProvider, err := reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", cfg.Providers.STT.Name, err)
	}
	slog.Info("provider created", "kind", "stt", "name", cfg.Providers.STT.Name)

	orchOpts := []transcribe.Option{
		transcribe.WithMaxUploadBytes(int64(cfg.Transcription.MaxUploadMB) << 20),
		transcribe.WithOverlapSeconds(cfg.Transcription.OverlapSeconds),
		transcribe.WithMaxSegmentSeconds(cfg.Transcription.MaxSegmentSeconds),
		transcribe.WithStrictSplit(cfg.Transcription.StrictSplit),
		transcribe.WithTemperature(float32(cfg.Transcription.Temperature)),
	}
	if cfg.Transcription.Language != "" {
		orchOpts = append(orchOpts, transcribe.WithLanguage(cfg.Transcription.Language))
	}
	if cfg.Transcription.Prompt != "" {
		orchOpts = append(orchOpts, transcribe.WithPrompt(cfg.Transcription.Prompt))
	}
	if len(cfg.Vocabulary) > 0 {
		orchOpts = append(orchOpts, transcribe.WithVocabulary(phonetic.New(), cfg.Vocabulary))
	}
	if cfg.Storage.TempDir != "" {
		orchOpts = append(orchOpts, transcribe.WithTempDir(cfg.Storage.TempDir))
	}
	orchestrator := transcribe.New(sttProvider, tool, orchOpts...)

	pipeOpts := []pipeline.Option{}
	if cfg.SummarizationEnabled() {
		llmProvider, err := reg.CreateLLM(cfg.Providers.LLM)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", cfg.Providers.LLM.Name, err)
		}
		slog.Info("provider created", "kind", "llm", "name", cfg.Providers.LLM.Name)

		aggOpts := []summarize.Option{}
		if cfg.Summarization.MaxTokens > 0 {
			aggOpts = append(aggOpts, summarize.WithMaxTokens(cfg.Summarization.MaxTokens))
		}
		if cfg.Summarization.Temperature > 0 {
			aggOpts = append(aggOpts, summarize.WithTemperature(cfg.Summarization.Temperature))
		}
		if cfg.Summarization.ChunkChars > 0 {
			aggOpts = append(aggOpts, summarize.WithChunkChars(cfg.Summarization.ChunkChars))
		}
		if cfg.Summarization.ChunkOverlapUnits > 0 {
			aggOpts = append(aggOpts, summarize.WithOverlapUnits(cfg.Summarization.ChunkOverlapUnits))
		}
		if cfg.Summarization.CourseName != "" {
			aggOpts = append(aggOpts, summarize.WithCourseName(cfg.Summarization.CourseName))
		}
		pipeOpts = append(pipeOpts, pipeline.WithSummarizer(summarize.New(llmProvider, aggOpts...)))
	}

	return pipeline.New(orchestrator, cfg.Storage.OutputDir, pipeOpts...), nil
}

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		cfg := whisper.Config{
			APIKey:  entry.APIKey,
			BaseURL: entry.BaseURL,
			Model:   entry.Model,
		}
		if raw := optString(entry.Options, "request_timeout"); raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid request_timeout %q: %w", raw, err)
			}
			cfg.RequestTimeout = d
		}
		return whisper.New(cfg)
	})

	// ── LLM ───────────────────────────────────────────────────────────────────
	// openai uses the native client; the others go through the any-llm
	// adapter with the shared APIKey+BaseURL pattern.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		return oaillm.New(entry.APIKey, entry.Model, opts...)
	})

	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.NewOllama(entry.Model, opts...)
	})
}

// optString reads a string value from a provider options map, tolerating a
// missing key or a non-string value.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	if v, ok := opts[key].(string); ok {
		return v
	}
	return ""
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
