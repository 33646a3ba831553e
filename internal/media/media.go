// Package media wraps the external ffmpeg/ffprobe tools used for duration
// probing, cutting, and format conversion, and implements size-bounded audio
// segmentation with boundary overlap.
//
// All subprocess execution goes through the [Runner] interface so tests can
// substitute a fake without spawning processes.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ErrProbeFailed is returned when ffprobe exits non-zero or produces output
// that does not parse as a duration.
var ErrProbeFailed = errors.New("media: duration probe failed")

// Runner executes an external command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner is the production [Runner] backed by os/exec.
type ExecRunner struct{}

// Run executes the command and returns trimmed stdout. Stderr is folded into
// the error message on failure to keep ffmpeg diagnostics visible.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("media: %s: %w: %s", name, err, msg)
		}
		return "", fmt.Errorf("media: %s: %w", name, err)
	}
	return stdout.String(), nil
}

// ConvertOptions carries encoding parameters for [Tool.Convert].
type ConvertOptions struct {
	// Bitrate is the target audio bitrate (e.g. "96k"). Empty uses the
	// encoder default.
	Bitrate string

	// SampleRate in Hz. Zero keeps the source rate.
	SampleRate int

	// Channels is the output channel count. Zero keeps the source layout.
	Channels int
}

// Tool invokes ffmpeg and ffprobe. The zero value is not usable; construct
// with [NewTool].
type Tool struct {
	runner  Runner
	ffmpeg  string
	ffprobe string
}

// ToolOption is a functional option for [NewTool].
type ToolOption func(*Tool)

// WithRunner substitutes the subprocess runner. Used by tests.
func WithRunner(r Runner) ToolOption {
	return func(t *Tool) { t.runner = r }
}

// WithBinaries overrides the ffmpeg and ffprobe executable paths.
func WithBinaries(ffmpeg, ffprobe string) ToolOption {
	return func(t *Tool) {
		if ffmpeg != "" {
			t.ffmpeg = ffmpeg
		}
		if ffprobe != "" {
			t.ffprobe = ffprobe
		}
	}
}

// NewTool constructs a [Tool] that shells out to ffmpeg/ffprobe on PATH
// unless overridden via options.
func NewTool(opts ...ToolOption) *Tool {
	t := &Tool{
		runner:  ExecRunner{},
		ffmpeg:  "ffmpeg",
		ffprobe: "ffprobe",
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// ProbeDuration returns the duration of the media file at path in seconds.
// Wraps [ErrProbeFailed] when the tool fails or emits non-numeric output.
func (t *Tool) ProbeDuration(ctx context.Context, path string) (float64, error) {
	out, err := t.runner.Run(ctx, t.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: unparseable output %q", ErrProbeFailed, strings.TrimSpace(out))
	}
	return seconds, nil
}

// Check verifies that both external binaries are present and runnable.
func (t *Tool) Check(ctx context.Context) error {
	if _, err := t.runner.Run(ctx, t.ffmpeg, "-version"); err != nil {
		return fmt.Errorf("media: ffmpeg unavailable: %w", err)
	}
	if _, err := t.runner.Run(ctx, t.ffprobe, "-version"); err != nil {
		return fmt.Errorf("media: ffprobe unavailable: %w", err)
	}
	return nil
}

// Cut writes the span [start, start+duration) of src to dst using stream
// copy, avoiding a re-encode.
func (t *Tool) Cut(ctx context.Context, src string, start, duration float64, dst string) error {
	_, err := t.runner.Run(ctx, t.ffmpeg,
		"-i", src,
		"-ss", formatSeconds(start),
		"-t", formatSeconds(duration),
		"-c", "copy",
		"-y",
		dst,
	)
	if err != nil {
		return fmt.Errorf("media: cut %s [%s+%s]: %w", src, formatSeconds(start), formatSeconds(duration), err)
	}
	return nil
}

// Convert re-encodes src into dst as AAC with the given options. The output
// container is inferred from the dst extension by ffmpeg.
func (t *Tool) Convert(ctx context.Context, src, dst string, opts ConvertOptions) error {
	args := []string{"-i", src, "-c:a", "aac"}
	if opts.Bitrate != "" {
		args = append(args, "-b:a", opts.Bitrate)
	}
	if opts.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(opts.SampleRate))
	}
	if opts.Channels > 0 {
		args = append(args, "-ac", strconv.Itoa(opts.Channels))
	}
	args = append(args, "-y", dst)

	if _, err := t.runner.Run(ctx, t.ffmpeg, args...); err != nil {
		return fmt.Errorf("media: convert %s -> %s: %w", src, dst, err)
	}
	return nil
}

// formatSeconds renders a second offset for an ffmpeg argument. ffmpeg
// accepts fractional seconds; three decimals keep millisecond precision
// without noise.
func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
