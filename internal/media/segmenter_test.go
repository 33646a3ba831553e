package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// fakeRunner simulates ffprobe/ffmpeg. Probe calls return duration; cut
// calls write a file at the trailing argument whose size is determined by
// sizeFor.
type fakeRunner struct {
	duration float64
	sizeFor  func(cutCalls int) int
	cutCalls int
	probeErr error
	probeOut string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	if filepath.Base(name) == "ffprobe" {
		if f.probeErr != nil {
			return "", f.probeErr
		}
		if f.probeOut != "" {
			return f.probeOut, nil
		}
		return strconv.FormatFloat(f.duration, 'f', 6, 64) + "\n", nil
	}

	// ffmpeg cut: output path is the final argument.
	dst := args[len(args)-1]
	size := 1024
	if f.sizeFor != nil {
		size = f.sizeFor(f.cutCalls)
	}
	f.cutCalls++
	if size < 0 {
		return "", nil // simulate a cut that produces no file
	}
	return "", os.WriteFile(dst, make([]byte, size), 0o644)
}

func newTestSegmenter(t *testing.T, r Runner) (*Segmenter, string) {
	t.Helper()
	dir := t.TempDir()
	tool := NewTool(WithRunner(r))
	return NewSegmenter(tool, dir), dir
}

func writeSource(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lecture.m4a")
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestProbeDuration(t *testing.T) {
	tests := []struct {
		name    string
		runner  *fakeRunner
		want    float64
		wantErr bool
	}{
		{name: "numeric output", runner: &fakeRunner{duration: 2700.5}, want: 2700.5},
		{name: "tool failure", runner: &fakeRunner{probeErr: errors.New("exit status 1")}, wantErr: true},
		{name: "garbage output", runner: &fakeRunner{probeOut: "N/A\n"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool := NewTool(WithRunner(tt.runner))
			got, err := tool.ProbeDuration(context.Background(), "x.m4a")
			if tt.wantErr {
				if !errors.Is(err, ErrProbeFailed) {
					t.Fatalf("expected ErrProbeFailed, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("duration = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSegment_PlansOverlappingSegments(t *testing.T) {
	// 30 MB file, 20 MB limit, 45 minute duration: expect 2 segments.
	runner := &fakeRunner{duration: 2700}
	seg, _ := newTestSegmenter(t, runner)
	src := writeSource(t, 30<<20)

	segments, err := seg.Segment(context.Background(), src, 20<<20, 5, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}

	first, second := segments[0], segments[1]
	if first.Overlap != 0 {
		t.Errorf("first segment overlap = %v, want 0", first.Overlap)
	}
	if second.Overlap != 5 {
		t.Errorf("second segment overlap = %v, want 5", second.Overlap)
	}
	if first.Start != 0 || first.End != 1350 {
		t.Errorf("first segment span = [%v, %v], want [0, 1350]", first.Start, first.End)
	}
	if second.Start != 1350 || second.End != 2700 {
		t.Errorf("second segment span = [%v, %v], want [1350, 2700]", second.Start, second.End)
	}
	// Contiguity: previous end equals next planned start.
	if first.End != second.Start {
		t.Errorf("segments not contiguous: %v != %v", first.End, second.Start)
	}
}

func TestSegment_DropsEmptyOutputs(t *testing.T) {
	runner := &fakeRunner{
		duration: 2700,
		sizeFor: func(call int) int {
			if call == 1 {
				return 0 // second cut produces an empty file
			}
			return 4096
		},
	}
	seg, _ := newTestSegmenter(t, runner)
	src := writeSource(t, 30<<20)

	segments, err := seg.Segment(context.Background(), src, 10<<20, 5, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, s := range segments {
		if s.Index == 1 {
			t.Errorf("empty segment %d should have been dropped", s.Index)
		}
	}
	if len(segments) != 2 {
		t.Errorf("expected 2 surviving segments, got %d", len(segments))
	}
}

func TestSegment_MaxSegmentDurationCap(t *testing.T) {
	runner := &fakeRunner{duration: 3600}
	seg, _ := newTestSegmenter(t, runner)
	src := writeSource(t, 10 << 20)

	// One estimated segment, but capped at 600s: expect 6 segments.
	segments, err := seg.Segment(context.Background(), src, 20<<20, 5, 600)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segments) != 6 {
		t.Fatalf("expected 6 segments, got %d", len(segments))
	}
	for i, s := range segments {
		if got := s.End - s.Start; got > 600 {
			t.Errorf("segment %d duration %v exceeds cap", i, got)
		}
	}
}

func TestSegmentStrict_RetriesUntilUnderLimit(t *testing.T) {
	// Every cut in the first planning round is oversized; later rounds fit.
	// The fake counts cuts globally, so calls 0-1 belong to the first
	// attempt and anything after comes from a retry.
	runner := &fakeRunner{duration: 2700}
	runner.sizeFor = func(call int) int {
		if call < 2 {
			return 4096
		}
		return 128
	}
	seg, _ := newTestSegmenter(t, runner)
	src := writeSource(t, 30<<20)

	// First attempt produces 2 segments of 4096 bytes > 1024 limit; the
	// reattempt's cuts return 128 bytes.
	segments, err := seg.SegmentStrict(context.Background(), src, 1024, 5, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segments) < 2 {
		t.Errorf("expected at least 2 segments after retry, got %d", len(segments))
	}
	for _, s := range segments {
		fi, statErr := os.Stat(s.Path)
		if statErr != nil {
			t.Fatalf("segment file missing: %v", statErr)
		}
		if fi.Size() > 1024 {
			t.Errorf("segment %s over limit after strict mode: %d bytes", s.Path, fi.Size())
		}
	}
}

func TestSegmentStrict_Exhausts(t *testing.T) {
	runner := &fakeRunner{duration: 2700}
	runner.sizeFor = func(int) int { return 4096 } // never fits
	seg, _ := newTestSegmenter(t, runner)
	src := writeSource(t, 30<<20)

	_, err := seg.SegmentStrict(context.Background(), src, 1024, 5, 0)
	if !errors.Is(err, ErrSegmentationExhausted) {
		t.Fatalf("expected ErrSegmentationExhausted, got %v", err)
	}
}

func TestSegment_ClearsStaleFiles(t *testing.T) {
	runner := &fakeRunner{duration: 2700}
	seg, dir := newTestSegmenter(t, runner)
	src := writeSource(t, 30<<20)

	stale := filepath.Join(dir, "seg_099.m4a")
	if err := os.WriteFile(stale, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := seg.Segment(context.Background(), src, 20<<20, 5, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale segment file was not cleared")
	}
}

func TestCleanup(t *testing.T) {
	dir := t.TempDir()
	var segments []Segment
	for i := 0; i < 3; i++ {
		p := filepath.Join(dir, fmt.Sprintf("seg_%03d.m4a", i))
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		segments = append(segments, Segment{Path: p, Index: i})
	}

	Cleanup(segments)
	for _, s := range segments {
		if _, err := os.Stat(s.Path); !os.IsNotExist(err) {
			t.Errorf("segment %s not removed", s.Path)
		}
	}
}
