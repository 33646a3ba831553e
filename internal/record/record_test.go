package record

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lectio/lectio/internal/media"
)

func TestWAVWriter_HeaderAndData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w, err := newWAVWriter(f, 16000, 1)
	if err != nil {
		t.Fatalf("newWAVWriter: %v", err)
	}
	samples := []int16{0, 100, -100, 32767, -32768}
	if err := w.WriteSamples(samples); err != nil {
		t.Fatalf("WriteSamples: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	f.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != wavHeaderSize+len(samples)*2 {
		t.Fatalf("file size = %d, want %d", len(data), wavHeaderSize+len(samples)*2)
	}

	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE magic")
	}
	if got := binary.LittleEndian.Uint32(data[4:8]); got != uint32(36+len(samples)*2) {
		t.Errorf("RIFF size = %d, want %d", got, 36+len(samples)*2)
	}
	if got := binary.LittleEndian.Uint16(data[22:24]); got != 1 {
		t.Errorf("channels = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(data[24:28]); got != 16000 {
		t.Errorf("sample rate = %d, want 16000", got)
	}
	if got := binary.LittleEndian.Uint32(data[40:44]); got != uint32(len(samples)*2) {
		t.Errorf("data size = %d, want %d", got, len(samples)*2)
	}

	// Spot-check sample encoding.
	if got := int16(binary.LittleEndian.Uint16(data[wavHeaderSize+2:])); got != 100 {
		t.Errorf("sample[1] = %d, want 100", got)
	}
}

func TestWAVWriter_MultipleWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w, err := newWAVWriter(f, 44100, 2)
	if err != nil {
		t.Fatal(err)
	}
	for range 3 {
		if err := w.WriteSamples(make([]int16, 512)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := binary.LittleEndian.Uint32(data[40:44]); got != 3*512*2 {
		t.Errorf("data size = %d, want %d", got, 3*512*2)
	}
	if got := binary.LittleEndian.Uint16(data[22:24]); got != 2 {
		t.Errorf("channels = %d, want 2", got)
	}
}

// failingRunner makes every ffmpeg invocation fail.
type failingRunner struct{}

func (failingRunner) Run(context.Context, string, ...string) (string, error) {
	return "", errors.New("encoder exploded")
}

// okRunner materializes the conversion target so Convert succeeds.
type okRunner struct{}

func (okRunner) Run(_ context.Context, _ string, args ...string) (string, error) {
	if len(args) > 0 {
		_ = os.WriteFile(args[len(args)-1], []byte("m4a"), 0o644)
	}
	return "", nil
}

func TestFinalize_MovesRawAsideOnFailure(t *testing.T) {
	dir := t.TempDir()
	wavPath := filepath.Join(dir, "lecture.wav")
	m4aPath := filepath.Join(dir, "lecture.m4a")
	if err := os.WriteFile(wavPath, []byte("pcm data"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewSession(media.NewTool(media.WithRunner(failingRunner{})))
	err := s.Finalize(context.Background(), wavPath, m4aPath)
	if err == nil {
		t.Fatal("Finalize() succeeded with a failing encoder")
	}

	rescue := filepath.Join(dir, "lecture_raw.wav")
	data, readErr := os.ReadFile(rescue)
	if readErr != nil {
		t.Fatalf("rescue file missing: %v", readErr)
	}
	if string(data) != "pcm data" {
		t.Errorf("rescue content = %q", data)
	}
	if _, statErr := os.Stat(wavPath); !os.IsNotExist(statErr) {
		t.Error("original wav still present after rescue move")
	}
}

func TestFinalize_RemovesWavOnSuccess(t *testing.T) {
	dir := t.TempDir()
	wavPath := filepath.Join(dir, "lecture.wav")
	m4aPath := filepath.Join(dir, "lecture.m4a")
	if err := os.WriteFile(wavPath, []byte("pcm data"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewSession(media.NewTool(media.WithRunner(okRunner{})))
	if err := s.Finalize(context.Background(), wavPath, m4aPath); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	if _, err := os.Stat(wavPath); !os.IsNotExist(err) {
		t.Error("intermediate wav not removed")
	}
	if _, err := os.Stat(m4aPath); err != nil {
		t.Errorf("m4a missing: %v", err)
	}
}

func TestRescuePath(t *testing.T) {
	for in, want := range map[string]string{
		"/rec/lecture.m4a": "/rec/lecture_raw.wav",
		"plain.m4a":        "plain_raw.wav",
	} {
		if got := rescuePath(in); got != want {
			t.Errorf("rescuePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSessionOptions(t *testing.T) {
	s := NewSession(media.NewTool(),
		WithSampleRate(44100),
		WithChannels(2),
		WithDevice("USB Mic"),
		WithBitrate("128k"),
	)
	if s.sampleRate != 44100 || s.channels != 2 || s.deviceName != "USB Mic" || s.bitrate != "128k" {
		t.Errorf("options not applied: %+v", s)
	}
}
