package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
)

// ErrSegmentationExhausted is returned by [Segmenter.SegmentStrict] when the
// attempt bound is reached without every segment fitting under the size limit.
var ErrSegmentationExhausted = errors.New("media: unable to split audio under the size limit")

const (
	// minSegmentSeconds floors the planned segment duration so that extreme
	// size estimates cannot produce sub-minute confetti.
	minSegmentSeconds = 60.0

	// strictMaxAttempts bounds SegmentStrict's retry loop.
	strictMaxAttempts = 8
)

// Segment describes one materialised slice of a source audio file.
// Start and End are in the source file's timeline; Overlap is how many
// seconds at the head of this segment repeat the tail of the previous one.
type Segment struct {
	Path    string
	Index   int
	Start   float64
	End     float64
	Overlap float64
}

// Segmenter plans and materialises size-bounded audio segments in a temp
// directory. Callers own the produced files and are expected to delete them
// after use.
type Segmenter struct {
	tool    *Tool
	tempDir string
}

// NewSegmenter returns a [Segmenter] that writes segment files under tempDir.
func NewSegmenter(tool *Tool, tempDir string) *Segmenter {
	return &Segmenter{tool: tool, tempDir: tempDir}
}

// Segment cuts the file at path into segments whose estimated size stays
// under maxBytes. Each segment after the first starts overlapSec earlier
// than its planned boundary so speech crossing a cut survives in both
// neighbours. Planned duration is derived uniformly from the total duration
// and capped at maxSegSec.
//
// A produced file that is missing or empty is dropped with a warning rather
// than failing the whole run.
func (s *Segmenter) Segment(ctx context.Context, path string, maxBytes int64, overlapSec, maxSegSec float64) ([]Segment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("media: stat %s: %w", path, err)
	}
	totalDuration, err := s.tool.ProbeDuration(ctx, path)
	if err != nil {
		return nil, err
	}

	count := estimateCount(info.Size(), maxBytes)
	return s.cutPlan(ctx, path, totalDuration, count, overlapSec, maxSegSec)
}

// SegmentStrict behaves like [Segment] but verifies every produced file
// against maxBytes, retrying with one more target segment each attempt.
// Wraps [ErrSegmentationExhausted] after strictMaxAttempts failed attempts.
// Use when the source bitrate is variable enough that size estimation from
// the container size is unreliable.
func (s *Segmenter) SegmentStrict(ctx context.Context, path string, maxBytes int64, overlapSec, maxSegSec float64) ([]Segment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("media: stat %s: %w", path, err)
	}
	totalDuration, err := s.tool.ProbeDuration(ctx, path)
	if err != nil {
		return nil, err
	}

	count := estimateCount(info.Size(), maxBytes)
	for attempt := 1; attempt <= strictMaxAttempts; attempt++ {
		segments, err := s.cutPlan(ctx, path, totalDuration, count, overlapSec, maxSegSec)
		if err != nil {
			return nil, err
		}

		if allUnder(segments, maxBytes) && len(segments) > 0 {
			return segments, nil
		}

		slog.Warn("segment size over limit, retrying with more segments",
			"attempt", attempt, "target_segments", count+1)
		Cleanup(segments)
		count++
	}
	return nil, fmt.Errorf("%w after %d attempts", ErrSegmentationExhausted, strictMaxAttempts)
}

// cutPlan clears stale segment files, then cuts path into count uniform
// pieces with overlap lead-ins.
func (s *Segmenter) cutPlan(ctx context.Context, path string, totalDuration float64, count int, overlapSec, maxSegSec float64) ([]Segment, error) {
	if err := os.MkdirAll(s.tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("media: create temp dir %s: %w", s.tempDir, err)
	}
	s.clearStale()

	segDuration := totalDuration / float64(count)
	if maxSegSec > 0 && segDuration > maxSegSec {
		segDuration = maxSegSec
	}
	if segDuration < minSegmentSeconds {
		segDuration = minSegmentSeconds
	}

	ext := filepath.Ext(path)
	if ext == "" {
		ext = ".m4a"
	}

	var segments []Segment
	for index := 0; ; index++ {
		plannedStart := float64(index) * segDuration
		if plannedStart >= totalDuration {
			break
		}

		cutStart := plannedStart
		overlap := 0.0
		if index > 0 {
			overlap = overlapSec
			cutStart = plannedStart - overlapSec
			if cutStart < 0 {
				overlap += cutStart
				cutStart = 0
			}
		}

		end := plannedStart + segDuration
		if end > totalDuration {
			end = totalDuration
		}

		dst := filepath.Join(s.tempDir, fmt.Sprintf("seg_%03d%s", index, ext))
		if err := s.tool.Cut(ctx, path, cutStart, end-cutStart, dst); err != nil {
			return nil, err
		}

		if fi, statErr := os.Stat(dst); statErr != nil || fi.Size() == 0 {
			slog.Warn("dropping empty segment", "path", dst, "index", index)
			_ = os.Remove(dst)
			continue
		}

		segments = append(segments, Segment{
			Path:    dst,
			Index:   index,
			Start:   plannedStart,
			End:     end,
			Overlap: overlap,
		})
	}

	return segments, nil
}

// clearStale removes segment files left behind by a previous aborted run so
// that indices never collide across attempts.
func (s *Segmenter) clearStale() {
	matches, err := filepath.Glob(filepath.Join(s.tempDir, "seg_*"))
	if err != nil {
		return
	}
	for _, m := range matches {
		_ = os.Remove(m)
	}
}

// Cleanup deletes the files behind segments. Safe to call with already
// deleted paths.
func Cleanup(segments []Segment) {
	for _, seg := range segments {
		_ = os.Remove(seg.Path)
	}
}

// estimateCount is ceil(size/maxBytes), at least 1.
func estimateCount(size, maxBytes int64) int {
	if maxBytes <= 0 {
		return 1
	}
	count := int(math.Ceil(float64(size) / float64(maxBytes)))
	if count < 1 {
		count = 1
	}
	return count
}

func allUnder(segments []Segment, maxBytes int64) bool {
	for _, seg := range segments {
		fi, err := os.Stat(seg.Path)
		if err != nil || fi.Size() > maxBytes {
			return false
		}
	}
	return true
}
