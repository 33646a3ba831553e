package record

import (
	"encoding/binary"
	"fmt"
	"io"
)

// wavHeaderSize is the byte length of the canonical PCM WAV header.
const wavHeaderSize = 44

// wavWriter streams 16-bit PCM samples into a WAV container. The header is
// written up front with placeholder sizes and patched on Close, so a file
// interrupted mid-recording is still decodable up to its last flushed sample
// once Close has run.
type wavWriter struct {
	w          io.WriteSeeker
	sampleRate int
	channels   int
	dataBytes  uint32
}

// newWAVWriter writes the WAV header and returns a writer ready for samples.
func newWAVWriter(w io.WriteSeeker, sampleRate, channels int) (*wavWriter, error) {
	ww := &wavWriter{w: w, sampleRate: sampleRate, channels: channels}
	if err := ww.writeHeader(); err != nil {
		return nil, fmt.Errorf("record: write wav header: %w", err)
	}
	return ww, nil
}

func (ww *wavWriter) writeHeader() error {
	const bitsPerSample = 16
	byteRate := ww.sampleRate * ww.channels * bitsPerSample / 8
	blockAlign := ww.channels * bitsPerSample / 8

	var buf [wavHeaderSize]byte
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], 36+ww.dataBytes)
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(ww.channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(ww.sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], ww.dataBytes)

	_, err := ww.w.Write(buf[:])
	return err
}

// WriteSamples appends interleaved 16-bit samples to the data chunk.
func (ww *wavWriter) WriteSamples(samples []int16) error {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	if _, err := ww.w.Write(buf); err != nil {
		return fmt.Errorf("record: write samples: %w", err)
	}
	ww.dataBytes += uint32(len(buf))
	return nil
}

// Close patches the RIFF and data chunk sizes in place. The underlying file
// remains open; closing it is the caller's job.
func (ww *wavWriter) Close() error {
	if _, err := ww.w.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("record: seek wav header: %w", err)
	}
	if err := ww.writeHeader(); err != nil {
		return fmt.Errorf("record: patch wav header: %w", err)
	}
	if _, err := ww.w.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("record: seek wav end: %w", err)
	}
	return nil
}
