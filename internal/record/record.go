// Package record captures microphone audio into a WAV file and finalizes it
// into a compressed M4A via ffmpeg.
//
// Recording stops through context cancellation: the capture loop drains the
// stream, the WAV header is patched, and the file closes cleanly, so an
// interrupted session still yields a playable recording. Finalization never
// discards audio: if the WAV to M4A conversion fails, the raw WAV is moved
// aside as "<base>_raw.wav" before the error is reported.
package record

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gordonklaus/portaudio"

	"github.com/lectio/lectio/internal/media"
)

const (
	defaultSampleRate = 16000
	defaultChannels   = 1
	defaultBitrate    = "64k"

	// framesPerBuffer is the portaudio read granularity, ~64ms at 16kHz.
	framesPerBuffer = 1024
)

// Device describes one audio input device.
type Device struct {
	Index             int
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
}

// ListDevices enumerates input-capable audio devices.
func ListDevices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("record: initialize audio: %w", err)
	}
	defer func() { _ = portaudio.Terminate() }()

	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("record: list devices: %w", err)
	}

	var devices []Device
	for i, info := range infos {
		if info.MaxInputChannels < 1 {
			continue
		}
		devices = append(devices, Device{
			Index:             i,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
		})
	}
	return devices, nil
}

// Option is a functional option for configuring a [Session].
type Option func(*Session)

// WithSampleRate sets the capture sample rate in Hz. Default: 16000.
func WithSampleRate(hz int) Option {
	return func(s *Session) {
		s.sampleRate = hz
	}
}

// WithChannels sets the channel count. Default: 1.
func WithChannels(n int) Option {
	return func(s *Session) {
		s.channels = n
	}
}

// WithDevice selects the input device by (substring) name. Default: the
// system default input.
func WithDevice(name string) Option {
	return func(s *Session) {
		s.deviceName = name
	}
}

// WithBitrate sets the M4A bitrate used by [Session.Finalize]. Default: 64k.
func WithBitrate(bitrate string) Option {
	return func(s *Session) {
		s.bitrate = bitrate
	}
}

// Session records one lecture.
type Session struct {
	tool   *media.Tool
	logger *slog.Logger

	sampleRate int
	channels   int
	deviceName string
	bitrate    string
}

// NewSession returns a Session that finalizes recordings through tool.
func NewSession(tool *media.Tool, opts ...Option) *Session {
	s := &Session{
		tool:       tool,
		logger:     slog.Default().With("component", "record"),
		sampleRate: defaultSampleRate,
		channels:   defaultChannels,
		bitrate:    defaultBitrate,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Record captures audio into wavPath until ctx is cancelled. Cancellation is
// the normal way to stop; Record returns nil in that case.
func (s *Session) Record(ctx context.Context, wavPath string) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("record: initialize audio: %w", err)
	}
	defer func() { _ = portaudio.Terminate() }()

	dev, err := s.pickDevice()
	if err != nil {
		return err
	}

	f, err := os.Create(wavPath)
	if err != nil {
		return fmt.Errorf("record: create %s: %w", wavPath, err)
	}
	defer f.Close()

	writer, err := newWAVWriter(f, s.sampleRate, s.channels)
	if err != nil {
		return err
	}

	buf := make([]int16, framesPerBuffer*s.channels)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: s.channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(s.sampleRate),
		FramesPerBuffer: framesPerBuffer,
	}, buf)
	if err != nil {
		return fmt.Errorf("record: open stream on %q: %w", dev.Name, err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("record: start stream: %w", err)
	}
	s.logger.Info("recording started",
		"device", dev.Name, "sample_rate", s.sampleRate, "channels", s.channels, "file", wavPath)

	var readErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		default:
		}

		if readErr = stream.Read(); readErr != nil {
			break
		}
		if readErr = writer.WriteSamples(buf); readErr != nil {
			break
		}
	}

	_ = stream.Stop()
	if err := writer.Close(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("record: close %s: %w", wavPath, err)
	}

	if readErr != nil {
		return fmt.Errorf("record: capture: %w", readErr)
	}
	s.logger.Info("recording stopped", "file", wavPath)
	return nil
}

// Finalize converts the WAV into an M4A next to it and removes the WAV on
// success. On conversion failure the WAV is moved to "<base>_raw.wav" so the
// captured audio survives the failed encode.
func (s *Session) Finalize(ctx context.Context, wavPath, m4aPath string) error {
	err := s.tool.Convert(ctx, wavPath, m4aPath, media.ConvertOptions{
		Bitrate:    s.bitrate,
		SampleRate: s.sampleRate,
		Channels:   s.channels,
	})
	if err != nil {
		rescue := rescuePath(m4aPath)
		if mvErr := os.Rename(wavPath, rescue); mvErr != nil {
			s.logger.Error("could not move raw recording aside", "error", mvErr)
			return fmt.Errorf("record: convert failed (%v) and raw wav left at %s: %w", err, wavPath, mvErr)
		}
		s.logger.Warn("conversion failed, raw recording preserved", "rescue", rescue, "error", err)
		return fmt.Errorf("record: convert %s: %w (raw audio saved to %s)", wavPath, err, rescue)
	}

	if err := os.Remove(wavPath); err != nil {
		s.logger.Warn("could not remove intermediate wav", "file", wavPath, "error", err)
	}
	s.logger.Info("recording finalized", "file", m4aPath)
	return nil
}

// rescuePath derives "<base>_raw.wav" from the target output path.
func rescuePath(outPath string) string {
	base := strings.TrimSuffix(outPath, filepath.Ext(outPath))
	return base + "_raw.wav"
}

func (s *Session) pickDevice() (*portaudio.DeviceInfo, error) {
	if s.deviceName == "" {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("record: default input device: %w", err)
		}
		return dev, nil
	}

	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("record: list devices: %w", err)
	}
	want := strings.ToLower(s.deviceName)
	for _, info := range infos {
		if info.MaxInputChannels < 1 {
			continue
		}
		if strings.Contains(strings.ToLower(info.Name), want) {
			return info, nil
		}
	}
	return nil, fmt.Errorf("record: no input device matching %q", s.deviceName)
}
