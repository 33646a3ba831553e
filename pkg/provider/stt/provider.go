// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a batch transcription service (e.g., OpenAI Whisper or
// a compatible self-hosted server) and exposes a uniform file-in, transcript-out
// interface. Callers hand over a path to an encoded audio file and receive the
// full transcript together with timestamped segments when the provider reports
// them.
//
// Implementations must be safe for concurrent use: the transcription pipeline
// may transcribe several audio segments against the same Provider value.
package stt

import "context"

// Provider is the abstraction over any batch STT backend.
type Provider interface {
	// Transcribe uploads the audio file referenced by req and blocks until the
	// provider returns a transcript or the context is cancelled.
	//
	// The returned Result always carries the plain transcript text; Segments
	// and Duration are filled in when the backend supports verbose output and
	// left zero otherwise. Returns an error if the file cannot be read or the
	// provider rejects the request.
	Transcribe(ctx context.Context, req Request) (*Result, error)
}
