package stt

// Request describes a single batch transcription call.
type Request struct {
	// FilePath is the path to the encoded audio file to upload.
	FilePath string

	// Language is the ISO-639-1 language code for recognition (e.g., "en").
	// An empty string lets the provider auto-detect the language.
	Language string

	// Prompt is optional context text passed to the recognizer to bias
	// decoding toward domain vocabulary (course names, technical terms).
	Prompt string

	// Temperature controls decoding randomness. Zero is deterministic and
	// is what transcription pipelines normally want.
	Temperature float32
}

// Result is the transcript returned by a Provider.
type Result struct {
	// Text is the full transcript of the uploaded audio.
	Text string

	// Segments holds timestamped portions of the transcript when the backend
	// supports verbose output. Nil otherwise.
	Segments []Segment

	// Duration is the audio duration in seconds as reported by the backend.
	// Zero when not reported.
	Duration float64

	// Language is the language the backend detected or was told to use.
	Language string
}

// Segment is one timestamped span of a transcript. Start and End are seconds
// relative to the beginning of the uploaded file.
type Segment struct {
	ID    int
	Start float64
	End   float64
	Text  string
}
