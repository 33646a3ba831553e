package transcribe

import "fmt"

const (
	// coverageThreshold is the minimum acceptable coverage percentage.
	coverageThreshold = 95.0

	// lectureWordsPerMinute is a conservative speech-rate heuristic for
	// lecture audio.
	lectureWordsPerMinute = 80

	// wordCountSafetyFactor discounts the heuristic so that slow or sparse
	// lectures do not trip the check constantly.
	wordCountSafetyFactor = 0.5
)

// Verify runs advisory sanity checks against a transcript and returns
// human-readable warnings. It never fails: an empty slice means the
// transcript looks plausible for the expected duration.
func Verify(t *Transcript, expectedDuration float64) []string {
	var warnings []string

	// Coverage must exceed the threshold; exactly 95% still means real
	// audio went missing.
	if t.Coverage <= coverageThreshold {
		warnings = append(warnings, fmt.Sprintf(
			"coverage %.1f%% does not exceed the %.0f%% threshold; part of the audio may be missing from the transcript",
			t.Coverage, coverageThreshold))
	}

	if expectedDuration > 0 {
		expectedWords := int(expectedDuration / 60 * lectureWordsPerMinute * wordCountSafetyFactor)
		if t.WordCount < expectedWords {
			warnings = append(warnings, fmt.Sprintf(
				"transcript has %d words but at least %d were expected for %.0fs of audio; recognition may have dropped content",
				t.WordCount, expectedWords, expectedDuration))
		}
	}

	return warnings
}
