package audio

import "context"

// Analyzer extracts metadata from audio files. Implementations wrap external
// tools; failures are reported, never fatal to the caller's process.
type Analyzer interface {
	// Duration returns the length of the file in seconds.
	Duration(ctx context.Context, path string) (float64, error)
	// BPM returns the detected tempo of the file.
	BPM(ctx context.Context, path string) (float64, error)
}

// Extractor produces derived audio files from a source file.
type Extractor interface {
	// ExtractRange writes the [start, end) range of src to dst as WAV.
	ExtractRange(ctx context.Context, src, dst string, start, end float64) error
	// RenderLoop writes the [start, end) range of src repeated count times to dst.
	RenderLoop(ctx context.Context, src, dst string, start, end float64, count int) error
}
