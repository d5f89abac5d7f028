package separator

import "context"

// StemFilePaths maps stem names to the files the engine produced.
type StemFilePaths map[string]string

// Separator splits one audio file into stems. The engine is a black box:
// audio in, N files out. It is expensive and must never be retried blindly.
type Separator interface {
	Split(ctx context.Context, inputPath, outputDir string, stemCount int) (StemFilePaths, error)
}
