package separator

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"stemlab/logger"
	"stemlab/model"
)

// SpleeterSeparator drives a spleeter-compatible CLI as a subprocess.
// The engine writes stems as {stem}.wav into outputDir/{input basename}/.
type SpleeterSeparator struct {
	binPath string
}

// NewSpleeterSeparator creates a separator using the given executable.
func NewSpleeterSeparator(binPath string) *SpleeterSeparator {
	return &SpleeterSeparator{binPath: binPath}
}

// Split runs the separation and returns the paths of the produced stem files.
// A missing expected stem file is an engine failure, not a partial success.
func (s *SpleeterSeparator) Split(ctx context.Context, inputPath, outputDir string, stemCount int) (StemFilePaths, error) {
	stemNames, err := model.StemNames(stemCount)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create separation output directory %s: %w", outputDir, err)
	}

	args := []string{
		"separate",
		"-p", fmt.Sprintf("spleeter:%dstems", stemCount),
		"-o", outputDir,
		inputPath,
	}

	cmd := exec.CommandContext(ctx, s.binPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.Info("running separation engine",
		logger.String("input", inputPath),
		logger.Int("stems", stemCount))

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("separation engine failed for %s: %w\nEngine Error: %s", inputPath, err, stderr.String())
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	stemDir := filepath.Join(outputDir, base)

	paths := make(StemFilePaths, len(stemNames))
	for _, name := range stemNames {
		stemPath := filepath.Join(stemDir, model.StemFilename(name))
		if _, err := os.Stat(stemPath); err != nil {
			return nil, fmt.Errorf("separation engine did not produce stem %q at %s: %w", name, stemPath, err)
		}
		paths[name] = stemPath
	}

	return paths, nil
}
