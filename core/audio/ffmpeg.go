package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"stemlab/logger"
	"stemlab/model"
)

// FFmpegProcessor implements Analyzer and Extractor using ffmpeg/ffprobe and
// an optional external beat detector.
type FFmpegProcessor struct {
	ffmpegPath   string
	ffprobePath  string
	beatToolPath string
}

// NewFFmpegProcessor creates a new FFmpegProcessor. beatToolPath may be empty
// to disable tempo detection.
func NewFFmpegProcessor(ffmpegPath, ffprobePath, beatToolPath string) *FFmpegProcessor {
	return &FFmpegProcessor{
		ffmpegPath:   ffmpegPath,
		ffprobePath:  ffprobePath,
		beatToolPath: beatToolPath,
	}
}

// ffprobeOutput defines the structure for ffprobe JSON output.
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Duration uses ffprobe to get the duration of an audio file in seconds.
func (p *FFmpegProcessor) Duration(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe execution failed for %s: %w\nFFprobe Error: %s", path, err, stderr.String())
	}

	var probeData ffprobeOutput
	if err := json.Unmarshal(out.Bytes(), &probeData); err != nil {
		return 0, fmt.Errorf("failed to unmarshal ffprobe output: %w", err)
	}

	duration, err := strconv.ParseFloat(probeData.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", probeData.Format.Duration, err)
	}
	return duration, nil
}

// BPM runs the external beat detector and parses its reported tempo.
func (p *FFmpegProcessor) BPM(ctx context.Context, path string) (float64, error) {
	if p.beatToolPath == "" {
		return 0, fmt.Errorf("tempo detection disabled: no beat tool configured")
	}

	cmd := exec.CommandContext(ctx, p.beatToolPath, "tempo", "-i", path)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("beat detector failed for %s: %w\nError: %s", path, err, stderr.String())
	}

	bpm, err := parseTempoOutput(out.String())
	if err != nil {
		return 0, fmt.Errorf("failed to parse beat detector output for %s: %w", path, err)
	}
	return bpm, nil
}

// parseTempoOutput extracts the first numeric token from the detector's
// stdout, e.g. "117.453835 bpm".
func parseTempoOutput(out string) (float64, error) {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) == 0 {
			continue
		}
		if bpm, err := strconv.ParseFloat(fields[0], 64); err == nil && bpm > 0 {
			return bpm, nil
		}
	}
	return 0, fmt.Errorf("no tempo value in output %q", out)
}

// ExtractRange writes the [start, end) range of src to dst as 16-bit PCM WAV.
func (p *FFmpegProcessor) ExtractRange(ctx context.Context, src, dst string, start, end float64) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create output directory for %s: %w", dst, err)
	}

	args := []string{
		"-y",
		"-i", src,
		"-ss", model.FormatSeconds(start),
		"-to", model.FormatSeconds(end),
		"-c:a", "pcm_s16le",
		dst,
	}

	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.Debug("extracting audio range",
		logger.String("src", src),
		logger.String("dst", dst),
		logger.Float64("start", start),
		logger.Float64("end", end))

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg extraction failed for %s: %w\nFFmpeg Error: %s", src, err, stderr.String())
	}
	return nil
}

// RenderLoop extracts the [start, end) segment of src and writes it to dst
// repeated count times. The intermediate segment is removed afterwards.
func (p *FFmpegProcessor) RenderLoop(ctx context.Context, src, dst string, start, end float64, count int) error {
	if count < 1 {
		return fmt.Errorf("invalid loop count %d", count)
	}

	segment := dst + ".segment.wav"
	if err := p.ExtractRange(ctx, src, segment, start, end); err != nil {
		return err
	}
	defer os.Remove(segment)

	args := []string{
		"-y",
		"-stream_loop", strconv.Itoa(count - 1),
		"-i", segment,
		"-c", "copy",
		dst,
	}

	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg loop render failed for %s: %w\nFFmpeg Error: %s", src, err, stderr.String())
	}
	return nil
}
