package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Result describes a fetched audio file and its remote metadata.
type Result struct {
	AudioPath string
	Title     string
	Artist    string
	Thumbnail string
}

// Fetcher downloads remote audio into a local directory.
type Fetcher interface {
	Fetch(ctx context.Context, url, destDir string) (*Result, error)
}

// YtdlpFetcher downloads audio with yt-dlp, extracting the best audio track
// as MP3 the way the web frontends expect it.
type YtdlpFetcher struct {
	binPath string
}

// NewYtdlpFetcher creates a fetcher using the given yt-dlp executable.
func NewYtdlpFetcher(binPath string) *YtdlpFetcher {
	return &YtdlpFetcher{binPath: binPath}
}

// ytdlpInfo is the subset of yt-dlp's --print-json output we care about.
type ytdlpInfo struct {
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Uploader  string `json:"uploader"`
	Channel   string `json:"channel"`
	Thumbnail string `json:"thumbnail"`
	Filename  string `json:"_filename"`
}

// Fetch downloads the URL into destDir and returns the local path plus metadata.
func (f *YtdlpFetcher) Fetch(ctx context.Context, url, destDir string) (*Result, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory %s: %w", destDir, err)
	}

	args := []string{
		"-f", "bestaudio/best",
		"-x", "--audio-format", "mp3",
		"--audio-quality", "192K",
		"--no-playlist",
		"--print-json",
		"--no-warnings",
		"-o", filepath.Join(destDir, "%(title)s.%(ext)s"),
		url,
	}

	cmd := exec.CommandContext(ctx, f.binPath, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("download failed for %s: %w\nDownloader Error: %s", url, err, stderr.String())
	}

	var info ytdlpInfo
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("failed to parse downloader metadata: %w", err)
	}

	// The reported filename carries the pre-extraction extension; the audio
	// postprocessor leaves an .mp3 next to it.
	audioPath := info.Filename
	if ext := filepath.Ext(audioPath); ext != ".mp3" {
		audioPath = strings.TrimSuffix(audioPath, ext) + ".mp3"
	}
	if _, err := os.Stat(audioPath); err != nil {
		return nil, fmt.Errorf("downloaded audio not found at %s: %w", audioPath, err)
	}

	artist := info.Artist
	if artist == "" {
		artist = info.Uploader
	}
	if artist == "" {
		artist = info.Channel
	}

	return &Result{
		AudioPath: audioPath,
		Title:     info.Title,
		Artist:    artist,
		Thumbnail: info.Thumbnail,
	}, nil
}
