package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"strconv"
	"time"

	"stemlab/core/audio"
	"stemlab/logger"

	"github.com/redis/go-redis/v9"
)

// analysisTTL bounds how long probe results live in Redis. Audio files are
// immutable once written, so the TTL only exists to let unused entries age
// out.
const analysisTTL = 30 * 24 * time.Hour

// CachedAnalyzer wraps an Analyzer with a content-addressed Redis cache.
// Duration and BPM probes shell out to external tools, and reconciliation
// re-probes every track folder on startup; caching by file digest makes
// repeated startups cheap. A nil client degrades to plain passthrough.
type CachedAnalyzer struct {
	inner  audio.Analyzer
	client *redis.Client
}

var _ audio.Analyzer = (*CachedAnalyzer)(nil)

// NewCachedAnalyzer wraps inner. client may be nil.
func NewCachedAnalyzer(inner audio.Analyzer, client *redis.Client) *CachedAnalyzer {
	return &CachedAnalyzer{inner: inner, client: client}
}

// Duration returns the audio duration in seconds, preferring the cache.
func (a *CachedAnalyzer) Duration(ctx context.Context, path string) (float64, error) {
	return a.cached(ctx, "duration", path, a.inner.Duration)
}

// BPM returns the detected tempo, preferring the cache.
func (a *CachedAnalyzer) BPM(ctx context.Context, path string) (float64, error) {
	return a.cached(ctx, "bpm", path, a.inner.BPM)
}

func (a *CachedAnalyzer) cached(ctx context.Context, kind, path string, probe func(context.Context, string) (float64, error)) (float64, error) {
	if a.client == nil {
		return probe(ctx, path)
	}

	digest, err := fileDigest(path)
	if err != nil {
		// Unreadable file: let the probe produce the real error.
		return probe(ctx, path)
	}
	key := "analysis:" + kind + ":" + digest

	if raw, err := a.client.Get(ctx, key).Result(); err == nil {
		if val, err := strconv.ParseFloat(raw, 64); err == nil {
			logger.Debug("analysis cache hit",
				logger.String("kind", kind), logger.String("path", path))
			return val, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		logger.Warn("analysis cache read failed",
			logger.String("key", key), logger.ErrorField(err))
	}

	val, err := probe(ctx, path)
	if err != nil {
		return 0, err
	}

	if err := a.client.Set(ctx, key, strconv.FormatFloat(val, 'f', -1, 64), analysisTTL).Err(); err != nil {
		logger.Warn("analysis cache write failed",
			logger.String("key", key), logger.ErrorField(err))
	}
	return val, nil
}

// fileDigest returns the hex SHA-256 of the file contents.
func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
