package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"stemlab/config"
	"stemlab/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioArchiver mirrors finished track folders to a MinIO bucket so stems
// survive local disk loss. Archiving is best-effort and never blocks the
// separation pipeline.
type MinioArchiver struct {
	client *minio.Client
	bucket string
}

// NewMinioArchiver connects to MinIO and ensures the bucket exists. Returns
// (nil, nil) when no endpoint is configured; the job manager treats a nil
// archiver as "archiving disabled".
func NewMinioArchiver(cfg *config.Config) (*MinioArchiver, error) {
	if cfg.MinioEndpoint == "" {
		logger.Info("minio not configured, track archiving disabled")
		return nil, nil
	}

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.MinioBucket, err)
	}
	if !exists {
		err = client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.MinioBucket, err)
		}
		logger.Info("created minio bucket", logger.String("bucket", cfg.MinioBucket))
	}

	logger.Info("minio connected",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", cfg.MinioBucket))
	return &MinioArchiver{client: client, bucket: cfg.MinioBucket}, nil
}

// ArchiveTrack uploads every file of a track folder. Keys in files are the
// object names relative to the bucket root, values are local paths. Upload
// continues past individual failures and reports the first error.
func (a *MinioArchiver) ArchiveTrack(ctx context.Context, trackName string, files map[string]string) error {
	var firstErr error
	for object, localPath := range files {
		// Object keys always use forward slashes regardless of host OS.
		object = filepath.ToSlash(object)
		_, err := a.client.FPutObject(ctx, a.bucket, object, localPath, minio.PutObjectOptions{
			ContentType: contentTypeFor(localPath),
		})
		if err != nil {
			logger.Warn("archive upload failed",
				logger.String("track", trackName),
				logger.String("object", object),
				logger.ErrorField(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		logger.Debug("archived object",
			logger.String("track", trackName),
			logger.String("object", object))
	}
	if firstErr != nil {
		return fmt.Errorf("archive %s: %w", trackName, firstErr)
	}
	logger.Info("track archived",
		logger.String("track", trackName), logger.Int("files", len(files)))
	return nil
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".flac":
		return "audio/flac"
	case ".ogg":
		return "audio/ogg"
	case ".m4a":
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}
