package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
// Values come from environment variables (optionally a .env file) with
// defaults suitable for a local single-user deployment.
type Config struct {
	ListenAddr string

	// External tools. The separator, tempo detector and downloader are black
	// boxes invoked as subprocesses; only their command paths live here.
	FFmpegPath    string
	FFprobePath   string
	SeparatorPath string // spleeter-compatible CLI
	BeatToolPath  string // tempo detector, empty disables BPM analysis
	YtdlpPath     string

	// Artifact directories.
	UploadDir string // pending uploads, one subdirectory per job
	OutputDir string // one folder per separated track
	SampleDir string // extracted samples
	LoopDir   string // rendered loops
	WebAppDir string // frontend UI files

	// Database. Driver is "sqlite" (default, file-backed) or "mysql".
	DBDriver   string
	DBPath     string // sqlite file
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis analysis cache. Empty host disables caching.
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MinIO stem archive. Empty endpoint disables archiving.
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	// Logging.
	LogLevel string
	LogPath  string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override variables already set in the environment.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}

	dataDir := getEnv("DATA_DIR", ".")

	return &Config{
		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),

		FFmpegPath:    getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:   getEnv("FFPROBE_PATH", "ffprobe"),
		SeparatorPath: getEnv("SEPARATOR_PATH", "spleeter"),
		BeatToolPath:  getEnv("BEAT_TOOL_PATH", "aubio"),
		YtdlpPath:     getEnv("YTDLP_PATH", "yt-dlp"),

		UploadDir: filepath.Join(dataDir, "uploads"),
		OutputDir: filepath.Join(dataDir, "output"),
		SampleDir: filepath.Join(dataDir, "samples"),
		LoopDir:   filepath.Join(dataDir, "loops"),
		WebAppDir: getEnv("WEBAPP_DIR", filepath.Join("web", "ui")),

		DBDriver:   getEnv("DB_DRIVER", "sqlite"),
		DBPath:     getEnv("DB_PATH", filepath.Join(dataDir, "stemlab.db")),
		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // no hardcoded default for passwords
		DBName:     getEnv("DB_NAME", "stemlab"),

		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "stemlab"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogPath:  getEnv("LOG_PATH", ""),
	}
}

// ArtifactDirs returns every directory that must exist before the server or
// the reconciler touches the filesystem.
func (c *Config) ArtifactDirs() []string {
	return []string{c.UploadDir, c.OutputDir, c.SampleDir, c.LoopDir}
}
