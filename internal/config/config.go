// Package config loads and validates the environment-driven configuration
// recognised by every process in this module.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config mirrors the recognised environment keys.
type Config struct {
	BlobEndpoint  string
	BlobAccessKey string
	BlobSecretKey string
	BlobBucket    string

	QueueHost string
	QueuePort int

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string

	ScratchRoot          string
	OpusBitrate          string
	TranscodeParallelism int
	GPUMicroBatch        int
	AudioExtensions      []string

	// TranscribeServiceURL and ClassifyServiceURL address the external
	// speech-to-text and content-classification services the GPU Worker
	// calls as black boxes; not named in the core's recognised-keys table
	// since those services are explicitly out of scope, but the GPU
	// Worker still needs somewhere to send the HTTP callout.
	TranscribeServiceURL string
	ClassifyServiceURL   string

	// DeleteSourceArchive enables deleting archives/{batch_id}.tar from
	// the Blob Store on finalisation. Default: retain for reprocess.
	DeleteSourceArchive bool
}

// Load reads configuration from the environment, optionally loading a
// local .env file first (development convenience, mirrors the corpus'
// godotenv usage). Missing .env is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	} else {
		_ = godotenv.Load()
	}

	cfg := &Config{
		BlobEndpoint:  os.Getenv("BLOB_ENDPOINT"),
		BlobAccessKey: os.Getenv("BLOB_ACCESS_KEY"),
		BlobSecretKey: os.Getenv("BLOB_SECRET_KEY"),
		BlobBucket:    os.Getenv("BLOB_BUCKET"),

		QueueHost: getenv("QUEUE_HOST", "localhost"),
		QueuePort: getenvInt("QUEUE_PORT", 6379),

		DBHost:     getenv("DB_HOST", "localhost"),
		DBPort:     getenvInt("DB_PORT", 5432),
		DBName:     os.Getenv("DB_NAME"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),

		ScratchRoot:          getenv("SCRATCH_ROOT", "/data/scratch"),
		OpusBitrate:          getenv("OPUS_BITRATE", "32k"),
		TranscodeParallelism: getenvInt("TRANSCODE_PARALLELISM", 4),
		GPUMicroBatch:        getenvInt("GPU_MICRO_BATCH", 32),
		AudioExtensions:      splitCSV(getenv("AUDIO_EXTENSIONS", ".mp3")),

		TranscribeServiceURL: getenv("TRANSCRIBE_SERVICE_URL", "http://localhost:8081"),
		ClassifyServiceURL:   getenv("CLASSIFY_SERVICE_URL", "http://localhost:8082"),
		DeleteSourceArchive:  getenvBool("DELETE_SOURCE_ARCHIVE", false),
	}

	return cfg, cfg.Validate()
}

// Validate returns the first violated configuration invariant, following
// the single-method style used by the corpus' config loaders.
func (c *Config) Validate() error {
	if c.BlobBucket == "" {
		return fmt.Errorf("BLOB_BUCKET is required")
	}
	if c.QueueHost == "" {
		return fmt.Errorf("QUEUE_HOST is required")
	}
	if c.QueuePort <= 0 {
		return fmt.Errorf("QUEUE_PORT must be positive")
	}
	if c.DBName == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.ScratchRoot == "" {
		return fmt.Errorf("SCRATCH_ROOT is required")
	}
	if c.TranscodeParallelism < 1 {
		return fmt.Errorf("TRANSCODE_PARALLELISM must be at least 1")
	}
	if c.GPUMicroBatch < 1 {
		return fmt.Errorf("GPU_MICRO_BATCH must be at least 1")
	}
	if len(c.AudioExtensions) == 0 {
		return fmt.Errorf("AUDIO_EXTENSIONS must name at least one extension")
	}
	return nil
}

// QueueAddr returns "host:port" for the queue/counter service client.
func (c *Config) QueueAddr() string {
	return fmt.Sprintf("%s:%d", c.QueueHost, c.QueuePort)
}

// DBDataSource returns a lib/pq-compatible DSN.
func (c *Config) DBDataSource() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
