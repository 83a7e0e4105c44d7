// Package config loads service settings from the environment and an optional
// .env file.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the settings shared by the cmd binaries.
type Config struct {
	Port           string
	DataDir        string
	FilenamePrefix string
	RulesFile      string

	GCSBucket       string
	BigQueryProject string
	BigQueryDataset string

	RetentionDays   int
	CleanupSchedule string

	AllowedOrigins []string
	LogLevel       string
	LogFormat      string

	MaxUploadMB  int
	JobWorkers   int
	JobQueueSize int
}

// Load reads .env when present and then the process environment. Variables
// already set in the environment win over .env values.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads the configuration from the process environment only.
func FromEnv() Config {
	return Config{
		Port:            getEnv("PORT", "8080"),
		DataDir:         getEnv("DATA_DIR", "./data"),
		FilenamePrefix:  getEnv("RESULT_FILENAME_PREFIX", "mieten_abgleich"),
		RulesFile:       getEnv("RULES_FILE", ""),
		GCSBucket:       getEnv("GCS_BUCKET", ""),
		BigQueryProject: getEnv("BIGQUERY_PROJECT", ""),
		BigQueryDataset: getEnv("BIGQUERY_DATASET", "mieten"),
		RetentionDays:   getEnvInt("RETENTION_DAYS", 14),
		CleanupSchedule: getEnv("CLEANUP_SCHEDULE", "0 3 * * *"),
		AllowedOrigins:  getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "console"),
		MaxUploadMB:     getEnvInt("MAX_UPLOAD_MB", 32),
		JobWorkers:      getEnvInt("JOB_WORKERS", 2),
		JobQueueSize:    getEnvInt("JOB_QUEUE_SIZE", 50),
	}
}

// UploadDir is where uploaded inputs are stored.
func (c Config) UploadDir() string {
	return filepath.Join(c.DataDir, "uploads")
}

// ResultDir is where result workbooks are written.
func (c Config) ResultDir() string {
	return filepath.Join(c.DataDir, "results")
}

// MaxUploadBytes is MaxUploadMB in bytes.
func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// TrackingEnabled reports whether runs are recorded in BigQuery.
func (c Config) TrackingEnabled() bool {
	return c.BigQueryProject != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var list []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	if len(list) == 0 {
		return fallback
	}
	return list
}
