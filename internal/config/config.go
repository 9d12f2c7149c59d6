package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"invoicedesk/internal/logger"
)

type Config struct {
	// Invoice backend
	APIURL      string
	Token       string
	SessionFile string
	Timeout     time.Duration

	// Local import journal (sqlite file)
	JournalPath string

	// Google Sheets import source / export sink
	GoogleSheetURL       string
	GoogleSheetWorksheet string

	// Google Cloud Storage export archive
	GCSExportBucket string
	GCSExportFolder string

	// PDF prefill (Document AI, Vision OCR, OpenAI)
	GoogleCloudProject    string
	GoogleCloudLocation   string
	DocumentAIProcessorID string
	OpenAIAPIKey          string
	OpenAIModel           string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads the configuration from the environment. No key is mandatory;
// commands check what they need.
func Load() (*Config, error) {
	stateDir := defaultStateDir()

	timeoutSecs, err := strconv.Atoi(getEnv("INVOICEDESK_TIMEOUT", "30"))
	if err != nil {
		return nil, fmt.Errorf("config validation failed: INVOICEDESK_TIMEOUT must be a number of seconds: %w", err)
	}

	config := &Config{
		APIURL:                getEnv("INVOICEDESK_API_URL", "http://localhost:8080"),
		Token:                 getEnv("INVOICEDESK_TOKEN", ""),
		SessionFile:           getEnv("INVOICEDESK_SESSION_FILE", filepath.Join(stateDir, "session.json")),
		Timeout:               time.Duration(timeoutSecs) * time.Second,
		JournalPath:           getEnv("INVOICEDESK_JOURNAL", filepath.Join(stateDir, "journal.db")),
		GoogleSheetURL:        getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetWorksheet:  getEnv("GOOGLE_SHEET_WORKSHEET", "Invoices"),
		GCSExportBucket:       getEnv("GCS_EXPORT_BUCKET", ""),
		GCSExportFolder:       getEnv("GCS_EXPORT_FOLDER", ""),
		GoogleCloudProject:    getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:   getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID: getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:           getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:         getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:             getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate checks value formats.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("INVOICEDESK_API_URL must be an absolute URL, got %q", c.APIURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("INVOICEDESK_TIMEOUT must be positive")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".invoicedesk"
	}
	return filepath.Join(home, ".invoicedesk")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
