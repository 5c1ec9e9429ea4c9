package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Detector backends
const (
	DetectorML    = "ml"
	DetectorAzure = "azure"
)

// Config holds the application configuration
type Config struct {
	Port        int    `validate:"min=1,max=65535"`
	DatabaseURL string // empty selects the in-memory store
	UploadDir   string `validate:"required"`

	Detector         string        `validate:"oneof=ml azure"`
	MLServiceURL     string        `validate:"omitempty,url"`
	DetectionTimeout time.Duration `validate:"min=1s"`
	AzureEndpoint    string        `validate:"required_if=Detector azure"`
	AzureKey         string        `validate:"required_if=Detector azure"`

	CropCacheSize int `validate:"min=1"`

	LogLevel    string `validate:"oneof=debug info warn warning error"`
	LogFormat   string `validate:"oneof=json text"`
	Environment string
}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	// .env is optional; real environment variables take precedence
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		UploadDir:     getEnv("UPLOAD_DIR", "uploads"),
		Detector:      strings.ToLower(getEnv("DETECTOR", DetectorML)),
		MLServiceURL:  strings.TrimRight(getEnv("ML_SERVICE_URL", "http://localhost:8001"), "/"),
		AzureEndpoint: getEnv("AZURE_VISION_ENDPOINT", ""),
		AzureKey:      getEnv("AZURE_VISION_KEY", ""),
		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:     strings.ToLower(getEnv("LOG_FORMAT", "text")),
		Environment:   getEnv("ENVIRONMENT", "dev"),
	}

	var err error
	if cfg.Port, err = getEnvInt("PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.CropCacheSize, err = getEnvInt("CROP_CACHE_SIZE", 16); err != nil {
		return nil, err
	}
	if cfg.DetectionTimeout, err = getEnvDuration("DETECTION_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// UsesDatabase reports whether a postgres store is configured
func (c *Config) UsesDatabase() bool {
	return c.DatabaseURL != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return v, nil
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90")
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return d, nil
}
