package config

import (
	"os"
	"strconv"
	"time"
)

// DraftConfig tunes lending form drafts and repayment QR codes.
type DraftConfig struct {
	TTL              time.Duration
	MaxDraftsPerUser int
	RateLimitWindow  time.Duration
	QRTimeout        time.Duration
	QRImageSize      int
}

func LoadDraftConfig() *DraftConfig {
	return &DraftConfig{
		TTL:              getEnvAsDuration("DRAFT_TTL", 24*time.Hour),
		MaxDraftsPerUser: getEnvAsInt("DRAFT_MAX_PER_USER", 20),
		RateLimitWindow:  getEnvAsDuration("DRAFT_RATE_LIMIT_WINDOW", 1*time.Hour),
		QRTimeout:        getEnvAsDuration("QR_TIMEOUT", 5*time.Minute),
		QRImageSize:      getEnvAsInt("QR_IMAGE_SIZE", 256),
	}
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
