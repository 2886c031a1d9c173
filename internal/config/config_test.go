package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestLoadDraftConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := LoadDraftConfig()

		assert.Equal(t, 24*time.Hour, cfg.TTL)
		assert.Equal(t, 20, cfg.MaxDraftsPerUser)
		assert.Equal(t, time.Hour, cfg.RateLimitWindow)
		assert.Equal(t, 5*time.Minute, cfg.QRTimeout)
		assert.Equal(t, 256, cfg.QRImageSize)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("DRAFT_TTL", "30m")
		t.Setenv("DRAFT_MAX_PER_USER", "3")
		t.Setenv("QR_IMAGE_SIZE", "not-a-number")

		cfg := LoadDraftConfig()

		assert.Equal(t, 30*time.Minute, cfg.TTL)
		assert.Equal(t, 3, cfg.MaxDraftsPerUser)
		assert.Equal(t, 256, cfg.QRImageSize)
	})
}

func TestLoad(t *testing.T) {
	t.Setenv("DATTI_API_BASE_URL", "https://api.datti.test")
	t.Setenv("JWT_SECRET_KEY", "s3cret")

	Load()

	assert.Equal(t, "https://api.datti.test", viper.GetString("datti.base_url"))
	assert.Equal(t, "s3cret", viper.GetString("jwt.secret_key"))
	assert.Equal(t, "8080", viper.GetString("server.port"))
}
