package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AD_INTERVAL_MINUTES", "")
	t.Setenv("AD_DEFAULT_PLAYLIST", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, cfg.Ads.Interval())
	assert.Equal(t, 15*time.Second, cfg.Ads.Duration())
	assert.Equal(t, 5*time.Second, cfg.Ads.SkipAfter())
	assert.Empty(t, cfg.Ads.DefaultPlaylist)
	assert.Contains(t, cfg.Player.EmbedMarkers, "vidsrc")
	assert.True(t, cfg.Worker.Inline)
}

func TestLoadAdsFromEnv(t *testing.T) {
	t.Setenv("AD_INTERVAL_MINUTES", "0.5")
	t.Setenv("AD_DURATION_SECONDS", "20")
	t.Setenv("AD_SKIP_AFTER_SECONDS", "0")
	t.Setenv("AD_DEFAULT_PLAYLIST", " abc123, ,def456 ")
	t.Setenv("CATALOG_BASE_URL", "https://catalog.example.com/api/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Ads.Interval())
	assert.Equal(t, 20*time.Second, cfg.Ads.Duration())
	assert.Equal(t, time.Duration(0), cfg.Ads.SkipAfter())
	assert.Equal(t, []string{"abc123", "def456"}, cfg.Ads.DefaultPlaylist)
	assert.Equal(t, "https://catalog.example.com/api", cfg.Catalog.BaseURL)
}

func TestLoadRejectsNonPositiveInterval(t *testing.T) {
	t.Setenv("AD_INTERVAL_MINUTES", "-1")

	_, err := Load()
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "cs", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/cs?sslmode=disable", c.DSN())

	c.URL = "postgres://override"
	assert.Equal(t, "postgres://override", c.DSN())
}

func TestLoadAdminSeed(t *testing.T) {
	t.Setenv("ADMIN_EMAIL", "  Ops@CineStream.tv ")
	t.Setenv("ADMIN_PASSWORD", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ops@cinestream.tv", cfg.Admin.Email)
	assert.Equal(t, "s3cret", cfg.Admin.Password)
}
