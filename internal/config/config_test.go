package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("STORE_ACCESS_KEY", "test-access")
	t.Setenv("STORE_SECRET_KEY", "test-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "nexrad-mapbox", cfg.StoreBucket)
	assert.Equal(t, "noaa-nexrad-level2", cfg.NOAALevel2Bucket)
	assert.Equal(t, "unidata-nexrad-level3", cfg.UnidataLevel3Bucket)
	assert.Equal(t, "KPDT", cfg.SiteLevel2)
	assert.Equal(t, "PDT", cfg.SiteLevel3)
	assert.Equal(t, 180*time.Minute, cfg.Window)
	assert.Equal(t, 60*time.Minute, cfg.CleanupBuffer)
	assert.Equal(t, 8, cfg.DownloadWorkers)
	assert.Equal(t, 4, cfg.RenderWorkers)
	assert.Equal(t, "python3", cfg.RenderCommand)
	assert.Equal(t, []string{"-m", "nexrad_renderer"}, cfg.RenderArgs)
	assert.False(t, cfg.NotifierEnabled())
	assert.Equal(t, ":4000", cfg.HTTPAddr)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PROCESSING_WINDOW_MINUTES", "60")
	t.Setenv("CLEANUP_BUFFER_MINUTES", "30")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092")
	t.Setenv("RENDER_COMMAND", "/usr/local/bin/render-nexrad --dpi 350")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 60*time.Minute, cfg.Window)
	assert.Equal(t, 30*time.Minute, cfg.CleanupBuffer)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.NotifierEnabled())
	assert.Equal(t, "/usr/local/bin/render-nexrad", cfg.RenderCommand)
	assert.Equal(t, []string{"--dpi", "350"}, cfg.RenderArgs)
}

func TestLoad_Validation(t *testing.T) {
	t.Run("missing store credentials", func(t *testing.T) {
		t.Setenv("STORE_ACCESS_KEY", "")
		t.Setenv("STORE_SECRET_KEY", "")
		_, err := Load()
		assert.ErrorContains(t, err, "STORE_ACCESS_KEY")
	})

	t.Run("bad window", func(t *testing.T) {
		setRequired(t)
		t.Setenv("PROCESSING_WINDOW_MINUTES", "zero")
		_, err := Load()
		assert.ErrorContains(t, err, "PROCESSING_WINDOW_MINUTES")
	})

	t.Run("bad level 2 site", func(t *testing.T) {
		setRequired(t)
		t.Setenv("RADAR_SITE_L2", "PDT")
		_, err := Load()
		assert.ErrorContains(t, err, "RADAR_SITE_L2")
	})
}
