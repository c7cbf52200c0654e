package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Project object store (rendered artifacts, indices, flags, catalog).
	StoreEndpoint  string
	StoreAccessKey string
	StoreSecretKey string
	StoreBucket    string
	StoreRegion    string
	StoreUseSSL    bool

	// Public archive buckets (read-only, anonymous).
	ArchiveEndpoint     string
	ArchiveRegion       string
	NOAALevel2Bucket    string
	UnidataLevel3Bucket string

	// Radar sites. Level 2 uses the 4-letter ICAO site, Level 3 the
	// 3-letter product site.
	SiteLevel2 string
	SiteLevel3 string

	// Window is how far back discovery reaches and how long index entries
	// are retained. CleanupBuffer is added on top for artifact GC so an
	// artifact always outlives its index entry.
	Window        time.Duration
	CleanupBuffer time.Duration

	// Worker pools and scratch space for the download/render stages.
	DownloadDir     string
	DownloadWorkers int
	RenderWorkers   int

	// External renderer invocation.
	RenderCommand string
	RenderArgs    []string
	RenderTimeout time.Duration

	// Optional Kafka update notifications (enabled when brokers are set).
	KafkaBrokers []string
	KafkaTopic   string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// NotifierEnabled reports whether product-update events should be published.
func (c *Config) NotifierEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	window, err := envDuration("PROCESSING_WINDOW_MINUTES", 180*time.Minute)
	if err != nil {
		return nil, err
	}
	cleanupBuffer, err := envDuration("CLEANUP_BUFFER_MINUTES", 60*time.Minute)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := envParseDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	renderTimeout, err := envParseDuration("RENDER_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	downloadWorkers, err := envInt("DOWNLOAD_WORKERS", 8)
	if err != nil {
		return nil, err
	}
	renderWorkers, err := envInt("RENDER_WORKERS", 4)
	if err != nil {
		return nil, err
	}

	renderCommand, renderArgs := splitCommand(envOrDefault("RENDER_COMMAND", "python3 -m nexrad_renderer"))

	cfg := &Config{
		StoreEndpoint:  envOrDefault("STORE_ENDPOINT", "s3.amazonaws.com"),
		StoreAccessKey: os.Getenv("STORE_ACCESS_KEY"),
		StoreSecretKey: os.Getenv("STORE_SECRET_KEY"),
		StoreBucket:    envOrDefault("STORE_BUCKET", "nexrad-mapbox"),
		StoreRegion:    envOrDefault("STORE_REGION", "us-east-1"),
		StoreUseSSL:    envOrDefault("STORE_USE_SSL", "true") == "true",

		ArchiveEndpoint:     envOrDefault("ARCHIVE_ENDPOINT", "s3.amazonaws.com"),
		ArchiveRegion:       envOrDefault("ARCHIVE_REGION", "us-east-1"),
		NOAALevel2Bucket:    envOrDefault("NOAA_L2_BUCKET", "noaa-nexrad-level2"),
		UnidataLevel3Bucket: envOrDefault("UNIDATA_L3_BUCKET", "unidata-nexrad-level3"),

		SiteLevel2: envOrDefault("RADAR_SITE_L2", "KPDT"),
		SiteLevel3: envOrDefault("RADAR_SITE_L3", "PDT"),

		Window:        window,
		CleanupBuffer: cleanupBuffer,

		DownloadDir:     envOrDefault("DOWNLOAD_DIR", os.TempDir()),
		DownloadWorkers: downloadWorkers,
		RenderWorkers:   renderWorkers,

		RenderCommand: renderCommand,
		RenderArgs:    renderArgs,
		RenderTimeout: renderTimeout,

		KafkaBrokers: parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "nexrad-product-updates"),

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":4000"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.StoreBucket == "" {
		return nil, errors.New("STORE_BUCKET is required")
	}
	if cfg.StoreAccessKey == "" || cfg.StoreSecretKey == "" {
		return nil, errors.New("STORE_ACCESS_KEY and STORE_SECRET_KEY are required")
	}
	if len(cfg.SiteLevel2) != 4 {
		return nil, fmt.Errorf("RADAR_SITE_L2 must be a 4-letter site, got %q", cfg.SiteLevel2)
	}
	if len(cfg.SiteLevel3) != 3 {
		return nil, fmt.Errorf("RADAR_SITE_L3 must be a 3-letter site, got %q", cfg.SiteLevel3)
	}
	if cfg.RenderCommand == "" {
		return nil, errors.New("RENDER_COMMAND is required")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

// envDuration reads a whole-minute env var into a duration.
func envDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return time.Duration(n) * time.Minute, nil
}

// envParseDuration reads a Go duration string env var.
func envParseDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}

func splitCommand(s string) (string, []string) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}
