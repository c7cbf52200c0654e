// Command ingest performs one ingestion run: discover new NEXRAD files for
// every configured product, render them, merge the results into the product
// indices, and clean up expired artifacts. Intended to run on a short cron
// cadence.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/nexrad-render-etl/internal/adapter/archive"
	kafkaadapter "github.com/couchcryptid/nexrad-render-etl/internal/adapter/kafka"
	"github.com/couchcryptid/nexrad-render-etl/internal/adapter/objstore"
	"github.com/couchcryptid/nexrad-render-etl/internal/adapter/render"
	"github.com/couchcryptid/nexrad-render-etl/internal/config"
	"github.com/couchcryptid/nexrad-render-etl/internal/domain"
	"github.com/couchcryptid/nexrad-render-etl/internal/observability"
	"github.com/couchcryptid/nexrad-render-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	store, err := objstore.NewMinioStore(objstore.Options{
		Endpoint:  cfg.StoreEndpoint,
		AccessKey: cfg.StoreAccessKey,
		SecretKey: cfg.StoreSecretKey,
		Bucket:    cfg.StoreBucket,
		Region:    cfg.StoreRegion,
		UseSSL:    cfg.StoreUseSSL,
	}, logger)
	if err != nil {
		logger.Error("failed to create store client", "error", err)
		os.Exit(1)
	}

	archiveClient, err := archive.NewPublicClient(cfg.ArchiveEndpoint, cfg.ArchiveRegion, logger)
	if err != nil {
		logger.Error("failed to create archive client", "error", err)
		os.Exit(1)
	}

	renderer := render.NewPyArt(cfg.RenderCommand, cfg.RenderArgs, cfg.RenderTimeout, logger)

	// Notifier is feature-flagged: no brokers, no events.
	var notifier pipeline.Notifier
	if cfg.NotifierEnabled() {
		kn := kafkaadapter.NewNotifier(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer kn.Close() //nolint:errcheck
		notifier = kn
		logger.Info("update events enabled", "topic", cfg.KafkaTopic)
	} else {
		logger.Info("update events disabled")
	}

	runner := pipeline.New(store, renderer, notifier, logger, metrics, pipeline.Options{
		Retention:       cfg.Window,
		CleanupBuffer:   cfg.CleanupBuffer,
		DownloadDir:     cfg.DownloadDir,
		DownloadWorkers: cfg.DownloadWorkers,
		RenderWorkers:   cfg.RenderWorkers,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.PipelineRunning.Set(1)
	defer metrics.PipelineRunning.Set(0)

	failed := false

	level2 := archive.NewLevel2Source(archiveClient, cfg.NOAALevel2Bucket, cfg.SiteLevel2, logger)
	if err := runner.RunProduct(ctx, level2, pipeline.Level2Product); err != nil {
		logger.Error("level 2 run failed", "error", err)
		failed = true
	}

	for _, spec := range pipeline.Level3Products {
		codes, err := catalogCodes(ctx, store, spec.Product)
		if err != nil {
			logger.Error("level 3 codes unavailable", "product", spec.Product, "error", err)
			failed = true
			continue
		}
		if len(codes) == 0 {
			logger.Warn("no codes cataloged, skipping product", "product", spec.Product)
			continue
		}
		source := archive.NewLevel3Source(archiveClient, cfg.UnidataLevel3Bucket, cfg.SiteLevel3, codes, logger)
		if err := runner.RunProduct(ctx, source, spec); err != nil {
			logger.Error("level 3 run failed", "product", spec.Product, "error", err)
			failed = true
		}
	}

	for _, level := range []int{2, 3} {
		if _, err := runner.Cleanup(ctx, level); err != nil {
			logger.Error("artifact cleanup failed", "level", level, "error", err)
			failed = true
		}
	}

	if failed {
		os.Exit(1)
	}
	logger.Info("ingestion run complete")
}

// catalogCodes reads the product's searchable codes from the code catalog.
// A missing catalog means nothing to search, not an error.
func catalogCodes(ctx context.Context, store domain.Store, product string) ([]string, error) {
	var catalog domain.ProductCodeCatalog
	if _, err := store.GetJSON(ctx, domain.CatalogObjectKey, &catalog); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	options := catalog[product]
	codes := make([]string, 0, len(options))
	for _, opt := range options {
		codes = append(codes, opt.Value)
	}
	return codes, nil
}
