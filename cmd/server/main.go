// Command server exposes the read API over the project bucket: product
// indices, update flags, the code catalog, and rendered artifacts.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/nexrad-render-etl/internal/adapter/http"
	"github.com/couchcryptid/nexrad-render-etl/internal/adapter/objstore"
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
	observability.NewMetrics()

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

	var products []httpadapter.Product
	for _, spec := range pipeline.AllProducts() {
		products = append(products, httpadapter.Product{Level: spec.Level, Name: spec.Product})
	}

	// Ready once the bucket answers; an absent flags object is still ready.
	ready := httpadapter.ReadinessFunc(func(ctx context.Context) error {
		var flags domain.UpdateFlags
		if _, err := store.GetJSON(ctx, domain.FlagsObjectKey, &flags); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return nil
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, store, products, ready, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
