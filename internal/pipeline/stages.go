package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/nexrad-render-etl/internal/domain"
)

// process runs the staged download and render pipeline over the work items.
// Download workers feed render workers through a channel, so rendering
// starts as soon as the first file lands instead of waiting for the whole
// batch. Per-item failures are counted and dropped; the returned mapping
// holds only the items whose artifacts were all uploaded.
func (r *Runner) process(ctx context.Context, src Source, spec ProductSpec, items []domain.WorkItem) (domain.FileList, error) {
	downloadCh := make(chan domain.WorkItem)
	renderCh := make(chan domain.WorkItem)
	resultCh := make(chan domain.ProcessedResult)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(downloadCh)
		for _, item := range items {
			select {
			case downloadCh <- item:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	var downloaders sync.WaitGroup
	for i := 0; i < r.opts.DownloadWorkers; i++ {
		downloaders.Add(1)
		g.Go(func() error {
			defer downloaders.Done()
			return r.downloadWorker(ctx, src, downloadCh, renderCh)
		})
	}
	g.Go(func() error {
		downloaders.Wait()
		close(renderCh)
		return nil
	})

	var renderers sync.WaitGroup
	for i := 0; i < r.opts.RenderWorkers; i++ {
		renderers.Add(1)
		g.Go(func() error {
			defer renderers.Done()
			return r.renderWorker(ctx, spec, renderCh, resultCh)
		})
	}
	g.Go(func() error {
		renderers.Wait()
		close(resultCh)
		return nil
	})

	incoming := make(domain.FileList)
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for res := range resultCh {
			incoming[res.NormalizedKey] = domain.FileEntry{Sweeps: res.Sweeps}
		}
	}()

	err := g.Wait()
	<-collected
	if err != nil {
		return nil, err
	}
	return incoming, nil
}

func (r *Runner) downloadWorker(ctx context.Context, src Source, in <-chan domain.WorkItem, out chan<- domain.WorkItem) error {
	for item := range in {
		local, err := src.Download(ctx, item.SourceKey, r.opts.DownloadDir)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.metrics.Downloads.WithLabelValues("error").Inc()
			r.logger.Error("download failed", "key", item.SourceKey, "error", err)
			continue
		}
		r.metrics.Downloads.WithLabelValues("success").Inc()

		item.LocalPath = local
		item.Status = domain.StatusDownloaded
		select {
		case out <- item:
		case <-ctx.Done():
			os.Remove(local)
			return ctx.Err()
		}
	}
	return nil
}

func (r *Runner) renderWorker(ctx context.Context, spec ProductSpec, in <-chan domain.WorkItem, out chan<- domain.ProcessedResult) error {
	for item := range in {
		result, err := r.renderOne(ctx, spec, item)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.metrics.Renders.WithLabelValues("error").Inc()
			r.logger.Error("render failed", "key", item.NormalizedKey, "error", err)
			continue
		}
		r.metrics.Renders.WithLabelValues("success").Inc()
		r.logger.Debug("artifacts uploaded", "key", item.NormalizedKey, "objects", len(result.ArtifactKeys))

		select {
		case out <- result:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// renderOne renders a downloaded file and uploads one image and one metadata
// sidecar per sweep. The local file is removed whatever the outcome.
func (r *Runner) renderOne(ctx context.Context, spec ProductSpec, item domain.WorkItem) (domain.ProcessedResult, error) {
	defer os.Remove(item.LocalPath)

	sweeps, err := r.renderer.Render(ctx, item.LocalPath, spec.Field)
	if err != nil {
		return domain.ProcessedResult{}, err
	}

	prefix := domain.ArtifactPrefix(spec.Level)
	artifacts := make([]string, 0, 2*len(sweeps))
	for _, sweep := range sweeps {
		pngKey := domain.ArtifactObjectKey(prefix, item.NormalizedKey, spec.Product, sweep.Index, "png")
		if err := r.store.PutBytes(ctx, pngKey, sweep.PNG, "image/png"); err != nil {
			return domain.ProcessedResult{}, fmt.Errorf("upload %s: %w", pngKey, err)
		}
		artifacts = append(artifacts, pngKey)

		meta, err := json.Marshal(sweep.Metadata)
		if err != nil {
			return domain.ProcessedResult{}, fmt.Errorf("encode metadata for %s: %w", item.NormalizedKey, err)
		}
		metaKey := domain.ArtifactObjectKey(prefix, item.NormalizedKey, spec.Product, sweep.Index, "json")
		if err := r.store.PutBytes(ctx, metaKey, meta, "application/json"); err != nil {
			return domain.ProcessedResult{}, fmt.Errorf("upload %s: %w", metaKey, err)
		}
		artifacts = append(artifacts, metaKey)
	}

	return domain.ProcessedResult{
		NormalizedKey: item.NormalizedKey,
		Sweeps:        len(sweeps),
		ArtifactKeys:  artifacts,
	}, nil
}
