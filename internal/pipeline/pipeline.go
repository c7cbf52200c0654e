// Package pipeline orchestrates one ingestion run per radar product:
// discover archive files, drop the already-indexed ones, download and render
// the rest, then merge the results into the product index and signal
// downstream consumers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/couchcryptid/nexrad-render-etl/internal/adapter/archive"
	"github.com/couchcryptid/nexrad-render-etl/internal/domain"
	"github.com/couchcryptid/nexrad-render-etl/internal/observability"
)

// maxUpdateAttempts bounds the read-merge-write retry loop on version
// conflicts before the run gives up.
const maxUpdateAttempts = 5

// Source discovers candidate archive objects inside a time window and
// downloads them into a local directory.
type Source interface {
	Discover(ctx context.Context, w archive.Window) ([]domain.SourceObject, error)
	Download(ctx context.Context, key, dir string) (string, error)
}

// Renderer turns one downloaded radar file into rendered sweeps for a
// product field.
type Renderer interface {
	Render(ctx context.Context, localPath, field string) ([]domain.RenderedSweep, error)
}

// Notifier publishes a product-update event after a non-empty merge.
// Optional; a nil Notifier disables publishing.
type Notifier interface {
	ProductUpdated(ctx context.Context, level int, product string, keys []string) error
}

// ProductSpec identifies one (level, product) pipeline target.
type ProductSpec struct {
	Level           int    // 2 or 3
	Product         string // product family, names the index object
	Field           string // field passed to the renderer
	UsesCodeCatalog bool   // Level 3 families with per-code counts
}

// Options carries the tunables a Runner needs.
type Options struct {
	Retention       time.Duration
	CleanupBuffer   time.Duration
	DownloadDir     string
	DownloadWorkers int
	RenderWorkers   int
}

// Runner executes product runs against one store.
type Runner struct {
	store    domain.Store
	renderer Renderer
	notifier Notifier
	logger   *slog.Logger
	metrics  *observability.Metrics
	opts     Options
}

// New creates a Runner. notifier may be nil.
func New(store domain.Store, renderer Renderer, notifier Notifier, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Runner {
	if opts.DownloadWorkers <= 0 {
		opts.DownloadWorkers = 1
	}
	if opts.RenderWorkers <= 0 {
		opts.RenderWorkers = 1
	}
	return &Runner{
		store:    store,
		renderer: renderer,
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
		opts:     opts,
	}
}

// RunProduct executes one full run for a product: discovery, dedup against
// the current index, staged download and render, index merge, flag and
// catalog updates, and the optional update event. Per-file failures are
// logged and skipped; only storage and cancellation errors fail the run.
func (r *Runner) RunProduct(ctx context.Context, src Source, spec ProductSpec) error {
	start := time.Now()
	level := fmt.Sprintf("%d", spec.Level)
	defer func() {
		r.metrics.ProductRunDuration.WithLabelValues(level, spec.Product).Observe(time.Since(start).Seconds())
	}()

	logger := r.logger.With("level", spec.Level, "product", spec.Product)

	end := domain.Now()
	window := archive.Window{Start: end.Add(-r.opts.Retention), End: end}

	objects, err := src.Discover(ctx, window)
	if err != nil {
		return fmt.Errorf("discover %s: %w", spec.Product, err)
	}
	r.metrics.FilesDiscovered.WithLabelValues(level, spec.Product).Add(float64(len(objects)))

	items, err := r.selectWork(ctx, spec, objects)
	if err != nil {
		return err
	}
	r.metrics.FilesDeduped.WithLabelValues(level, spec.Product).Add(float64(len(objects) - len(items)))
	if len(items) == 0 {
		logger.Info("no new files", "discovered", len(objects))
		return nil
	}
	logger.Info("processing new files", "discovered", len(objects), "new", len(items))

	incoming, err := r.process(ctx, src, spec, items)
	if err != nil {
		return err
	}
	if len(incoming) == 0 {
		logger.Warn("no files survived processing", "attempted", len(items))
		return nil
	}

	if err := r.mergeIndex(ctx, spec, incoming); err != nil {
		return err
	}
	if err := r.setUpdateFlag(ctx, spec.Product); err != nil {
		return err
	}

	// A stale catalog is tolerable; the merged index is not rolled back.
	var catalogErr error
	if spec.UsesCodeCatalog {
		if catalogErr = r.updateCodeCounts(ctx, spec); catalogErr != nil {
			logger.Error("code count update failed", "error", catalogErr)
		}
	}

	if r.notifier != nil {
		keys := make([]string, 0, len(incoming))
		for key := range incoming {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		if err := r.notifier.ProductUpdated(ctx, spec.Level, spec.Product, keys); err != nil {
			logger.Error("product update event failed", "error", err)
		}
	}

	logger.Info("product run complete", "merged", len(incoming))
	return catalogErr
}

// selectWork filters discovered objects down to those whose normalized key
// is not yet in the product index.
func (r *Runner) selectWork(ctx context.Context, spec ProductSpec, objects []domain.SourceObject) ([]domain.WorkItem, error) {
	var current domain.FileList
	if _, err := r.store.GetJSON(ctx, domain.ListObjectKey(spec.Level, spec.Product), &current); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("read index for %s: %w", spec.Product, err)
	}

	var items []domain.WorkItem
	for _, obj := range objects {
		normalized, ok := normalizedKey(spec.Level, obj.Key)
		if !ok {
			continue
		}
		if _, recorded := current[normalized]; recorded {
			continue
		}
		items = append(items, domain.WorkItem{
			SourceKey:     obj.Key,
			NormalizedKey: normalized,
			Status:        domain.StatusPending,
		})
	}
	return items, nil
}

func normalizedKey(level int, sourceKey string) (string, bool) {
	base := domain.Basename(sourceKey)
	if level == 2 {
		return domain.NormalizeLevel2(base)
	}
	return domain.NormalizeLevel3(base)
}

// mergeIndex folds the incoming entries into the product index with the
// retention prune, retrying on version conflicts.
func (r *Runner) mergeIndex(ctx context.Context, spec ProductSpec, incoming domain.FileList) error {
	key := domain.ListObjectKey(spec.Level, spec.Product)
	err := updateWithRetry(ctx, r, key, func(current domain.FileList) (domain.FileList, error) {
		merged, _, err := domain.MergeFileList(current, incoming, r.opts.Retention)
		return merged, err
	})
	if errors.Is(err, domain.ErrNoNewEntries) {
		return nil
	}
	return err
}

// setUpdateFlag marks the product dirty for polling consumers.
func (r *Runner) setUpdateFlag(ctx context.Context, product string) error {
	return updateWithRetry(ctx, r, domain.FlagsObjectKey, func(flags domain.UpdateFlags) (domain.UpdateFlags, error) {
		flags.Set(product)
		return flags, nil
	})
}

// updateCodeCounts recounts the product's code options from the merged index.
func (r *Runner) updateCodeCounts(ctx context.Context, spec ProductSpec) error {
	var list domain.FileList
	if _, err := r.store.GetJSON(ctx, domain.ListObjectKey(spec.Level, spec.Product), &list); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("read index for %s: %w", spec.Product, err)
	}
	return updateWithRetry(ctx, r, domain.CatalogObjectKey, func(catalog domain.ProductCodeCatalog) (domain.ProductCodeCatalog, error) {
		if err := catalog.SetCounts(spec.Product, list); err != nil {
			return nil, err
		}
		return catalog, nil
	})
}

// updateWithRetry runs an optimistic read-mutate-write loop against one JSON
// object. An absent object starts from the zero value and is written with a
// must-not-exist precondition.
func updateWithRetry[T any](ctx context.Context, r *Runner, key string, mutate func(T) (T, error)) error {
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		var current T
		token, err := r.store.GetJSON(ctx, key, &current)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("read %s: %w", key, err)
		}

		next, err := mutate(current)
		if err != nil {
			return err
		}

		err = r.store.PutJSONIf(ctx, key, next, token)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrPreconditionFailed) {
			return fmt.Errorf("write %s: %w", key, err)
		}
		r.metrics.MergeConflicts.Inc()
		r.logger.Warn("version conflict, retrying", "key", key, "attempt", attempt)
	}
	return fmt.Errorf("update %s: gave up after %d version conflicts", key, maxUpdateAttempts)
}
