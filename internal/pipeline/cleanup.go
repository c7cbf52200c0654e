package pipeline

import (
	"context"
	"fmt"
	"path"

	"github.com/couchcryptid/nexrad-render-etl/internal/domain"
)

// Cleanup deletes rendered artifacts for one level last written more than
// the retention window plus the cleanup buffer ago. The buffer keeps an
// artifact alive a little past its index entry so a reader holding a
// just-expired index never 404s. Only .png and .json objects are touched.
func (r *Runner) Cleanup(ctx context.Context, level int) (int, error) {
	prefix := domain.ArtifactPrefix(level)
	objects, err := r.store.List(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", prefix, err)
	}

	cutoff := domain.Now().Add(-(r.opts.Retention + r.opts.CleanupBuffer))
	var stale []string
	for _, obj := range objects {
		if ext := path.Ext(obj.Key); ext != ".png" && ext != ".json" {
			continue
		}
		if obj.LastModified.Before(cutoff) {
			stale = append(stale, obj.Key)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	deleted := 0
	for start := 0; start < len(stale); start += domain.MaxDeleteBatch {
		end := start + domain.MaxDeleteBatch
		if end > len(stale) {
			end = len(stale)
		}
		n, err := r.store.RemoveBatch(ctx, stale[start:end])
		deleted += n
		if err != nil {
			return deleted, fmt.Errorf("remove artifact batch: %w", err)
		}
	}

	r.metrics.ArtifactsDeleted.Add(float64(deleted))
	r.logger.Info("artifact cleanup complete", "level", level, "stale", len(stale), "deleted", deleted)
	return deleted, nil
}
