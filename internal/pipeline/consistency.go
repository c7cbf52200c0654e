package pipeline

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/couchcryptid/nexrad-render-etl/internal/domain"
)

// artifactKeyRe extracts the normalized key from an artifact basename of the
// form <key>_<product>_idx<n>.<ext>.
var artifactKeyRe = regexp.MustCompile(`^([A-Z]{4}\d{8}_\d{6}_[A-Z0-9]+)_([a-z]+)_idx\d+\.(?:png|json)$`)

// Report describes the divergence between the product indices and the
// artifact store for one level. Runs with both slices empty are consistent.
type Report struct {
	Level            int      `json:"level"`
	ArtifactCount    int      `json:"artifact_count"`
	IndexedKeys      int      `json:"indexed_keys"`
	OrphanArtifacts  []string `json:"orphan_artifacts,omitempty"`
	MissingArtifacts []string `json:"missing_artifacts,omitempty"`
}

// Consistent reports whether indices and artifacts fully agree.
func (rep *Report) Consistent() bool {
	return len(rep.OrphanArtifacts) == 0 && len(rep.MissingArtifacts) == 0
}

// CheckConsistency cross-references the product indices against the stored
// artifacts for one level. An artifact whose key no index mentions is an
// orphan that cleanup missed or outran; an indexed key with no artifacts for
// its product means renders uploaded partially or were deleted early.
// Missing entries are reported as "<product>/<key>".
func (r *Runner) CheckConsistency(ctx context.Context, level int, products []string) (*Report, error) {
	indexed := make(map[string]struct{})
	expected := make(map[string]string)
	for _, product := range products {
		var list domain.FileList
		if _, err := r.store.GetJSON(ctx, domain.ListObjectKey(level, product), &list); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("read index for %s: %w", product, err)
		}
		for key := range list {
			indexed[key] = struct{}{}
			expected[product+"/"+key] = key
		}
	}

	prefix := domain.ArtifactPrefix(level)
	objects, err := r.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}

	rep := &Report{Level: level, IndexedKeys: len(indexed)}
	seen := make(map[string]struct{})
	for _, obj := range objects {
		m := artifactKeyRe.FindStringSubmatch(strings.TrimPrefix(obj.Key, prefix))
		if m == nil {
			continue
		}
		rep.ArtifactCount++
		key, product := m[1], m[2]
		seen[product+"/"+key] = struct{}{}
		if _, ok := indexed[key]; !ok {
			rep.OrphanArtifacts = append(rep.OrphanArtifacts, obj.Key)
		}
	}

	for entry := range expected {
		if _, ok := seen[entry]; !ok {
			rep.MissingArtifacts = append(rep.MissingArtifacts, entry)
		}
	}

	sort.Strings(rep.OrphanArtifacts)
	sort.Strings(rep.MissingArtifacts)
	return rep, nil
}
