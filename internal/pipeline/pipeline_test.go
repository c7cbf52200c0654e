package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/nexrad-render-etl/internal/adapter/archive"
	"github.com/couchcryptid/nexrad-render-etl/internal/adapter/objstore"
	"github.com/couchcryptid/nexrad-render-etl/internal/domain"
	"github.com/couchcryptid/nexrad-render-etl/internal/observability"
)

var testTime = time.Date(2025, 4, 9, 15, 30, 0, 0, time.UTC)

func withFakeClock(t *testing.T) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(testTime))
	t.Cleanup(func() { domain.SetClock(clockwork.NewRealClock()) })
}

// fakeSource serves canned discovery results and writes real temp files on
// download so local-file cleanup can be observed.
type fakeSource struct {
	mu         sync.Mutex
	objects    []domain.SourceObject
	failKeys   map[string]bool
	downloaded []string
}

func (s *fakeSource) Discover(_ context.Context, _ archive.Window) ([]domain.SourceObject, error) {
	return s.objects, nil
}

func (s *fakeSource) Download(_ context.Context, key, dir string) (string, error) {
	if s.failKeys[key] {
		return "", fmt.Errorf("download %s: connection reset", key)
	}
	local := filepath.Join(dir, domain.Basename(key))
	if err := os.WriteFile(local, []byte("radar data"), 0o644); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.downloaded = append(s.downloaded, local)
	s.mu.Unlock()
	return local, nil
}

// fakeRenderer returns a fixed number of sweeps per file.
type fakeRenderer struct {
	sweeps   int
	failFile string
}

func (r *fakeRenderer) Render(_ context.Context, localPath, _ string) ([]domain.RenderedSweep, error) {
	if r.failFile != "" && filepath.Base(localPath) == r.failFile {
		return nil, fmt.Errorf("render %s: decode error", localPath)
	}
	out := make([]domain.RenderedSweep, r.sweeps)
	for i := range out {
		out[i] = domain.RenderedSweep{
			Index: i,
			Metadata: domain.SweepMetadata{
				ElevationAngle: 0.5 + float64(i),
			},
			PNG: []byte("png bytes"),
		}
	}
	return out, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
	keys   [][]string
}

func (n *fakeNotifier) ProductUpdated(_ context.Context, level int, product string, keys []string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, fmt.Sprintf("%d/%s", level, product))
	n.keys = append(n.keys, keys)
	return nil
}

func newTestRunner(t *testing.T, store domain.Store, renderer Renderer, notifier Notifier) *Runner {
	t.Helper()
	return New(store, renderer, notifier,
		slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
		observability.NewMetricsForTesting(),
		Options{
			Retention:       180 * time.Minute,
			CleanupBuffer:   60 * time.Minute,
			DownloadDir:     t.TempDir(),
			DownloadWorkers: 4,
			RenderWorkers:   2,
		})
}

func TestRunProduct_SkipsRecordedFiles(t *testing.T) {
	withFakeClock(t)
	store := objstore.NewMemory()
	spec := ProductSpec{Level: 2, Product: "reflectivity", Field: "reflectivity"}

	// One discovered file is already in the index and must not be refetched.
	seeded := domain.FileList{"KPDT20250409_120000_V06": {Sweeps: 2}}
	require.NoError(t, store.PutJSONIf(context.Background(), domain.ListObjectKey(2, "reflectivity"), seeded, ""))

	src := &fakeSource{objects: []domain.SourceObject{
		{Key: "2025/04/09/KPDT/KPDT20250409_120000_V06", Site: "KPDT"},
		{Key: "2025/04/09/KPDT/KPDT20250409_123000_V06", Site: "KPDT"},
	}}
	notifier := &fakeNotifier{}
	runner := newTestRunner(t, store, &fakeRenderer{sweeps: 2}, notifier)

	require.NoError(t, runner.RunProduct(context.Background(), src, spec))

	assert.Len(t, src.downloaded, 1, "recorded file must be skipped")

	var merged domain.FileList
	_, err := store.GetJSON(context.Background(), domain.ListObjectKey(2, "reflectivity"), &merged)
	require.NoError(t, err)
	assert.Equal(t, domain.FileList{
		"KPDT20250409_120000_V06": {Sweeps: 2},
		"KPDT20250409_123000_V06": {Sweeps: 2},
	}, merged)

	// Both sweeps uploaded an image and a sidecar.
	for idx := 0; idx < 2; idx++ {
		for _, ext := range []string{"png", "json"} {
			key := domain.ArtifactObjectKey("plots_level2/", "KPDT20250409_123000_V06", "reflectivity", idx, ext)
			assert.True(t, store.Exists(key), key)
		}
	}

	var flags domain.UpdateFlags
	_, err = store.GetJSON(context.Background(), domain.FlagsObjectKey, &flags)
	require.NoError(t, err)
	assert.Equal(t, 1, flags.Updates["reflectivity"])

	require.Equal(t, []string{"2/reflectivity"}, notifier.events)
	assert.Equal(t, [][]string{{"KPDT20250409_123000_V06"}}, notifier.keys)
}

func TestRunProduct_FailuresAreIsolated(t *testing.T) {
	withFakeClock(t)
	store := objstore.NewMemory()
	spec := ProductSpec{Level: 2, Product: "reflectivity", Field: "reflectivity"}

	src := &fakeSource{
		objects: []domain.SourceObject{
			{Key: "2025/04/09/KPDT/KPDT20250409_120000_V06"},
			{Key: "2025/04/09/KPDT/KPDT20250409_121500_V06"},
			{Key: "2025/04/09/KPDT/KPDT20250409_123000_V06"},
		},
		failKeys: map[string]bool{"2025/04/09/KPDT/KPDT20250409_120000_V06": true},
	}
	renderer := &fakeRenderer{sweeps: 1, failFile: "KPDT20250409_121500_V06"}
	runner := newTestRunner(t, store, renderer, nil)

	require.NoError(t, runner.RunProduct(context.Background(), src, spec))

	var merged domain.FileList
	_, err := store.GetJSON(context.Background(), domain.ListObjectKey(2, "reflectivity"), &merged)
	require.NoError(t, err)
	assert.Equal(t, domain.FileList{"KPDT20250409_123000_V06": {Sweeps: 1}}, merged)
}

func TestRunProduct_AllItemsFailSkipsMerge(t *testing.T) {
	withFakeClock(t)
	store := objstore.NewMemory()
	src := &fakeSource{
		objects:  []domain.SourceObject{{Key: "2025/04/09/KPDT/KPDT20250409_123000_V06"}},
		failKeys: map[string]bool{"2025/04/09/KPDT/KPDT20250409_123000_V06": true},
	}
	runner := newTestRunner(t, store, &fakeRenderer{sweeps: 1}, nil)

	require.NoError(t, runner.RunProduct(context.Background(), src, ProductSpec{Level: 2, Product: "reflectivity"}))

	var merged domain.FileList
	_, err := store.GetJSON(context.Background(), domain.ListObjectKey(2, "reflectivity"), &merged)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.False(t, store.Exists(domain.FlagsObjectKey))
}

func TestRunProduct_UpdatesCodeCounts(t *testing.T) {
	withFakeClock(t)
	store := objstore.NewMemory()
	catalog := domain.ProductCodeCatalog{
		"hydrometeor": {
			{Value: "HHC", Label: "Hybrid Hydrometeor Classification"},
			{Value: "DHR", Label: "Digital Hybrid Reflectivity"},
		},
	}
	require.NoError(t, store.PutJSONIf(context.Background(), domain.CatalogObjectKey, catalog, ""))

	src := &fakeSource{objects: []domain.SourceObject{
		{Key: "HHC/PDT_HHC_2025_04_09_123000", ProductCode: "HHC"},
		{Key: "HHC/PDT_HHC_2025_04_09_130000", ProductCode: "HHC"},
	}}
	spec := ProductSpec{Level: 3, Product: "hydrometeor", Field: "radar_echo_classification", UsesCodeCatalog: true}
	runner := newTestRunner(t, store, &fakeRenderer{sweeps: 1}, nil)

	require.NoError(t, runner.RunProduct(context.Background(), src, spec))

	var got domain.ProductCodeCatalog
	_, err := store.GetJSON(context.Background(), domain.CatalogObjectKey, &got)
	require.NoError(t, err)
	require.Len(t, got["hydrometeor"], 2)
	assert.Equal(t, 2, got["hydrometeor"][0].Count)
	assert.Equal(t, 0, got["hydrometeor"][1].Count)
}

func TestProcess_RemovesLocalFiles(t *testing.T) {
	withFakeClock(t)
	store := objstore.NewMemory()
	src := &fakeSource{objects: []domain.SourceObject{
		{Key: "2025/04/09/KPDT/KPDT20250409_120000_V06"},
		{Key: "2025/04/09/KPDT/KPDT20250409_123000_V06"},
	}}
	// One render fails; its local file must be removed all the same.
	renderer := &fakeRenderer{sweeps: 1, failFile: "KPDT20250409_120000_V06"}
	runner := newTestRunner(t, store, renderer, nil)

	require.NoError(t, runner.RunProduct(context.Background(), src, ProductSpec{Level: 2, Product: "reflectivity"}))

	require.Len(t, src.downloaded, 2)
	for _, local := range src.downloaded {
		_, err := os.Stat(local)
		assert.True(t, os.IsNotExist(err), "local file %s should be removed", local)
	}
}

// flakyStore injects a version conflict on the first conditional write to
// one key.
type flakyStore struct {
	domain.Store
	conflictKey string
	mu          sync.Mutex
	fired       bool
}

func (s *flakyStore) PutJSONIf(ctx context.Context, key string, v any, token string) error {
	s.mu.Lock()
	fire := key == s.conflictKey && !s.fired
	if fire {
		s.fired = true
	}
	s.mu.Unlock()
	if fire {
		return domain.ErrPreconditionFailed
	}
	return s.Store.PutJSONIf(ctx, key, v, token)
}

func TestMergeIndex_RetriesOnConflict(t *testing.T) {
	withFakeClock(t)
	listKey := domain.ListObjectKey(2, "reflectivity")
	store := &flakyStore{Store: objstore.NewMemory(), conflictKey: listKey}
	runner := newTestRunner(t, store, &fakeRenderer{sweeps: 1}, nil)

	incoming := domain.FileList{"KPDT20250409_123000_V06": {Sweeps: 1}}
	require.NoError(t, runner.mergeIndex(context.Background(), ProductSpec{Level: 2, Product: "reflectivity"}, incoming))

	var merged domain.FileList
	_, err := store.GetJSON(context.Background(), listKey, &merged)
	require.NoError(t, err)
	assert.Equal(t, incoming, merged)
}
