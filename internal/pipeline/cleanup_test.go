package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/nexrad-render-etl/internal/adapter/objstore"
	"github.com/couchcryptid/nexrad-render-etl/internal/domain"
)

func putArtifact(t *testing.T, store *objstore.Memory, key string) {
	t.Helper()
	require.NoError(t, store.PutBytes(context.Background(), key, []byte("x"), "image/png"))
}

func TestCleanup_DeletesOnlyExpiredArtifacts(t *testing.T) {
	// Clock at 15:30, retention 180m, buffer 60m: cutoff is 11:30.
	withFakeClock(t)
	storeClock := clockwork.NewFakeClockAt(testTime.Add(-330 * time.Minute)) // 10:00
	store := objstore.NewMemoryWithClock(storeClock)
	runner := newTestRunner(t, store, &fakeRenderer{}, nil)

	stale := domain.ArtifactObjectKey("plots_level2/", "KPDT20250409_100000_V06", "reflectivity", 0, "png")
	fresh := domain.ArtifactObjectKey("plots_level2/", "KPDT20250409_140000_V06", "reflectivity", 0, "png")
	otherLevel := domain.ArtifactObjectKey("plots_level3/", "KPDT20250409_100000_HHC", "hydrometeor", 0, "png")
	unrelated := "plots_level2/notes.txt"
	putArtifact(t, store, stale)
	putArtifact(t, store, unrelated)
	putArtifact(t, store, otherLevel)
	storeClock.Advance(4 * time.Hour) // 14:00
	putArtifact(t, store, fresh)

	deleted, err := runner.Cleanup(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	assert.False(t, store.Exists(stale))
	assert.True(t, store.Exists(fresh))
	assert.True(t, store.Exists(otherLevel), "other level untouched")
	assert.True(t, store.Exists(unrelated), "non-artifact extensions untouched")
}

func TestCleanup_ChunksLargeDeletes(t *testing.T) {
	withFakeClock(t)
	store := objstore.NewMemoryWithClock(clockwork.NewFakeClockAt(testTime.Add(-6 * time.Hour)))
	runner := newTestRunner(t, store, &fakeRenderer{}, nil)

	// 750 sweep indices, an image and a sidecar each: 1500 stale objects,
	// which exceeds a single delete batch.
	for i := 0; i < 750; i++ {
		putArtifact(t, store, domain.ArtifactObjectKey("plots_level2/", "KPDT20250409_100000_V06", "reflectivity", i, "png"))
		putArtifact(t, store, domain.ArtifactObjectKey("plots_level2/", "KPDT20250409_100000_V06", "reflectivity", i, "json"))
	}

	deleted, err := runner.Cleanup(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 1500, deleted)
	assert.Equal(t, 0, store.Len())
}

func TestCheckConsistency(t *testing.T) {
	withFakeClock(t)
	store := objstore.NewMemory()
	runner := newTestRunner(t, store, &fakeRenderer{}, nil)
	ctx := context.Background()

	list := domain.FileList{
		"KPDT20250409_120000_HHC": {Sweeps: 1},
		"KPDT20250409_130000_HHC": {Sweeps: 1},
	}
	require.NoError(t, store.PutJSONIf(ctx, domain.ListObjectKey(3, "hydrometeor"), list, ""))

	// 120000 has its artifacts; 130000 has none; 090000 is an orphan.
	putArtifact(t, store, domain.ArtifactObjectKey("plots_level3/", "KPDT20250409_120000_HHC", "hydrometeor", 0, "png"))
	putArtifact(t, store, domain.ArtifactObjectKey("plots_level3/", "KPDT20250409_120000_HHC", "hydrometeor", 0, "json"))
	orphan := domain.ArtifactObjectKey("plots_level3/", "KPDT20250409_090000_HHC", "hydrometeor", 0, "png")
	putArtifact(t, store, orphan)

	rep, err := runner.CheckConsistency(ctx, 3, []string{"hydrometeor", "precipitation"})
	require.NoError(t, err)

	assert.False(t, rep.Consistent())
	assert.Equal(t, 3, rep.ArtifactCount)
	assert.Equal(t, 2, rep.IndexedKeys)
	assert.Equal(t, []string{orphan}, rep.OrphanArtifacts)
	assert.Equal(t, []string{"hydrometeor/KPDT20250409_130000_HHC"}, rep.MissingArtifacts)

	t.Run("clean store is consistent", func(t *testing.T) {
		empty := objstore.NewMemory()
		r2 := newTestRunner(t, empty, &fakeRenderer{}, nil)
		rep, err := r2.CheckConsistency(ctx, 2, []string{"reflectivity"})
		require.NoError(t, err)
		assert.True(t, rep.Consistent())
	})
}

func TestArtifactKeyPattern(t *testing.T) {
	cases := []struct {
		name string
		ok   bool
	}{
		{fmt.Sprintf("%s_reflectivity_idx4.png", "KPDT20250409_123000_V06"), true},
		{fmt.Sprintf("%s_hydrometeor_idx0.json", "KPDT20250409_153000_HHC"), true},
		{"KPDT20250409_123000_V06_reflectivity_idx0.txt", false},
		{"notakey_reflectivity_idx0.png", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, artifactKeyRe.MatchString(tc.name), tc.name)
	}
}
