package render_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/nexrad-render-etl/internal/adapter/render"
)

// fakeRenderer builds a PyArt bridge around a shell one-liner standing in
// for the real renderer command.
func fakeRenderer(t *testing.T, script string) *render.PyArt {
	t.Helper()
	return render.NewPyArt("sh", []string{"-c", script, "renderer"}, 5*time.Second, slog.Default())
}

func TestPyArt_Render(t *testing.T) {
	// base64("png-bytes") == "cG5nLWJ5dGVz"
	const output = `{"sweeps":[{"index":0,"original_sweep_number":1,"elevation_index":1,` +
		`"elevation_angle_degrees":0.48,"azimuth_angle_degrees":143.2,` +
		`"bounding_box_lon_lat":{"nw":[-120.1,46.2],"ne":[-117.9,46.2],"se":[-117.9,44.8],"sw":[-120.1,44.8]},` +
		`"png_base64":"cG5nLWJ5dGVz"}]}`

	r := fakeRenderer(t, "echo '"+output+"'")
	sweeps, err := r.Render(context.Background(), "/tmp/KPDT20250409_123000_V06", "reflectivity")
	require.NoError(t, err)
	require.Len(t, sweeps, 1)

	assert.Equal(t, 0, sweeps[0].Index)
	assert.Equal(t, 1, sweeps[0].Metadata.OriginalSweepNumber)
	assert.Equal(t, 0.48, sweeps[0].Metadata.ElevationAngle)
	assert.Equal(t, [2]float64{-120.1, 46.2}, sweeps[0].Metadata.BoundingBoxLonLat.NW)
	assert.Equal(t, []byte("png-bytes"), sweeps[0].PNG)
}

func TestPyArt_Render_Failures(t *testing.T) {
	t.Run("non-zero exit", func(t *testing.T) {
		r := fakeRenderer(t, "echo 'field not found' >&2; exit 3")
		_, err := r.Render(context.Background(), "/tmp/f", "bogus")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "field not found")
	})

	t.Run("malformed output", func(t *testing.T) {
		r := fakeRenderer(t, "echo 'not json'")
		_, err := r.Render(context.Background(), "/tmp/f", "reflectivity")
		assert.Error(t, err)
	})

	t.Run("empty sweep set", func(t *testing.T) {
		r := fakeRenderer(t, `echo '{"sweeps":[]}'`)
		_, err := r.Render(context.Background(), "/tmp/f", "reflectivity")
		assert.Error(t, err)
	})
}
