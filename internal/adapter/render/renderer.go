// Package render bridges to the external Py-ART decode/render tool.
//
// The tool is a separate process (the decoder stack is Python); this adapter
// only speaks its contract: given a local radar file and a field name, it
// returns zero or more rendered sweeps, or fails for unreadable files and
// unsupported fields. The pipeline treats any failure as "no result" for
// that item.
package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/couchcryptid/nexrad-render-etl/internal/domain"
)

// PyArt invokes the renderer command once per file.
//
// Contract: `<command> [args...] --file <path> --field <field>` writes a JSON
// document to stdout:
//
//	{"sweeps": [{"index": 0,
//	             "original_sweep_number": 1,
//	             "elevation_index": 1,
//	             "elevation_angle_degrees": 0.48,
//	             "azimuth_angle_degrees": 143.2,
//	             "bounding_box_lon_lat": {"nw": [lon, lat], ...},
//	             "png_base64": "..."}]}
//
// A non-zero exit, malformed JSON, or an empty sweep set all count as
// failure for the file.
type PyArt struct {
	command string
	args    []string
	timeout time.Duration
	logger  *slog.Logger
}

// NewPyArt creates a renderer bridge. A zero timeout disables the per-file
// deadline.
func NewPyArt(command string, args []string, timeout time.Duration, logger *slog.Logger) *PyArt {
	return &PyArt{command: command, args: args, timeout: timeout, logger: logger}
}

type rendererOutput struct {
	Sweeps []rendererSweep `json:"sweeps"`
}

type rendererSweep struct {
	Index               int                `json:"index"`
	OriginalSweepNumber int                `json:"original_sweep_number"`
	ElevationIndex      int                `json:"elevation_index"`
	ElevationAngle      float64            `json:"elevation_angle_degrees"`
	AzimuthAngle        float64            `json:"azimuth_angle_degrees"`
	BoundingBoxLonLat   domain.BoundingBox `json:"bounding_box_lon_lat"`
	PNGBase64           string             `json:"png_base64"`
}

// Render decodes and plots one local radar file for the requested field.
func (p *PyArt) Render(ctx context.Context, localPath, field string) ([]domain.RenderedSweep, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	args := append(append([]string{}, p.args...), "--file", localPath, "--field", field)
	cmd := exec.CommandContext(ctx, p.command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("renderer %s: %w (stderr: %s)", p.command, err, truncate(stderr.String(), 512))
	}

	var out rendererOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("renderer output for %s: %w", localPath, err)
	}
	if len(out.Sweeps) == 0 {
		return nil, fmt.Errorf("renderer produced no sweeps for %s field %s", localPath, field)
	}

	sweeps := make([]domain.RenderedSweep, 0, len(out.Sweeps))
	for _, s := range out.Sweeps {
		png, err := base64.StdEncoding.DecodeString(s.PNGBase64)
		if err != nil {
			return nil, fmt.Errorf("renderer png for %s sweep %d: %w", localPath, s.Index, err)
		}
		sweeps = append(sweeps, domain.RenderedSweep{
			Index: s.Index,
			Metadata: domain.SweepMetadata{
				OriginalSweepNumber: s.OriginalSweepNumber,
				ElevationIndex:      s.ElevationIndex,
				ElevationAngle:      s.ElevationAngle,
				AzimuthAngle:        s.AzimuthAngle,
				BoundingBoxLonLat:   s.BoundingBoxLonLat,
			},
			PNG: png,
		})
	}
	return sweeps, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
