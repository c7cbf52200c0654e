package domain

import "time"

// SourceObject is one candidate file seen during archive discovery, before
// normalization. Recreated every run, never persisted.
type SourceObject struct {
	Key         string    // full archive object key
	Site        string    // radar site identifier
	ProductCode string    // Level 3 product code, empty for Level 2
	Timestamp   time.Time // scan time parsed from the filename, UTC
}

// WorkStatus tracks a WorkItem through the pipeline stages.
type WorkStatus string

const (
	StatusPending    WorkStatus = "pending"
	StatusDownloaded WorkStatus = "downloaded"
	StatusProcessed  WorkStatus = "processed"
	StatusFailed     WorkStatus = "failed"
)

// WorkItem is one not-yet-recorded file selected for download and rendering.
// The local file, when present, is removed at the end of the run regardless
// of outcome.
type WorkItem struct {
	SourceKey     string // archive object key to download
	NormalizedKey string // canonical key used for dedup and artifact naming
	LocalPath     string // temp file path, set after a successful download
	Status        WorkStatus
}

// ProcessedResult summarizes a successfully rendered file. Absence of a
// result for a WorkItem means the item failed.
type ProcessedResult struct {
	NormalizedKey string
	Sweeps        int
	ArtifactKeys  []string // uploaded image and sidecar object keys
}

// BoundingBox holds the corner coordinates of a rendered sweep in
// [lon, lat] order, matching the sidecar wire format.
type BoundingBox struct {
	NW [2]float64 `json:"nw"`
	NE [2]float64 `json:"ne"`
	SE [2]float64 `json:"se"`
	SW [2]float64 `json:"sw"`
}

// SweepMetadata is the JSON sidecar uploaded next to each rendered image.
// Level 2 sweeps carry the original sweep number and the 1-based
// elevation-sorted index; Level 3 products have a single sweep and omit both.
type SweepMetadata struct {
	OriginalSweepNumber int         `json:"original_sweep_number,omitempty"`
	ElevationIndex      int         `json:"elevation_index,omitempty"`
	ElevationAngle      float64     `json:"elevation_angle_degrees"`
	AzimuthAngle        float64     `json:"azimuth_angle_degrees"`
	BoundingBoxLonLat   BoundingBox `json:"bounding_box_lon_lat"`
}

// RenderedSweep is one sweep produced by the external renderer: its artifact
// index, sidecar metadata, and the encoded PNG.
type RenderedSweep struct {
	Index    int
	Metadata SweepMetadata
	PNG      []byte
}
