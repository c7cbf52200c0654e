package domain

import "fmt"

// Object keys and prefixes inside the project bucket. Kept in one place so
// the pipeline, the serving layer, and the consistency checker agree on the
// store layout.
const (
	FlagsObjectKey   = "flags/update_flags.json"
	CatalogObjectKey = "codes/options.json"
)

// ListObjectKey returns the index object key for one (level, product) pair,
// e.g. lists/nexrad_level3_hydrometeor_files.json.
func ListObjectKey(level int, product string) string {
	return fmt.Sprintf("lists/nexrad_level%d_%s_files.json", level, product)
}

// ArtifactPrefix returns the object prefix under which rendered artifacts
// for one processing level live.
func ArtifactPrefix(level int) string {
	return fmt.Sprintf("plots_level%d/", level)
}

// ArtifactObjectKey returns the object key for one rendered artifact or its
// sidecar: <prefix><normalizedKey>_<product>_idx<n>.<ext>.
func ArtifactObjectKey(prefix, normalizedKey, product string, idx int, ext string) string {
	return fmt.Sprintf("%s%s_%s_idx%d.%s", prefix, normalizedKey, product, idx, ext)
}
