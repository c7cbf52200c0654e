package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Store reads for absent objects. Callers
	// present missing metadata objects as empty structures, never as errors.
	ErrNotFound = errors.New("store: object not found")

	// ErrPreconditionFailed is returned by conditional writes when the
	// object changed since the version token was read. Callers re-read and
	// retry the whole read-modify-write.
	ErrPreconditionFailed = errors.New("store: version token mismatch")
)

// MaxDeleteBatch is the most keys a single RemoveBatch call accepts,
// matching the S3 batch-delete cap. Callers chunk larger sets.
const MaxDeleteBatch = 1000

// ObjectInfo describes one stored object as reported by a listing.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Store is the object-store port the pipeline and serving layer run against.
// Metadata objects (lists, flags, catalog) are read with a version token and
// written back conditionally; artifacts are plain bytes.
type Store interface {
	// GetJSON reads and decodes a JSON object, returning its version token.
	// Absent objects return ErrNotFound and an empty token.
	GetJSON(ctx context.Context, key string, v any) (token string, err error)

	// PutJSONIf encodes and writes a JSON object when the current version
	// token still matches. An empty token requires the object to be absent.
	// Returns ErrPreconditionFailed when the object moved underneath.
	PutJSONIf(ctx context.Context, key string, v any, token string) error

	// GetBytes reads a raw object body. Absent objects return ErrNotFound.
	GetBytes(ctx context.Context, key string) ([]byte, error)

	// PutBytes writes a raw object body unconditionally.
	PutBytes(ctx context.Context, key string, data []byte, contentType string) error

	// List enumerates objects under a prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// RemoveBatch deletes up to the store's batch limit of keys, returning
	// how many were deleted. Per-key failures are logged by the adapter and
	// reduce the count without failing the batch.
	RemoveBatch(ctx context.Context, keys []string) (int, error)
}
