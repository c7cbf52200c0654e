package objstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/nexrad-render-etl/internal/domain"
)

// Memory is an in-memory domain.Store used by tests and local development.
// Conditional writes are atomic here, unlike the stat-compare-put of the
// MinIO adapter.
type Memory struct {
	mu      sync.Mutex
	objects map[string]memObject
	clock   clockwork.Clock
	seq     int
}

type memObject struct {
	data         []byte
	contentType  string
	etag         string
	lastModified time.Time
}

// NewMemory creates an empty in-memory store using the real clock.
func NewMemory() *Memory {
	return NewMemoryWithClock(clockwork.NewRealClock())
}

// NewMemoryWithClock creates an in-memory store whose LastModified stamps
// come from the given clock, so tests can age objects deterministically.
func NewMemoryWithClock(clock clockwork.Clock) *Memory {
	return &Memory{objects: make(map[string]memObject), clock: clock}
}

func (m *Memory) GetJSON(_ context.Context, key string, v any) (string, error) {
	m.mu.Lock()
	obj, ok := m.objects[key]
	m.mu.Unlock()
	if !ok {
		return "", domain.ErrNotFound
	}
	if err := json.Unmarshal(obj.data, v); err != nil {
		return "", fmt.Errorf("decode %s: %w", key, err)
	}
	return obj.etag, nil
}

func (m *Memory) PutJSONIf(_ context.Context, key string, v any, token string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	current, exists := m.objects[key]
	if exists && current.etag != token {
		return domain.ErrPreconditionFailed
	}
	if !exists && token != "" {
		return domain.ErrPreconditionFailed
	}
	m.put(key, data, "application/json")
	return nil
}

func (m *Memory) GetBytes(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return bytes.Clone(obj.data), nil
}

func (m *Memory) PutBytes(_ context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(key, bytes.Clone(data), contentType)
	return nil
}

func (m *Memory) List(_ context.Context, prefix string) ([]domain.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var infos []domain.ObjectInfo
	for key, obj := range m.objects {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, domain.ObjectInfo{
				Key:          key,
				Size:         int64(len(obj.data)),
				LastModified: obj.lastModified,
			})
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func (m *Memory) RemoveBatch(_ context.Context, keys []string) (int, error) {
	if len(keys) > domain.MaxDeleteBatch {
		return 0, fmt.Errorf("remove batch of %d exceeds limit %d", len(keys), domain.MaxDeleteBatch)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for _, key := range keys {
		if _, ok := m.objects[key]; ok {
			delete(m.objects, key)
			deleted++
		}
	}
	return deleted, nil
}

// Exists reports whether a key is present. Test helper.
func (m *Memory) Exists(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

// Len returns the number of stored objects. Test helper.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// put must be called with the lock held.
func (m *Memory) put(key string, data []byte, contentType string) {
	m.seq++
	m.objects[key] = memObject{
		data:         data,
		contentType:  contentType,
		etag:         fmt.Sprintf("etag-%d", m.seq),
		lastModified: m.clock.Now().UTC(),
	}
}
