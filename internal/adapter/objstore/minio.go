// Package objstore adapts the project object store to the domain.Store port.
package objstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/couchcryptid/nexrad-render-etl/internal/domain"
)

// MinioStore implements domain.Store against a MinIO/S3 bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// Options configures the project store client.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

// NewMinioStore creates a store client for the project bucket.
func NewMinioStore(opts Options, logger *slog.Logger) (*MinioStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create store client: %w", err)
	}
	return &MinioStore{client: client, bucket: opts.Bucket, logger: logger}, nil
}

// GetJSON reads and decodes a JSON object, returning its ETag as the version
// token.
func (s *MinioStore) GetJSON(ctx context.Context, key string, v any) (string, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	defer obj.Close()

	stat, err := obj.Stat()
	if err != nil {
		if isNoSuchKey(err) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("stat %s: %w", key, err)
	}
	if err := json.NewDecoder(obj).Decode(v); err != nil {
		return "", fmt.Errorf("decode %s: %w", key, err)
	}
	return stat.ETag, nil
}

// PutJSONIf writes a JSON object when the current ETag still matches the
// token. The check is a stat-compare-put, which narrows the concurrent-run
// clobbering window to one stat round-trip rather than closing it entirely;
// conflicting runs surface as ErrPreconditionFailed and retry.
func (s *MinioStore) PutJSONIf(ctx context.Context, key string, v any, token string) error {
	stat, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	switch {
	case err != nil && isNoSuchKey(err):
		if token != "" {
			return domain.ErrPreconditionFailed
		}
	case err != nil:
		return fmt.Errorf("stat %s: %w", key, err)
	default:
		if stat.ETag != token {
			return domain.ErrPreconditionFailed
		}
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.PutBytes(ctx, key, data, "application/json")
}

func (s *MinioStore) GetBytes(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

func (s *MinioStore) PutBytes(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (s *MinioStore) List(ctx context.Context, prefix string) ([]domain.ObjectInfo, error) {
	var infos []domain.ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return infos, fmt.Errorf("list %s: %w", prefix, obj.Err)
		}
		infos = append(infos, domain.ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}
	return infos, nil
}

// RemoveBatch deletes one batch of keys. Per-key failures are logged and
// reduce the returned count; they do not fail the batch.
func (s *MinioStore) RemoveBatch(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	if len(keys) > domain.MaxDeleteBatch {
		return 0, fmt.Errorf("remove batch of %d exceeds limit %d", len(keys), domain.MaxDeleteBatch)
	}

	objectsCh := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		objectsCh <- minio.ObjectInfo{Key: key}
	}
	close(objectsCh)

	failed := 0
	for rerr := range s.client.RemoveObjects(ctx, s.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		failed++
		s.logger.Error("batch delete failed for key", "key", rerr.ObjectName, "error", rerr.Err)
	}
	return len(keys) - failed, nil
}

func isNoSuchKey(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey" || resp.StatusCode == 404
	}
	return false
}
