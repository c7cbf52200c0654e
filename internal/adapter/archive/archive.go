// Package archive discovers and downloads NEXRAD source files from the
// public NOAA and Unidata buckets.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/couchcryptid/nexrad-render-etl/internal/domain"
)

// Window is the discovery time window, inclusive on both ends.
type Window struct {
	Start time.Time
	End   time.Time
}

// Client wraps an anonymous S3 client for the public archive buckets.
type Client struct {
	mc     *minio.Client
	logger *slog.Logger
}

// NewPublicClient creates an unauthenticated client for public buckets.
func NewPublicClient(endpoint, region string, logger *slog.Logger) (*Client, error) {
	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStatic("", "", "", credentials.SignatureAnonymous),
		Secure: true,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create archive client: %w", err)
	}
	return &Client{mc: mc, logger: logger}, nil
}

// download fetches one object into dir, named after its basename.
func (c *Client) download(ctx context.Context, bucket, key, dir string) (string, error) {
	local := filepath.Join(dir, domain.Basename(key))
	if err := c.mc.FGetObject(ctx, bucket, key, local, minio.GetObjectOptions{}); err != nil {
		return "", fmt.Errorf("download %s/%s: %w", bucket, key, err)
	}
	return local, nil
}

// listPrefix enumerates keys under one prefix. A listing error is returned
// after any keys already received; callers isolate it and continue.
func (c *Client) listPrefix(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	for obj := range c.mc.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return keys, fmt.Errorf("list %s/%s: %w", bucket, prefix, obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// dayPrefixes walks the UTC calendar days covered by the window.
func dayPrefixes(w Window, format func(t time.Time) string) []string {
	var prefixes []string
	day := time.Date(w.Start.Year(), w.Start.Month(), w.Start.Day(), 0, 0, 0, 0, time.UTC)
	end := w.End.UTC()
	for !day.After(end) {
		prefixes = append(prefixes, format(day))
		day = day.AddDate(0, 0, 1)
	}
	return prefixes
}

func sortedUnique(objs []domain.SourceObject) []domain.SourceObject {
	seen := make(map[string]struct{}, len(objs))
	out := objs[:0]
	for _, o := range objs {
		if _, dup := seen[o.Key]; dup {
			continue
		}
		seen[o.Key] = struct{}{}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func inWindow(ts time.Time, w Window) bool {
	return !ts.Before(w.Start) && !ts.After(w.End)
}
