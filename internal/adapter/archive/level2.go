package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/nexrad-render-etl/internal/domain"
)

// Level2Source discovers and downloads Level 2 volume files for one site
// from the NOAA public bucket, which partitions by YYYY/MM/DD/SITE/.
type Level2Source struct {
	client *Client
	bucket string
	site   string
	logger *slog.Logger
}

// NewLevel2Source binds a public client to the NOAA bucket and a 4-letter
// site (e.g. KPDT).
func NewLevel2Source(client *Client, bucket, site string, logger *slog.Logger) *Level2Source {
	return &Level2Source{client: client, bucket: bucket, site: site, logger: logger}
}

// Discover lists the day prefixes covering the window and returns the
// in-window V06 files, sorted and deduplicated. A failed prefix listing is
// logged and skipped; the run can legitimately return zero items.
func (s *Level2Source) Discover(ctx context.Context, w Window) ([]domain.SourceObject, error) {
	prefixes := dayPrefixes(w, func(day time.Time) string {
		return fmt.Sprintf("%04d/%02d/%02d/%s/", day.Year(), day.Month(), day.Day(), s.site)
	})

	var found []domain.SourceObject
	for _, prefix := range prefixes {
		keys, err := s.client.listPrefix(ctx, s.bucket, prefix)
		if err != nil {
			s.logger.Error("level 2 prefix listing failed", "prefix", prefix, "error", err)
			continue
		}
		for _, key := range keys {
			normalized, ok := domain.NormalizeLevel2(domain.Basename(key))
			if !ok {
				s.logger.Debug("skipping unparseable level 2 key", "key", key)
				continue
			}
			ts, ok := domain.KeyTimestamp(normalized)
			if !ok || !inWindow(ts, w) {
				s.logger.Debug("skipping out-of-window level 2 key", "key", key)
				continue
			}
			found = append(found, domain.SourceObject{Key: key, Site: s.site, Timestamp: ts})
		}
	}
	s.logger.Info("level 2 discovery complete", "site", s.site, "found", len(found))
	return sortedUnique(found), nil
}

// Download fetches one volume file into dir.
func (s *Level2Source) Download(ctx context.Context, key, dir string) (string, error) {
	return s.client.download(ctx, s.bucket, key, dir)
}
