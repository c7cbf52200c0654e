package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/nexrad-render-etl/internal/domain"
)

// Level3Source discovers and downloads Level 3 product files for one site
// and a set of product codes from the Unidata public bucket, which
// partitions by SIT/CODE/YYYY/MM/DD/.
type Level3Source struct {
	client *Client
	bucket string
	site   string
	codes  []string
	logger *slog.Logger
}

// NewLevel3Source binds a public client to the Unidata bucket, a 3-letter
// site (e.g. PDT), and the product codes to search.
func NewLevel3Source(client *Client, bucket, site string, codes []string, logger *slog.Logger) *Level3Source {
	return &Level3Source{client: client, bucket: bucket, site: site, codes: codes, logger: logger}
}

// Discover lists one prefix per code per calendar day in the window and
// returns the in-window files, sorted and deduplicated. Failed prefix
// listings are logged and skipped.
func (s *Level3Source) Discover(ctx context.Context, w Window) ([]domain.SourceObject, error) {
	var found []domain.SourceObject
	for _, code := range s.codes {
		prefixes := dayPrefixes(w, func(day time.Time) string {
			return fmt.Sprintf("%s/%s/%04d/%02d/%02d/", s.site, code, day.Year(), day.Month(), day.Day())
		})
		for _, prefix := range prefixes {
			keys, err := s.client.listPrefix(ctx, s.bucket, prefix)
			if err != nil {
				s.logger.Error("level 3 prefix listing failed", "prefix", prefix, "error", err)
				continue
			}
			for _, key := range keys {
				normalized, ok := domain.NormalizeLevel3(domain.Basename(key))
				if !ok {
					s.logger.Debug("skipping unparseable level 3 key", "key", key)
					continue
				}
				ts, ok := domain.KeyTimestamp(normalized)
				if !ok || !inWindow(ts, w) {
					s.logger.Debug("skipping out-of-window level 3 key", "key", key)
					continue
				}
				found = append(found, domain.SourceObject{
					Key:         key,
					Site:        s.site,
					ProductCode: code,
					Timestamp:   ts,
				})
			}
		}
	}
	s.logger.Info("level 3 discovery complete", "site", s.site, "codes", len(s.codes), "found", len(found))
	return sortedUnique(found), nil
}

// Download fetches one product file into dir.
func (s *Level3Source) Download(ctx context.Context, key, dir string) (string, error) {
	return s.client.download(ctx, s.bucket, key, dir)
}
