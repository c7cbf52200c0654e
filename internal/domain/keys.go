package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	// level2Re matches canonical Level 2 basenames: KPDT20250409_123000_V06.
	level2Re = regexp.MustCompile(`^([A-Z]{4})(\d{8})_(\d{6})_V06$`)

	// level3Re matches Unidata Level 3 basenames. The archive emits the time
	// both as one _HHMMSS segment and as _HH_MM_SS; both forms are accepted.
	level3Re = regexp.MustCompile(`^([A-Z]{3})_([A-Z0-9]{3})_(\d{4})_(\d{2})_(\d{2})_(\d{2})_?(\d{2})_?(\d{2})$`)

	// keyTimestampRe extracts the date/time fields from a normalized key.
	keyTimestampRe = regexp.MustCompile(`^[A-Z]{4}(\d{8})_(\d{6})`)
)

// NormalizeLevel2 validates a Level 2 archive basename against the V06
// grammar. The basename is already the canonical key, so it is returned
// unchanged. Returns "" and false for metadata companions (_MDM) and anything
// else outside the grammar.
func NormalizeLevel2(basename string) (string, bool) {
	if strings.HasSuffix(basename, "_MDM") {
		return "", false
	}
	if !level2Re.MatchString(basename) {
		return "", false
	}
	return basename, true
}

// NormalizeLevel3 reassembles a Unidata Level 3 basename into the canonical
// key layout K<SITE><YYYYMMDD>_<HHMMSS>_<CODE>, e.g.
// PDT_HHC_2025_04_09_153000 -> KPDT20250409_153000_HHC.
// Returns "" and false when the basename does not match the grammar.
func NormalizeLevel3(basename string) (string, bool) {
	m := level3Re.FindStringSubmatch(basename)
	if m == nil {
		return "", false
	}
	site, code := m[1], m[2]
	year, month, day := m[3], m[4], m[5]
	hour, minute, second := m[6], m[7], m[8]
	return fmt.Sprintf("K%s%s%s%s_%s%s%s_%s", site, year, month, day, hour, minute, second, code), true
}

// KeyTimestamp parses the UTC scan time embedded in a normalized key.
// Returns false when the key does not carry a parseable timestamp.
func KeyTimestamp(key string) (time.Time, bool) {
	m := keyTimestampRe.FindStringSubmatch(key)
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.Parse("20060102150405", m[1]+m[2])
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// KeyCode returns the trailing product code token of a normalized key
// (HHC in KPDT20250409_153000_HHC). Returns false when the key has no
// underscore-delimited code segment.
func KeyCode(key string) (string, bool) {
	i := strings.LastIndex(key, "_")
	if i < 0 || i == len(key)-1 {
		return "", false
	}
	return key[i+1:], true
}

// Basename returns the final path segment of an object key.
func Basename(key string) string {
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[i+1:]
	}
	return key
}
