// Package domain models NEXRAD radar product metadata.
//
// # Data Sources
//
// Level 2 volume files come from the public NOAA bucket, partitioned by day
// and site (2025/04/09/KPDT/) with basenames like
//
//	KPDT20250409_123000_V06
//
// where KPDT is the 4-letter site, followed by the UTC date and time of the
// volume scan. Files ending in _MDM are metadata companions and are ignored.
//
// Level 3 product files come from the public Unidata bucket, partitioned by
// site, product code, and day (PDT/HHC/2025/04/09/) with basenames like
//
//	PDT_HHC_2025_04_09_153000
//	PDT_HHC_2025_04_09_15_30_00
//
// carrying a 3-letter site, a 3-character product code, and the UTC scan
// time. Both time layouts appear in the archive and normalize identically.
//
// # Normalized Keys
//
// Every file resolves to one canonical key
//
//	K<SITE><YYYYMMDD>_<HHMMSS>_<CODE>
//
// e.g. KPDT20250409_153000_HHC, so files describing the same site/time/
// product instant deduplicate to the same key no matter which archive naming
// convention produced them. Level 2 basenames are already in this layout
// (code V06); Level 3 basenames are reassembled. Normalization is pure and
// deterministic: the same input always yields the same key, and input that
// does not match the grammar yields no key, never an error.
//
// # File Lists and Retention
//
// A FileList maps normalized keys to per-file info ({"sweeps": n}) for one
// (level, product) pair. Merging new entries prunes existing entries older
// than a retention window measured backward from the newest timestamp among
// the new entries, not from the wall clock, so a late-running batch cannot
// prune what it just added.
//
// # Flags and Catalog
//
// UpdateFlags carries one dirty bit per product; the pipeline only ever sets
// bits, consumers clear them. The ProductCodeCatalog lists the selectable
// Level 3 product codes per family with an occurrence count derived from the
// current FileList keys.
package domain
