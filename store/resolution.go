package store

import (
	"time"

	"github.com/steadycast/steadycast/types"
)

// CacheEntry is one persisted (source, quality) -> locator mapping with its
// provenance.
type CacheEntry struct {
	Source    string        `json:"source"`
	Locator   types.Locator `json:"locator"`
	Platform  string        `json:"platform"`
	Quality   string        `json:"quality"`
	Label     string        `json:"label,omitempty"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// GetResolution returns the cached entry for a source, regardless of quality
// mode. Callers decide whether a quality mismatch invalidates the hit; the
// offline fallback deliberately accepts any stored mode.
func (s *Store) GetResolution(source string) (CacheEntry, bool) {
	var e CacheEntry
	ok := s.get(bucketResolutions, source, &e)
	return e, ok
}

// PutResolution records a successful resolution, overwriting any prior entry
// for the same source.
func (s *Store) PutResolution(src types.SourceReference, loc types.Locator, label string) error {
	return s.put(bucketResolutions, src.URL, CacheEntry{
		Source:    src.URL,
		Locator:   loc,
		Platform:  src.Platform.String(),
		Quality:   src.Quality.String(),
		Label:     label,
		UpdatedAt: time.Now(),
	})
}

// InvalidateResolution drops the cached entry for a source. Used on the first
// stall retry, where the previously resolved locator may simply have expired.
func (s *Store) InvalidateResolution(source string) error {
	return s.delete(bucketResolutions, source)
}
