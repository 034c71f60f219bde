package store

import (
	"time"
)

// resumeKey: a single record per store. The record is keyed by content via
// its BaseLocator field rather than by bucket key, since only the most
// recently stopped playback is ever resumable.
const resumeKey = "last"

// resumeWindow bounds how old a record may be when randomized-seek sessions
// ask for it. Without randomized seek no time cap applies.
const resumeWindow = 5 * time.Minute

// ResumeRecord is the persisted last playback position, keyed by a
// signature-stripped base locator.
type ResumeRecord struct {
	BaseLocator string        `json:"baseLocator"`
	Position    time.Duration `json:"position"`
	SavedAt     time.Time     `json:"savedAt"`
}

// SaveResume persists the playback position on an orderly stop.
func (s *Store) SaveResume(rec ResumeRecord) error {
	if rec.SavedAt.IsZero() {
		rec.SavedAt = time.Now()
	}
	return s.put(bucketResume, resumeKey, rec)
}

// OfferResume returns the saved position for baseLocator if the record
// qualifies. A successful offer consumes the record. A record rejected only
// by the randomized-seek time window is cleared as well, since it is stale
// either way; any other rejection leaves it for a differently-configured
// session.
func (s *Store) OfferResume(baseLocator string, randomSeek bool) (ResumeRecord, bool) {
	var rec ResumeRecord
	if !s.get(bucketResume, resumeKey, &rec) {
		return ResumeRecord{}, false
	}
	if rec.BaseLocator != baseLocator {
		return ResumeRecord{}, false
	}
	if randomSeek && time.Since(rec.SavedAt) >= resumeWindow {
		_ = s.delete(bucketResume, resumeKey)
		return ResumeRecord{}, false
	}
	_ = s.delete(bucketResume, resumeKey)
	return rec, true
}

// ClearResume drops any saved position.
func (s *Store) ClearResume() error {
	return s.delete(bucketResume, resumeKey)
}
