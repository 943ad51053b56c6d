package session

import (
	"crypto/sha256"
	"fmt"
)

// PrivacyFilter masks identifying fields on session records before they
// are broadcast to clients. Metadata is opaque to the engine, so callers
// list the metadata keys that carry identifying context. The zero value
// is a no-op filter.
type PrivacyFilter struct {
	MaskUserIDs bool
	HiddenKeys  []string // metadata keys stripped before broadcast
}

// Apply returns a copy of the record with sensitive fields masked. The
// original record is never modified.
func (f *PrivacyFilter) Apply(r *Record) *Record {
	masked := r.Clone()

	if f.MaskUserIDs && masked.UserID != "" {
		masked.UserID = shortHash(masked.UserID)
	}

	for _, key := range f.HiddenKeys {
		delete(masked.Metadata, key)
	}

	return masked
}

// FilterSlice returns a new slice with privacy masking applied to each
// record. The original slice is not modified.
func (f *PrivacyFilter) FilterSlice(records []*Record) []*Record {
	result := make([]*Record, 0, len(records))
	for _, r := range records {
		result = append(result, f.Apply(r))
	}
	return result
}

// IsNoop reports whether the filter does nothing.
func (f *PrivacyFilter) IsNoop() bool {
	return !f.MaskUserIDs && len(f.HiddenKeys) == 0
}

// MaskUserID applies the filter's user masking to a bare identifier, for
// surfaces that carry one outside a session record (the leaderboard).
func (f *PrivacyFilter) MaskUserID(id string) string {
	if !f.MaskUserIDs || id == "" {
		return id
	}
	return shortHash(id)
}

// shortHash returns a truncated SHA-256 hex digest for an opaque identifier.
func shortHash(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h[:6])
}
