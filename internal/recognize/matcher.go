package recognize

import "math"

// DefaultThreshold is the default maximum L2 distance for accepting a
// match (lower = stricter, fewer false accepts).
const DefaultThreshold = 0.5

// GalleryEntry is one enrolled identity in a gallery snapshot. The member
// store builds snapshots filtered to active members with an embedding;
// the matcher still tolerates nil or malformed embeddings defensively.
type GalleryEntry struct {
	MemberID  string
	Embedding Embedding
}

// Match is the result of a successful gallery lookup.
type Match struct {
	MemberID   string
	Distance   float64
	Confidence float64
}

// Matcher finds the best-matching enrolled identity for a query embedding.
type Matcher struct {
	// Threshold is the maximum acceptable distance between a query and a
	// gallery embedding. Tunable at deployment time, never hardcoded in
	// matching logic.
	Threshold float64

	index *galleryIndex
}

// NewMatcher creates a matcher with the given distance threshold.
// A zero or negative threshold falls back to DefaultThreshold.
func NewMatcher(threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{Threshold: threshold}
}

// Match scans the gallery for the entry nearest to query and returns it
// if its distance is below the threshold. Entries with missing or
// wrong-length embeddings are skipped. Ties at the minimum distance are
// broken deterministically: the lowest member ID wins.
//
// Galleries are small (tens to low hundreds) and rebuilt per call, so the
// scan is linear; EnableIndex switches large galleries to candidate
// generation via HNSW with exact re-verification.
func (m *Matcher) Match(query Embedding, gallery []GalleryEntry) (Match, bool) {
	if len(gallery) == 0 || len(query) == 0 {
		return Match{}, false
	}

	if m.index != nil {
		if best, ok := m.index.nearest(query, m.Threshold); ok {
			return m.result(best)
		}
		return Match{}, false
	}

	best := GalleryEntry{}
	bestDist := math.Inf(1)
	for _, entry := range gallery {
		if len(entry.Embedding) != len(query) {
			continue
		}
		d := EuclideanDistance(query, entry.Embedding)
		if d < bestDist || (d == bestDist && entry.MemberID < best.MemberID) {
			bestDist = d
			best = entry
		}
	}

	if bestDist >= m.Threshold {
		return Match{}, false
	}
	return m.result(scored{entry: best, distance: bestDist})
}

func (m *Matcher) result(s scored) (Match, bool) {
	return Match{
		MemberID:   s.entry.MemberID,
		Distance:   s.distance,
		Confidence: Confidence(s.distance, m.Threshold),
	}, true
}

// EnableIndex builds an in-memory HNSW index over the given gallery and
// uses it for subsequent Match calls. Accept semantics are unchanged: the
// index only proposes candidates, and every candidate's true L2 distance
// is re-checked against the threshold.
func (m *Matcher) EnableIndex(gallery []GalleryEntry) error {
	idx, err := buildGalleryIndex(gallery)
	if err != nil {
		return err
	}
	m.index = idx
	return nil
}

// DisableIndex drops the index and returns to linear scanning.
func (m *Matcher) DisableIndex() {
	m.index = nil
}
