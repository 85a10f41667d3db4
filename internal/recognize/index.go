package recognize

import (
	"errors"
	"math"

	"github.com/coder/hnsw"
)

// HNSW parameters tuned for face descriptor galleries.
const (
	// indexMaxNeighbors (M) is the maximum number of neighbors per node.
	indexMaxNeighbors = 16

	// indexCandidates is how many nearest candidates to pull from the
	// graph before exact re-verification. Galleries are small, so a
	// generous pool keeps the accept boundary identical to a linear scan.
	indexCandidates = 8
)

// galleryIndex wraps an HNSW graph over a fixed gallery snapshot. It is a
// candidate generator only: callers must treat its distances as hints and
// re-check the exact metric, which nearest does before accepting.
type galleryIndex struct {
	graph   *hnsw.Graph[int]
	entries []GalleryEntry
}

type scored struct {
	entry    GalleryEntry
	distance float64
}

// buildGalleryIndex builds an index over the entries that carry an
// embedding. Entries without one are dropped, matching Match's behavior.
func buildGalleryIndex(gallery []GalleryEntry) (*galleryIndex, error) {
	g := hnsw.NewGraph[int]()
	g.M = indexMaxNeighbors
	g.Ml = 1.0 / float64(indexMaxNeighbors)
	g.Distance = hnsw.EuclideanDistance

	idx := &galleryIndex{graph: g}
	for _, entry := range gallery {
		if len(entry.Embedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(len(idx.entries), entry.Embedding))
		idx.entries = append(idx.entries, entry)
	}

	if len(idx.entries) == 0 {
		return nil, errors.New("no embeddings in gallery")
	}
	return idx, nil
}

// nearest returns the closest entry under the exact L2 metric, restricted
// to candidates proposed by the graph. The threshold check and the
// lowest-member-ID tie-break mirror the linear scan exactly.
func (idx *galleryIndex) nearest(query Embedding, threshold float64) (scored, bool) {
	neighbors := idx.graph.Search(query, indexCandidates)

	best := scored{distance: math.Inf(1)}
	found := false
	for _, n := range neighbors {
		entry := idx.entries[n.Key]
		if len(entry.Embedding) != len(query) {
			continue
		}
		d := EuclideanDistance(query, entry.Embedding)
		if d < best.distance || (d == best.distance && entry.MemberID < best.entry.MemberID) {
			best = scored{entry: entry, distance: d}
			found = true
		}
	}

	if !found || best.distance >= threshold {
		return scored{}, false
	}
	return best, true
}
