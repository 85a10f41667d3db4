package recognize

import (
	"math"
	"testing"
)

func embAt(dim int, first float32) Embedding {
	e := make(Embedding, dim)
	e[0] = first
	return e
}

func TestEuclideanDistance_Identity(t *testing.T) {
	e := Embedding{0.1, -0.4, 0.9, 0.3}
	if d := EuclideanDistance(e, e); d != 0 {
		t.Errorf("distance(e, e) = %v, want 0", d)
	}
}

func TestEuclideanDistance_KnownValue(t *testing.T) {
	a := Embedding{0, 0}
	b := Embedding{3, 4}
	if d := EuclideanDistance(a, b); math.Abs(d-5) > 1e-9 {
		t.Errorf("distance = %v, want 5", d)
	}
}

func TestEuclideanDistance_InvalidInput(t *testing.T) {
	if d := EuclideanDistance(Embedding{1, 2}, Embedding{1}); !math.IsInf(d, 1) {
		t.Errorf("mismatched lengths: distance = %v, want +Inf", d)
	}
	if d := EuclideanDistance(nil, nil); !math.IsInf(d, 1) {
		t.Errorf("empty vectors: distance = %v, want +Inf", d)
	}
}

func TestMatcher_ExactMatchFullConfidence(t *testing.T) {
	e := Embedding{0.5, -0.2, 0.7}
	m := NewMatcher(0.5)

	match, ok := m.Match(e, []GalleryEntry{{MemberID: "m1", Embedding: e}})
	if !ok {
		t.Fatal("expected a match against a gallery containing the query itself")
	}
	if match.MemberID != "m1" {
		t.Errorf("member = %s, want m1", match.MemberID)
	}
	if match.Distance != 0 {
		t.Errorf("distance = %v, want 0", match.Distance)
	}
	if match.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", match.Confidence)
	}
}

func TestMatcher_EmptyGallery(t *testing.T) {
	m := NewMatcher(0.5)
	if _, ok := m.Match(Embedding{1, 2, 3}, nil); ok {
		t.Error("empty gallery must never match")
	}
}

func TestMatcher_ThresholdBoundary(t *testing.T) {
	query := embAt(4, 0)
	gallery := []GalleryEntry{{MemberID: "m1", Embedding: embAt(4, 0.3)}}

	// distance 0.3, threshold 0.5 → match with confidence 1 - 0.3/0.5 = 0.4
	match, ok := NewMatcher(0.5).Match(query, gallery)
	if !ok {
		t.Fatal("expected match at distance 0.3 with threshold 0.5")
	}
	if math.Abs(match.Distance-0.3) > 1e-6 {
		t.Errorf("distance = %v, want 0.3", match.Distance)
	}
	if math.Abs(match.Confidence-0.4) > 1e-6 {
		t.Errorf("confidence = %v, want 0.4", match.Confidence)
	}

	// distance 0.6, threshold 0.5 → no match
	far := []GalleryEntry{{MemberID: "m1", Embedding: embAt(4, 0.6)}}
	if _, ok := NewMatcher(0.5).Match(query, far); ok {
		t.Error("distance 0.6 must not match with threshold 0.5")
	}

	// Distance exactly at the threshold is rejected (accept is strict less-than).
	atThreshold := []GalleryEntry{{MemberID: "m1", Embedding: embAt(4, 0.5)}}
	if _, ok := NewMatcher(0.5).Match(query, atThreshold); ok {
		t.Error("distance equal to threshold must not match")
	}
}

func TestMatcher_ThresholdMonotonicity(t *testing.T) {
	query := embAt(4, 0)
	gallery := []GalleryEntry{
		{MemberID: "near", Embedding: embAt(4, 0.1)},
		{MemberID: "mid", Embedding: embAt(4, 0.35)},
		{MemberID: "far", Embedding: embAt(4, 0.9)},
	}

	accepted := func(threshold float64) bool {
		_, ok := NewMatcher(threshold).Match(query, gallery)
		return ok
	}

	// Every query accepted at a stricter threshold is accepted at a looser one.
	thresholds := []float64{0.05, 0.2, 0.4, 0.5, 1.0}
	prev := false
	for _, th := range thresholds {
		cur := accepted(th)
		if prev && !cur {
			t.Errorf("match accepted at stricter threshold but rejected at %v", th)
		}
		prev = cur
	}
}

func TestMatcher_PicksNearest(t *testing.T) {
	query := embAt(4, 0)
	gallery := []GalleryEntry{
		{MemberID: "far", Embedding: embAt(4, 0.4)},
		{MemberID: "near", Embedding: embAt(4, 0.1)},
	}

	match, ok := NewMatcher(0.5).Match(query, gallery)
	if !ok {
		t.Fatal("expected a match")
	}
	if match.MemberID != "near" {
		t.Errorf("member = %s, want near", match.MemberID)
	}
}

func TestMatcher_TieBreakLowestMemberID(t *testing.T) {
	query := embAt(4, 0)
	shared := embAt(4, 0.2)
	gallery := []GalleryEntry{
		{MemberID: "b", Embedding: shared},
		{MemberID: "a", Embedding: shared},
	}

	match, ok := NewMatcher(0.5).Match(query, gallery)
	if !ok {
		t.Fatal("expected a match")
	}
	if match.MemberID != "a" {
		t.Errorf("tie-break picked %s, want a (lowest member ID)", match.MemberID)
	}
}

func TestMatcher_SkipsMalformedEmbeddings(t *testing.T) {
	query := embAt(4, 0)
	gallery := []GalleryEntry{
		{MemberID: "broken", Embedding: Embedding{0}}, // wrong length
		{MemberID: "missing"},                         // no embedding
		{MemberID: "good", Embedding: embAt(4, 0.2)},
	}

	match, ok := NewMatcher(0.5).Match(query, gallery)
	if !ok {
		t.Fatal("expected a match despite malformed entries")
	}
	if match.MemberID != "good" {
		t.Errorf("member = %s, want good", match.MemberID)
	}

	onlyBroken := []GalleryEntry{{MemberID: "broken", Embedding: Embedding{0}}}
	if _, ok := NewMatcher(0.5).Match(query, onlyBroken); ok {
		t.Error("gallery with only malformed entries must not match")
	}
}

func TestMatcher_IndexPreservesSemantics(t *testing.T) {
	query := embAt(8, 0)
	gallery := []GalleryEntry{
		{MemberID: "m1", Embedding: embAt(8, 0.1)},
		{MemberID: "m2", Embedding: embAt(8, 0.3)},
		{MemberID: "m3", Embedding: embAt(8, 0.7)},
		{MemberID: "m4"},
	}

	linear := NewMatcher(0.5)
	indexed := NewMatcher(0.5)
	if err := indexed.EnableIndex(gallery); err != nil {
		t.Fatalf("EnableIndex: %v", err)
	}

	wantMatch, wantOK := linear.Match(query, gallery)
	gotMatch, gotOK := indexed.Match(query, gallery)
	if wantOK != gotOK {
		t.Fatalf("indexed accept = %v, linear accept = %v", gotOK, wantOK)
	}
	if gotMatch.MemberID != wantMatch.MemberID || math.Abs(gotMatch.Distance-wantMatch.Distance) > 1e-6 {
		t.Errorf("indexed match %+v differs from linear %+v", gotMatch, wantMatch)
	}

	// A query outside the threshold must be rejected even though the index
	// always proposes candidates.
	outside := embAt(8, 5)
	if _, ok := indexed.Match(outside, gallery); ok {
		t.Error("indexed matcher loosened the accept boundary")
	}
}

func TestConfidence_Clamping(t *testing.T) {
	if c := Confidence(0.6, 0.5); c != 0 {
		t.Errorf("confidence past threshold = %v, want 0", c)
	}
	if c := Confidence(0, 0.5); c != 1 {
		t.Errorf("confidence at zero distance = %v, want 1", c)
	}
	if c := Confidence(0.1, 0); c != 0 {
		t.Errorf("confidence with zero threshold = %v, want 0", c)
	}
}
