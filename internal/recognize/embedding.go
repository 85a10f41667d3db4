// Package recognize implements the face-identity matching subsystem:
// embedding extraction, nearest-neighbor matching against the enrolled
// member gallery, and the debounced live recognition loop driving kiosk
// check-ins.
package recognize

import "math"

// EmbeddingDim is the vector length produced by the reference face model.
const EmbeddingDim = 128

// Embedding is a fixed-length face descriptor in the model's metric space.
// Smaller Euclidean distance means more similar faces.
type Embedding = []float32

// EuclideanDistance computes the L2 distance between two embeddings.
// Returns +Inf for mismatched lengths or empty vectors so that invalid
// input can never win a nearest-neighbor comparison.
func EuclideanDistance(a, b Embedding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Confidence derives a match confidence from a distance and the accept
// threshold: 1.0 at distance 0, 0.0 at the threshold, clamped below.
func Confidence(distance, threshold float64) float64 {
	if threshold <= 0 {
		return 0
	}
	c := 1 - distance/threshold
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
