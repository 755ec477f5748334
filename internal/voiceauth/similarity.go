package voiceauth

import "math"

// Cosine returns the cosine similarity of a and b. It is 0 when the vectors
// differ in length, are empty, or either has zero magnitude.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// FeatureSim returns an average-difference similarity in [0, 1]:
// 1 - min(1, meanAbsoluteDifference(a, b)). It is 0 when the vectors differ
// in length or are empty.
func FeatureSim(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var sum float64
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}
	mean := sum / float64(len(a))
	return 1 - math.Min(1, mean)
}

// bytesToFloats widens a byte vector for cosine comparison of voiceprints.
func bytesToFloats(b []byte) []float64 {
	f := make([]float64, len(b))
	for i, v := range b {
		f[i] = float64(v)
	}
	return f
}
