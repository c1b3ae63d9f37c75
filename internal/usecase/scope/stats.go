package scope

import (
	"math"
	"slices"
)

// cosine returns the cosine similarity of a and b over their common prefix.
// Zero-norm vectors have similarity 0.
func cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// pairwise returns the cosine similarity of every unordered pair.
func pairwise(vecs [][]float32) []float64 {
	out := make([]float64, 0, len(vecs)*(len(vecs)-1)/2)
	for i := 0; i < len(vecs); i++ {
		for j := i + 1; j < len(vecs); j++ {
			out = append(out, cosine(vecs[i], vecs[j]))
		}
	}
	return out
}

// oneVsMany returns the cosine similarity of q against each vector.
func oneVsMany(q []float32, vecs [][]float32) []float64 {
	out := make([]float64, len(vecs))
	for i, v := range vecs {
		out[i] = cosine(q, v)
	}
	return out
}

// quantile returns the q-th quantile of sorted data using linear interpolation.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

// withoutOutliers drops values outside [Q1 - k*IQR, Q3 + k*IQR].
func withoutOutliers(values []float64, k float64) []float64 {
	if len(values) < 2 {
		return values
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	q1 := quantile(sorted, 0.25)
	q3 := quantile(sorted, 0.75)
	iqr := q3 - q1
	lo, hi := q1-k*iqr, q3+k*iqr

	out := make([]float64, 0, len(values))
	for _, v := range values {
		if v >= lo && v <= hi {
			out = append(out, v)
		}
	}
	return out
}

// meanStddev returns the mean and population standard deviation.
func meanStddev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}
