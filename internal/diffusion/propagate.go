// Package diffusion implements the score-diffusion engine at the heart of
// transient detection. A per-event score is repeatedly propagated along the
// neighbor graph, accumulated, thresholded at a high quantile and
// renormalized, so that events embedded in dense regions pile up score while
// isolated background events fall below the survivor threshold.
package diffusion

import "fmt"

// Propagate computes one message-passing step over an edge list: for every
// node i, the sum over incoming edges (s, t) with t == i of
// weight(s, t) * scores[s]. A nil weights slice means unit weights.
//
// Propagate is pure: it never modifies its inputs, and nodes with no
// incoming edges receive 0. Mismatched slice lengths and out-of-range node
// indices are precondition violations reported as errors.
func Propagate(scores []float64, src, dst []int, weights []float64) ([]float64, error) {
	if err := checkEdges(len(scores), src, dst, weights); err != nil {
		return nil, err
	}
	out := make([]float64, len(scores))
	for e := range src {
		w := 1.0
		if weights != nil {
			w = weights[e]
		}
		out[dst[e]] += w * scores[src[e]]
	}
	return out, nil
}

// PropagateCSR computes the same result as Propagate through a compressed
// sparse row pass: edges are grouped by destination node and each output
// entry is accumulated from its own row. The two paths are performance
// variants of one operator and agree to floating-point tolerance.
func PropagateCSR(scores []float64, src, dst []int, weights []float64) ([]float64, error) {
	n := len(scores)
	if err := checkEdges(n, src, dst, weights); err != nil {
		return nil, err
	}

	// rowPtr[i]..rowPtr[i+1] spans the incoming edges of node i.
	rowPtr := make([]int, n+1)
	for _, t := range dst {
		rowPtr[t+1]++
	}
	for i := 0; i < n; i++ {
		rowPtr[i+1] += rowPtr[i]
	}

	cols := make([]int, len(src))
	vals := make([]float64, len(src))
	next := make([]int, n)
	copy(next, rowPtr[:n])
	for e := range src {
		p := next[dst[e]]
		cols[p] = src[e]
		if weights != nil {
			vals[p] = weights[e]
		} else {
			vals[p] = 1
		}
		next[dst[e]] = p + 1
	}

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for p := rowPtr[i]; p < rowPtr[i+1]; p++ {
			sum += vals[p] * scores[cols[p]]
		}
		out[i] = sum
	}
	return out, nil
}

func checkEdges(n int, src, dst []int, weights []float64) error {
	if len(src) != len(dst) {
		return fmt.Errorf("diffusion: edge list has %d sources and %d targets", len(src), len(dst))
	}
	if weights != nil && len(weights) != len(src) {
		return fmt.Errorf("diffusion: %d weights for %d edges", len(weights), len(src))
	}
	for e := range src {
		if src[e] < 0 || src[e] >= n {
			return fmt.Errorf("diffusion: edge %d source %d out of range [0,%d)", e, src[e], n)
		}
		if dst[e] < 0 || dst[e] >= n {
			return fmt.Errorf("diffusion: edge %d target %d out of range [0,%d)", e, dst[e], n)
		}
	}
	return nil
}
