package diffusion

import (
	"fmt"

	"github.com/xastro/xtd/internal/vecmath"
)

// Config holds the tunable parameters of the diffusion-threshold loop.
type Config struct {
	// Layers is the number of propagation iterations. Default: 10.
	Layers int

	// Quantile is the per-iteration survivor threshold: after each
	// propagation step, only events whose accumulated score reaches the
	// Quantile-th quantile stay in the survivor mask. Default: 0.99.
	Quantile float64

	// Sparse selects the compressed-sparse-row propagation path instead of
	// the edge-list scatter-add. The two paths are numerically equivalent.
	Sparse bool

	// Trace, when non-nil, observes each iteration. It exists for debugging
	// and visualization only; nothing downstream consumes intermediate
	// state.
	Trace TraceFunc
}

// TraceFunc observes one loop iteration: the 1-based iteration number, the
// survivor threshold computed before renormalization, and the survivor count.
type TraceFunc func(iteration int, threshold float64, survivors int)

// DefaultConfig returns the default loop configuration.
func DefaultConfig() Config {
	return Config{
		Layers:   10,
		Quantile: 0.99,
	}
}

// Result is the outcome of one run of the diffusion-threshold loop.
type Result struct {
	// Scores holds the per-node score after the final renormalization,
	// in [0, 1] with maximum exactly 1 (all 1 when Layers is 0).
	Scores []float64

	// Mask is the final iteration's survivor mask: Mask[i] reports whether
	// node i's accumulated score reached the quantile threshold. Inclusive
	// tie-break: score >= threshold survives.
	Mask []bool

	// Survivors lists the indices where Mask is true, ascending.
	Survivors []int
}

// SurvivorScores returns the scores of the surviving nodes, parallel to
// Survivors.
func (r Result) SurvivorScores() []float64 {
	out := make([]float64, len(r.Survivors))
	for i, idx := range r.Survivors {
		out[i] = r.Scores[idx]
	}
	return out
}

// Run executes the diffusion-threshold loop over a fixed graph of n nodes
// given as an edge list (src, dst) with optional per-edge weights.
//
// Every node starts with score 1. Each iteration adds the propagated
// neighbor scores to the running score, computes the quantile threshold and
// survivor mask from the accumulated values, then divides the whole vector
// by its maximum. The ordering matters: the threshold is taken before
// renormalization, and the same full-size graph is reused every iteration.
// Only the final iteration's mask is returned.
//
// With Layers == 0 the loop body never executes: every node survives with
// score 1.
func Run(n int, src, dst []int, weights []float64, cfg Config) (Result, error) {
	if n < 0 {
		return Result{}, fmt.Errorf("diffusion: negative node count %d", n)
	}
	if cfg.Layers < 0 {
		return Result{}, fmt.Errorf("diffusion: negative layer count %d", cfg.Layers)
	}
	if cfg.Quantile <= 0 || cfg.Quantile >= 1 {
		return Result{}, fmt.Errorf("diffusion: quantile must lie in (0, 1), got %v", cfg.Quantile)
	}
	if err := checkEdges(n, src, dst, weights); err != nil {
		return Result{}, err
	}
	if n == 0 {
		return Result{Scores: []float64{}, Mask: []bool{}}, nil
	}

	propagate := Propagate
	if cfg.Sparse {
		propagate = PropagateCSR
	}

	score := vecmath.Ones(n)
	mask := make([]bool, n)
	for i := range mask {
		mask[i] = true
	}

	for it := 1; it <= cfg.Layers; it++ {
		prop, err := propagate(score, src, dst, weights)
		if err != nil {
			return Result{}, err
		}
		for i := range score {
			score[i] += prop[i]
		}

		threshold := vecmath.Quantile(score, cfg.Quantile)
		survivors := 0
		for i := range score {
			mask[i] = score[i] >= threshold
			if mask[i] {
				survivors++
			}
		}

		max := vecmath.Max(score)
		if max <= 0 {
			// Can only happen with degenerate edge weights; renormalizing
			// would poison every later iteration with non-finite values.
			return Result{}, fmt.Errorf("diffusion: score vector collapsed to max %v at iteration %d", max, it)
		}
		for i := range score {
			score[i] /= max
		}

		if cfg.Trace != nil {
			cfg.Trace(it, threshold, survivors)
		}
	}

	res := Result{Scores: score, Mask: mask}
	for i, m := range mask {
		if m {
			res.Survivors = append(res.Survivors, i)
		}
	}
	return res, nil
}
