// Package pipeline wires the detection stages together: event set to
// neighbor graph, graph diffusion with quantile thresholding, and density
// clustering of the survivors.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/xastro/xtd/internal/dbscan"
	"github.com/xastro/xtd/internal/diffusion"
	"github.com/xastro/xtd/internal/events"
	"github.com/xastro/xtd/internal/knngraph"
	"github.com/xastro/xtd/internal/logging"
)

// Options holds the tunable parameters of a detection run.
type Options struct {
	// K is the neighbor count of the k-nearest-neighbor graph.
	K int

	// Layers is the number of diffusion iterations.
	Layers int

	// Quantile is the per-iteration survivor threshold quantile.
	Quantile float64

	// MinPoints is the DBSCAN core-point neighbor minimum.
	MinPoints int

	// Sparse selects the sparse propagation path; results are identical.
	Sparse bool

	// Logger receives operational output. Defaults to a discarding logger.
	Logger *slog.Logger

	// Trace, when non-nil, records per-iteration diffusion state.
	Trace *logging.TraceLogger
}

// DefaultOptions returns the reference detection parameters.
func DefaultOptions() Options {
	return Options{
		K:         8,
		Layers:    10,
		Quantile:  0.99,
		MinPoints: 5,
	}
}

// ClusterSummary describes one cluster of survivors. Label -1 summarizes
// the noise bucket.
type ClusterSummary struct {
	Label int `json:"label"`

	// Size is the number of surviving events carrying the label.
	Size int `json:"size"`

	// SimulatedFrac is the fraction of those events flagged as simulated,
	// a ground-truth purity measure for evaluation only.
	SimulatedFrac float64 `json:"simulated_frac"`

	// Centroid is the mean position (last three feature columns) of the
	// cluster members.
	Centroid []float64 `json:"centroid"`
}

// Detection is the complete outcome of one pipeline run over an event set.
type Detection struct {
	// Events is the input event set the indices below refer to.
	Events *events.Set

	// Scores is the final per-event diffusion score, maximum 1.
	Scores []float64

	// Mask is the final survivor mask over all events.
	Mask []bool

	// Survivors lists surviving event indices, ascending.
	Survivors []int

	// SurvivorScores holds the scores of the survivors, parallel to
	// Survivors.
	SurvivorScores []float64

	// Labels assigns each survivor a cluster id, -1 for noise. Parallel to
	// Survivors.
	Labels []int

	// Eps is the derived clustering radius: half the median neighbor-edge
	// distance.
	Eps float64

	// MedianEdgeDistance is the median edge length of the neighbor graph.
	MedianEdgeDistance float64

	// NumEdges is the directed edge count of the neighbor graph.
	NumEdges int

	// NumClusters is the number of distinct non-noise cluster labels.
	NumClusters int

	// Clusters summarizes each cluster, noise bucket included, ordered by
	// label.
	Clusters []ClusterSummary

	// Duration is the wall-clock time of the run.
	Duration time.Duration
}

// Pipeline runs transient detection over event sets.
type Pipeline struct {
	opts Options
	log  *slog.Logger
}

// New creates a pipeline with the given options.
func New(opts Options) *Pipeline {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{opts: opts, log: log}
}

// Detect runs the full pipeline: neighbor graph construction over the full
// feature vectors, the diffusion-threshold loop, and density clustering of
// the survivors with the derived radius. The input set is not modified.
func (p *Pipeline) Detect(ctx context.Context, set *events.Set) (*Detection, error) {
	start := time.Now()

	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if set.Dim() < events.PosDims {
		return nil, fmt.Errorf("pipeline: %d feature columns, need at least %d", set.Dim(), events.PosDims)
	}

	// Stage 1: neighbor graph over the full feature vectors, so propagation
	// mixes position with the other physical attributes.
	p.log.Info("building neighbor graph", "events", set.Len(), "k", p.opts.K)
	graph, err := knngraph.Build(set.X, p.opts.K)
	if err != nil {
		return nil, fmt.Errorf("pipeline: building neighbor graph: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 2: diffusion-threshold loop over the fixed graph.
	cfg := diffusion.Config{
		Layers:   p.opts.Layers,
		Quantile: p.opts.Quantile,
		Sparse:   p.opts.Sparse,
		Trace:    p.opts.Trace.Iteration,
	}
	p.log.Info("running diffusion", "layers", cfg.Layers, "quantile", cfg.Quantile, "edges", graph.NumEdges())
	res, err := diffusion.Run(graph.N, graph.Src, graph.Dst, nil, cfg)
	if err != nil {
		return nil, fmt.Errorf("pipeline: diffusion: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 3: density clustering of the survivors' full feature rows. The
	// radius follows the graph's own spatial scale.
	median := graph.MedianDistance()
	eps := median / 2
	survivorRows := make([][]float64, len(res.Survivors))
	for i, idx := range res.Survivors {
		survivorRows[i] = set.X[idx]
	}
	p.log.Info("clustering survivors", "survivors", len(survivorRows), "eps", eps, "min_points", p.opts.MinPoints)
	labels := dbscan.Cluster(survivorRows, eps, p.opts.MinPoints)

	det := &Detection{
		Events:             set,
		Scores:             res.Scores,
		Mask:               res.Mask,
		Survivors:          res.Survivors,
		SurvivorScores:     res.SurvivorScores(),
		Labels:             labels,
		Eps:                eps,
		MedianEdgeDistance: median,
		NumEdges:           graph.NumEdges(),
		NumClusters:        dbscan.NumClusters(labels),
		Duration:           time.Since(start),
	}
	if det.Clusters, err = summarize(set, res.Survivors, labels); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	p.log.Info("detection complete",
		"survivors", len(det.Survivors),
		"clusters", det.NumClusters,
		"duration", det.Duration)
	return det, nil
}

// summarize aggregates survivors by cluster label, computing per-cluster
// size, simulated fraction and position centroid.
func summarize(set *events.Set, survivors []int, labels []int) ([]ClusterSummary, error) {
	if len(survivors) != len(labels) {
		return nil, fmt.Errorf("%d survivors with %d labels", len(survivors), len(labels))
	}

	byLabel := make(map[int][]int)
	for i, idx := range survivors {
		byLabel[labels[i]] = append(byLabel[labels[i]], idx)
	}

	var out []ClusterSummary
	for label := -1; ; label++ {
		members, ok := byLabel[label]
		if !ok {
			if label == -1 {
				continue
			}
			break
		}

		centroid := make([]float64, events.PosDims)
		simulated := 0
		for _, idx := range members {
			pos, err := set.Pos(idx)
			if err != nil {
				return nil, err
			}
			for d := range centroid {
				centroid[d] += pos[d]
			}
			if set.Simulated[idx] {
				simulated++
			}
		}
		for d := range centroid {
			centroid[d] /= float64(len(members))
		}

		out = append(out, ClusterSummary{
			Label:         label,
			Size:          len(members),
			SimulatedFrac: float64(simulated) / float64(len(members)),
			Centroid:      centroid,
		})
	}
	return out, nil
}
