// Package knngraph builds symmetric k-nearest-neighbor graphs over point
// clouds. The graph is the spatial scaffold the diffusion stage propagates
// scores along: each event is linked to its k closest events, and every edge
// is forced undirected so that score can flow both ways.
package knngraph

import (
	"fmt"
	"sort"

	"github.com/xastro/xtd/internal/vecmath"
)

// Graph is an undirected neighbor graph in edge-list form. Src, Dst and Dist
// are parallel: edge e carries score from node Src[e] to node Dst[e] over
// Euclidean distance Dist[e]. Both directions of every undirected edge are
// present, so propagation can treat the list as directed.
type Graph struct {
	// N is the number of nodes.
	N int

	// Src and Dst are the per-edge endpoint indices.
	Src []int
	Dst []int

	// Dist is the per-edge Euclidean distance in feature space.
	Dist []float64
}

// NumEdges returns the number of directed edges in the list.
func (g *Graph) NumEdges() int { return len(g.Src) }

// MedianDistance returns the median per-edge distance, the spatial scale the
// clustering radius is derived from. Returns 0 for a graph with no edges.
func (g *Graph) MedianDistance() float64 {
	return vecmath.Median(g.Dist)
}

// Build constructs the symmetric k-nearest-neighbor graph over points using
// exact brute-force search. Every point gains an edge to each of its k
// closest points (ties broken by lower index), and the edge set is then
// symmetrized and deduplicated. When fewer than k other points exist, all of
// them become neighbors.
//
// All rows of points must share the same dimensionality. The result is
// deterministic: edges are emitted in ascending (Src, Dst) order.
func Build(points [][]float64, k int) (*Graph, error) {
	n := len(points)
	if k <= 0 {
		return nil, fmt.Errorf("knngraph: k must be positive, got %d", k)
	}
	if n == 0 {
		return &Graph{N: 0}, nil
	}
	dim := len(points[0])
	for i, p := range points {
		if len(p) != dim {
			return nil, fmt.Errorf("knngraph: point %d has %d coordinates, point 0 has %d", i, len(p), dim)
		}
	}
	if k > n-1 {
		k = n - 1
	}

	// adj[i] holds the undirected neighbor set of node i with distances.
	adj := make([]map[int]float64, n)
	for i := range adj {
		adj[i] = make(map[int]float64, k)
	}

	type cand struct {
		idx int
		d2  float64
	}
	cands := make([]cand, 0, n-1)

	for i := 0; i < n; i++ {
		cands = cands[:0]
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			cands = append(cands, cand{idx: j, d2: vecmath.SquaredEuclidean(points[i], points[j])})
		}
		sort.Slice(cands, func(a, b int) bool {
			if cands[a].d2 != cands[b].d2 {
				return cands[a].d2 < cands[b].d2
			}
			return cands[a].idx < cands[b].idx
		})
		for _, c := range cands[:k] {
			d := vecmath.Euclidean(points[i], points[c.idx])
			adj[i][c.idx] = d
			adj[c.idx][i] = d
		}
	}

	g := &Graph{N: n}
	for i := 0; i < n; i++ {
		neighbors := make([]int, 0, len(adj[i]))
		for j := range adj[i] {
			neighbors = append(neighbors, j)
		}
		sort.Ints(neighbors)
		for _, j := range neighbors {
			g.Src = append(g.Src, i)
			g.Dst = append(g.Dst, j)
			g.Dist = append(g.Dist, adj[i][j])
		}
	}
	return g, nil
}
