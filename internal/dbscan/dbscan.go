// Package dbscan implements density-based spatial clustering for the
// surviving event population. Clusters are maximal sets of points mutually
// reachable through chains of neighbors within radius eps, where every core
// point has at least minPts neighbors; unreachable points are noise.
package dbscan

import "github.com/xastro/xtd/internal/vecmath"

// Noise is the label assigned to points that belong to no cluster.
const Noise = -1

const unclassified = 0

// Cluster labels each point with its cluster id. Labels are non-negative
// integers with no meaningful order; Noise (-1) marks unclustered points.
// An empty input yields an empty, non-nil label slice.
//
// A point counts as its own neighbor for the minPts core test, matching the
// common reference formulation.
func Cluster(points [][]float64, eps float64, minPts int) []int {
	n := len(points)
	labels := make([]int, n)
	if n == 0 {
		return labels
	}

	clusterID := 0
	for i := 0; i < n; i++ {
		if labels[i] != unclassified {
			continue
		}

		neighbors := regionQuery(points, i, eps)
		if len(neighbors) < minPts {
			labels[i] = Noise
			continue
		}

		clusterID++
		labels[i] = clusterID

		// Seed set: neighbors minus the point itself, expanded breadth-first.
		seed := make([]int, 0, len(neighbors))
		for _, j := range neighbors {
			if j != i {
				seed = append(seed, j)
			}
		}

		for len(seed) > 0 {
			q := seed[0]
			seed = seed[1:]

			if labels[q] == Noise {
				// Border point: reachable from a core point but not core
				// itself.
				labels[q] = clusterID
			}
			if labels[q] != unclassified {
				continue
			}
			labels[q] = clusterID

			qNeighbors := regionQuery(points, q, eps)
			if len(qNeighbors) >= minPts {
				seed = append(seed, qNeighbors...)
			}
		}
	}

	// Shift cluster ids to start at 0, leaving Noise untouched.
	for i, l := range labels {
		if l > 0 {
			labels[i] = l - 1
		}
	}
	return labels
}

// NumClusters returns the number of distinct non-noise labels.
func NumClusters(labels []int) int {
	max := -1
	for _, l := range labels {
		if l > max {
			max = l
		}
	}
	return max + 1
}

// regionQuery returns the indices of all points within eps of points[idx],
// including idx itself.
func regionQuery(points [][]float64, idx int, eps float64) []int {
	var result []int
	q := points[idx]
	for i, p := range points {
		if vecmath.Euclidean(q, p) <= eps {
			result = append(result, i)
		}
	}
	return result
}
