package diffusion

import (
	"math"
	"testing"
)

// chain returns the directed edge list of the symmetric path graph
// 0 - 1 - 2 - ... - (n-1).
func chain(n int) (src, dst []int) {
	for i := 0; i < n-1; i++ {
		src = append(src, i, i+1)
		dst = append(dst, i+1, i)
	}
	return src, dst
}

func TestPropagateEmptyEdgeSet(t *testing.T) {
	scores := []float64{1, 2, 3}
	out, err := Propagate(scores, nil, nil, nil)
	if err != nil {
		t.Fatalf("Propagate() failed: %v", err)
	}
	for i, v := range out {
		if v != 0 {
			t.Errorf("out[%d] = %v, want 0 with no edges", i, v)
		}
	}
}

func TestPropagateSums(t *testing.T) {
	// 0 -> 2, 1 -> 2, 2 -> 0
	src := []int{0, 1, 2}
	dst := []int{2, 2, 0}
	scores := []float64{1, 10, 100}

	out, err := Propagate(scores, src, dst, nil)
	if err != nil {
		t.Fatalf("Propagate() failed: %v", err)
	}
	want := []float64{100, 0, 11}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestPropagateWeighted(t *testing.T) {
	src := []int{0, 1}
	dst := []int{1, 0}
	weights := []float64{0.5, 2}
	scores := []float64{4, 6}

	out, err := Propagate(scores, src, dst, weights)
	if err != nil {
		t.Fatalf("Propagate() failed: %v", err)
	}
	if out[0] != 12 || out[1] != 2 {
		t.Errorf("weighted propagate = %v, want [12 2]", out)
	}
}

func TestPropagateDoesNotMutateInput(t *testing.T) {
	src, dst := chain(3)
	scores := []float64{1, 2, 3}
	if _, err := Propagate(scores, src, dst, nil); err != nil {
		t.Fatal(err)
	}
	if scores[0] != 1 || scores[1] != 2 || scores[2] != 3 {
		t.Errorf("Propagate() mutated its input: %v", scores)
	}
}

func TestPropagateLinearity(t *testing.T) {
	src, dst := chain(5)
	x := []float64{1, 0, 2, 0, 3}
	y := []float64{0.5, 1.5, 0, 2.5, 1}
	a, b := 3.0, -2.0

	combined := make([]float64, len(x))
	for i := range x {
		combined[i] = a*x[i] + b*y[i]
	}

	px, err := Propagate(x, src, dst, nil)
	if err != nil {
		t.Fatal(err)
	}
	py, err := Propagate(y, src, dst, nil)
	if err != nil {
		t.Fatal(err)
	}
	pc, err := Propagate(combined, src, dst, nil)
	if err != nil {
		t.Fatal(err)
	}

	for i := range pc {
		want := a*px[i] + b*py[i]
		if math.Abs(pc[i]-want) > 1e-12 {
			t.Errorf("linearity violated at node %d: %v vs %v", i, pc[i], want)
		}
	}
}

func TestPropagatePreconditions(t *testing.T) {
	scores := []float64{1, 2}

	tests := []struct {
		name    string
		src     []int
		dst     []int
		weights []float64
	}{
		{name: "mismatched src dst", src: []int{0}, dst: []int{0, 1}},
		{name: "mismatched weights", src: []int{0}, dst: []int{1}, weights: []float64{1, 2}},
		{name: "source out of range", src: []int{2}, dst: []int{0}},
		{name: "negative source", src: []int{-1}, dst: []int{0}},
		{name: "target out of range", src: []int{0}, dst: []int{5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Propagate(scores, tt.src, tt.dst, tt.weights); err == nil {
				t.Error("Propagate() should have failed")
			}
			if _, err := PropagateCSR(scores, tt.src, tt.dst, tt.weights); err == nil {
				t.Error("PropagateCSR() should have failed")
			}
		})
	}
}

func TestDenseAndSparsePathsAgree(t *testing.T) {
	// Irregular graph with parallel edges and a node with no incoming edges.
	src := []int{0, 0, 1, 3, 3, 4, 2, 2}
	dst := []int{1, 2, 0, 1, 4, 3, 4, 4}
	weights := []float64{1, 0.5, 2, 1, 1.5, 0.25, 3, 1}
	scores := []float64{0.1, 1.2, 2.3, 3.4, 4.5}

	dense, err := Propagate(scores, src, dst, weights)
	if err != nil {
		t.Fatalf("Propagate() failed: %v", err)
	}
	sparse, err := PropagateCSR(scores, src, dst, weights)
	if err != nil {
		t.Fatalf("PropagateCSR() failed: %v", err)
	}

	for i := range dense {
		if math.Abs(dense[i]-sparse[i]) > 1e-12 {
			t.Errorf("paths disagree at node %d: dense %v, sparse %v", i, dense[i], sparse[i])
		}
	}

	// Also without weights.
	dense, err = Propagate(scores, src, dst, nil)
	if err != nil {
		t.Fatal(err)
	}
	sparse, err = PropagateCSR(scores, src, dst, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := range dense {
		if math.Abs(dense[i]-sparse[i]) > 1e-12 {
			t.Errorf("unweighted paths disagree at node %d: dense %v, sparse %v", i, dense[i], sparse[i])
		}
	}
}
