package events

import "testing"

func testSet(t *testing.T) *Set {
	t.Helper()
	s := New([]string{"PI", "TIME", "X", "Y"})
	rows := [][]float64{
		{100, 0.0, 1.0, 2.0},
		{200, 1.0, 3.0, 4.0},
		{300, 2.0, 5.0, 6.0},
	}
	sim := []bool{false, true, false}
	for i, row := range rows {
		if err := s.Add(row, sim[i]); err != nil {
			t.Fatalf("Add(%v) failed: %v", row, err)
		}
	}
	return s
}

func TestAddRejectsWrongDimension(t *testing.T) {
	s := New([]string{"PI", "TIME", "X", "Y"})
	if err := s.Add([]float64{1, 2, 3}, false); err == nil {
		t.Fatal("Add() with 3 entries on a 4-column set should fail")
	}
}

func TestValidate(t *testing.T) {
	s := testSet(t)
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate() on well-formed set: %v", err)
	}

	s.X[1] = []float64{1, 2}
	if err := s.Validate(); err == nil {
		t.Error("Validate() should reject a short feature row")
	}

	s = testSet(t)
	s.Simulated = s.Simulated[:2]
	if err := s.Validate(); err == nil {
		t.Error("Validate() should reject mismatched simulated flags")
	}
}

func TestPosIsLastThreeColumns(t *testing.T) {
	s := testSet(t)
	pos, err := s.Pos(1)
	if err != nil {
		t.Fatalf("Pos(1) failed: %v", err)
	}
	want := []float64{1.0, 3.0, 4.0}
	for i := range want {
		if pos[i] != want[i] {
			t.Errorf("Pos(1) = %v, want %v", pos, want)
			break
		}
	}

	cols, err := s.PosColumns()
	if err != nil {
		t.Fatalf("PosColumns() failed: %v", err)
	}
	if cols[0] != "TIME" || cols[1] != "X" || cols[2] != "Y" {
		t.Errorf("PosColumns() = %v, want [TIME X Y]", cols)
	}
}

func TestPositions(t *testing.T) {
	s := testSet(t)
	positions, err := s.Positions()
	if err != nil {
		t.Fatalf("Positions() failed: %v", err)
	}
	if len(positions) != s.Len() {
		t.Fatalf("Positions() returned %d rows for %d events", len(positions), s.Len())
	}
	want := []float64{2.0, 5.0, 6.0}
	for i := range want {
		if positions[2][i] != want[i] {
			t.Errorf("Positions()[2] = %v, want %v", positions[2], want)
			break
		}
	}

	positions[0][0] = -999
	if s.X[0][1] == -999 {
		t.Error("Positions() must not alias the backing feature rows")
	}
}

func TestPosRequiresEnoughColumns(t *testing.T) {
	s := New([]string{"A", "B"})
	if err := s.Add([]float64{1, 2}, false); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Pos(0); err == nil {
		t.Error("Pos() on a 2-column set should fail")
	}
}

func TestPosReturnsCopy(t *testing.T) {
	s := testSet(t)
	pos, _ := s.Pos(0)
	pos[0] = -999
	if s.X[0][1] == -999 {
		t.Error("Pos() must not alias the backing feature row")
	}
}

func TestAppend(t *testing.T) {
	a := testSet(t)
	b := testSet(t)
	out, err := a.Append(b)
	if err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if out.Len() != 6 {
		t.Errorf("appended set has %d events, want 6", out.Len())
	}
	if a.Len() != 3 || b.Len() != 3 {
		t.Error("Append() must not modify its inputs")
	}

	c := New([]string{"PI", "TIME"})
	if _, err := a.Append(c); err == nil {
		t.Error("Append() with mismatched columns should fail")
	}
}

func TestSelect(t *testing.T) {
	s := testSet(t)
	out, err := s.Select([]bool{true, false, true})
	if err != nil {
		t.Fatalf("Select() failed: %v", err)
	}
	if out.Len() != 2 {
		t.Fatalf("selected set has %d events, want 2", out.Len())
	}
	if out.X[1][0] != 300 {
		t.Errorf("second selected event PI = %v, want 300", out.X[1][0])
	}

	if _, err := s.Select([]bool{true}); err == nil {
		t.Error("Select() with short mask should fail")
	}
}

func TestTake(t *testing.T) {
	s := testSet(t)
	out, err := s.Take([]int{2, 0})
	if err != nil {
		t.Fatalf("Take() failed: %v", err)
	}
	if out.Len() != 2 || out.X[0][0] != 300 || out.X[1][0] != 100 {
		t.Errorf("Take([2 0]) returned wrong rows: %v", out.X)
	}

	if _, err := s.Take([]int{5}); err == nil {
		t.Error("Take() with out-of-range index should fail")
	}
}

func TestColumn(t *testing.T) {
	s := testSet(t)
	pi, err := s.Column("PI")
	if err != nil {
		t.Fatalf("Column(PI) failed: %v", err)
	}
	if len(pi) != 3 || pi[0] != 100 || pi[2] != 300 {
		t.Errorf("Column(PI) = %v", pi)
	}
	if _, err := s.Column("NOPE"); err == nil {
		t.Error("Column() with unknown name should fail")
	}
}
