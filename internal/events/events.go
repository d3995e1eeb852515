// Package events defines the in-memory event-table model shared by the
// reader, the detection pipeline, and the presentation layer.
//
// An event set is an ordered sequence of photon events. Each event carries a
// feature vector of named numeric attributes (for example energy channel,
// arrival time and two sky coordinates) plus a ground-truth flag marking
// events injected by simulation. The flag exists only for evaluation and
// plotting; the detection algorithm never reads it.
package events

import "fmt"

// PosDims is the number of trailing feature columns interpreted as the
// spatial position of an event (typically TIME, X, Y).
const PosDims = 3

// Set is an ordered collection of events with a shared column layout.
// Features are stored row-major: X[i] is the feature vector of event i.
type Set struct {
	// Columns names the feature attributes, in feature-vector order.
	Columns []string

	// X holds one feature row per event; every row has len(Columns) entries.
	X [][]float64

	// Simulated marks events injected by simulation. Parallel to X.
	Simulated []bool
}

// New returns an empty Set with the given column layout.
func New(columns []string) *Set {
	return &Set{Columns: append([]string(nil), columns...)}
}

// Len returns the number of events.
func (s *Set) Len() int { return len(s.X) }

// Dim returns the feature dimensionality.
func (s *Set) Dim() int { return len(s.Columns) }

// Add appends a single event. The feature vector is copied.
func (s *Set) Add(features []float64, simulated bool) error {
	if len(features) != s.Dim() {
		return fmt.Errorf("events: feature vector has %d entries, set has %d columns", len(features), s.Dim())
	}
	s.X = append(s.X, append([]float64(nil), features...))
	s.Simulated = append(s.Simulated, simulated)
	return nil
}

// Validate checks the structural invariants: every feature row matches the
// column count, and the simulated flags are parallel to the rows.
func (s *Set) Validate() error {
	if len(s.X) != len(s.Simulated) {
		return fmt.Errorf("events: %d feature rows but %d simulated flags", len(s.X), len(s.Simulated))
	}
	for i, row := range s.X {
		if len(row) != s.Dim() {
			return fmt.Errorf("events: row %d has %d entries, set has %d columns", i, len(row), s.Dim())
		}
	}
	return nil
}

// Append returns a new Set holding the events of s followed by the events of
// other. Both inputs are left unmodified. The column layouts must match.
func (s *Set) Append(other *Set) (*Set, error) {
	if s.Dim() != other.Dim() {
		return nil, fmt.Errorf("events: cannot append %d-column set to %d-column set", other.Dim(), s.Dim())
	}
	for i, c := range s.Columns {
		if other.Columns[i] != c {
			return nil, fmt.Errorf("events: column %d differs: %q vs %q", i, c, other.Columns[i])
		}
	}
	out := New(s.Columns)
	out.X = make([][]float64, 0, s.Len()+other.Len())
	out.Simulated = make([]bool, 0, s.Len()+other.Len())
	for _, src := range []*Set{s, other} {
		for i, row := range src.X {
			out.X = append(out.X, append([]float64(nil), row...))
			out.Simulated = append(out.Simulated, src.Simulated[i])
		}
	}
	return out, nil
}

// Pos returns a copy of the spatial position of event i: the last PosDims
// entries of its feature vector.
func (s *Set) Pos(i int) ([]float64, error) {
	if s.Dim() < PosDims {
		return nil, fmt.Errorf("events: set has %d columns, need at least %d for a position", s.Dim(), PosDims)
	}
	row := s.X[i]
	return append([]float64(nil), row[len(row)-PosDims:]...), nil
}

// Positions returns a copy of the spatial positions of all events, one
// PosDims-length row per event.
func (s *Set) Positions() ([][]float64, error) {
	if s.Dim() < PosDims {
		return nil, fmt.Errorf("events: set has %d columns, need at least %d for a position", s.Dim(), PosDims)
	}
	out := make([][]float64, s.Len())
	for i, row := range s.X {
		out[i] = append([]float64(nil), row[len(row)-PosDims:]...)
	}
	return out, nil
}

// PosColumns returns the names of the position columns.
func (s *Set) PosColumns() ([]string, error) {
	if s.Dim() < PosDims {
		return nil, fmt.Errorf("events: set has %d columns, need at least %d for a position", s.Dim(), PosDims)
	}
	return append([]string(nil), s.Columns[s.Dim()-PosDims:]...), nil
}

// Select returns a new Set containing only the events whose mask entry is
// true. The mask must be parallel to the events.
func (s *Set) Select(mask []bool) (*Set, error) {
	if len(mask) != s.Len() {
		return nil, fmt.Errorf("events: mask has %d entries for %d events", len(mask), s.Len())
	}
	out := New(s.Columns)
	for i, keep := range mask {
		if !keep {
			continue
		}
		out.X = append(out.X, append([]float64(nil), s.X[i]...))
		out.Simulated = append(out.Simulated, s.Simulated[i])
	}
	return out, nil
}

// Take returns a new Set containing the events at the given indices, in
// order. Indices must be in range.
func (s *Set) Take(indices []int) (*Set, error) {
	out := New(s.Columns)
	for _, i := range indices {
		if i < 0 || i >= s.Len() {
			return nil, fmt.Errorf("events: index %d out of range for %d events", i, s.Len())
		}
		out.X = append(out.X, append([]float64(nil), s.X[i]...))
		out.Simulated = append(out.Simulated, s.Simulated[i])
	}
	return out, nil
}

// Column returns a copy of the named feature column.
func (s *Set) Column(name string) ([]float64, error) {
	idx := -1
	for i, c := range s.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("events: no column named %q", name)
	}
	out := make([]float64, s.Len())
	for i, row := range s.X {
		out[i] = row[idx]
	}
	return out, nil
}
