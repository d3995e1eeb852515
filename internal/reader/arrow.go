package reader

import (
	"fmt"
	"os"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

// readArrow reads the named columns from an Arrow IPC file. Arrow tables
// are the interchange format for preprocessed event lists and are expected
// to carry the ISSIMULATED column directly.
func readArrow(path string, cols []string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	rdr, err := ipc.NewFileReader(f, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, fmt.Errorf("reading Arrow IPC %s: %w", path, err)
	}
	defer rdr.Close()

	schema := rdr.Schema()
	want := append([]string(nil), cols...)
	if len(schema.FieldIndices(SimulatedColumn)) > 0 && !contains(want, SimulatedColumn) {
		want = append(want, SimulatedColumn)
	}

	fieldIdx := make([]int, len(want))
	for i, c := range want {
		idxs := schema.FieldIndices(c)
		if len(idxs) == 0 {
			return nil, fmt.Errorf("%s: schema has no column %q", path, c)
		}
		fieldIdx[i] = idxs[0]
	}

	out := &table{columns: want}
	for r := 0; r < rdr.NumRecords(); r++ {
		rec, err := rdr.Record(r)
		if err != nil {
			return nil, fmt.Errorf("%s: reading record batch %d: %w", path, r, err)
		}
		nrows := int(rec.NumRows())
		colArrays := make([]arrow.Array, len(want))
		for i, idx := range fieldIdx {
			colArrays[i] = rec.Column(idx)
		}
		for row := 0; row < nrows; row++ {
			vals := make([]float64, len(want))
			for i, arr := range colArrays {
				v, err := arrowValue(arr, row)
				if err != nil {
					return nil, fmt.Errorf("%s: column %q row %d: %w", path, want[i], row, err)
				}
				vals[i] = v
			}
			out.rows = append(out.rows, vals)
		}
	}
	return out, nil
}

// arrowValue extracts cell (arr, row) as float64, coercing the numeric and
// boolean array types an event table may use.
func arrowValue(arr arrow.Array, row int) (float64, error) {
	if arr.IsNull(row) {
		return 0, fmt.Errorf("null cell")
	}
	switch a := arr.(type) {
	case *array.Float64:
		return a.Value(row), nil
	case *array.Float32:
		return float64(a.Value(row)), nil
	case *array.Int64:
		return float64(a.Value(row)), nil
	case *array.Int32:
		return float64(a.Value(row)), nil
	case *array.Int16:
		return float64(a.Value(row)), nil
	case *array.Int8:
		return float64(a.Value(row)), nil
	case *array.Uint64:
		return float64(a.Value(row)), nil
	case *array.Uint32:
		return float64(a.Value(row)), nil
	case *array.Uint16:
		return float64(a.Value(row)), nil
	case *array.Uint8:
		return float64(a.Value(row)), nil
	case *array.Boolean:
		if a.Value(row) {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("unsupported Arrow array type %T", arr)
	}
}
