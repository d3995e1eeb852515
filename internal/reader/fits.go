package reader

import (
	"fmt"
	"os"

	"github.com/astrogo/fitsio"
)

// readFITS reads the named columns from the first binary-table extension of
// a FITS event list. FITS parsing itself is delegated entirely to the
// fitsio library; this function only locates the event table and coerces
// cells to float64.
func readFITS(path string, cols []string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	fits, err := fitsio.Open(f)
	if err != nil {
		return nil, fmt.Errorf("reading FITS %s: %w", path, err)
	}
	defer fits.Close()

	tbl, err := findEventTable(fits)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	names := make(map[string]bool, tbl.NumCols())
	for i := 0; i < tbl.NumCols(); i++ {
		names[tbl.Col(i).Name] = true
	}
	want := append([]string(nil), cols...)
	for _, c := range want {
		if !names[c] {
			return nil, fmt.Errorf("%s: event table has no column %q", path, c)
		}
	}
	if names[SimulatedColumn] && !contains(want, SimulatedColumn) {
		want = append(want, SimulatedColumn)
	}

	out := &table{columns: want}

	rows, err := tbl.Read(0, tbl.NumRows())
	if err != nil {
		return nil, fmt.Errorf("%s: reading rows: %w", path, err)
	}
	defer rows.Close()

	for rows.Next() {
		cells := make(map[string]interface{}, len(want))
		for _, c := range want {
			cells[c] = nil
		}
		if err := rows.Scan(&cells); err != nil {
			return nil, fmt.Errorf("%s: scanning row %d: %w", path, len(out.rows), err)
		}
		row := make([]float64, len(want))
		for i, c := range want {
			v, err := toFloat64(cells[c])
			if err != nil {
				return nil, fmt.Errorf("%s: column %q: %w", path, c, err)
			}
			row[i] = v
		}
		out.rows = append(out.rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterating rows: %w", path, err)
	}
	return out, nil
}

// findEventTable returns the first binary-table HDU, preferring one named
// EVENTS.
func findEventTable(f *fitsio.File) (*fitsio.Table, error) {
	var first *fitsio.Table
	for _, hdu := range f.HDUs() {
		tbl, ok := hdu.(*fitsio.Table)
		if !ok {
			continue
		}
		if tbl.Name() == "EVENTS" {
			return tbl, nil
		}
		if first == nil {
			first = tbl
		}
	}
	if first == nil {
		return nil, fmt.Errorf("no binary table extension found")
	}
	return first, nil
}
