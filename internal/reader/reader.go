// Package reader loads photon event tables into the in-memory event model.
//
// Supported inputs are FITS event lists (the native instrument format),
// Arrow IPC files and CSV files. FITS inputs follow the instrument pair
// convention: an observed-only event list whose name carries the EVLI
// indicator is paired with a companion EVLF list holding the observed events
// plus the simulated ones; the reader unions the pair and derives a
// per-event simulated flag. Arrow and CSV inputs must carry the flag as an
// ISSIMULATED column.
package reader

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xastro/xtd/internal/events"
)

// SimulatedColumn is the name of the boolean column marking injected events.
const SimulatedColumn = "ISSIMULATED"

// table is the raw columnar form shared by all input formats. Boolean
// columns are coerced to 0/1.
type table struct {
	columns []string
	rows    [][]float64
}

func (t *table) colIndex(name string) int {
	for i, c := range t.columns {
		if c == name {
			return i
		}
	}
	return -1
}

func (t *table) hasColumn(name string) bool { return t.colIndex(name) >= 0 }

// Load reads the event table at path and returns an event set whose feature
// columns are keys, in order. Filters are inclusive [low, high] ranges on
// named columns, applied before column selection; filter columns need not
// appear in keys.
func Load(path string, keys []string, filters map[string][2]float64) (*events.Set, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("reader: no feature columns requested")
	}

	keysPlus := append([]string(nil), keys...)
	for col := range filters {
		if !contains(keysPlus, col) {
			keysPlus = append(keysPlus, col)
		}
	}

	tbl, err := loadWithFlag(path, keysPlus)
	if err != nil {
		return nil, err
	}

	tbl, err = applyFilters(tbl, filters)
	if err != nil {
		return nil, err
	}

	return buildSet(tbl, keys)
}

// loadWithFlag returns a table holding cols plus the ISSIMULATED column,
// deriving the flag from the FITS pair convention when the file does not
// carry it directly.
func loadWithFlag(path string, cols []string) (*table, error) {
	format, err := formatOf(path)
	if err != nil {
		return nil, err
	}

	if format != formatFITS {
		tbl, err := readTable(path, format, cols)
		if err != nil {
			return nil, err
		}
		if !tbl.hasColumn(SimulatedColumn) {
			return nil, fmt.Errorf("reader: %s has no %s column", path, SimulatedColumn)
		}
		return tbl, nil
	}

	observed, companion, err := pairPaths(path)
	if err != nil {
		return nil, err
	}

	// The companion list may already carry the flag from an earlier
	// preprocessing pass; trust it when present.
	compTbl, err := readTable(companion, formatFITS, cols)
	if err != nil {
		return nil, fmt.Errorf("reader: companion %s: %w", companion, err)
	}
	if compTbl.hasColumn(SimulatedColumn) {
		return compTbl, nil
	}

	obsTbl, err := readTable(observed, formatFITS, cols)
	if err != nil {
		return nil, fmt.Errorf("reader: observed %s: %w", observed, err)
	}

	return mergePair(obsTbl, compTbl)
}

// pairPaths resolves the observed (EVLI) and companion (EVLF) file paths
// from either member of an instrument pair.
func pairPaths(path string) (observed, companion string, err error) {
	base := filepath.Base(path)
	switch {
	case strings.Contains(base, "EVLI"):
		return path, filepath.Join(filepath.Dir(path), strings.Replace(base, "EVLI", "EVLF", 1)), nil
	case strings.Contains(base, "EVLF"):
		return filepath.Join(filepath.Dir(path), strings.Replace(base, "EVLF", "EVLI", 1)), path, nil
	default:
		return "", "", fmt.Errorf("reader: file name %q carries neither the EVLI nor the EVLF indicator", base)
	}
}

// mergePair unions an observed event list with its companion and labels each
// row. Stacking both tables, a row occurring exactly once must come from the
// simulated population: every genuine observed event appears in both lists.
// The merged table holds the simulated rows first, then every observed row
// flagged false.
func mergePair(observed, companion *table) (*table, error) {
	if len(observed.columns) != len(companion.columns) {
		return nil, fmt.Errorf("reader: observed table has %d columns, companion %d", len(observed.columns), len(companion.columns))
	}
	for i, c := range observed.columns {
		if companion.columns[i] != c {
			return nil, fmt.Errorf("reader: column %d differs between pair members: %q vs %q", i, c, companion.columns[i])
		}
	}

	counts := make(map[string]int, len(observed.rows)+len(companion.rows))
	for _, row := range observed.rows {
		counts[rowKey(row)]++
	}
	for _, row := range companion.rows {
		counts[rowKey(row)]++
	}

	out := &table{columns: append(append([]string(nil), observed.columns...), SimulatedColumn)}
	appendFlagged := func(row []float64, simulated bool) {
		flag := 0.0
		if simulated {
			flag = 1.0
		}
		out.rows = append(out.rows, append(append([]float64(nil), row...), flag))
	}

	for _, src := range []*table{observed, companion} {
		for _, row := range src.rows {
			if counts[rowKey(row)] == 1 {
				appendFlagged(row, true)
			}
		}
	}
	for _, row := range observed.rows {
		appendFlagged(row, false)
	}
	return out, nil
}

func rowKey(row []float64) string {
	var b strings.Builder
	for i, v := range row {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return b.String()
}

// applyFilters keeps only the rows whose named columns fall inside the
// inclusive [low, high] ranges.
func applyFilters(tbl *table, filters map[string][2]float64) (*table, error) {
	if len(filters) == 0 {
		return tbl, nil
	}
	type rangeFilter struct {
		idx       int
		low, high float64
	}
	var fs []rangeFilter
	for col, bounds := range filters {
		idx := tbl.colIndex(col)
		if idx < 0 {
			return nil, fmt.Errorf("reader: filter column %q not present in table", col)
		}
		fs = append(fs, rangeFilter{idx: idx, low: bounds[0], high: bounds[1]})
	}

	out := &table{columns: tbl.columns}
	for _, row := range tbl.rows {
		keep := true
		for _, f := range fs {
			if row[f.idx] < f.low || row[f.idx] > f.high {
				keep = false
				break
			}
		}
		if keep {
			out.rows = append(out.rows, row)
		}
	}
	return out, nil
}

// buildSet projects the table onto the requested feature columns plus the
// simulated flag.
func buildSet(tbl *table, keys []string) (*events.Set, error) {
	idx := make([]int, len(keys))
	for i, k := range keys {
		idx[i] = tbl.colIndex(k)
		if idx[i] < 0 {
			return nil, fmt.Errorf("reader: requested column %q not present in table", k)
		}
	}
	simIdx := tbl.colIndex(SimulatedColumn)
	if simIdx < 0 {
		return nil, fmt.Errorf("reader: table has no %s column", SimulatedColumn)
	}

	set := events.New(keys)
	features := make([]float64, len(keys))
	for _, row := range tbl.rows {
		for i, j := range idx {
			features[i] = row[j]
		}
		if err := set.Add(features, row[simIdx] != 0); err != nil {
			return nil, err
		}
	}
	return set, nil
}

type tableFormat int

const (
	formatFITS tableFormat = iota
	formatArrow
	formatCSV
)

func formatOf(path string) (tableFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".fits", ".fit", ".ftz", ".fz":
		return formatFITS, nil
	case ".arrow", ".feather", ".ipc":
		return formatArrow, nil
	case ".csv":
		return formatCSV, nil
	default:
		return 0, fmt.Errorf("reader: unrecognized event table format %q", filepath.Ext(path))
	}
}

// readTable reads cols from path, adding the ISSIMULATED column when the
// file carries one.
func readTable(path string, format tableFormat, cols []string) (*table, error) {
	switch format {
	case formatFITS:
		return readFITS(path, cols)
	case formatArrow:
		return readArrow(path, cols)
	case formatCSV:
		return readCSV(path, cols)
	default:
		return nil, fmt.Errorf("reader: unknown format %d", format)
	}
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

// toFloat64 coerces the numeric and boolean cell types produced by the
// file readers.
func toFloat64(v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("reader: unsupported cell type %T", v)
	}
}
