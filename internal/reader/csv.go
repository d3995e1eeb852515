package reader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// readCSV reads the named columns from a CSV file with a header row. The
// ISSIMULATED column, when present, accepts true/false and 1/0 spellings.
func readCSV(path string, cols []string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: reading header: %w", path, err)
	}

	headerIdx := make(map[string]int, len(header))
	for i, name := range header {
		headerIdx[strings.TrimSpace(name)] = i
	}

	want := append([]string(nil), cols...)
	if _, ok := headerIdx[SimulatedColumn]; ok && !contains(want, SimulatedColumn) {
		want = append(want, SimulatedColumn)
	}
	fieldIdx := make([]int, len(want))
	for i, c := range want {
		idx, ok := headerIdx[c]
		if !ok {
			return nil, fmt.Errorf("%s: header has no column %q", path, c)
		}
		fieldIdx[i] = idx
	}

	out := &table{columns: want}
	for line := 2; ; line++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: line %d: %w", path, line, err)
		}
		row := make([]float64, len(want))
		for i, idx := range fieldIdx {
			if idx >= len(record) {
				return nil, fmt.Errorf("%s: line %d: missing field %q", path, line, want[i])
			}
			v, err := parseCell(record[idx])
			if err != nil {
				return nil, fmt.Errorf("%s: line %d, column %q: %w", path, line, want[i], err)
			}
			row[i] = v
		}
		out.rows = append(out.rows, row)
	}
	return out, nil
}

func parseCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "true", "t":
		return 1, nil
	case "false", "f":
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
