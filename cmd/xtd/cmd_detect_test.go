package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeTestCSV writes a small event table: two dense chains plus scattered
// background, with the flag columns the default configuration expects.
func writeTestCSV(t *testing.T, dir string) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("PI,TIME,X,Y,FLAG,ISSIMULATED\n")
	for i := 0; i < 6; i++ {
		fmt.Fprintf(&b, "100,%d,0,0,0,false\n", i)
	}
	for i := 0; i < 6; i++ {
		fmt.Fprintf(&b, "100,%d,50,50,0,true\n", i)
	}
	b.WriteString("500,200,-300,400,0,false\n")
	b.WriteString("520,230,-300,400,0,false\n")
	// A row outside the FLAG filter range, dropped while loading.
	b.WriteString("480,200,-270,430,12,false\n")

	path := filepath.Join(dir, "events.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func detectArgs(root, input string, extra ...string) []string {
	args := []string{"detect", input, "--root", root,
		"--k", "3", "--layers", "3", "--quantile", "0.5", "--min-points", "3"}
	return append(args, extra...)
}

func TestDetectEndToEnd(t *testing.T) {
	root := t.TempDir()
	input := writeTestCSV(t, root)

	out, err := runCommand(t, newDetectCmd(), detectArgs(root, input)...)
	if err != nil {
		t.Fatalf("detect failed: %v\noutput: %s", err, out)
	}

	for _, want := range []string{"Events:", "Survivors:", "Clusters:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	// The out-of-range FLAG row must not be loaded.
	if !strings.Contains(out, "Events:    14") {
		t.Errorf("expected 14 loaded events:\n%s", out)
	}
}

func TestDetectJSONOutput(t *testing.T) {
	root := t.TempDir()
	input := writeTestCSV(t, root)

	out, err := runCommand(t, newDetectCmd(), detectArgs(root, input, "--json")...)
	if err != nil {
		t.Fatalf("detect --json failed: %v\noutput: %s", err, out)
	}

	var doc struct {
		Events    int   `json:"events"`
		Survivors int   `json:"survivors"`
		Clusters  int   `json:"clusters"`
		RunID     int64 `json:"run_id"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if doc.Events != 14 {
		t.Errorf("events = %d, want 14", doc.Events)
	}
	if doc.Survivors == 0 {
		t.Error("no survivors reported")
	}
	if doc.RunID == 0 {
		t.Error("run not recorded in the catalog")
	}
}

func TestDetectRecordsRun(t *testing.T) {
	root := t.TempDir()
	input := writeTestCSV(t, root)

	if out, err := runCommand(t, newDetectCmd(), detectArgs(root, input)...); err != nil {
		t.Fatalf("detect failed: %v\noutput: %s", err, out)
	}

	out, err := runCommand(t, newRunsCmd(), "runs", "--root", root)
	if err != nil {
		t.Fatalf("runs failed: %v", err)
	}
	if !strings.Contains(out, "events.csv") {
		t.Errorf("recorded run not listed:\n%s", out)
	}
}

func TestDetectWritesPlot(t *testing.T) {
	root := t.TempDir()
	input := writeTestCSV(t, root)
	plotPath := filepath.Join(root, "run.html")

	out, err := runCommand(t, newDetectCmd(), detectArgs(root, input, "--output", plotPath)...)
	if err != nil {
		t.Fatalf("detect failed: %v\noutput: %s", err, out)
	}

	data, err := os.ReadFile(plotPath)
	if err != nil {
		t.Fatalf("plot file not written: %v", err)
	}
	if !strings.Contains(string(data), "scatter3d") {
		t.Error("plot file is not a scatter page")
	}
}

func TestDetectMissingFile(t *testing.T) {
	root := t.TempDir()
	if _, err := runCommand(t, newDetectCmd(), detectArgs(root, filepath.Join(root, "absent.csv"))...); err == nil {
		t.Error("detect should fail for a missing input file")
	}
}

func TestRunsShowCommand(t *testing.T) {
	root := t.TempDir()
	input := writeTestCSV(t, root)

	if out, err := runCommand(t, newDetectCmd(), detectArgs(root, input)...); err != nil {
		t.Fatalf("detect failed: %v\noutput: %s", err, out)
	}

	out, err := runCommand(t, newRunsCmd(), "runs", "show", "1", "--root", root)
	if err != nil {
		t.Fatalf("runs show failed: %v", err)
	}
	for _, want := range []string{"Run #1", "events.csv", "k=3"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunsEmptyCatalog(t *testing.T) {
	root := t.TempDir()
	out, err := runCommand(t, newRunsCmd(), "runs", "--root", root)
	if err != nil {
		t.Fatalf("runs failed: %v", err)
	}
	if !strings.Contains(out, "No recorded runs") {
		t.Errorf("unexpected output: %q", out)
	}
}
