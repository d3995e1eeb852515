package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// newTestRootCmd creates a root command with persistent flags for testing
// subcommands in isolation.
func newTestRootCmd(sub *cobra.Command) *cobra.Command {
	rootCmd := &cobra.Command{Use: "xtd"}
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")
	rootCmd.AddCommand(sub)
	return rootCmd
}

// runCommand executes a subcommand under a test root and returns its stdout.
func runCommand(t *testing.T, sub *cobra.Command, args ...string) (string, error) {
	t.Helper()
	rootCmd := newTestRootCmd(sub)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestNewVersionCmd(t *testing.T) {
	out, err := runCommand(t, newVersionCmd(), "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, version) {
		t.Errorf("output %q does not contain version %q", out, version)
	}
}

func TestNewVersionCmdJSON(t *testing.T) {
	out, err := runCommand(t, newVersionCmd(), "version", "--json")
	if err != nil {
		t.Fatalf("version --json failed: %v", err)
	}
	var doc map[string]string
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if doc["version"] != version {
		t.Errorf("version = %q, want %q", doc["version"], version)
	}
}

func TestInitCreatesProject(t *testing.T) {
	root := t.TempDir()
	out, err := runCommand(t, newInitCmd(), "init", "--root", root)
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if !strings.Contains(out, "Initialized") {
		t.Errorf("unexpected output: %q", out)
	}

	for _, name := range []string{"config.yaml", "xtd.db"} {
		path := filepath.Join(root, ".xtd", name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("init did not create %s: %v", name, err)
		}
	}
}

func TestInitIsIdempotent(t *testing.T) {
	root := t.TempDir()
	if _, err := runCommand(t, newInitCmd(), "init", "--root", root); err != nil {
		t.Fatalf("first init failed: %v", err)
	}

	// Mark the config, then verify a second init leaves it alone.
	cfgPath := filepath.Join(root, ".xtd", "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("detect:\n  k: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := runCommand(t, newInitCmd(), "init", "--root", root); err != nil {
		t.Fatalf("second init failed: %v", err)
	}
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "k: 3") {
		t.Error("second init overwrote an existing config")
	}
}
