package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xastro/xtd/internal/catalog"
	"github.com/xastro/xtd/internal/config"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "xtd",
		Short: "X-ray transient detection over photon event tables",
		Long: `xtd finds transient candidates in X-ray event tables.

It links events into a nearest-neighbor graph, concentrates score on dense
regions through iterative diffusion with quantile thresholding, and groups
the surviving events into candidate transients with density clustering.`,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")

	rootCmd.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newDetectCmd(),
		newPlotCmd(),
		newRunsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"version": version})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "xtd version %s\n", version)
			}
		},
	}
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize an xtd project in the current directory",
		Long: `Create the .xtd data directory with a default config.yaml and an
empty run catalog. Existing files are left untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")

			cfgPath, err := config.WriteDefault(root)
			if err != nil {
				return fmt.Errorf("write default config: %w", err)
			}

			// Opening the catalog creates the database and its schema.
			cat, err := catalog.Open(root)
			if err != nil {
				return fmt.Errorf("initialize catalog: %w", err)
			}
			cat.Close()

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{
					"status": "initialized",
					"config": cfgPath,
				})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Initialized .xtd/ in %s\n", root)
			}
			return nil
		},
	}
}
