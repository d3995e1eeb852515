package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xastro/xtd/internal/catalog"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded detection runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			limit, _ := cmd.Flags().GetInt("limit")

			cat, err := catalog.Open(root)
			if err != nil {
				return fmt.Errorf("open catalog: %w", err)
			}
			defer cat.Close()

			runs, err := cat.ListRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				if runs == nil {
					runs = []catalog.Run{}
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}

			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No recorded runs. Run 'xtd detect' first.")
				return nil
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-5s %-20s %-30s %8s %10s %9s\n",
				"ID", "CREATED", "SOURCE", "EVENTS", "SURVIVORS", "CLUSTERS")
			for _, r := range runs {
				fmt.Fprintf(out, "%-5d %-20s %-30s %8d %10d %9d\n",
					r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"),
					truncate(r.Source, 30), r.NumEvents, r.NumSurvivors, r.NumClusters)
			}
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "Maximum number of runs to list (0 for all)")
	cmd.AddCommand(newRunsShowCmd())

	return cmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one recorded run with its clusters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}

			cat, err := catalog.Open(root)
			if err != nil {
				return fmt.Errorf("open catalog: %w", err)
			}
			defer cat.Close()

			run, clusters, err := cat.GetRun(cmd.Context(), id)
			if err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]interface{}{
					"run":      run,
					"clusters": clusters,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run #%d  (%s)\n", run.ID, run.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "Source:     %s\n", run.Source)
			fmt.Fprintf(out, "Columns:    %s\n", strings.Join(run.Columns, ", "))
			fmt.Fprintf(out, "Parameters: k=%d layers=%d quantile=%g min_points=%d eps=%.4g\n",
				run.K, run.Layers, run.Quantile, run.MinPoints, run.Eps)
			fmt.Fprintf(out, "Result:     %d events, %d survivors, %d clusters in %s\n",
				run.NumEvents, run.NumSurvivors, run.NumClusters, run.Duration)

			for _, cl := range clusters {
				name := fmt.Sprintf("cluster %d", cl.Label)
				if cl.Label < 0 {
					name = "noise"
				}
				centroid := make([]string, len(cl.Centroid))
				for i, v := range cl.Centroid {
					centroid[i] = fmt.Sprintf("%.4g", v)
				}
				fmt.Fprintf(out, "  %-10s size %-5d simulated %.0f%%  at (%s)\n",
					name, cl.Size, cl.SimulatedFrac*100, strings.Join(centroid, ", "))
			}
			return nil
		},
	}
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
