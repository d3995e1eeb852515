package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xastro/xtd/internal/catalog"
	"github.com/xastro/xtd/internal/config"
	"github.com/xastro/xtd/internal/logging"
	"github.com/xastro/xtd/internal/pipeline"
	"github.com/xastro/xtd/internal/plot"
	"github.com/xastro/xtd/internal/reader"
)

func newDetectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect <event-file>",
		Short: "Run transient detection over an event table",
		Long: `Load an event table (FITS, Arrow IPC, or CSV), run the detection
pipeline, and report the surviving clusters.

Parameters default to the project configuration (.xtd/config.yaml) and can
be overridden per run with flags.

Example:
  xtd detect P0694730101PNS003PIEVLI0000.FTZ --output run.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")
			output, _ := cmd.Flags().GetString("output")
			noOpen, _ := cmd.Flags().GetBool("no-open")
			serve, _ := cmd.Flags().GetBool("serve")
			sparse, _ := cmd.Flags().GetBool("sparse")
			input := args[0]

			cfg, err := config.Load(root)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			applyDetectFlags(cmd, cfg)

			logger := logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
			trace := logging.NewTraceLogger(filepath.Join(root, config.DataDirName), cfg.Logging.Level)
			defer trace.Close()

			set, err := reader.Load(input, cfg.Detect.Columns, cfg.FilterRanges())
			if err != nil {
				return fmt.Errorf("load events: %w", err)
			}

			opts := pipeline.Options{
				K:         cfg.Detect.K,
				Layers:    cfg.Detect.Layers,
				Quantile:  cfg.Detect.Quantile,
				MinPoints: cfg.Detect.MinPoints,
				Sparse:    sparse,
				Logger:    logger,
				Trace:     trace,
			}
			det, err := pipeline.New(opts).Detect(cmd.Context(), set)
			if err != nil {
				return err
			}

			var runID int64
			if cfg.Catalog.Enabled {
				runID, err = saveRun(cmd, root, input, cfg, det)
				if err != nil {
					// A catalog failure should not discard the detection.
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not record run: %v\n", err)
				}
			}

			if serve {
				sc, err := plot.FromDetection(det, "xtd: "+filepath.Base(input))
				if err != nil {
					return fmt.Errorf("build plot: %w", err)
				}
				return servePlot(cmd, sc, noOpen)
			}
			if output != "" {
				sc, err := plot.FromDetection(det, "xtd: "+filepath.Base(input))
				if err != nil {
					return fmt.Errorf("build plot: %w", err)
				}
				if err := sc.WriteHTML(output); err != nil {
					return err
				}
				if !jsonOut {
					fmt.Fprintf(cmd.OutOrStdout(), "Plot written to %s\n", output)
				}
			}

			if jsonOut {
				return printDetectionJSON(cmd, runID, det)
			}
			printDetectionText(cmd, runID, det)
			return nil
		},
	}

	cmd.Flags().Int("k", 0, "Neighbor count of the k-nearest-neighbor graph")
	cmd.Flags().Int("layers", -1, "Number of diffusion iterations")
	cmd.Flags().Float64("quantile", 0, "Per-iteration survivor threshold quantile")
	cmd.Flags().Int("min-points", 0, "DBSCAN core-point neighbor minimum")
	cmd.Flags().Bool("sparse", false, "Use the sparse propagation path")
	cmd.Flags().StringP("output", "o", "", "Write an interactive HTML plot to this path")
	cmd.Flags().Bool("serve", false, "Serve the interactive plot on a local port")
	cmd.Flags().Bool("no-open", false, "Don't open the browser when serving")

	return cmd
}

// applyDetectFlags overlays explicitly set flags on the loaded config.
func applyDetectFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("k") {
		cfg.Detect.K, _ = cmd.Flags().GetInt("k")
	}
	if cmd.Flags().Changed("layers") {
		cfg.Detect.Layers, _ = cmd.Flags().GetInt("layers")
	}
	if cmd.Flags().Changed("quantile") {
		cfg.Detect.Quantile, _ = cmd.Flags().GetFloat64("quantile")
	}
	if cmd.Flags().Changed("min-points") {
		cfg.Detect.MinPoints, _ = cmd.Flags().GetInt("min-points")
	}
}

func saveRun(cmd *cobra.Command, root, input string, cfg *config.Config, det *pipeline.Detection) (int64, error) {
	cat, err := catalog.Open(root)
	if err != nil {
		return 0, err
	}
	defer cat.Close()

	run := catalog.Run{
		Source:    filepath.Base(input),
		Columns:   cfg.Detect.Columns,
		K:         cfg.Detect.K,
		Layers:    cfg.Detect.Layers,
		Quantile:  cfg.Detect.Quantile,
		MinPoints: cfg.Detect.MinPoints,
		Eps:       det.Eps,

		NumEvents:    det.Events.Len(),
		NumSurvivors: len(det.Survivors),
		NumClusters:  det.NumClusters,
		Duration:     det.Duration,
	}
	clusters := make([]catalog.ClusterRecord, 0, len(det.Clusters))
	for _, cl := range det.Clusters {
		clusters = append(clusters, catalog.ClusterRecord{
			Label:         cl.Label,
			Size:          cl.Size,
			SimulatedFrac: cl.SimulatedFrac,
			Centroid:      cl.Centroid,
		})
	}
	return cat.SaveRun(cmd.Context(), run, clusters)
}

func printDetectionText(cmd *cobra.Command, runID int64, det *pipeline.Detection) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Events:    %d\n", det.Events.Len())
	fmt.Fprintf(out, "Survivors: %d\n", len(det.Survivors))
	fmt.Fprintf(out, "Clusters:  %d (eps %.4g, median edge %.4g)\n",
		det.NumClusters, det.Eps, det.MedianEdgeDistance)
	if runID > 0 {
		fmt.Fprintf(out, "Run:       #%d\n", runID)
	}

	for _, cl := range det.Clusters {
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
}

func printDetectionJSON(cmd *cobra.Command, runID int64, det *pipeline.Detection) error {
	doc := map[string]interface{}{
		"events":               det.Events.Len(),
		"survivors":            len(det.Survivors),
		"clusters":             det.NumClusters,
		"eps":                  det.Eps,
		"median_edge_distance": det.MedianEdgeDistance,
		"edges":                det.NumEdges,
		"duration_ms":          det.Duration.Milliseconds(),
		"summary":              det.Clusters,
		"survivor_indices":     det.Survivors,
		"labels":               det.Labels,
	}
	if runID > 0 {
		doc["run_id"] = runID
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
