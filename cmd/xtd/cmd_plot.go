package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/xastro/xtd/internal/config"
	"github.com/xastro/xtd/internal/plot"
	"github.com/xastro/xtd/internal/reader"
)

func newPlotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot <event-file>",
		Short: "Plot an event table as an interactive 3-D scatter",
		Long: `Load an event table and render it as an interactive 3-D scatter plot,
colored by the simulated flag. No detection is run.

Example:
  xtd plot P0694730101PNS003PIEVLI0000.FTZ --serve`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			output, _ := cmd.Flags().GetString("output")
			noOpen, _ := cmd.Flags().GetBool("no-open")
			serve, _ := cmd.Flags().GetBool("serve")
			input := args[0]

			cfg, err := config.Load(root)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			set, err := reader.Load(input, cfg.Detect.Columns, cfg.FilterRanges())
			if err != nil {
				return fmt.Errorf("load events: %w", err)
			}

			sc, err := plot.FromEvents(set, "xtd: "+filepath.Base(input))
			if err != nil {
				return fmt.Errorf("build plot: %w", err)
			}

			if serve {
				return servePlot(cmd, sc, noOpen)
			}

			outPath := output
			if outPath == "" {
				outPath = filepath.Join(os.TempDir(), "xtd-plot.html")
			}
			if err := sc.WriteHTML(outPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Plot written to %s\n", outPath)

			if !noOpen {
				if err := plot.OpenBrowser(outPath); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Could not open browser: %v\nOpen %s manually.\n", err, outPath)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "Output file path")
	cmd.Flags().Bool("no-open", false, "Don't open the browser")
	cmd.Flags().Bool("serve", false, "Serve the plot on a local port instead of writing a file")

	return cmd
}

// servePlot starts a local HTTP server for the plot and blocks until Ctrl-C.
func servePlot(cmd *cobra.Command, sc *plot.Scatter, noOpen bool) error {
	srv := plot.NewServer(sc)

	srvCtx, srvCancel := context.WithCancel(cmd.Context())
	defer srvCancel()

	// Handle SIGINT/SIGTERM for graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			srvCancel()
		case <-srvCtx.Done():
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(srvCtx) }()

	// Wait for the listener to come up.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if srv.Addr() != "" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	addr := srv.Addr()
	if addr == "" {
		return fmt.Errorf("server failed to start")
	}

	url := "http://" + addr
	fmt.Fprintf(cmd.OutOrStdout(), "Plot server running at %s\n", url)
	fmt.Fprintf(cmd.OutOrStdout(), "Press Ctrl-C to stop.\n")

	if !noOpen {
		if err := plot.OpenBrowser(url); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Could not open browser: %v\nOpen %s manually.\n", err, url)
		}
	}

	if err := <-errCh; err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
