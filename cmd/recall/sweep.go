package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/goclaw/recall/config"
	"github.com/goclaw/recall/pkg/memory"
	"github.com/goclaw/recall/pkg/metrics"
)

var sweepOwner string

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one TASK-tier retention pass and exit",
	Long: "Deletes TASK memories older than the retention window. Without --owner\n" +
		"every owner is swept. An interrupted sweep keeps what it already deleted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runSweep(ctx, configPath, buildOverrides(), sweepOwner, cmd.OutOrStdout())
	},
}

func init() {
	sweepCmd.Flags().StringVar(&sweepOwner, "owner", "", "Only sweep this owner")
}

func runSweep(ctx context.Context, path string, overrides map[string]interface{}, owner string, out io.Writer) error {
	cfg, err := config.Load(path, overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration:\n%s\n", err)
		return err
	}
	log := newLogger(cfg)
	defer log.Close()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	sweeper := memory.NewSweeper(store, cfg.Retention.ToRetentionPolicy(), cfg.Retention.Interval,
		memory.WithSweepLogger(log),
		memory.WithSweepRecorder(metrics.NoOpManager()),
	)
	res, err := sweeper.Sweep(ctx, owner)
	if err != nil {
		return fmt.Errorf("sweep stopped after pruning %d memories: %w", res.Pruned, err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
