package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harun/guardian/internal/daemon"
)

var watchMetricsAddr string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the project and keep the knowledge base current",
	Long: `Run the guardian daemon: watch the project for changes, apply
incremental updates, invalidate cached records, run scheduled health
checks, and optionally serve Prometheus metrics.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "serve /metrics on this address (overrides config)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if watchMetricsAddr != "" {
		cfg.Watch.MetricsAddr = watchMetricsAddr
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	base, err := openKB(cfg, log.Zerolog())
	if err != nil {
		return err
	}

	d, err := daemon.New(cfg, base, log.Zerolog())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
