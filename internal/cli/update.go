package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/guardian/pkg/kb"
)

var updateDryRun bool

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Apply an incremental knowledge base update",
	Long: `Compare the project against the stored checksum map and refresh the
records affected by the changes.`,
	RunE: runUpdate,
}

func init() {
	updateCmd.Flags().BoolVar(&updateDryRun, "dry-run", false, "detect changes without applying them")
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
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

	updater := kb.NewIncrementalUpdater(base)
	if updateDryRun {
		changes, _ := updater.DetectChanges()
		return printJSON(changes)
	}

	changes := updater.Run()
	if changes.Empty() {
		fmt.Println("No changes detected")
		return nil
	}
	return printJSON(changes)
}
