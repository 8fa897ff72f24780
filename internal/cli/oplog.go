package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var oplogCount int

var oplogCmd = &cobra.Command{
	Use:   "oplog",
	Short: "Show recent knowledge base operations",
	RunE:  runOplog,
}

func init() {
	oplogCmd.Flags().IntVarP(&oplogCount, "count", "n", 10, "number of entries to show")
	rootCmd.AddCommand(oplogCmd)
}

func runOplog(cmd *cobra.Command, args []string) error {
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

	entries := base.Oplog().Recent(oplogCount)
	if len(entries) == 0 {
		fmt.Println("No operations recorded")
		return nil
	}
	return printJSON(entries)
}
