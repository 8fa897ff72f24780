package cli

import (
	"github.com/spf13/cobra"

	"github.com/harun/guardian/pkg/kb"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Score knowledge base health",
	Long: `Run the health checks (freshness, completeness, bug quality, size,
usage) and print the report as JSON.`,
	RunE: runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
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

	report := kb.NewHealthChecker(base).Check()
	return printJSON(report)
}
