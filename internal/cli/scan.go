package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/guardian/pkg/kb"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the project and initialize its knowledge base",
	Long: `Scan the project to detect its type, tech stack, tooling, and layout,
then create and seed the knowledge base directory.`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	scanner := kb.NewScanner(projectPath, log.Zerolog())
	base, err := scanner.Initialize(kbOptions(cfg))
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	fmt.Printf("Knowledge base created at %s\n", base.Root())
	return nil
}
