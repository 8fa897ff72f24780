package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/guardian/pkg/cache"
	"github.com/harun/guardian/pkg/kb"
)

var (
	contextFile  string
	contextQuery string
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Load knowledge base context for a file or query",
	Long: `Assemble the slice of the knowledge base relevant to a file path or a
free-form query: core records, module info, and related history records.
With neither flag the minimal core context is returned.`,
	RunE: runContext,
}

func init() {
	contextCmd.Flags().StringVarP(&contextFile, "file", "f", "", "load context for this file path")
	contextCmd.Flags().StringVarP(&contextQuery, "query", "q", "", "load context for this query")
	rootCmd.AddCommand(contextCmd)
}

func runContext(cmd *cobra.Command, args []string) error {
	if contextFile != "" && contextQuery != "" {
		return fmt.Errorf("use either --file or --query, not both")
	}

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

	c := cache.New(cache.Config{
		KBPath:  base.Root(),
		MaxSize: cfg.Cache.MaxSize,
	}, log.Zerolog())
	loader := kb.NewContextLoader(base, c)

	var ctx kb.Context
	switch {
	case contextFile != "":
		ctx = loader.LoadForFile(contextFile)
	case contextQuery != "":
		ctx = loader.LoadForQuery(contextQuery)
	default:
		ctx = loader.LoadMinimal()
	}
	return printJSON(ctx)
}
