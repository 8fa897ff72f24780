package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/guardian/pkg/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the record cache",
}

var cacheWarmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Pre-load the core records and report cache stats",
	RunE:  runCacheWarm,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache stats after a warm load",
	RunE:  runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear a warmed cache and report how many entries were dropped",
	RunE:  runCacheClear,
}

func init() {
	cacheCmd.AddCommand(cacheWarmCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

// newCommandCache builds a cache over the project knowledge base. The
// cache lives only for the command invocation; the long-lived instance
// belongs to the watch daemon.
func newCommandCache() (*cache.Cache, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	base, err := openKB(cfg, log.Zerolog())
	if err != nil {
		log.Close()
		return nil, nil, err
	}

	c := cache.New(cache.Config{
		KBPath:  base.Root(),
		MaxSize: cfg.Cache.MaxSize,
	}, log.Zerolog())
	return c, func() { log.Close() }, nil
}

func runCacheWarm(cmd *cobra.Command, args []string) error {
	c, done, err := newCommandCache()
	if err != nil {
		return err
	}
	defer done()

	loaded := c.Warm()
	fmt.Printf("Warmed %d records\n", loaded)
	return printJSON(c.Stats())
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	c, done, err := newCommandCache()
	if err != nil {
		return err
	}
	defer done()

	c.Warm()
	return printJSON(c.Stats())
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	c, done, err := newCommandCache()
	if err != nil {
		return err
	}
	defer done()

	c.Warm()
	removed := c.Invalidate("*")
	fmt.Printf("Cleared %d entries\n", removed)
	return nil
}
