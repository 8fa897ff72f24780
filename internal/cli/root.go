// Package cli wires the guardian commands: project scanning, record
// keeping, health checks, incremental updates, context loading, and the
// watch daemon.
package cli

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/harun/guardian/internal/config"
	"github.com/harun/guardian/internal/logger"
	"github.com/harun/guardian/pkg/kb"
)

const version = "0.1.0"

var (
	cfgFile     string
	logLevel    string
	projectPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "guardian",
	Short: "Guardian - project knowledge base",
	Long: `Guardian maintains a per-project knowledge base of JSON records:
project profile, tech stack, conventions, module info, and a history of
bugs, requirements, and decisions. Records are updated atomically under
cooperative file locks and served through a content-validated cache.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.guardian/guardian.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&projectPath, "project", "p", ".", "project root directory")

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}

// loadConfig loads the daemon configuration, applying the --log-level
// override when set.
func loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// newLogger builds the process logger from config.
func newLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
		Pretty:  cfg.Logging.Pretty,
	})
}

// kbOptions maps config onto knowledge base open options.
func kbOptions(cfg *config.Config) kb.Options {
	return kb.Options{
		KBDir:         cfg.KBDir,
		OplogFile:     cfg.Store.OplogFile,
		UpdateTimeout: cfg.UpdateTimeout(),
	}
}

// openKB opens the project knowledge base for a command run.
func openKB(cfg *config.Config, log zerolog.Logger) (*kb.KB, error) {
	base, err := kb.Open(projectPath, kbOptions(cfg), log)
	if err != nil {
		return nil, fmt.Errorf("no knowledge base at %s, run 'guardian scan' first: %w", projectPath, err)
	}
	return base, nil
}

// printJSON renders a command result as indented JSON on stdout.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
