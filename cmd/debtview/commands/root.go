package commands

import (
	"github.com/spf13/cobra"

	"github.com/wonny/debtview/pkg/config"
	"github.com/wonny/debtview/pkg/logger"
)

var (
	// Global flags
	configFile string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "debtview",
	Short: "Live G-Sec / SDL / T-Bill order book with yields",
	Long: `debtview

Polls the exchange order book for government debt, joins every quote with
the instrument master list and publishes clean prices and yields.

Usage:
  go run ./cmd/debtview [command]

Examples:
  go run ./cmd/debtview serve
  go run ./cmd/debtview snapshot --series GS --nonzero
  go run ./cmd/debtview reference --source file --path DEBT.csv
  go run ./cmd/debtview reference import DEBT.csv`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file applied over the environment (.env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// loadConfig loads the environment, the optional YAML file and global flags.
func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.LoadWithFile(configFile)
	if err != nil {
		return nil, nil, err
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, logger.New(cfg), nil
}
