package main

import (
	"os"

	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "klear-splitter",
	Short: "Portfolio order splitter and holdings ledger",
	Long: `Klear Splitter splits buy and sell orders across a weighted portfolio,
converts the money into share quantities and keeps each user's holdings.

Examples:
  klear-splitter serve --config config.yaml
  klear-splitter schedule --at 2024-03-15T16:00:00-04:00`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (environment and .env still apply)")
	rootCmd.AddCommand(serveCmd, scheduleCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		zlog.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
