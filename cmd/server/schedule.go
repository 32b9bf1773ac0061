package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ksred/klear-splitter/internal/config"
	"github.com/ksred/klear-splitter/internal/market"
)

var scheduleAt string

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Print the execution date and status an order would get",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		calendar, err := market.NewCalendar(cfg.Market)
		if err != nil {
			return err
		}

		at := time.Now()
		if scheduleAt != "" {
			at, err = time.Parse(time.RFC3339, scheduleAt)
			if err != nil {
				return fmt.Errorf("--at must be RFC3339: %w", err)
			}
		}

		decision := calendar.Decide(at)
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n",
			at.In(calendar.Location()).Format(time.RFC3339), decision.Status, decision.ExecutionDate)
		return nil
	},
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleAt, "at", "", "instant to evaluate (RFC3339, default now)")
}
