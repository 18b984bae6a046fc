package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/goodtune/flowtrack/internal/analytics"
	"github.com/goodtune/flowtrack/internal/service"
	"github.com/spf13/cobra"
)

var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show today's time per app across all spaces",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTracker(func(ctx context.Context, tracker *service.Tracker) error {
			stats, err := tracker.TodayStats(ctx)
			if err != nil {
				return err
			}
			printToday(stats)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(todayCmd)
}

func printToday(stats map[string]int64) {
	if len(stats) == 0 {
		color.New(color.Faint).Println("Nothing tracked today.")
		return
	}

	totals := make([]analytics.AppTotal, 0, len(stats))
	var sum int64
	for app, seconds := range stats {
		totals = append(totals, analytics.AppTotal{AppName: app, Duration: seconds})
		sum += seconds
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Duration != totals[j].Duration {
			return totals[i].Duration > totals[j].Duration
		}
		return totals[i].AppName < totals[j].AppName
	})

	fmt.Println()
	color.New(color.FgCyan, color.Bold).Printf("TODAY  %s\n", analytics.FormatDuration(sum))
	printBars(totals)
	fmt.Println()
}
