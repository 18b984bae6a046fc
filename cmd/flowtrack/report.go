package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/goodtune/flowtrack/internal/analytics"
	"github.com/goodtune/flowtrack/internal/service"
	"github.com/spf13/cobra"
)

const barWidth = 30

var (
	reportRange string
	reportSpace string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarise tracked time over a day, week or month",
	Example: `  flowtrack report
  flowtrack report --range week --space 6f1c...`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVarP(&reportRange, "range", "r", "day", "Window: day, week or month")
	reportCmd.Flags().StringVarP(&reportSpace, "space", "s", "", "Limit to one space id")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	r, err := analytics.ParseRange(reportRange)
	if err != nil {
		return err
	}

	return withTracker(func(ctx context.Context, tracker *service.Tracker) error {
		title := "All spaces"
		if reportSpace != "" {
			sp, err := tracker.GetSpace(ctx, reportSpace)
			if err != nil {
				return err
			}
			title = sp.Name
		}

		summary, err := tracker.Analytics(ctx, reportSpace, r)
		if err != nil {
			return err
		}
		printSummary(title, summary)
		return nil
	})
}

func printSummary(title string, summary analytics.Summary) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	faint := color.New(color.Faint)

	fmt.Println()
	cyan.Printf("%s  %s → %s\n", strings.ToUpper(title), summary.From, summary.To)
	fmt.Println()

	fmt.Printf("Total:          %s\n", green.Sprint(analytics.FormatDuration(summary.Total)))
	fmt.Printf("Daily average:  %s\n", analytics.FormatDuration(summary.DailyAverage))
	fmt.Println()

	if len(summary.ByApp) == 0 {
		faint.Println("No time tracked in this range.")
		fmt.Println()
		return
	}

	cyan.Println("By app")
	printBars(summary.ByApp)

	if len(summary.ByDate) > 1 {
		fmt.Println()
		cyan.Println("By day")
		for _, day := range summary.ByDate {
			value := analytics.FormatDuration(day.Duration)
			if day.Duration == 0 {
				value = faint.Sprint("-")
			}
			fmt.Printf("  %s  %s\n", day.Date, value)
		}
	}
	fmt.Println()
}

func printBars(totals []analytics.AppTotal) {
	width := 0
	for _, t := range totals {
		if len(t.AppName) > width {
			width = len(t.AppName)
		}
	}

	bar := color.New(color.FgBlue)
	for i, share := range analytics.AppShare(totals) {
		filled := int(share / 100 * barWidth)
		if filled == 0 && totals[i].Duration > 0 {
			filled = 1
		}
		fmt.Printf("  %-*s  %s %s\n",
			width, totals[i].AppName,
			bar.Sprint(strings.Repeat("█", filled))+strings.Repeat(" ", barWidth-filled),
			analytics.FormatDuration(totals[i].Duration))
	}
}
