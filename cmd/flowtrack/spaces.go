package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/goodtune/flowtrack/internal/service"
	"github.com/goodtune/flowtrack/internal/space"
	"github.com/goodtune/flowtrack/internal/storage"
	"github.com/spf13/cobra"
)

var createColor string

var spacesCmd = &cobra.Command{
	Use:     "spaces",
	Aliases: []string{"space"},
	Short:   "Manage tracking spaces",
}

var spacesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List spaces and their apps",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTracker(func(ctx context.Context, tracker *service.Tracker) error {
			spaces, err := tracker.ListSpaces(ctx)
			if err != nil {
				return err
			}
			printSpaces(spaces)
			return nil
		})
	},
}

var spacesCreateCmd = &cobra.Command{
	Use:     "create NAME",
	Short:   "Create a space",
	Example: `  flowtrack spaces create "Deep work" --color "#10b981"`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTracker(func(ctx context.Context, tracker *service.Tracker) error {
			sp, err := tracker.CreateSpace(ctx, args[0], createColor)
			if err != nil {
				return err
			}
			fmt.Printf("Created space %s (%s)\n", sp.Name, sp.ID)
			return nil
		})
	},
}

var spacesRenameCmd = &cobra.Command{
	Use:   "rename ID NAME",
	Short: "Rename a space",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editSpace(args[0], func(sp *storage.TrackingSpace) {
			sp.Name = args[1]
		})
	},
}

var spacesAppsCmd = &cobra.Command{
	Use:   "apps",
	Short: "Edit the applications of a space",
}

var spacesAppsAddCmd = &cobra.Command{
	Use:   "add ID APP...",
	Short: "Add applications to a space",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editSpace(args[0], func(sp *storage.TrackingSpace) {
			sp.Apps = append(sp.Apps, args[1:]...)
		})
	},
}

var spacesAppsRemoveCmd = &cobra.Command{
	Use:   "remove ID APP...",
	Short: "Remove applications from a space",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editSpace(args[0], func(sp *storage.TrackingSpace) {
			sp.Apps = removeApps(sp.Apps, args[1:])
		})
	},
}

var spacesDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a space and all of its entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTracker(func(ctx context.Context, tracker *service.Tracker) error {
			spaces, err := tracker.DeleteSpace(ctx, args[0])
			if err != nil {
				return err
			}
			printSpaces(spaces)
			return nil
		})
	},
}

var spacesToggleCmd = &cobra.Command{
	Use:   "toggle ID",
	Short: "Activate or deactivate a space",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTracker(func(ctx context.Context, tracker *service.Tracker) error {
			active, err := tracker.Toggle(ctx, args[0])
			if err != nil {
				return err
			}
			if active {
				color.New(color.FgGreen, color.Bold).Println("Space activated")
			} else {
				color.New(color.FgYellow).Println("Space deactivated")
			}
			return nil
		})
	},
}

var spacesStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Deactivate every space",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTracker(func(ctx context.Context, tracker *service.Tracker) error {
			return tracker.StopAll(ctx)
		})
	},
}

func init() {
	spacesCreateCmd.Flags().StringVar(&createColor, "color", "", "Display colour (defaults to #3b82f6)")

	spacesAppsCmd.AddCommand(spacesAppsAddCmd)
	spacesAppsCmd.AddCommand(spacesAppsRemoveCmd)

	spacesCmd.AddCommand(spacesListCmd)
	spacesCmd.AddCommand(spacesCreateCmd)
	spacesCmd.AddCommand(spacesRenameCmd)
	spacesCmd.AddCommand(spacesAppsCmd)
	spacesCmd.AddCommand(spacesDeleteCmd)
	spacesCmd.AddCommand(spacesToggleCmd)
	spacesCmd.AddCommand(spacesStopCmd)
	rootCmd.AddCommand(spacesCmd)
}

func editSpace(id string, edit func(sp *storage.TrackingSpace)) error {
	return withTracker(func(ctx context.Context, tracker *service.Tracker) error {
		sp, err := tracker.GetSpace(ctx, id)
		if err != nil {
			return err
		}
		edit(sp)
		spaces, err := tracker.UpdateSpace(ctx, *sp)
		if err != nil {
			return err
		}
		printSpaces(spaces)
		return nil
	})
}

// removeApps drops every app matching one of names in canonical form.
func removeApps(apps, names []string) []string {
	drop := make(map[string]bool, len(names))
	for _, name := range names {
		drop[space.Canonical(name)] = true
	}
	kept := make([]string, 0, len(apps))
	for _, app := range apps {
		if !drop[space.Canonical(app)] {
			kept = append(kept, app)
		}
	}
	return kept
}

func printSpaces(spaces []storage.TrackingSpace) {
	if len(spaces) == 0 {
		fmt.Println("No spaces yet. Create one with: flowtrack spaces create NAME")
		return
	}

	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	faint := color.New(color.Faint)

	for _, sp := range spaces {
		marker := "  "
		if sp.IsActive {
			marker = green.Sprint("● ")
		}
		fmt.Printf("%s%s  %s\n", marker, cyan.Sprint(sp.Name), faint.Sprint(sp.ID))
		if len(sp.Apps) == 0 {
			faint.Println("    (no apps)")
			continue
		}
		fmt.Printf("    %s\n", strings.Join(sp.Apps, ", "))
	}
}
