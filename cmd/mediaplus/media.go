package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mediaplus/internal/catalog"
)

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var sortBy string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search titles and artists",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				entries, err := a.catalog.Search(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				if sortBy != "" {
					option, ok := catalog.ParseSortOption(sortBy)
					if !ok {
						return fmt.Errorf("unknown sort option %q", sortBy)
					}
					entries = catalog.SortEntries(entries, option)
				}
				printEntries(cmd.OutOrStdout(), entries)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&sortBy, "sort", "s", "", "sort option (date_added, title, size, last_played)")
	return cmd
}

func newRecentCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recent",
		Short: "List recently played entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				entries, err := a.catalog.GetRecentlyPlayed(ctx)
				if err != nil {
					return err
				}
				printEntries(cmd.OutOrStdout(), entries)
				return nil
			})
		},
	}
}

func newFavoriteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "favorite <media-id>",
		Short: "Toggle the favorite flag of an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				entry, err := a.catalog.ToggleFavorite(ctx, args[0])
				if err != nil {
					return err
				}
				if entry == nil {
					return fmt.Errorf("media entry %q not found", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s favorite=%t\n", entry.ID, entry.IsFavorite)
				return nil
			})
		},
	}
}
