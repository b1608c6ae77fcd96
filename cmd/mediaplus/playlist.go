package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newPlaylistCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playlist",
		Short: "Manage playlists",
	}
	cmd.AddCommand(
		newPlaylistCreateCmd(opts),
		newPlaylistListCmd(opts),
		newPlaylistShowCmd(opts),
		newPlaylistMemberCmd(opts, "add <playlist-id> <media-id>", "Append an entry to a playlist", 2,
			func(ctx context.Context, a *app, id int64, args []string) error {
				return a.playlists.AddMediaItem(ctx, id, args[1])
			}),
		newPlaylistMemberCmd(opts, "remove <playlist-id> <media-id>", "Remove an entry from a playlist", 2,
			func(ctx context.Context, a *app, id int64, args []string) error {
				return a.playlists.RemoveMediaItem(ctx, id, args[1])
			}),
		newPlaylistMemberCmd(opts, "move <playlist-id> <media-id> <position>", "Move an entry to a zero-based position", 3,
			func(ctx context.Context, a *app, id int64, args []string) error {
				position, err := strconv.Atoi(args[2])
				if err != nil {
					return fmt.Errorf("invalid position %q", args[2])
				}
				return a.playlists.MoveMediaItem(ctx, id, args[1], position)
			}),
		newPlaylistMemberCmd(opts, "clear <playlist-id>", "Remove every entry from a playlist", 1,
			func(ctx context.Context, a *app, id int64, args []string) error {
				return a.playlists.Clear(ctx, id)
			}),
		newPlaylistDeleteCmd(opts),
	)
	return cmd
}

func parsePlaylistID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid playlist id %q", arg)
	}
	return id, nil
}

func newPlaylistCreateCmd(opts *rootOptions) *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				id, err := a.playlists.Create(ctx, args[0], description)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "playlist description")
	return cmd
}

func newPlaylistListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List playlists, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				playlists, err := a.playlists.GetAll(ctx)
				if err != nil {
					return err
				}
				for _, p := range playlists {
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%d items\n", p.ID, p.Name, p.MemberCount)
				}
				return nil
			})
		},
	}
}

func newPlaylistShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <playlist-id>",
		Short: "Show the entries of a playlist in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePlaylistID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				p, err := a.playlists.GetByID(ctx, id)
				if err != nil {
					return err
				}
				if p == nil {
					return fmt.Errorf("playlist %d not found", id)
				}
				entries, err := a.playlists.MembersOrdered(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%d items)\n", p.Name, p.MemberCount)
				printEntries(cmd.OutOrStdout(), entries)
				return nil
			})
		},
	}
}

// newPlaylistMemberCmd builds a command whose first argument is a playlist id.
func newPlaylistMemberCmd(opts *rootOptions, use, short string, nargs int, fn func(ctx context.Context, a *app, id int64, args []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePlaylistID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				return fn(ctx, a, id, args)
			})
		},
	}
}

func newPlaylistDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <playlist-id>",
		Short: "Delete a playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePlaylistID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				deleted, err := a.playlists.Delete(ctx, id)
				if err != nil {
					return err
				}
				if !deleted {
					return fmt.Errorf("playlist %d not found", id)
				}
				return nil
			})
		},
	}
}
