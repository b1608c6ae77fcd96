package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mediaplus/pkg/models"
)

func newScanCmd(opts *rootOptions) *cobra.Command {
	var mediaType string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the library roots and merge the results into the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			class, err := parseMediaTypeFlag(mediaType)
			if err != nil {
				return err
			}
			var classes []models.MediaType
			if class != "" {
				classes = append(classes, class)
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				result, err := a.library.Scan(ctx, classes...)
				for class, n := range result.Scanned {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %d scanned\n", class, n)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d entries stored in %s\n", result.Stored, result.Duration.Round(time.Millisecond))
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&mediaType, "type", "t", "", "media class to scan (audio or video)")
	return cmd
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	var mediaType string

	cmd := &cobra.Command{
		Use:   "import <path|file-uri>",
		Short: "Add a single file to the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			class, err := parseMediaTypeFlag(mediaType)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				entry, err := a.library.Import(ctx, args[0], class)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), entry)
			})
		},
	}
	cmd.Flags().StringVarP(&mediaType, "type", "t", "", "media type (audio, video or image); inferred from the extension when empty")
	return cmd
}

func newPruneCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove entries backed by transient provider grants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				n, err := a.library.PruneProviderBacked(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", n)
				return nil
			})
		},
	}
}
