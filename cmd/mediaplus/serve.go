package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mediaplus/internal/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts.configPath, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, root := range a.cfg.Library.Roots {
				if _, err := os.Stat(root); os.IsNotExist(err) {
					a.logger.WithField("library_root", root).Warn("Library root does not exist")
				}
			}

			if a.cfg.Library.ScanOnStartup {
				a.library.ScanAsync(ctx)
			} else {
				a.logger.Info("Skipping library scan (disabled in config)")
			}

			if a.cfg.Library.WatchForChanges {
				if err := a.library.StartWatcher(ctx); err != nil {
					a.logger.WithError(err).Warn("Could not start file watcher")
				}
			}

			ms := server.NewMediaServer(a.cfg, a.logger, server.Services{
				DB:        a.db,
				Catalog:   a.catalog,
				Playlists: a.playlists,
				Library:   a.library,
				Queue:     a.queue,
				Player:    a.player,
				Extractor: a.extractor,
			})
			if err := ms.Start(ctx); err != nil {
				return err
			}
			a.logger.Info("Received shutdown signal")
			return nil
		},
	}
}
