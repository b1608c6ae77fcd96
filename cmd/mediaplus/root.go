package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"mediaplus/internal/catalog"
	"mediaplus/internal/config"
	"mediaplus/internal/database"
	"mediaplus/internal/library"
	"mediaplus/internal/logging"
	"mediaplus/internal/metadata"
	"mediaplus/internal/player"
	"mediaplus/internal/playlist"
	"mediaplus/internal/scanner"
	"mediaplus/internal/worker"
	"mediaplus/pkg/models"
)

const queueCapacity = 64

// app holds the wired components shared by every command.
type app struct {
	cfg       *config.Config
	logger    *logrus.Logger
	db        *database.Database
	catalog   *catalog.Repository
	playlists *playlist.Repository
	queue     *worker.Queue
	library   *library.Service
	player    *player.StateManager
	extractor *metadata.Extractor
}

func newApp(ctx context.Context, configPath string, logOut io.Writer) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	if logOut != nil && cfg.Logging.File == "" {
		logger.SetOutput(logOut)
	}

	db, err := database.NewDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	fs := afero.NewOsFs()
	extractor := metadata.NewExtractor(fs, logger, cfg.Library)
	repo := catalog.NewRepository(db, logger, cfg.Library)
	queue := worker.NewQueue(logger, queueCapacity)
	queue.Start()

	svc := library.NewService(
		scanner.NewFilesystemSource(fs, extractor, logger, cfg.Library),
		scanner.NewImporter(fs, extractor, logger),
		repo, queue, logger, cfg.Library,
	)

	return &app{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		catalog:   repo,
		playlists: playlist.NewRepository(db, logger),
		queue:     queue,
		library:   svc,
		player:    player.NewStateManager(repo, logger),
		extractor: extractor,
	}, nil
}

func (a *app) Close() {
	a.library.StopWatcher()
	a.queue.Stop()
	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Warn("Error closing database")
	}
}

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "mediaplus",
		Short:         "mediaplus is a local media catalog with playlists.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "./config.toml", "path to the TOML configuration file")

	cmd.AddCommand(
		newServeCmd(opts),
		newScanCmd(opts),
		newImportCmd(opts),
		newPruneCmd(opts),
		newSearchCmd(opts),
		newRecentCmd(opts),
		newFavoriteCmd(opts),
		newPlaylistCmd(opts),
	)
	return cmd
}

// withApp builds the app for a one-shot command and closes it afterwards.
// Logs go to stderr so stdout carries only command output.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, opts.configPath, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printEntries(w io.Writer, entries []models.MediaEntry) {
	for _, e := range entries {
		artist := e.Artist
		if artist == "" {
			artist = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ID, e.MediaType, artist, e.Title)
	}
}

func parseMediaTypeFlag(value string) (models.MediaType, error) {
	if value == "" {
		return "", nil
	}
	return models.ParseMediaType(value)
}
