package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"mediaplus/internal/catalog"
	"mediaplus/internal/config"
	"mediaplus/internal/database"
	"mediaplus/internal/library"
	"mediaplus/internal/metadata"
	"mediaplus/internal/player"
	"mediaplus/internal/playlist"
	"mediaplus/internal/worker"
)

// Services are the components the HTTP API exposes.
type Services struct {
	DB        *database.Database
	Catalog   *catalog.Repository
	Playlists *playlist.Repository
	Library   *library.Service
	Queue     *worker.Queue
	Player    *player.StateManager
	Extractor *metadata.Extractor
}

// MediaServer serves the catalog JSON API
type MediaServer struct {
	Services
	config *config.Config
	logger *logrus.Logger
	router *mux.Router
}

// NewMediaServer creates a new media server instance
func NewMediaServer(cfg *config.Config, logger *logrus.Logger, services Services) *MediaServer {
	ms := &MediaServer{
		Services: services,
		config:   cfg,
		logger:   logger,
	}
	ms.setupRoutes()
	return ms
}

// Handler returns the root handler including middleware.
func (ms *MediaServer) Handler() http.Handler {
	return ms.router
}

func (ms *MediaServer) setupRoutes() {
	r := mux.NewRouter()
	r.Use(ms.panicRecoveryMiddleware, ms.requestLoggingMiddleware, ms.corsMiddleware)

	r.HandleFunc("/health", ms.handleHealthCheck).Methods(http.MethodGet)
	r.PathPrefix("/artwork/").Handler(http.StripPrefix("/artwork/", http.FileServer(ms.Extractor.ArtworkFS()))).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	// Media routes
	api.HandleFunc("/media", ms.handleGetMedia).Methods(http.MethodGet)
	api.HandleFunc("/media/favorites", ms.handleGetFavorites).Methods(http.MethodGet)
	api.HandleFunc("/media/recent", ms.handleGetRecent).Methods(http.MethodGet)
	api.HandleFunc("/media/search", ms.handleSearchMedia).Methods(http.MethodGet)
	api.HandleFunc("/media/import", ms.handleImportMedia).Methods(http.MethodPost)
	api.HandleFunc("/media/{id}", ms.handleGetMediaEntry).Methods(http.MethodGet)
	api.HandleFunc("/media/{id}", ms.handleDeleteMediaEntry).Methods(http.MethodDelete)
	api.HandleFunc("/media/{id}/favorite", ms.handleToggleFavorite).Methods(http.MethodPost)
	api.HandleFunc("/media/{id}/recent", ms.handleRemoveFromRecents).Methods(http.MethodDelete)

	// Library routes
	api.HandleFunc("/library/scan", ms.handleScanLibrary).Methods(http.MethodPost)
	api.HandleFunc("/library/prune", ms.handlePruneLibrary).Methods(http.MethodPost)
	api.HandleFunc("/library/jobs", ms.handleGetJobs).Methods(http.MethodGet)
	api.HandleFunc("/library/jobs/{id}", ms.handleGetJob).Methods(http.MethodGet)

	// Playlist routes
	api.HandleFunc("/playlists", ms.handleGetPlaylists).Methods(http.MethodGet)
	api.HandleFunc("/playlists", ms.handleCreatePlaylist).Methods(http.MethodPost)
	api.HandleFunc("/playlists/{id}", ms.handleGetPlaylist).Methods(http.MethodGet)
	api.HandleFunc("/playlists/{id}", ms.handleUpdatePlaylist).Methods(http.MethodPut)
	api.HandleFunc("/playlists/{id}", ms.handleDeletePlaylist).Methods(http.MethodDelete)
	api.HandleFunc("/playlists/{id}/items", ms.handleGetPlaylistItems).Methods(http.MethodGet)
	api.HandleFunc("/playlists/{id}/items", ms.handleAddPlaylistItem).Methods(http.MethodPost)
	api.HandleFunc("/playlists/{id}/items", ms.handleClearPlaylist).Methods(http.MethodDelete)
	api.HandleFunc("/playlists/{id}/items/{mediaId}", ms.handleRemovePlaylistItem).Methods(http.MethodDelete)
	api.HandleFunc("/playlists/{id}/items/{mediaId}/position", ms.handleMovePlaylistItem).Methods(http.MethodPut)

	// Player state routes
	api.HandleFunc("/player/state", ms.handleGetPlayerState).Methods(http.MethodGet)
	api.HandleFunc("/player/play/{id}", ms.handlePlay).Methods(http.MethodPost)
	api.HandleFunc("/player/update", ms.handleUpdatePlayerState).Methods(http.MethodPost)

	api.HandleFunc("/events/recent", ms.handleRecentEvents).Methods(http.MethodGet)

	// CORS preflight; the middleware writes the headers
	r.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	ms.router = r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (ms *MediaServer) Start(ctx context.Context) error {
	count, err := ms.DB.Queries().CountMediaEntries(ctx)
	if err != nil {
		ms.logger.WithError(err).Warn("Could not count catalog entries")
	}

	server := &http.Server{
		Addr:        ms.config.GetAddress(),
		Handler:     ms.Handler(),
		ReadTimeout: time.Duration(ms.config.Server.ReadTimeout) * time.Second,
		// event streams end with ctx
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	ms.logger.WithFields(logrus.Fields{
		"address": "http://" + ms.config.GetAddress(),
		"entries": count,
	}).Info("mediaplus server starting")

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	ms.logger.Info("Shutting down media server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	ms.logger.Info("Media server shutdown complete")
	return nil
}
