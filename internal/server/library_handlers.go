package server

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"mediaplus/pkg/models"
)

// handleScanLibrary queues a library scan and answers 202 with its job.
// The optional type query parameter limits the scan to one class.
func (ms *MediaServer) handleScanLibrary(w http.ResponseWriter, r *http.Request) {
	var classes []models.MediaType
	if typeParam := r.URL.Query().Get("type"); typeParam != "" {
		mediaType, err := models.ParseMediaType(typeParam)
		if err != nil {
			ms.respondWithValidationError(w, r, models.ValidationError{Field: "type", Message: err.Error()})
			return
		}
		classes = append(classes, mediaType)
	}

	// the scan outlives the request
	job, _ := ms.Library.ScanAsync(context.WithoutCancel(r.Context()), classes...)

	ms.logger.WithField("job_id", job.ID).Info("Library scan queued")
	ms.respondJSON(w, http.StatusAccepted, job)
}

// handlePruneLibrary removes entries backed by transient provider grants.
func (ms *MediaServer) handlePruneLibrary(w http.ResponseWriter, r *http.Request) {
	removed, err := ms.Library.PruneProviderBacked(r.Context())
	if err != nil {
		ms.respondWithFailure(w, r, "Error pruning library", err)
		return
	}
	ms.respondJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}

// handleGetJobs lists remembered background jobs, oldest first.
func (ms *MediaServer) handleGetJobs(w http.ResponseWriter, r *http.Request) {
	ms.respondJSON(w, http.StatusOK, ms.Queue.Jobs())
}

func (ms *MediaServer) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := ms.Queue.Job(mux.Vars(r)["id"])
	if !ok {
		ms.respondWithError(w, r, http.StatusNotFound, "Job not found", nil)
		return
	}
	ms.respondJSON(w, http.StatusOK, job)
}
