package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"stemlab/logger"
	"stemlab/repository"

	"github.com/gorilla/mux"
)

// GetTracksHandler lists the catalog, newest first.
func (h *APIHandler) GetTracksHandler(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.trackRepo.GetAllTracks()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}

// GetTrackHandler returns one track with its stems.
func (h *APIHandler) GetTrackHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid track id")
		return
	}

	track, err := h.trackRepo.GetTrackByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Track not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, track)
}

// DeleteTrackHandler removes a track's rows and its folder on disk. Samples
// and loops carved from the track keep their rows and files; they reference
// the track by name only.
func (h *APIHandler) DeleteTrackHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid track id")
		return
	}

	track, err := h.trackRepo.GetTrackByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Track not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := h.trackRepo.DeleteTrack(id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Track not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Rows first, files second: if the folder removal fails the catalog is
	// already consistent and reconciliation will not resurrect the track by
	// name alone without stem files.
	trackDir := filepath.Join(h.cfg.OutputDir, track.Name)
	if err := os.RemoveAll(trackDir); err != nil {
		logger.Warn("failed to remove track folder",
			logger.String("track", track.Name), logger.ErrorField(err))
	}

	logger.Info("track deleted",
		logger.Int64("trackId", id), logger.String("track", track.Name))
	w.WriteHeader(http.StatusNoContent)
}
