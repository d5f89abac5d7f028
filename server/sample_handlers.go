package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"stemlab/logger"
	"stemlab/model"
	"stemlab/repository"

	"github.com/gorilla/mux"
)

// createSampleRequest is the body of POST /api/samples.
type createSampleRequest struct {
	TrackName string  `json:"trackName"`
	StemName  string  `json:"stemName"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
}

// sourcePath resolves the audio file a selection is carved from: a stem file
// inside the track folder, or the kept original when stemName is "original".
func (h *APIHandler) sourcePath(track *model.Track, stemName string) (string, error) {
	trackDir := filepath.Join(h.cfg.OutputDir, track.Name)

	if stemName == model.OriginalStem {
		if track.OriginalFilename == "" {
			return "", errors.New("track has no original audio on record")
		}
		return filepath.Join(trackDir, track.OriginalFilename), nil
	}

	for _, stem := range track.Stems {
		if stem.Name == stemName {
			return filepath.Join(trackDir, stem.Filename), nil
		}
	}
	return "", errors.New("no such stem on this track")
}

// GetSamplesHandler lists all samples, newest first.
func (h *APIHandler) GetSamplesHandler(w http.ResponseWriter, r *http.Request) {
	samples, err := h.sampleRepo.GetAllSamples()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, samples)
}

// CreateSampleHandler extracts a time range of a stem (or the original) into
// a standalone sample file and registers it.
func (h *APIHandler) CreateSampleHandler(w http.ResponseWriter, r *http.Request) {
	var req createSampleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	track, err := h.trackRepo.GetTrackByName(req.TrackName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Track not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := model.ValidateRange(req.StartTime, req.EndTime, track.Duration); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	src, err := h.sourcePath(track, req.StemName)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	filename := model.SampleFilename(track.Name, req.StemName, req.StartTime, req.EndTime)
	if exists, err := h.sampleRepo.SampleExists(filename); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	} else if exists {
		writeError(w, http.StatusConflict, "An identical sample already exists")
		return
	}

	dst := filepath.Join(h.cfg.SampleDir, filename)
	if err := h.extractor.ExtractRange(r.Context(), src, dst, req.StartTime, req.EndTime); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sample := &model.Sample{
		TrackName: track.Name,
		StemName:  req.StemName,
		Filename:  filename,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Duration:  req.EndTime - req.StartTime,
	}
	if _, err := h.sampleRepo.CreateSample(sample); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			writeError(w, http.StatusConflict, "An identical sample already exists")
			return
		}
		os.Remove(dst)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("sample created",
		logger.String("track", track.Name),
		logger.String("stem", req.StemName),
		logger.String("file", filename))
	writeJSON(w, http.StatusCreated, sample)
}

// DeleteSampleHandler removes a sample row and its file.
func (h *APIHandler) DeleteSampleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid sample id")
		return
	}

	sample, err := h.sampleRepo.GetSampleByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Sample not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := h.sampleRepo.DeleteSample(id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Sample not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := os.Remove(filepath.Join(h.cfg.SampleDir, sample.Filename)); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to remove sample file",
			logger.String("file", sample.Filename), logger.ErrorField(err))
	}
	w.WriteHeader(http.StatusNoContent)
}
