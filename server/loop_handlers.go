package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"stemlab/logger"
	"stemlab/model"
	"stemlab/repository"

	"github.com/gorilla/mux"
)

// createLoopRequest is the body of POST /api/loops. A loop is rendered either
// from a track stem (sourceType "stem", addressed by track and stem name) or
// from an existing sample (sourceType "sample", addressed by sampleId with
// times relative to the sample).
type createLoopRequest struct {
	SourceType string  `json:"sourceType"`
	TrackName  string  `json:"trackName"`
	StemName   string  `json:"stemName"`
	SampleID   int64   `json:"sampleId"`
	StartTime  float64 `json:"startTime"`
	EndTime    float64 `json:"endTime"`
	LoopCount  int     `json:"loopCount"`
}

// GetLoopsHandler lists all loops, newest first.
func (h *APIHandler) GetLoopsHandler(w http.ResponseWriter, r *http.Request) {
	loops, err := h.loopRepo.GetAllLoops()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, loops)
}

// CreateLoopHandler renders a repeated time range into a loop file and
// registers it.
func (h *APIHandler) CreateLoopHandler(w http.ResponseWriter, r *http.Request) {
	var req createLoopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if !model.ValidLoopCount(req.LoopCount) {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("invalid loop count %d: must be one of %v", req.LoopCount, model.ValidLoopCounts))
		return
	}
	if req.SourceType == "" {
		req.SourceType = model.LoopSourceStem
	}

	var (
		src       string
		trackName string
		stemName  string
	)
	switch req.SourceType {
	case model.LoopSourceStem:
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
		src, err = h.sourcePath(track, req.StemName)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		trackName, stemName = track.Name, req.StemName

	case model.LoopSourceSample:
		sample, err := h.sampleRepo.GetSampleByID(req.SampleID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				writeError(w, http.StatusNotFound, "Sample not found")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if err := model.ValidateRange(req.StartTime, req.EndTime, &sample.Duration); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		src = filepath.Join(h.cfg.SampleDir, sample.Filename)
		trackName, stemName = sample.TrackName, sample.StemName

	default:
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("invalid sourceType %q: must be %q or %q", req.SourceType, model.LoopSourceStem, model.LoopSourceSample))
		return
	}

	filename := model.LoopFilename(trackName, stemName, req.StartTime, req.EndTime, req.LoopCount)
	if exists, err := h.loopRepo.LoopExists(filename); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	} else if exists {
		writeError(w, http.StatusConflict, "An identical loop already exists")
		return
	}

	dst := filepath.Join(h.cfg.LoopDir, filename)
	if err := h.extractor.RenderLoop(r.Context(), src, dst, req.StartTime, req.EndTime, req.LoopCount); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	loop := &model.Loop{
		SourceType: req.SourceType,
		TrackName:  trackName,
		StemName:   stemName,
		Filename:   filename,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		LoopCount:  req.LoopCount,
		Duration:   (req.EndTime - req.StartTime) * float64(req.LoopCount),
	}
	if _, err := h.loopRepo.CreateLoop(loop); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			writeError(w, http.StatusConflict, "An identical loop already exists")
			return
		}
		os.Remove(dst)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("loop created",
		logger.String("track", trackName),
		logger.String("stem", stemName),
		logger.Int("count", req.LoopCount),
		logger.String("file", filename))
	writeJSON(w, http.StatusCreated, loop)
}

// DeleteLoopHandler removes a loop row and its file.
func (h *APIHandler) DeleteLoopHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid loop id")
		return
	}

	loop, err := h.loopRepo.GetLoopByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Loop not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := h.loopRepo.DeleteLoop(id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Loop not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := os.Remove(filepath.Join(h.cfg.LoopDir, loop.Filename)); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to remove loop file",
			logger.String("file", loop.Filename), logger.ErrorField(err))
	}
	w.WriteHeader(http.StatusNoContent)
}
