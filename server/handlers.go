package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"stemlab/config"
	"stemlab/core/audio"
	"stemlab/core/fetcher"
	"stemlab/core/job"
	"stemlab/core/utils"
	"stemlab/logger"
	"stemlab/model"
	"stemlab/repository"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// maxUploadBytes caps a single uploaded audio file.
const maxUploadBytes = 200 << 20 // 200MB

// APIHandler carries the dependencies shared by all HTTP handlers.
type APIHandler struct {
	trackRepo  repository.TrackRepository
	sampleRepo repository.SampleRepository
	loopRepo   repository.LoopRepository
	jobs       *job.Manager
	analyzer   audio.Analyzer
	extractor  audio.Extractor
	fetch      fetcher.Fetcher
	cfg        *config.Config

	// uploadSem bounds concurrently running upload/fetch handlers so a burst
	// of submissions cannot exhaust disk bandwidth.
	uploadSem chan struct{}
}

// NewAPIHandler creates the API handler.
func NewAPIHandler(
	trackRepo repository.TrackRepository,
	sampleRepo repository.SampleRepository,
	loopRepo repository.LoopRepository,
	jobs *job.Manager,
	analyzer audio.Analyzer,
	extractor audio.Extractor,
	fetch fetcher.Fetcher,
	cfg *config.Config,
) *APIHandler {
	return &APIHandler{
		trackRepo:  trackRepo,
		sampleRepo: sampleRepo,
		loopRepo:   loopRepo,
		jobs:       jobs,
		analyzer:   analyzer,
		extractor:  extractor,
		fetch:      fetch,
		cfg:        cfg,
		uploadSem:  make(chan struct{}, 2),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// acquireUpload takes an upload slot without blocking. Returns false and
// answers 429 when the server is already saturated.
func (h *APIHandler) acquireUpload(w http.ResponseWriter) bool {
	select {
	case h.uploadSem <- struct{}{}:
		return true
	default:
		writeError(w, http.StatusTooManyRequests, "Too many uploads in progress, try again shortly")
		return false
	}
}

func (h *APIHandler) releaseUpload() {
	<-h.uploadSem
}

// stemCountFromForm reads the requested separation width, defaulting to 4.
func stemCountFromForm(value string) (int, error) {
	if value == "" {
		return 4, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || !model.ValidStemCount(n) {
		return 0, fmt.Errorf("invalid stems value %q: must be 2, 4, or 5", value)
	}
	return n, nil
}

// saveUpload streams the multipart file into the given directory and returns
// the stored path.
func saveUpload(r *http.Request, field, dir string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", fmt.Errorf("missing %q file in form", field)
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "" || name == "." {
		return "", fmt.Errorf("upload has no usable filename")
	}
	if err := utils.EnsureDir(dir); err != nil {
		return "", err
	}

	dst := filepath.Join(dir, name)
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("failed to store upload: %w", err)
	}
	return dst, nil
}

// probe runs duration and BPM analysis, degrading each to null on failure.
func (h *APIHandler) probe(r *http.Request, path string) (duration, bpm *float64) {
	if d, err := h.analyzer.Duration(r.Context(), path); err != nil {
		logger.Warn("duration probe failed", logger.String("file", path), logger.ErrorField(err))
	} else {
		duration = &d
	}
	if b, err := h.analyzer.BPM(r.Context(), path); err != nil {
		logger.Warn("tempo probe failed", logger.String("file", path), logger.ErrorField(err))
	} else {
		bpm = &b
	}
	return duration, bpm
}

// AnalyzeHandler probes an uploaded audio file for tempo and duration without
// keeping it. Results are served from the Redis cache when the same content
// was probed before.
func (h *APIHandler) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	if !h.acquireUpload(w) {
		return
	}
	defer h.releaseUpload()

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to parse multipart form: %v", err))
		return
	}

	scratch, err := os.MkdirTemp("", "analyze-")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer os.RemoveAll(scratch)

	path, err := saveUpload(r, "audioFile", scratch)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	duration, bpm := h.probe(r, path)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"duration": duration,
		"bpm":      bpm,
	})
}

// fetchRequest is the body of POST /api/fetch.
type fetchRequest struct {
	URL string `json:"url"`
}

// FetchURLHandler downloads remote audio into a fresh upload scratch
// directory and returns where it landed plus its metadata. Separation is a
// separate step: the client passes uploadId and filename to /api/upload when
// ready.
func (h *APIHandler) FetchURLHandler(w http.ResponseWriter, r *http.Request) {
	if !h.acquireUpload(w) {
		return
	}
	defer h.releaseUpload()

	var req fetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "Missing url")
		return
	}

	uploadID := uuid.NewString()
	workDir := filepath.Join(h.cfg.UploadDir, uploadID)
	result, err := h.fetch.Fetch(r.Context(), req.URL, workDir)
	if err != nil {
		os.RemoveAll(workDir)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	duration, bpm := h.probe(r, result.AudioPath)

	filename := filepath.Base(result.AudioPath)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"uploadId":  uploadID,
		"filename":  filename,
		"audioUrl":  "/uploads/" + uploadID + "/" + filename,
		"title":     result.Title,
		"artist":    result.Artist,
		"thumbnail": result.Thumbnail,
		"duration":  duration,
		"bpm":       bpm,
	})
}

// UploadTrackHandler starts a separation job. Multipart form fields:
//   - audioFile: a fresh audio upload, or
//   - uploadId + filename: a file previously placed by /api/fetch
//   - stems: 2, 4, or 5 (optional, default 4)
//   - trackName: catalog name override (optional)
func (h *APIHandler) UploadTrackHandler(w http.ResponseWriter, r *http.Request) {
	if !h.acquireUpload(w) {
		return
	}
	defer h.releaseUpload()

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to parse multipart form: %v", err))
		return
	}

	stems, err := stemCountFromForm(r.FormValue("stems"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var workDir, audioPath string
	if uploadID := r.FormValue("uploadId"); uploadID != "" {
		// Re-use a fetched file. The id is one of our own uuids; reject
		// anything that could escape the upload root.
		filename := filepath.Base(r.FormValue("filename"))
		if uploadID != filepath.Base(uploadID) || filename == "" || filename == "." {
			writeError(w, http.StatusBadRequest, "Invalid uploadId or filename")
			return
		}
		workDir = filepath.Join(h.cfg.UploadDir, uploadID)
		audioPath = filepath.Join(workDir, filename)
		if _, err := os.Stat(audioPath); err != nil {
			writeError(w, http.StatusNotFound, "No fetched audio under that uploadId")
			return
		}
	} else {
		workDir = filepath.Join(h.cfg.UploadDir, uuid.NewString())
		audioPath, err = saveUpload(r, "audioFile", workDir)
		if err != nil {
			os.RemoveAll(workDir)
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	jobID, err := h.jobs.Submit(job.SubmitRequest{
		AudioPath: audioPath,
		WorkDir:   workDir,
		TrackName: r.FormValue("trackName"),
		StemCount: stems,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"jobId": jobID})
}

// StatusHandler answers a poll for one job.
func (h *APIHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]
	snap, err := h.jobs.Poll(jobID)
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// DeleteJobHandler releases a job's scratch space. Idempotent: deleting an
// unknown or already-deleted job still answers 204.
func (h *APIHandler) DeleteJobHandler(w http.ResponseWriter, r *http.Request) {
	h.jobs.Cleanup(mux.Vars(r)["jobId"])
	w.WriteHeader(http.StatusNoContent)
}
