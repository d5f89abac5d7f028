package job

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"stemlab/core/audio"
	"stemlab/core/separator"
	"stemlab/core/utils"
	"stemlab/logger"
	"stemlab/model"
	"stemlab/repository"
)

// Archiver mirrors a finished track folder to long-term storage. Optional;
// failures are logged, never fatal to the job.
type Archiver interface {
	ArchiveTrack(ctx context.Context, trackName string, files map[string]string) error
}

// record is one entry in the job table. Only the owning goroutine mutates it
// after Submit; pollers take snapshots under the record mutex.
type record struct {
	mu       sync.Mutex
	snapshot Snapshot
	workDir  string
}

// Manager drives separation jobs through their lifecycle and answers polls.
type Manager struct {
	analyzer  audio.Analyzer
	separator separator.Separator
	tracks    repository.TrackRepository
	archiver  Archiver
	outputDir string

	mu   sync.RWMutex
	jobs map[string]*record
}

// NewManager creates a job manager. archiver may be nil.
func NewManager(analyzer audio.Analyzer, sep separator.Separator, tracks repository.TrackRepository, outputDir string, archiver Archiver) *Manager {
	return &Manager{
		analyzer:  analyzer,
		separator: sep,
		tracks:    tracks,
		archiver:  archiver,
		outputDir: outputDir,
		jobs:      make(map[string]*record),
	}
}

// Submit validates the request, registers a queued job and starts its
// lifecycle on a background goroutine. A bad stem count is a caller error and
// never creates a job.
func (m *Manager) Submit(req SubmitRequest) (string, error) {
	if !model.ValidStemCount(req.StemCount) {
		return "", fmt.Errorf("invalid stem count %d: must be 2, 4, or 5", req.StemCount)
	}
	if _, err := os.Stat(req.AudioPath); err != nil {
		return "", fmt.Errorf("audio file not found at %s: %w", req.AudioPath, err)
	}

	id := uuid.NewString()
	rec := &record{
		snapshot: Snapshot{ID: id, State: StateQueued, Message: "Queued for processing..."},
		workDir:  req.WorkDir,
	}

	m.mu.Lock()
	m.jobs[id] = rec
	m.mu.Unlock()

	logger.Info("job submitted",
		logger.String("jobId", id),
		logger.String("audio", req.AudioPath),
		logger.Int("stems", req.StemCount))

	go m.run(id, rec, req)
	return id, nil
}

// Poll returns a snapshot of the job's current state, or ErrNotFound for an
// unknown or already-cleaned id.
func (m *Manager) Poll(id string) (Snapshot, error) {
	m.mu.RLock()
	rec, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return Snapshot{}, ErrNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	snap := rec.snapshot
	snap.Stems = append([]StemResult(nil), rec.snapshot.Stems...)
	return snap, nil
}

// Cleanup releases the job's scratch directory and drops it from the table.
// Idempotent: unknown ids are a no-op, never an error.
func (m *Manager) Cleanup(id string) {
	m.mu.Lock()
	rec, ok := m.jobs[id]
	if ok {
		delete(m.jobs, id)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	if rec.workDir != "" {
		if err := os.RemoveAll(rec.workDir); err != nil {
			logger.Warn("failed to remove job work directory",
				logger.String("jobId", id),
				logger.String("dir", rec.workDir),
				logger.ErrorField(err))
		}
	}
	logger.Info("job cleaned up", logger.String("jobId", id))
}

// setState advances the job. Transitions out of a terminal state are ignored,
// which keeps the lifecycle monotonic even if the worker races a failure.
func (m *Manager) setState(rec *record, state State, message string) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.snapshot.State.Terminal() {
		return
	}
	rec.snapshot.State = state
	rec.snapshot.Message = message
}

func (m *Manager) fail(id string, rec *record, reason string) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.snapshot.State.Terminal() {
		return
	}
	rec.snapshot.State = StateFailed
	rec.snapshot.Message = "Separation failed"
	rec.snapshot.Reason = reason
	logger.Error("job failed", logger.String("jobId", id), logger.String("reason", reason))
}

func (m *Manager) complete(id string, rec *record, trackID int64, stems []StemResult) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.snapshot.State.Terminal() {
		return
	}
	rec.snapshot.State = StateComplete
	rec.snapshot.Message = "Audio separation complete!"
	rec.snapshot.TrackID = trackID
	rec.snapshot.Stems = stems
	logger.Info("job complete", logger.String("jobId", id), logger.Int64("trackId", trackID))
}

// run is the single writer for this job's state. Collaborator panics and
// errors end the job, never the process.
func (m *Manager) run(id string, rec *record, req SubmitRequest) {
	defer func() {
		if r := recover(); r != nil {
			m.fail(id, rec, fmt.Sprintf("internal error: %v", r))
		}
	}()

	ctx := context.Background()

	trackName := req.TrackName
	if trackName == "" {
		base := filepath.Base(req.AudioPath)
		trackName = strings.TrimSuffix(base, filepath.Ext(base))
	}
	trackName = utils.SanitizeTrackName(trackName)

	// Analysis failures are non-fatal: separation proceeds with null metadata.
	m.setState(rec, StateAnalyzing, "Analyzing audio...")

	var durationPtr, bpmPtr *float64
	if duration, err := m.analyzer.Duration(ctx, req.AudioPath); err != nil {
		logger.Warn("duration analysis failed", logger.String("jobId", id), logger.ErrorField(err))
	} else {
		durationPtr = &duration
	}
	if bpm, err := m.analyzer.BPM(ctx, req.AudioPath); err != nil {
		logger.Warn("tempo analysis failed", logger.String("jobId", id), logger.ErrorField(err))
	} else {
		bpmPtr = &bpm
	}

	m.setState(rec, StateSeparating, "Separating audio into stems...")

	scratch := filepath.Join(req.WorkDir, "separated")
	stemPaths, err := m.separator.Split(ctx, req.AudioPath, scratch, req.StemCount)
	if err != nil {
		m.fail(id, rec, err.Error())
		return
	}

	m.setState(rec, StateFinalizing, "Registering track...")

	trackDir := filepath.Join(m.outputDir, trackName)
	if err := utils.EnsureDir(trackDir); err != nil {
		m.fail(id, rec, err.Error())
		return
	}

	// Move stems into the track folder under their canonical names, then keep
	// the source audio next to them. On any later failure the files stay on
	// disk for inspection; reconciliation can pick them up.
	stemModels := make([]model.Stem, 0, len(stemPaths))
	results := make([]StemResult, 0, len(stemPaths))
	archive := map[string]string{}
	stemNames, _ := model.StemNames(req.StemCount)
	for _, name := range stemNames {
		src := stemPaths[name]
		filename := model.StemFilename(name)
		dst := filepath.Join(trackDir, filename)
		if err := utils.MoveFile(src, dst); err != nil {
			m.fail(id, rec, err.Error())
			return
		}
		stemModels = append(stemModels, model.Stem{Name: name, Filename: filename, Duration: durationPtr})
		results = append(results, StemResult{Name: name, Filename: filename})
		archive[filepath.Join(trackName, filename)] = dst
	}

	originalName := model.OriginalFilename(filepath.Ext(req.AudioPath))
	originalDst := filepath.Join(trackDir, originalName)
	if err := utils.CopyFile(req.AudioPath, originalDst); err != nil {
		logger.Warn("failed to keep original audio",
			logger.String("jobId", id), logger.ErrorField(err))
		originalName = ""
	} else {
		archive[filepath.Join(trackName, originalName)] = originalDst
	}

	track := &model.Track{
		Name:             trackName,
		BPM:              bpmPtr,
		Duration:         durationPtr,
		StemCount:        req.StemCount,
		OriginalFilename: originalName,
		Stems:            stemModels,
	}
	trackID, err := m.tracks.CreateTrackWithStems(track)
	if err != nil {
		// Produced files are retained for manual inspection.
		m.fail(id, rec, fmt.Sprintf("failed to register track %q: %v", trackName, err))
		return
	}

	if m.archiver != nil {
		go func() {
			if err := m.archiver.ArchiveTrack(context.Background(), trackName, archive); err != nil {
				logger.Warn("track archive failed",
					logger.String("track", trackName), logger.ErrorField(err))
			}
		}()
	}

	m.complete(id, rec, trackID, results)
}
