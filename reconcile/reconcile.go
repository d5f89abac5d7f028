package reconcile

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"stemlab/core/audio"
	"stemlab/core/utils"
	"stemlab/logger"
	"stemlab/model"
	"stemlab/repository"
)

// Engine makes the catalog an accurate reflection of the artifact
// directories. It only ever adds rows: the absence of a file is not proof of
// intent to delete, so catalog rows are removed exclusively by explicit
// delete operations.
type Engine struct {
	tracks   repository.TrackRepository
	samples  repository.SampleRepository
	loops    repository.LoopRepository
	analyzer audio.Analyzer

	uploadDir string
	outputDir string
	sampleDir string
	loopDir   string
}

// Result summarizes one reconciliation pass.
type Result struct {
	Promoted     int // legacy uploads moved into track folders
	TracksAdded  int
	SamplesAdded int
	LoopsAdded   int
	Skipped      int // unparseable or broken artifacts left alone
}

// NewEngine creates a reconciliation engine over the four artifact directories.
func NewEngine(
	tracks repository.TrackRepository,
	samples repository.SampleRepository,
	loops repository.LoopRepository,
	analyzer audio.Analyzer,
	uploadDir, outputDir, sampleDir, loopDir string,
) *Engine {
	return &Engine{
		tracks:    tracks,
		samples:   samples,
		loops:     loops,
		analyzer:  analyzer,
		uploadDir: uploadDir,
		outputDir: outputDir,
		sampleDir: sampleDir,
		loopDir:   loopDir,
	}
}

var audioExts = map[string]bool{
	".mp3": true, ".wav": true, ".flac": true,
	".m4a": true, ".ogg": true, ".aac": true,
}

// Run executes a full pass. Per-artifact failures are logged and skipped so
// one broken file cannot abort reconciliation of the rest. Safe to re-run any
// number of times: once the catalog matches the filesystem it is a no-op.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	var res Result

	e.promoteLegacyUploads(&res)
	e.reconcileTracks(ctx, &res)
	e.reconcileSamples(&res)
	e.reconcileLoops(&res)

	logger.Info("reconciliation finished",
		logger.Int("promoted", res.Promoted),
		logger.Int("tracksAdded", res.TracksAdded),
		logger.Int("samplesAdded", res.SamplesAdded),
		logger.Int("loopsAdded", res.LoopsAdded),
		logger.Int("skipped", res.Skipped))
	return res, nil
}

// promoteLegacyUploads moves audio files stranded at the top of the uploads
// directory (by older versions or interrupted jobs) into proper per-track
// output folders so the regular track pass can register them.
func (e *Engine) promoteLegacyUploads(res *Result) {
	entries, err := os.ReadDir(e.uploadDir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("cannot read uploads directory", logger.ErrorField(err))
		}
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !audioExts[ext] {
			continue
		}

		name := utils.SanitizeTrackName(strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())))
		src := filepath.Join(e.uploadDir, entry.Name())
		dst := filepath.Join(e.outputDir, name, model.OriginalFilename(ext))

		if _, err := os.Stat(dst); err == nil {
			// A promoted copy already exists; leave the stray upload alone.
			res.Skipped++
			continue
		}
		if err := utils.MoveFile(src, dst); err != nil {
			logger.Warn("failed to promote legacy upload",
				logger.String("file", entry.Name()), logger.ErrorField(err))
			res.Skipped++
			continue
		}
		logger.Info("promoted legacy upload",
			logger.String("file", entry.Name()), logger.String("track", name))
		res.Promoted++
	}
}

// allStemNames is every channel name any separation width can produce.
var allStemNames = []string{"vocals", "drums", "bass", "piano", "other", "accompaniment"}

// reconcileTracks registers untracked per-track output folders. Folders whose
// track name is already cataloged are left untouched.
func (e *Engine) reconcileTracks(ctx context.Context, res *Result) {
	entries, err := os.ReadDir(e.outputDir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("cannot read output directory", logger.ErrorField(err))
		}
		return
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()

		exists, err := e.tracks.TrackExists(name)
		if err != nil {
			logger.Warn("track existence check failed",
				logger.String("track", name), logger.ErrorField(err))
			res.Skipped++
			continue
		}
		if exists {
			continue
		}

		if err := e.registerTrackFolder(ctx, name, res); err != nil {
			logger.Warn("failed to reconcile track folder",
				logger.String("track", name), logger.ErrorField(err))
			res.Skipped++
		}
	}
}

func (e *Engine) registerTrackFolder(ctx context.Context, name string, res *Result) error {
	dir := filepath.Join(e.outputDir, name)

	var found []string
	for _, stem := range allStemNames {
		if _, err := os.Stat(filepath.Join(dir, model.StemFilename(stem))); err == nil {
			found = append(found, stem)
		}
	}
	if len(found) == 0 {
		// Nothing separated yet (e.g. a freshly promoted upload). Leave the
		// folder for a future pass once stems exist.
		logger.Debug("track folder has no stems yet", logger.String("track", name))
		res.Skipped++
		return nil
	}

	original := findOriginal(dir)

	// Metadata not encoded in filenames comes from the analyzer; failures
	// degrade to null rather than blocking registration.
	var durationPtr, bpmPtr *float64
	probeTarget := filepath.Join(dir, model.StemFilename(found[0]))
	if original != "" {
		probeTarget = filepath.Join(dir, original)
	}
	if duration, err := e.analyzer.Duration(ctx, probeTarget); err == nil {
		durationPtr = &duration
	}
	if bpm, err := e.analyzer.BPM(ctx, probeTarget); err == nil {
		bpmPtr = &bpm
	}

	stems := make([]model.Stem, 0, len(found))
	for _, stem := range found {
		stems = append(stems, model.Stem{
			Name:     stem,
			Filename: model.StemFilename(stem),
			Duration: durationPtr,
		})
	}

	track := &model.Track{
		Name:             name,
		BPM:              bpmPtr,
		Duration:         durationPtr,
		StemCount:        model.StemCountFor(found),
		OriginalFilename: original,
		Stems:            stems,
	}
	if _, err := e.tracks.CreateTrackWithStems(track); err != nil {
		return err
	}

	logger.Info("reconciled track from disk",
		logger.String("track", name), logger.Int("stems", len(found)))
	res.TracksAdded++
	return nil
}

// findOriginal returns the original.{ext} filename inside a track folder, or
// empty when the source audio was not kept.
func findOriginal(dir string) string {
	matches, err := filepath.Glob(filepath.Join(dir, model.OriginalStem+".*"))
	if err != nil || len(matches) == 0 {
		return ""
	}
	return filepath.Base(matches[0])
}

// reconcileSamples upserts catalog rows for sample files found on disk.
func (e *Engine) reconcileSamples(res *Result) {
	entries, err := os.ReadDir(e.sampleDir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("cannot read samples directory", logger.ErrorField(err))
		}
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		added, err := e.UpsertSampleFile(entry.Name())
		if err != nil {
			logger.Warn("failed to reconcile sample",
				logger.String("file", entry.Name()), logger.ErrorField(err))
			res.Skipped++
			continue
		}
		if added {
			res.SamplesAdded++
		}
	}
}

// reconcileLoops upserts catalog rows for loop files found on disk.
func (e *Engine) reconcileLoops(res *Result) {
	entries, err := os.ReadDir(e.loopDir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("cannot read loops directory", logger.ErrorField(err))
		}
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		added, err := e.UpsertLoopFile(entry.Name())
		if err != nil {
			logger.Warn("failed to reconcile loop",
				logger.String("file", entry.Name()), logger.ErrorField(err))
			res.Skipped++
			continue
		}
		if added {
			res.LoopsAdded++
		}
	}
}

// UpsertSampleFile registers one sample file by its encoded filename
// metadata. Unparseable names and already-cataloged files report added=false
// with no error. Also used by the directory watcher.
func (e *Engine) UpsertSampleFile(filename string) (bool, error) {
	meta, ok := model.ParseSampleFilename(filename)
	if !ok {
		logger.Debug("skipping unparseable sample filename", logger.String("file", filename))
		return false, nil
	}

	exists, err := e.samples.SampleExists(filepath.Base(filename))
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	sample := &model.Sample{
		TrackName: meta.TrackName,
		StemName:  meta.StemName,
		Filename:  filepath.Base(filename),
		StartTime: meta.Start,
		EndTime:   meta.End,
		Duration:  meta.End - meta.Start,
	}
	if _, err := e.samples.CreateSample(sample); err != nil {
		return false, err
	}
	return true, nil
}

// UpsertLoopFile registers one loop file by its encoded filename metadata.
// The filename convention carries no source-type marker, so reconciled loops
// are recorded as stem-sourced.
func (e *Engine) UpsertLoopFile(filename string) (bool, error) {
	meta, ok := model.ParseLoopFilename(filename)
	if !ok {
		logger.Debug("skipping unparseable loop filename", logger.String("file", filename))
		return false, nil
	}

	exists, err := e.loops.LoopExists(filepath.Base(filename))
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	loop := &model.Loop{
		SourceType: model.LoopSourceStem,
		TrackName:  meta.TrackName,
		StemName:   meta.StemName,
		Filename:   filepath.Base(filename),
		StartTime:  meta.Start,
		EndTime:    meta.End,
		LoopCount:  meta.Count,
		Duration:   (meta.End - meta.Start) * float64(meta.Count),
	}
	if _, err := e.loops.CreateLoop(loop); err != nil {
		return false, err
	}
	return true, nil
}
