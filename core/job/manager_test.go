package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"stemlab/core/separator"
	"stemlab/model"
	"stemlab/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fakeAnalyzer struct {
	duration float64
	durErr   error
	bpm      float64
	bpmErr   error
}

func (f *fakeAnalyzer) Duration(ctx context.Context, path string) (float64, error) {
	return f.duration, f.durErr
}

func (f *fakeAnalyzer) BPM(ctx context.Context, path string) (float64, error) {
	return f.bpm, f.bpmErr
}

// fakeSeparator writes empty stem files the way the real engine lays them out.
type fakeSeparator struct {
	err   error
	delay time.Duration
}

func (f *fakeSeparator) Split(ctx context.Context, inputPath, outputDir string, stemCount int) (separator.StemFilePaths, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	names, err := model.StemNames(stemCount)
	if err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	stemDir := filepath.Join(outputDir, base)
	if err := os.MkdirAll(stemDir, 0755); err != nil {
		return nil, err
	}
	paths := make(separator.StemFilePaths, len(names))
	for _, name := range names {
		p := filepath.Join(stemDir, model.StemFilename(name))
		if err := os.WriteFile(p, []byte(name), 0644); err != nil {
			return nil, err
		}
		paths[name] = p
	}
	return paths, nil
}

func newTestRepo(t *testing.T) repository.TrackRepository {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(&model.Track{}, &model.Stem{}, &model.Sample{}, &model.Loop{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repository.NewTrackRepository(gdb)
}

func writeSource(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("audio"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func waitTerminal(t *testing.T, m *Manager, id string) Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := m.Poll(id)
		if err != nil {
			t.Fatalf("Poll(%s): %v", id, err)
		}
		if snap.State.Terminal() {
			return snap
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal state", id)
	return Snapshot{}
}

func TestSubmitRejectsBadStemCount(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(&fakeAnalyzer{}, &fakeSeparator{}, newTestRepo(t), filepath.Join(dir, "output"), nil)
	src := writeSource(t, dir, "song.mp3")

	for _, bad := range []int{0, 1, 3, 6} {
		if _, err := m.Submit(SubmitRequest{AudioPath: src, WorkDir: dir, StemCount: bad}); err == nil {
			t.Errorf("Submit with stemCount=%d should fail", bad)
		}
	}
	for _, good := range []int{2, 4, 5} {
		id, err := m.Submit(SubmitRequest{
			AudioPath: src,
			WorkDir:   filepath.Join(dir, fmt.Sprintf("job%d", good)),
			TrackName: fmt.Sprintf("track%d", good),
			StemCount: good,
		})
		if err != nil {
			t.Errorf("Submit with stemCount=%d: %v", good, err)
			continue
		}
		waitTerminal(t, m, id)
	}
}

func TestFourStemLifecycle(t *testing.T) {
	dir := t.TempDir()
	outputDir := filepath.Join(dir, "output")
	repo := newTestRepo(t)
	m := NewManager(
		&fakeAnalyzer{duration: 180, bpm: 120},
		&fakeSeparator{delay: 20 * time.Millisecond},
		repo, outputDir, nil,
	)
	src := writeSource(t, dir, filepath.Join("work", "My Song.mp3"))

	id, err := m.Submit(SubmitRequest{AudioPath: src, WorkDir: filepath.Join(dir, "work"), StemCount: 4})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// States must only ever move forward.
	order := map[State]int{
		StateQueued: 0, StateAnalyzing: 1, StateSeparating: 2,
		StateFinalizing: 3, StateComplete: 4, StateFailed: 4,
	}
	last := -1
	var final Snapshot
	for {
		snap, err := m.Poll(id)
		if err != nil {
			t.Fatalf("Poll: %v", err)
		}
		if order[snap.State] < last {
			t.Fatalf("state went backwards: %s after rank %d", snap.State, last)
		}
		last = order[snap.State]
		if snap.State.Terminal() {
			final = snap
			break
		}
		time.Sleep(time.Millisecond)
	}

	if final.State != StateComplete {
		t.Fatalf("final state %s (reason %q), want complete", final.State, final.Reason)
	}
	if len(final.Stems) != 4 {
		t.Fatalf("got %d stems, want 4", len(final.Stems))
	}
	want := map[string]bool{"vocals": true, "drums": true, "bass": true, "other": true}
	for _, stem := range final.Stems {
		if !want[stem.Name] {
			t.Errorf("unexpected stem %q", stem.Name)
		}
		if _, err := os.Stat(filepath.Join(outputDir, "My Song", stem.Filename)); err != nil {
			t.Errorf("stem file %s missing: %v", stem.Filename, err)
		}
	}

	track, err := repo.GetTrackByID(final.TrackID)
	if err != nil {
		t.Fatalf("registered track not found: %v", err)
	}
	if track.Name != "My Song" || track.StemCount != 4 || len(track.Stems) != 4 {
		t.Errorf("unexpected registered track %+v", track)
	}
	if track.BPM == nil || *track.BPM != 120 {
		t.Errorf("track BPM = %v, want 120", track.BPM)
	}
	if _, err := os.Stat(filepath.Join(outputDir, "My Song", "original.mp3")); err != nil {
		t.Errorf("original audio not kept: %v", err)
	}
}

func TestSeparatorFailureFailsJob(t *testing.T) {
	dir := t.TempDir()
	repo := newTestRepo(t)
	m := NewManager(
		&fakeAnalyzer{duration: 60},
		&fakeSeparator{err: errors.New("engine crashed")},
		repo, filepath.Join(dir, "output"), nil,
	)
	src := writeSource(t, dir, "boom.mp3")

	id, err := m.Submit(SubmitRequest{AudioPath: src, WorkDir: dir, StemCount: 2})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	snap := waitTerminal(t, m, id)
	if snap.State != StateFailed {
		t.Fatalf("state = %s, want failed", snap.State)
	}
	if !strings.Contains(snap.Reason, "engine crashed") {
		t.Errorf("reason %q does not carry the engine error", snap.Reason)
	}

	tracks, err := repo.GetAllTracks()
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 0 {
		t.Errorf("%d tracks registered despite failure", len(tracks))
	}
}

func TestDuplicateNameFailsJobButKeepsFiles(t *testing.T) {
	dir := t.TempDir()
	outputDir := filepath.Join(dir, "output")
	repo := newTestRepo(t)
	if _, err := repo.CreateTrackWithStems(&model.Track{Name: "taken", StemCount: 2}); err != nil {
		t.Fatal(err)
	}

	m := NewManager(&fakeAnalyzer{duration: 60}, &fakeSeparator{}, repo, outputDir, nil)
	src := writeSource(t, dir, "taken.mp3")

	id, err := m.Submit(SubmitRequest{AudioPath: src, WorkDir: filepath.Join(dir, "job"), StemCount: 2})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	snap := waitTerminal(t, m, id)
	if snap.State != StateFailed {
		t.Fatalf("state = %s, want failed", snap.State)
	}

	// The produced stems stay on disk for manual inspection.
	for _, name := range []string{"vocals.wav", "accompaniment.wav"} {
		if _, err := os.Stat(filepath.Join(outputDir, "taken", name)); err != nil {
			t.Errorf("stem file %s was discarded: %v", name, err)
		}
	}
}

func TestAnalysisFailureIsNonFatal(t *testing.T) {
	dir := t.TempDir()
	repo := newTestRepo(t)
	m := NewManager(
		&fakeAnalyzer{durErr: errors.New("probe failed"), bpmErr: errors.New("no beat")},
		&fakeSeparator{},
		repo, filepath.Join(dir, "output"), nil,
	)
	src := writeSource(t, dir, "quiet.mp3")

	id, err := m.Submit(SubmitRequest{AudioPath: src, WorkDir: filepath.Join(dir, "job"), StemCount: 2})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	snap := waitTerminal(t, m, id)
	if snap.State != StateComplete {
		t.Fatalf("state = %s (reason %q), want complete", snap.State, snap.Reason)
	}

	track, err := repo.GetTrackByID(snap.TrackID)
	if err != nil {
		t.Fatal(err)
	}
	if track.BPM != nil || track.Duration != nil {
		t.Errorf("expected null analysis metadata, got bpm=%v duration=%v", track.BPM, track.Duration)
	}
}

func TestCleanupIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(&fakeAnalyzer{duration: 60}, &fakeSeparator{}, newTestRepo(t), filepath.Join(dir, "output"), nil)

	workDir := filepath.Join(dir, "job")
	src := writeSource(t, dir, filepath.Join("job", "gone.mp3"))

	id, err := m.Submit(SubmitRequest{AudioPath: src, WorkDir: workDir, StemCount: 2})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitTerminal(t, m, id)

	m.Cleanup(id)
	if _, err := os.Stat(workDir); !os.IsNotExist(err) {
		t.Error("work directory survived cleanup")
	}
	if _, err := m.Poll(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Poll after cleanup = %v, want ErrNotFound", err)
	}

	// Unknown and repeated ids are benign no-ops.
	m.Cleanup(id)
	m.Cleanup("never-existed")
}
