package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"stemlab/config"
	"stemlab/core/job"
	"stemlab/core/separator"
	"stemlab/model"
	"stemlab/repository"

	"github.com/glebarez/sqlite"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fakeAnalyzer struct{}

func (fakeAnalyzer) Duration(ctx context.Context, path string) (float64, error) { return 60, nil }
func (fakeAnalyzer) BPM(ctx context.Context, path string) (float64, error)      { return 120, nil }

type fakeSeparator struct{}

func (fakeSeparator) Split(ctx context.Context, inputPath, outputDir string, stemCount int) (separator.StemFilePaths, error) {
	return nil, fmt.Errorf("not used in these tests")
}

// fakeExtractor records calls and writes a stub file so handlers see a real
// artifact on disk.
type fakeExtractor struct {
	err     error
	ranges  int
	renders int
}

func (e *fakeExtractor) ExtractRange(ctx context.Context, src, dst string, start, end float64) error {
	if e.err != nil {
		return e.err
	}
	e.ranges++
	return os.WriteFile(dst, []byte("wav"), 0644)
}

func (e *fakeExtractor) RenderLoop(ctx context.Context, src, dst string, start, end float64, count int) error {
	if e.err != nil {
		return e.err
	}
	e.renders++
	return os.WriteFile(dst, []byte("wav"), 0644)
}

type testEnv struct {
	handler   *APIHandler
	router    *mux.Router
	extractor *fakeExtractor
	tracks    repository.TrackRepository
	cfg       *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
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

	base := t.TempDir()
	cfg := &config.Config{
		UploadDir: filepath.Join(base, "uploads"),
		OutputDir: filepath.Join(base, "output"),
		SampleDir: filepath.Join(base, "samples"),
		LoopDir:   filepath.Join(base, "loops"),
	}
	for _, dir := range cfg.ArtifactDirs() {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
	}

	tracks := repository.NewTrackRepository(gdb)
	samples := repository.NewSampleRepository(gdb)
	loops := repository.NewLoopRepository(gdb)
	jobs := job.NewManager(fakeAnalyzer{}, fakeSeparator{}, tracks, cfg.OutputDir, nil)
	extractor := &fakeExtractor{}

	h := NewAPIHandler(tracks, samples, loops, jobs, fakeAnalyzer{}, extractor, nil, cfg)

	router := mux.NewRouter()
	router.HandleFunc("/api/analyze", h.AnalyzeHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/upload", h.UploadTrackHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/status/{jobId}", h.StatusHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/job/{jobId}", h.DeleteJobHandler).Methods(http.MethodDelete)
	router.HandleFunc("/api/tracks", h.GetTracksHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}", h.GetTrackHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}", h.DeleteTrackHandler).Methods(http.MethodDelete)
	router.HandleFunc("/api/samples", h.CreateSampleHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/samples", h.GetSamplesHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/loops", h.CreateLoopHandler).Methods(http.MethodPost)

	return &testEnv{handler: h, router: router, extractor: extractor, tracks: tracks, cfg: cfg}
}

// seedTrack registers a two-stem track with files on disk.
func (env *testEnv) seedTrack(t *testing.T, name string) *model.Track {
	t.Helper()
	duration := 60.0
	track := &model.Track{
		Name:             name,
		Duration:         &duration,
		StemCount:        2,
		OriginalFilename: "original.mp3",
		Stems: []model.Stem{
			{Name: "vocals", Filename: "vocals.wav"},
			{Name: "accompaniment", Filename: "accompaniment.wav"},
		},
	}
	if _, err := env.tracks.CreateTrackWithStems(track); err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(env.cfg.OutputDir, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{"vocals.wav", "accompaniment.wav", "original.mp3"} {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("wav"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return track
}

func (env *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

func TestCreateSampleLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.seedTrack(t, "Song")

	body := map[string]interface{}{
		"trackName": "Song", "stemName": "vocals",
		"startTime": 10.0, "endTime": 12.5,
	}
	rr := env.do(t, http.MethodPost, "/api/samples", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}

	var created model.Sample
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	wantName := model.SampleFilename("Song", "vocals", 10, 12.5)
	if created.Filename != wantName || created.Duration != 2.5 {
		t.Errorf("created sample %+v", created)
	}
	if _, err := os.Stat(filepath.Join(env.cfg.SampleDir, wantName)); err != nil {
		t.Errorf("sample file missing: %v", err)
	}

	// Same range again conflicts.
	rr = env.do(t, http.MethodPost, "/api/samples", body)
	if rr.Code != http.StatusConflict {
		t.Errorf("duplicate sample status %d, want 409", rr.Code)
	}
	if env.extractor.ranges != 1 {
		t.Errorf("extractor ran %d times, want 1", env.extractor.ranges)
	}
}

func TestCreateSampleValidation(t *testing.T) {
	env := newTestEnv(t)
	env.seedTrack(t, "Song")

	cases := []struct {
		name string
		body map[string]interface{}
		want int
	}{
		{"unknown track", map[string]interface{}{"trackName": "Nope", "stemName": "vocals", "startTime": 1.0, "endTime": 2.0}, http.StatusNotFound},
		{"unknown stem", map[string]interface{}{"trackName": "Song", "stemName": "theremin", "startTime": 1.0, "endTime": 2.0}, http.StatusNotFound},
		{"inverted range", map[string]interface{}{"trackName": "Song", "stemName": "vocals", "startTime": 5.0, "endTime": 3.0}, http.StatusBadRequest},
		{"past the end", map[string]interface{}{"trackName": "Song", "stemName": "vocals", "startTime": 50.0, "endTime": 70.0}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		if rr := env.do(t, http.MethodPost, "/api/samples", tc.body); rr.Code != tc.want {
			t.Errorf("%s: status %d, want %d", tc.name, rr.Code, tc.want)
		}
	}
	if env.extractor.ranges != 0 {
		t.Errorf("extractor ran on invalid input")
	}
}

func TestCreateSampleFromOriginal(t *testing.T) {
	env := newTestEnv(t)
	env.seedTrack(t, "Song")

	rr := env.do(t, http.MethodPost, "/api/samples", map[string]interface{}{
		"trackName": "Song", "stemName": "original",
		"startTime": 0.0, "endTime": 4.0,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCreateLoopFromStem(t *testing.T) {
	env := newTestEnv(t)
	env.seedTrack(t, "Song")

	rr := env.do(t, http.MethodPost, "/api/loops", map[string]interface{}{
		"trackName": "Song", "stemName": "vocals",
		"startTime": 4.0, "endTime": 6.0, "loopCount": 8,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}

	var created model.Loop
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.SourceType != model.LoopSourceStem || created.Duration != 16 {
		t.Errorf("created loop %+v", created)
	}

	// Unsupported multiplier is rejected before rendering.
	rr = env.do(t, http.MethodPost, "/api/loops", map[string]interface{}{
		"trackName": "Song", "stemName": "vocals",
		"startTime": 4.0, "endTime": 6.0, "loopCount": 3,
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("loop count 3 status %d, want 400", rr.Code)
	}
	if env.extractor.renders != 1 {
		t.Errorf("renderer ran %d times, want 1", env.extractor.renders)
	}
}

func TestDeleteTrackKeepsSamples(t *testing.T) {
	env := newTestEnv(t)
	track := env.seedTrack(t, "Song")

	rr := env.do(t, http.MethodPost, "/api/samples", map[string]interface{}{
		"trackName": "Song", "stemName": "vocals",
		"startTime": 1.0, "endTime": 2.0,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("sample setup failed: %s", rr.Body.String())
	}

	rr = env.do(t, http.MethodDelete, fmt.Sprintf("/api/tracks/%d", track.ID), nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status %d", rr.Code)
	}

	if _, err := os.Stat(filepath.Join(env.cfg.OutputDir, "Song")); !os.IsNotExist(err) {
		t.Error("track folder survived deletion")
	}

	rr = env.do(t, http.MethodGet, "/api/samples", nil)
	var samples []model.Sample
	if err := json.Unmarshal(rr.Body.Bytes(), &samples); err != nil {
		t.Fatal(err)
	}
	if len(samples) != 1 {
		t.Errorf("samples lost with their track: %d remain", len(samples))
	}

	// Deleting again is a 404, not a crash.
	rr = env.do(t, http.MethodDelete, fmt.Sprintf("/api/tracks/%d", track.ID), nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("second delete status %d, want 404", rr.Code)
	}
}

// multipartUpload builds a multipart body with one audio file and extra
// string fields.
func multipartUpload(t *testing.T, field, filename string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte("wav")); err != nil {
		t.Fatal(err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestAnalyzeReturnsProbedMetadata(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartUpload(t, "audioFile", "song.mp3", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Duration *float64 `json:"duration"`
		BPM      *float64 `json:"bpm"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Duration == nil || *resp.Duration != 60 || resp.BPM == nil || *resp.BPM != 120 {
		t.Errorf("analyze returned %s", rr.Body.String())
	}
}

func TestUploadStartsSeparationJob(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartUpload(t, "audioFile", "My Song.mp3", map[string]string{"stems": "4"})
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	jobID := resp["jobId"]
	if jobID == "" {
		t.Fatal("no jobId in response")
	}

	// The stub separator fails, so the job must reach FAILED, observably via
	// the status endpoint.
	deadline := time.Now().Add(5 * time.Second)
	for {
		rr = env.do(t, http.MethodGet, "/api/status/"+jobID, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("status poll %d: %s", rr.Code, rr.Body.String())
		}
		var snap job.Snapshot
		if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
			t.Fatal(err)
		}
		if snap.State.Terminal() {
			if snap.State != job.StateFailed || snap.Reason == "" {
				t.Errorf("terminal snapshot %+v", snap)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job never reached a terminal state")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Cleanup removes the scratch dir and forgets the job.
	rr = env.do(t, http.MethodDelete, "/api/job/"+jobID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("cleanup status %d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/api/status/"+jobID, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status after cleanup %d, want 404", rr.Code)
	}
}

func TestUploadRejectsBadStemCount(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartUpload(t, "audioFile", "song.mp3", map[string]string{"stems": "3"})
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status %d, want 400", rr.Code)
	}
}

func TestJobStatusEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/status/no-such-job", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown job status %d, want 404", rr.Code)
	}

	// Job deletion is idempotent even for unknown ids.
	rr = env.do(t, http.MethodDelete, "/api/job/no-such-job", nil)
	if rr.Code != http.StatusNoContent {
		t.Errorf("unknown job delete status %d, want 204", rr.Code)
	}
}
