package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stemlab/cache"
	"stemlab/config"
	"stemlab/core/audio"
	"stemlab/core/fetcher"
	"stemlab/core/job"
	"stemlab/core/separator"
	"stemlab/core/utils"
	"stemlab/db"
	"stemlab/logger"
	"stemlab/reconcile"
	"stemlab/repository"
	"stemlab/storage"

	"github.com/gorilla/mux"
)

// Start wires the application together and serves HTTP until interrupted.
// Reconciliation runs to completion before the listener opens, so the first
// request already sees a catalog consistent with the filesystem.
func Start() {
	cfg := config.Load()

	logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		OutputPath: cfg.LogPath,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})

	for _, dir := range cfg.ArtifactDirs() {
		if err := utils.EnsureDir(dir); err != nil {
			logger.Fatal("failed to create artifact directory",
				logger.String("dir", dir), logger.ErrorField(err))
		}
	}

	gdb, err := db.Connect(cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", logger.ErrorField(err))
	}
	defer db.Close(gdb)
	if err := db.Migrate(gdb); err != nil {
		logger.Fatal("failed to migrate database", logger.ErrorField(err))
	}

	trackRepo := repository.NewTrackRepository(gdb)
	sampleRepo := repository.NewSampleRepository(gdb)
	loopRepo := repository.NewLoopRepository(gdb)

	redisClient, err := cache.Connect(cfg)
	if err != nil {
		logger.Fatal("failed to connect to redis", logger.ErrorField(err))
	}
	defer cache.Close(redisClient)

	archiver, err := storage.NewMinioArchiver(cfg)
	if err != nil {
		logger.Fatal("failed to connect to minio", logger.ErrorField(err))
	}

	processor := audio.NewFFmpegProcessor(cfg.FFmpegPath, cfg.FFprobePath, cfg.BeatToolPath)
	analyzer := cache.NewCachedAnalyzer(processor, redisClient)
	sep := separator.NewSpleeterSeparator(cfg.SeparatorPath)
	fetch := fetcher.NewYtdlpFetcher(cfg.YtdlpPath)

	var jobArchiver job.Archiver
	if archiver != nil {
		jobArchiver = archiver
	}
	jobs := job.NewManager(analyzer, sep, trackRepo, cfg.OutputDir, jobArchiver)

	engine := reconcile.NewEngine(trackRepo, sampleRepo, loopRepo, analyzer,
		cfg.UploadDir, cfg.OutputDir, cfg.SampleDir, cfg.LoopDir)
	if _, err := engine.Run(context.Background()); err != nil {
		logger.Fatal("startup reconciliation failed", logger.ErrorField(err))
	}

	watchCtx, stopWatcher := context.WithCancel(context.Background())
	defer stopWatcher()
	watcher, err := reconcile.NewWatcher(engine)
	if err != nil {
		logger.Warn("artifact watcher unavailable", logger.ErrorField(err))
	} else {
		defer watcher.Close()
		go watcher.Run(watchCtx)
	}

	apiHandler := NewAPIHandler(trackRepo, sampleRepo, loopRepo, jobs, analyzer, processor, fetch, cfg)

	router := mux.NewRouter()
	router.Use(corsMiddleware)

	// Separation pipeline.
	router.HandleFunc("/api/analyze", apiHandler.AnalyzeHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/fetch", apiHandler.FetchURLHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/upload", apiHandler.UploadTrackHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/status/{jobId}", apiHandler.StatusHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/status/{jobId}/ws", apiHandler.WSStatusHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/job/{jobId}", apiHandler.DeleteJobHandler).Methods(http.MethodDelete)

	// Library catalog.
	router.HandleFunc("/api/tracks", apiHandler.GetTracksHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}", apiHandler.GetTrackHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}", apiHandler.DeleteTrackHandler).Methods(http.MethodDelete)
	router.HandleFunc("/api/samples", apiHandler.GetSamplesHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/samples", apiHandler.CreateSampleHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/samples/{id}", apiHandler.DeleteSampleHandler).Methods(http.MethodDelete)
	router.HandleFunc("/api/loops", apiHandler.GetLoopsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/loops", apiHandler.CreateLoopHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/loops/{id}", apiHandler.DeleteLoopHandler).Methods(http.MethodDelete)

	// Artifact file serving.
	router.PathPrefix("/output/").Handler(
		http.StripPrefix("/output/", http.FileServer(http.Dir(cfg.OutputDir))))
	router.PathPrefix("/uploads/").Handler(
		http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))
	router.PathPrefix("/samples/").Handler(
		http.StripPrefix("/samples/", http.FileServer(http.Dir(cfg.SampleDir))))
	router.PathPrefix("/loops/").Handler(
		http.StripPrefix("/loops/", http.FileServer(http.Dir(cfg.LoopDir))))

	// Frontend UI.
	router.PathPrefix("/").Handler(newSPAHandler(cfg.WebAppDir))

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Minute, // large uploads
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", logger.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", logger.ErrorField(err))
	}
	logger.Info("server stopped")
}

// corsMiddleware opens the API to the browser frontend regardless of origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Range")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
