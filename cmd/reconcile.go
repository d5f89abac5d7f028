package cmd

import (
	"context"
	"fmt"
	"log"

	"stemlab/cache"
	"stemlab/config"
	"stemlab/core/audio"
	"stemlab/core/utils"
	"stemlab/db"
	"stemlab/logger"
	"stemlab/reconcile"
	"stemlab/repository"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile the catalog with the files on disk",
	Long: `Scan the artifact directories and register every track folder, sample and
loop that is missing from the database. Stray uploads left over from
interrupted jobs are promoted into track folders. Purely additive: no
existing rows are modified or removed.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		logger.Init(logger.Config{Level: cfg.LogLevel, OutputPath: cfg.LogPath})

		for _, dir := range cfg.ArtifactDirs() {
			if err := utils.EnsureDir(dir); err != nil {
				log.Fatalf("Failed to create directory %s: %v", dir, err)
			}
		}

		gdb, err := db.Connect(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close(gdb)
		if err := db.Migrate(gdb); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}

		redisClient, err := cache.Connect(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer cache.Close(redisClient)

		processor := audio.NewFFmpegProcessor(cfg.FFmpegPath, cfg.FFprobePath, cfg.BeatToolPath)
		analyzer := cache.NewCachedAnalyzer(processor, redisClient)

		engine := reconcile.NewEngine(
			repository.NewTrackRepository(gdb),
			repository.NewSampleRepository(gdb),
			repository.NewLoopRepository(gdb),
			analyzer,
			cfg.UploadDir, cfg.OutputDir, cfg.SampleDir, cfg.LoopDir)

		res, err := engine.Run(context.Background())
		if err != nil {
			log.Fatalf("Reconciliation failed: %v", err)
		}

		fmt.Printf("Reconciliation complete: %d uploads promoted, %d tracks, %d samples, %d loops added (%d files skipped)\n",
			res.Promoted, res.TracksAdded, res.SamplesAdded, res.LoopsAdded, res.Skipped)
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
