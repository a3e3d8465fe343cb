package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"TuneScope/config"
	"TuneScope/core/analysis"
	"TuneScope/core/audio"
	"TuneScope/core/ingest"
	"TuneScope/db"
	"TuneScope/logger"
	"TuneScope/repository"

	"github.com/spf13/cobra"
)

var watchDir string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a directory and analyze dropped audio files",
	Long: `Monitor a drop directory for new audio files and run each one through the
analysis pipeline, persisting the resulting track records for the configured owner.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		if watchDir != "" {
			cfg.WatchDir = watchDir
		}
		if cfg.WatchDir == "" {
			log.Fatal("No watch directory configured (WATCH_DIR or --dir)")
		}

		logger.InitLogger(logger.Config{
			Level:      logger.LogLevel(cfg.LogLevel),
			OutputPath: cfg.LogPath,
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
		})

		if err := db.ConnectGormDB(cfg); err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.CloseGormDB()
		if err := db.AutoMigrateModels(); err != nil {
			log.Fatalf("Failed to migrate schema: %v", err)
		}

		repo := repository.NewGormTrackRepository(db.GormDB)
		agg := analysis.NewAggregator(analysis.DefaultStages(), analysis.Options{
			InstrumentLimit: cfg.InstrumentLimit,
		})
		decoder := audio.NewFFmpegDecoder(cfg.FFmpegPath)

		watcher, err := ingest.NewWatcher(cfg, decoder, agg, repo)
		if err != nil {
			log.Fatalf("Failed to create watcher: %v", err)
		}
		defer watcher.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-stop
			cancel()
		}()

		log.Printf("Watching %s for audio files...", cfg.WatchDir)
		if err := watcher.Run(ctx); err != nil && err != context.Canceled {
			log.Fatalf("Watcher stopped: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchDir, "dir", "", "directory to watch (overrides WATCH_DIR)")
}
