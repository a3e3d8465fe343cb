package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"TuneScope/config"
	"TuneScope/core/analysis"
	"TuneScope/core/audio"
	"TuneScope/db"
	"TuneScope/logger"
	"TuneScope/repository"
	"TuneScope/storage"
)

// Start initializes dependencies and runs the HTTP server until interrupted.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		ReadTimeout:  5 * time.Minute, // uploads can be large
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("failed to connect to database", logger.ErrorField(err))
	}
	defer db.DB.Close()

	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("failed to initialize ORM", logger.ErrorField(err))
	}
	defer db.CloseGormDB()

	if err := db.AutoMigrateModels(); err != nil {
		logger.Fatal("failed to migrate schema", logger.ErrorField(err))
	}
	if err := db.EnsureIndexes(); err != nil {
		logger.Fatal("failed to ensure indexes", logger.ErrorField(err))
	}

	// Redis and MinIO are degradable: without them the API serves uncached
	// stats and keeps no audio archive.
	if err := db.ConnectRedis(cfg); err != nil {
		logger.Warn("redis unavailable, stats caching disabled", logger.ErrorField(err))
	} else {
		defer db.CloseRedis()
	}
	if err := storage.InitMinio(cfg); err != nil {
		logger.Warn("minio unavailable, audio archival disabled", logger.ErrorField(err))
	}

	decoder := audio.NewFFmpegDecoder(cfg.FFmpegPath)
	trackRepo := repository.NewGormTrackRepository(db.GormDB)
	aggregator := analysis.NewAggregator(analysis.DefaultStages(), analysis.Options{
		InstrumentLimit: cfg.InstrumentLimit,
	})
	coordinator := analysis.NewBatchCoordinator(aggregator, trackRepo, cfg.AnalysisWorkers)

	apiHandler := NewAPIHandler(trackRepo, decoder, aggregator, coordinator, cfg)

	router := mux.NewRouter()

	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// API Endpoints
	router.HandleFunc("/api/analyze", apiHandler.AuthMiddleware(apiHandler.AnalyzeHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/analyze/batch", apiHandler.AuthMiddleware(apiHandler.AnalyzeBatchHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/analyze/batch/ws", apiHandler.AuthMiddleware(apiHandler.BatchProgressHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks", apiHandler.AuthMiddleware(apiHandler.GetTracksHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/track/{id}", apiHandler.AuthMiddleware(apiHandler.GetTrackHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/track/{id}", apiHandler.AuthMiddleware(apiHandler.DeleteTrackHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/search", apiHandler.AuthMiddleware(apiHandler.SearchTracksHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/stats", apiHandler.AuthMiddleware(apiHandler.StatsHandler)).Methods(http.MethodGet)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	server.Handler = router

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", logger.ErrorField(err))
	}

	logger.Info("server stopped")
}
