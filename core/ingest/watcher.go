package ingest

import (
	"context"
	"fmt"
	"os"
	"time"

	"TuneScope/config"
	"TuneScope/core/analysis"
	"TuneScope/core/audio"
	"TuneScope/logger"

	"github.com/fsnotify/fsnotify"
)

// settleDelay is how long a new file must be untouched before it is decoded;
// it keeps the watcher off files that are still being copied in.
const settleDelay = 2 * time.Second

// Watcher monitors a drop directory and runs every new audio file through
// the analysis pipeline for the configured owner.
type Watcher struct {
	cfg      *config.Config
	decoder  audio.Decoder
	analyzer analysis.Analyzer
	store    analysis.TrackStore
	fs       *fsnotify.Watcher
}

// NewWatcher creates a watcher over cfg.WatchDir.
func NewWatcher(cfg *config.Config, decoder audio.Decoder, analyzer analysis.Analyzer, store analysis.TrackStore) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fs.Add(cfg.WatchDir); err != nil {
		fs.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", cfg.WatchDir, err)
	}
	return &Watcher{cfg: cfg, decoder: decoder, analyzer: analyzer, store: store, fs: fs}, nil
}

// Close releases the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// Run processes filesystem events until the context is cancelled. Each file
// is handled in isolation: a bad file is logged and skipped.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !audio.SupportedExt(event.Name) {
				continue
			}
			w.processFile(ctx, event.Name)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", logger.ErrorField(err))
		}
	}
}

func (w *Watcher) processFile(ctx context.Context, path string) {
	if !waitForSettle(ctx, path) {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		logger.Warn("dropped file vanished before analysis", logger.String("path", path))
		return
	}

	handle, err := w.decoder.Decode(ctx, path)
	if err != nil {
		logger.Error("failed to decode dropped file", logger.String("path", path), logger.ErrorField(err))
		return
	}

	rec, err := w.analyzer.Aggregate(ctx, handle, analysis.Request{
		OwnerID:  w.cfg.WatchOwnerID,
		Filename: info.Name(),
		Format:   audio.Format(path),
		FileSize: info.Size(),
		Config:   analysis.DefaultStageConfig(),
	})
	if err != nil {
		logger.Warn("dropped file is unanalyzable", logger.String("path", path), logger.ErrorField(err))
		return
	}

	if err := w.store.Create(ctx, rec); err != nil {
		logger.Error("failed to persist analyzed drop", logger.String("path", path), logger.ErrorField(err))
		return
	}

	logger.Info("analyzed dropped file",
		logger.String("filename", info.Name()),
		logger.String("trackId", rec.ID),
		logger.Float64("bpm", *rec.BPM),
		logger.String("key", *rec.Key))
}

// waitForSettle polls the file size until it stops growing.
func waitForSettle(ctx context.Context, path string) bool {
	var lastSize int64 = -1
	for {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(settleDelay):
		}

		info, err := os.Stat(path)
		if err != nil {
			return false
		}
		if info.Size() == lastSize {
			return true
		}
		lastSize = info.Size()
	}
}
