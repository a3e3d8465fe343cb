package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TuneScope/config"
	"TuneScope/core/analysis"
	"TuneScope/core/audio"
	"TuneScope/model"
)

type stubDecoder struct{}

func (d *stubDecoder) Decode(ctx context.Context, path string) (*audio.Handle, error) {
	samples := make([]float64, audio.DecodeRate)
	for i := range samples {
		samples[i] = 0.1
	}
	return &audio.Handle{Samples: samples, SampleRate: audio.DecodeRate, Channels: 1}, nil
}

type stubAnalyzer struct{}

func (a *stubAnalyzer) Aggregate(ctx context.Context, h *audio.Handle, req analysis.Request) (*model.TrackRecord, error) {
	bpm := 120.0
	key := "C major"
	return &model.TrackRecord{
		ID:       "track-" + req.Filename,
		OwnerID:  req.OwnerID,
		Filename: req.Filename,
		Format:   req.Format,
		FileSize: req.FileSize,
		BPM:      &bpm,
		Key:      &key,
	}, nil
}

type recordingStore struct {
	mu      sync.Mutex
	created []*model.TrackRecord
}

func (s *recordingStore) Create(ctx context.Context, rec *model.TrackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, rec)
	return nil
}

func (s *recordingStore) snapshot() []*model.TrackRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.TrackRecord(nil), s.created...)
}

func TestWatcherAnalyzesDroppedFile(t *testing.T) {
	if testing.Short() {
		t.Skip("watcher settle delay makes this test slow")
	}

	dir := t.TempDir()
	cfg := &config.Config{WatchDir: dir, WatchOwnerID: 9}
	store := &recordingStore{}

	w, err := NewWatcher(cfg, &stubDecoder{}, &stubAnalyzer{}, store)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// An unsupported file must be ignored, an audio file analyzed.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("nope"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "drop.wav"), []byte("fake audio"), 0644))

	require.Eventually(t, func() bool {
		return len(store.snapshot()) == 1
	}, 15*time.Second, 200*time.Millisecond)

	created := store.snapshot()
	assert.Equal(t, "drop.wav", created[0].Filename)
	assert.Equal(t, int64(9), created[0].OwnerID)
	assert.Equal(t, "wav", created[0].Format)
	assert.Equal(t, int64(len("fake audio")), created[0].FileSize)
}

func TestNewWatcherRejectsMissingDir(t *testing.T) {
	cfg := &config.Config{WatchDir: filepath.Join(os.TempDir(), fmt.Sprintf("does-not-exist-%d", time.Now().UnixNano()))}
	_, err := NewWatcher(cfg, &stubDecoder{}, &stubAnalyzer{}, &recordingStore{})
	assert.Error(t, err)
}
