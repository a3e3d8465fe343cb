package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TuneScope/config"
	"TuneScope/core/analysis"
	"TuneScope/core/audio"
	"TuneScope/core/auth"
	"TuneScope/model"
	"TuneScope/repository"
)

const testSecret = "handler-test-secret"

// fakeTrackRepo is an in-memory TrackRepository.
type fakeTrackRepo struct {
	mu        sync.Mutex
	tracks    []*model.TrackRecord
	createErr error
}

func (f *fakeTrackRepo) Create(ctx context.Context, rec *model.TrackRecord) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracks = append(f.tracks, rec)
	return nil
}

func (f *fakeTrackRepo) GetByID(ctx context.Context, ownerID int64, id string) (*model.TrackRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.tracks {
		if rec.ID == id && rec.OwnerID == ownerID {
			return rec, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeTrackRepo) ListByOwner(ctx context.Context, ownerID int64) ([]*model.TrackRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.TrackRecord
	for _, rec := range f.tracks {
		if rec.OwnerID == ownerID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeTrackRepo) Search(ctx context.Context, ownerID int64, q repository.SearchQuery) ([]*model.TrackRecord, error) {
	recs, _ := f.ListByOwner(ctx, ownerID)
	var out []*model.TrackRecord
	for _, rec := range recs {
		if q.MinBPM != nil && (rec.BPM == nil || *rec.BPM < *q.MinBPM) {
			continue
		}
		if q.MaxBPM != nil && (rec.BPM == nil || *rec.BPM > *q.MaxBPM) {
			continue
		}
		if q.Key != "" && (rec.Key == nil || !strings.Contains(strings.ToLower(*rec.Key), strings.ToLower(q.Key))) {
			continue
		}
		if q.Filename != "" && !strings.Contains(strings.ToLower(rec.Filename), strings.ToLower(q.Filename)) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeTrackRepo) Delete(ctx context.Context, ownerID int64, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, rec := range f.tracks {
		if rec.ID == id && rec.OwnerID == ownerID {
			f.tracks = append(f.tracks[:i], f.tracks[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

// stubDecoder hands back a fixed non-silent handle for every path.
type stubDecoder struct{}

func (d *stubDecoder) Decode(ctx context.Context, path string) (*audio.Handle, error) {
	samples := make([]float64, audio.DecodeRate)
	for i := range samples {
		samples[i] = 0.1
	}
	return &audio.Handle{Samples: samples, SampleRate: audio.DecodeRate, Channels: 1}, nil
}

// stubAnalyzer fails for filenames starting with "silent" and for nil handles.
type stubAnalyzer struct{}

func (a *stubAnalyzer) Aggregate(ctx context.Context, h *audio.Handle, req analysis.Request) (*model.TrackRecord, error) {
	if h == nil || strings.HasPrefix(req.Filename, "silent") {
		return nil, fmt.Errorf("%w: audio is silent", analysis.ErrUnanalyzableAudio)
	}
	bpm := 120.5
	key := "C major"
	return &model.TrackRecord{
		ID:       "track-" + req.Filename,
		OwnerID:  req.OwnerID,
		Filename: req.Filename,
		Format:   req.Format,
		FileSize: req.FileSize,
		BPM:      &bpm,
		Key:      &key,
		MoodTags: []string{"uplifting"},
	}, nil
}

func newTestRouter(repo *fakeTrackRepo) *mux.Router {
	cfg := &config.Config{JWTSecret: testSecret, AnalysisWorkers: 2}
	analyzer := &stubAnalyzer{}
	h := NewAPIHandler(repo, &stubDecoder{}, analyzer,
		analysis.NewBatchCoordinator(analyzer, repo, cfg.AnalysisWorkers), cfg)

	router := mux.NewRouter()
	router.HandleFunc("/api/analyze", h.AuthMiddleware(h.AnalyzeHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/analyze/batch", h.AuthMiddleware(h.AnalyzeBatchHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/tracks", h.AuthMiddleware(h.GetTracksHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/track/{id}", h.AuthMiddleware(h.GetTrackHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/track/{id}", h.AuthMiddleware(h.DeleteTrackHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/search", h.AuthMiddleware(h.SearchTracksHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/stats", h.AuthMiddleware(h.StatsHandler)).Methods(http.MethodGet)
	return router
}

func bearer(t *testing.T, ownerID int64) string {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, ownerID, "tester")
	require.NoError(t, err)
	return "Bearer " + token
}

func seedTrack(repo *fakeTrackRepo, ownerID int64, id, filename string, bpm float64, key string, moods ...string) *model.TrackRecord {
	rec := &model.TrackRecord{
		ID:       id,
		OwnerID:  ownerID,
		Filename: filename,
		Format:   "mp3",
		BPM:      &bpm,
		Key:      &key,
		MoodTags: moods,
	}
	repo.tracks = append(repo.tracks, rec)
	return rec
}

func doRequest(router *mux.Router, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func multipartBody(t *testing.T, field string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for name, content := range files {
		part, err := w.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestAuthMiddlewareRejectsMissingOrBadToken(t *testing.T) {
	router := newTestRouter(&fakeTrackRepo{})

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer nonsense"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/tracks", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := doRequest(router, req)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}
}

func TestGetTracksHandlerScopesByOwner(t *testing.T) {
	repo := &fakeTrackRepo{}
	seedTrack(repo, 1, "a", "mine.mp3", 120, "C major")
	seedTrack(repo, 2, "b", "theirs.mp3", 90, "A minor")
	router := newTestRouter(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/tracks", nil)
	req.Header.Set("Authorization", bearer(t, 1))
	rr := doRequest(router, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var got []*model.TrackRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "mine.mp3", got[0].Filename)
}

func TestGetTrackHandler(t *testing.T) {
	repo := &fakeTrackRepo{}
	seedTrack(repo, 1, "a", "mine.mp3", 120, "C major")
	router := newTestRouter(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/track/a", nil)
	req.Header.Set("Authorization", bearer(t, 1))
	assert.Equal(t, http.StatusOK, doRequest(router, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/track/missing", nil)
	req.Header.Set("Authorization", bearer(t, 1))
	assert.Equal(t, http.StatusNotFound, doRequest(router, req).Code)

	// Someone else's track is indistinguishable from a missing one.
	req = httptest.NewRequest(http.MethodGet, "/api/track/a", nil)
	req.Header.Set("Authorization", bearer(t, 2))
	assert.Equal(t, http.StatusNotFound, doRequest(router, req).Code)
}

func TestSearchTracksHandlerCombinesPredicates(t *testing.T) {
	repo := &fakeTrackRepo{}
	seedTrack(repo, 1, "a", "one.mp3", 124, "A minor", "energetic")
	seedTrack(repo, 1, "b", "two.mp3", 124, "A minor", "calm")
	seedTrack(repo, 1, "c", "three.mp3", 80, "A minor", "energetic")
	router := newTestRouter(repo)

	body := `{"min_bpm": 100, "mood": "energetic"}`
	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(body))
	req.Header.Set("Authorization", bearer(t, 1))
	rr := doRequest(router, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var got []*model.TrackRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestSearchTracksHandlerRejectsBadBody(t *testing.T) {
	router := newTestRouter(&fakeTrackRepo{})

	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader("{not json"))
	req.Header.Set("Authorization", bearer(t, 1))
	assert.Equal(t, http.StatusBadRequest, doRequest(router, req).Code)
}

func TestDeleteTrackHandler(t *testing.T) {
	repo := &fakeTrackRepo{}
	seedTrack(repo, 1, "a", "mine.mp3", 120, "C major")
	router := newTestRouter(repo)

	req := httptest.NewRequest(http.MethodDelete, "/api/track/a", nil)
	req.Header.Set("Authorization", bearer(t, 1))
	assert.Equal(t, http.StatusOK, doRequest(router, req).Code)
	assert.Empty(t, repo.tracks)

	req = httptest.NewRequest(http.MethodDelete, "/api/track/a", nil)
	req.Header.Set("Authorization", bearer(t, 1))
	assert.Equal(t, http.StatusNotFound, doRequest(router, req).Code)
}

func TestStatsHandler(t *testing.T) {
	repo := &fakeTrackRepo{}
	seedTrack(repo, 1, "a", "one.mp3", 120, "C major", "energetic")
	seedTrack(repo, 1, "b", "two.mp3", 100, "C major", "energetic", "bright")
	router := newTestRouter(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Authorization", bearer(t, 1))
	rr := doRequest(router, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var got model.StatsSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, int64(2), got.TotalTracks)
	assert.Equal(t, 110.0, got.AvgBPM)
	assert.Equal(t, []string{"C major"}, got.CommonKeys)
	assert.Equal(t, []string{"energetic", "bright"}, got.CommonMoods)
}

func TestAnalyzeHandlerPersistsRecord(t *testing.T) {
	repo := &fakeTrackRepo{}
	router := newTestRouter(repo)

	body, contentType := multipartBody(t, "file", map[string][]byte{"groove.wav": []byte("fake audio bytes")})
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
	req.Header.Set("Authorization", bearer(t, 1))
	req.Header.Set("Content-Type", contentType)
	rr := doRequest(router, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var got model.TrackRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "groove.wav", got.Filename)
	assert.Equal(t, int64(1), got.OwnerID)
	assert.Equal(t, "wav", got.Format)
	assert.Equal(t, int64(len("fake audio bytes")), got.FileSize)

	require.Len(t, repo.tracks, 1)
	assert.Equal(t, got.ID, repo.tracks[0].ID)
}

func TestAnalyzeHandlerRejectsUnsupportedExtension(t *testing.T) {
	router := newTestRouter(&fakeTrackRepo{})

	body, contentType := multipartBody(t, "file", map[string][]byte{"notes.txt": []byte("hello")})
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
	req.Header.Set("Authorization", bearer(t, 1))
	req.Header.Set("Content-Type", contentType)
	assert.Equal(t, http.StatusBadRequest, doRequest(router, req).Code)
}

func TestAnalyzeHandlerUnanalyzableAudio(t *testing.T) {
	repo := &fakeTrackRepo{}
	router := newTestRouter(repo)

	body, contentType := multipartBody(t, "file", map[string][]byte{"silent.wav": []byte("fake")})
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
	req.Header.Set("Authorization", bearer(t, 1))
	req.Header.Set("Content-Type", contentType)
	assert.Equal(t, http.StatusUnprocessableEntity, doRequest(router, req).Code)
	assert.Empty(t, repo.tracks)
}

func TestAnalyzeHandlerReportsPersistenceFailure(t *testing.T) {
	repo := &fakeTrackRepo{createErr: fmt.Errorf("connection refused")}
	router := newTestRouter(repo)

	body, contentType := multipartBody(t, "file", map[string][]byte{"groove.wav": []byte("fake")})
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
	req.Header.Set("Authorization", bearer(t, 1))
	req.Header.Set("Content-Type", contentType)
	rr := doRequest(router, req)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "could not be saved")
}

func TestAnalyzeBatchHandlerIsolatesFailures(t *testing.T) {
	repo := &fakeTrackRepo{}
	router := newTestRouter(repo)

	body, contentType := multipartBody(t, "files", map[string][]byte{
		"one.wav":    []byte("fake"),
		"silent.wav": []byte("fake"),
		"notes.txt":  []byte("not audio"),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/analyze/batch", body)
	req.Header.Set("Authorization", bearer(t, 1))
	req.Header.Set("Content-Type", contentType)
	rr := doRequest(router, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var report model.BatchReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Successful)
	assert.Equal(t, 2, report.Failed)
	require.Len(t, report.Results, 3)

	byName := map[string]model.BatchItem{}
	for _, item := range report.Results {
		byName[item.Filename] = item
	}
	assert.Equal(t, "success", byName["one.wav"].Status)
	assert.Equal(t, "error", byName["silent.wav"].Status)
	assert.Equal(t, "error", byName["notes.txt"].Status)
	require.Len(t, repo.tracks, 1)
}

func TestStageConfigFromForm(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(
		"use_event_classifier=false&use_embedding=true"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	cfg := stageConfigFromForm(req)
	assert.False(t, cfg.UseEventClassifier)
	assert.True(t, cfg.UseEmbedding)

	req = httptest.NewRequest(http.MethodPost, "/api/analyze", nil)
	cfg = stageConfigFromForm(req)
	assert.True(t, cfg.UseEventClassifier)
	assert.True(t, cfg.UseEmbedding)
}
