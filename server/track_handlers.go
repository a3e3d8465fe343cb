package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"TuneScope/cache"
	"TuneScope/core/query"
	"TuneScope/logger"
	"TuneScope/repository"
	"TuneScope/storage"
)

// GetTracksHandler lists all of the caller's track records, newest first.
func (h *APIHandler) GetTracksHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, err := GetOwnerIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	if cached, err := cache.GetTrackList(r.Context(), ownerID); err == nil && cached != nil {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	recs, err := h.trackRepo.ListByOwner(r.Context(), ownerID)
	if err != nil {
		logger.Error("failed to list tracks", logger.Int64("ownerId", ownerID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to list tracks")
		return
	}
	if err := cache.SetTrackList(r.Context(), ownerID, recs); err != nil {
		logger.Debug("failed to cache track list", logger.ErrorField(err))
	}

	writeJSON(w, http.StatusOK, recs)
}

// GetTrackHandler returns one of the caller's track records by ID.
func (h *APIHandler) GetTrackHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, err := GetOwnerIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	id := mux.Vars(r)["id"]
	rec, err := h.trackRepo.GetByID(r.Context(), ownerID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Track not found")
			return
		}
		logger.Error("failed to get track", logger.String("trackId", id), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to get track")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// SearchTracksHandler filters the caller's records by the posted filter
// specification. The BPM range and substring predicates are pushed down to
// the store; the set-membership predicates are refined in memory.
func (h *APIHandler) SearchTracksHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, err := GetOwnerIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var filters query.Filters
	if err := json.NewDecoder(r.Body).Decode(&filters); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter specification")
		return
	}
	filters.Normalize()

	recs, err := h.trackRepo.Search(r.Context(), ownerID, repository.SearchQuery{
		MinBPM:   filters.MinBPM,
		MaxBPM:   filters.MaxBPM,
		Key:      filters.Key,
		Filename: filters.Filename,
	})
	if err != nil {
		logger.Error("failed to search tracks", logger.Int64("ownerId", ownerID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to search tracks")
		return
	}

	writeJSON(w, http.StatusOK, query.Apply(recs, filters))
}

// DeleteTrackHandler removes one of the caller's track records and its
// archived audio.
func (h *APIHandler) DeleteTrackHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, err := GetOwnerIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	id := mux.Vars(r)["id"]
	rec, err := h.trackRepo.GetByID(r.Context(), ownerID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Track not found")
			return
		}
		logger.Error("failed to load track for delete", logger.String("trackId", id), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to delete track")
		return
	}

	if err := h.trackRepo.Delete(r.Context(), ownerID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Track not found")
			return
		}
		logger.Error("failed to delete track", logger.String("trackId", id), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to delete track")
		return
	}

	if storage.Available() && rec.Format != "" {
		if err := storage.RemoveAudio(r.Context(), ownerID, id, "."+strings.ToLower(rec.Format)); err != nil {
			logger.Warn("failed to remove archived audio",
				logger.String("trackId", id),
				logger.ErrorField(err))
		}
	}
	cache.InvalidateStats(r.Context(), ownerID)
	cache.InvalidateTracks(r.Context(), ownerID)

	writeJSON(w, http.StatusOK, map[string]string{"message": "Track deleted successfully"})
}

// StatsHandler returns the aggregate summary over the caller's records,
// served from cache when fresh.
func (h *APIHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, err := GetOwnerIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	if cached, err := cache.GetStats(r.Context(), ownerID); err == nil && cached != nil {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	recs, err := h.trackRepo.ListByOwner(r.Context(), ownerID)
	if err != nil {
		logger.Error("failed to compute stats", logger.Int64("ownerId", ownerID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to compute stats")
		return
	}

	summary := query.Stats(recs)
	if err := cache.SetStats(r.Context(), ownerID, &summary); err != nil {
		logger.Debug("failed to cache stats", logger.ErrorField(err))
	}

	writeJSON(w, http.StatusOK, summary)
}
