package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"TuneScope/config"
	"TuneScope/core/analysis"
	"TuneScope/core/audio"
	"TuneScope/core/auth"
	"TuneScope/logger"
	"TuneScope/repository"
)

type contextKey string

const (
	ownerIDKey  contextKey = "ownerID"
	usernameKey contextKey = "username"
)

// APIHandler handles all API requests.
type APIHandler struct {
	trackRepo   repository.TrackRepository
	decoder     audio.Decoder
	aggregator  analysis.Analyzer
	coordinator *analysis.Coordinator
	progress    *progressHub
	cfg         *config.Config
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(
	trackRepo repository.TrackRepository,
	decoder audio.Decoder,
	aggregator analysis.Analyzer,
	coordinator *analysis.Coordinator,
	cfg *config.Config,
) *APIHandler {
	return &APIHandler{
		trackRepo:   trackRepo,
		decoder:     decoder,
		aggregator:  aggregator,
		coordinator: coordinator,
		progress:    newProgressHub(),
		cfg:         cfg,
	}
}

// AuthMiddleware checks for a valid bearer token and places the caller
// identity in the request context. Token issuance lives in the upstream auth
// service; the API only validates.
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		claims, err := auth.ParseToken(h.cfg.JWTSecret, parts[1])
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), ownerIDKey, claims.UserID)
		ctx = context.WithValue(ctx, usernameKey, claims.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// GetOwnerIDFromContext extracts the authenticated owner ID from the request
// context.
func GetOwnerIDFromContext(ctx context.Context) (int64, error) {
	ownerID, ok := ctx.Value(ownerIDKey).(int64)
	if !ok || ownerID <= 0 {
		return 0, fmt.Errorf("owner ID not found in context")
	}
	return ownerID, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
