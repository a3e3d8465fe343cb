package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"

	"TuneScope/cache"
	"TuneScope/core/analysis"
	"TuneScope/core/audio"
	"TuneScope/logger"
	"TuneScope/model"
	"TuneScope/storage"
)

const maxUploadMemory = 32 << 20 // 32MB before multipart spills to disk

// AnalyzeHandler accepts one uploaded audio file, runs the analysis stages
// and persists the resulting track record for the caller.
func (h *APIHandler) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, err := GetOwnerIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	if !audio.SupportedExt(header.Filename) {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Unsupported file type: %s", filepath.Ext(header.Filename)))
		return
	}

	tmpPath, size, err := saveUpload(file, header.Filename)
	if err != nil {
		logger.Error("failed to stage upload", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to store upload")
		return
	}
	defer os.Remove(tmpPath)

	handle, err := h.decoder.Decode(r.Context(), tmpPath)
	if err != nil {
		logger.Warn("decode failed",
			logger.String("filename", header.Filename),
			logger.ErrorField(err))
		writeError(w, http.StatusUnprocessableEntity, "Audio could not be decoded")
		return
	}

	rec, err := h.aggregator.Aggregate(r.Context(), handle, analysis.Request{
		OwnerID:  ownerID,
		Filename: displayName(tmpPath, header.Filename),
		Format:   audio.Format(header.Filename),
		FileSize: size,
		Config:   stageConfigFromForm(r),
	})
	if err != nil {
		if errors.Is(err, analysis.ErrUnanalyzableAudio) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		logger.Error("analysis failed", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Analysis failed")
		return
	}

	if err := h.trackRepo.Create(r.Context(), rec); err != nil {
		logger.Error("failed to persist track record",
			logger.String("trackId", rec.ID),
			logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError,
			"Analysis succeeded but the record could not be saved")
		return
	}

	h.archiveUpload(r, ownerID, rec, tmpPath, header)
	cache.InvalidateStats(r.Context(), ownerID)
	cache.InvalidateTracks(r.Context(), ownerID)

	writeJSON(w, http.StatusOK, rec)
}

// AnalyzeBatchHandler accepts multiple uploads and analyzes them
// concurrently. Every file is processed in isolation; the report always
// covers all inputs in upload order.
func (h *APIHandler) AnalyzeBatchHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, err := GetOwnerIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "files field is required")
		return
	}

	cfg := stageConfigFromForm(r)
	inputs := make([]analysis.BatchInput, len(headers))
	tmpPaths := make([]string, len(headers))
	for i, hdr := range headers {
		inputs[i] = analysis.BatchInput{
			Filename: hdr.Filename,
			Format:   audio.Format(hdr.Filename),
		}
		if !audio.SupportedExt(hdr.Filename) {
			continue // nil handle, reported as unanalyzable
		}
		f, err := hdr.Open()
		if err != nil {
			continue
		}
		tmpPath, size, err := saveUpload(f, hdr.Filename)
		f.Close()
		if err != nil {
			continue
		}
		tmpPaths[i] = tmpPath
		handle, err := h.decoder.Decode(r.Context(), tmpPath)
		if err != nil {
			logger.Warn("decode failed",
				logger.String("filename", hdr.Filename),
				logger.ErrorField(err))
			continue
		}
		inputs[i].Handle = handle
		inputs[i].FileSize = size
		inputs[i].Filename = displayName(tmpPath, hdr.Filename)
	}
	defer func() {
		for _, p := range tmpPaths {
			if p != "" {
				os.Remove(p)
			}
		}
	}()

	report := h.coordinator.Run(r.Context(), ownerID, cfg, inputs,
		func(ev analysis.ProgressEvent) {
			h.progress.publish(ownerID, ev)
		})

	for i, item := range report.Results {
		if item.Status != "success" || tmpPaths[i] == "" {
			continue
		}
		rec, err := h.trackRepo.GetByID(r.Context(), ownerID, item.TrackID)
		if err != nil {
			continue
		}
		h.archiveUpload(r, ownerID, rec, tmpPaths[i], headers[i])
	}

	if report.Successful > 0 {
		cache.InvalidateStats(r.Context(), ownerID)
		cache.InvalidateTracks(r.Context(), ownerID)
	}

	writeJSON(w, http.StatusOK, report)
}

// archiveUpload copies the staged upload into object storage. Archival is
// best effort; records stay valid without an archived copy.
func (h *APIHandler) archiveUpload(r *http.Request, ownerID int64, rec *model.TrackRecord, tmpPath string, header *multipart.FileHeader) {
	if !storage.Available() {
		return
	}
	f, err := os.Open(tmpPath)
	if err != nil {
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	contentType := header.Header.Get("Content-Type")
	if err := storage.ArchiveAudio(r.Context(), ownerID, rec.ID, ext, f, info.Size(), contentType); err != nil {
		logger.Warn("failed to archive audio",
			logger.String("trackId", rec.ID),
			logger.ErrorField(err))
	}
}

// saveUpload copies an upload to a temp file so ffmpeg can read it by path.
func saveUpload(src io.Reader, filename string) (string, int64, error) {
	tmp, err := os.CreateTemp("", "tunescope-upload-*"+strings.ToLower(filepath.Ext(filename)))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	size, err := io.Copy(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("failed to write temp file: %w", err)
	}
	return tmp.Name(), size, nil
}

// displayName prefers embedded "Artist - Title" tags over the upload
// filename when the file carries usable metadata.
func displayName(path, fallback string) string {
	f, err := os.Open(path)
	if err != nil {
		return fallback
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil || meta.Title() == "" {
		return fallback
	}
	if meta.Artist() != "" {
		return fmt.Sprintf("%s - %s%s", meta.Artist(), meta.Title(), strings.ToLower(filepath.Ext(fallback)))
	}
	return meta.Title() + strings.ToLower(filepath.Ext(fallback))
}

// stageConfigFromForm reads the optional stage toggles; both optional stages
// default to enabled.
func stageConfigFromForm(r *http.Request) analysis.StageConfig {
	cfg := analysis.DefaultStageConfig()
	if v := r.FormValue("use_event_classifier"); v != "" {
		cfg.UseEventClassifier = parseBool(v)
	}
	if v := r.FormValue("use_embedding"); v != "" {
		cfg.UseEmbedding = parseBool(v)
	}
	return cfg
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "false", "0", "no", "off":
		return false
	default:
		return true
	}
}
