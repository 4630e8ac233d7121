package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gwlsn/scenefinder/internal/artifacts"
	"github.com/gwlsn/scenefinder/internal/clips"
	"github.com/gwlsn/scenefinder/internal/config"
	"github.com/gwlsn/scenefinder/internal/jobs"
	"github.com/gwlsn/scenefinder/internal/logger"
	"github.com/gwlsn/scenefinder/internal/search"
)

// maxUploadBytes caps in-memory multipart buffering; larger files spill to
// temp files.
const maxUploadBytes = 32 << 20

// supportedLanguages are the ISO codes accepted as a transcription hint,
// plus "auto" for detection.
var supportedLanguages = map[string]bool{
	"auto": true, "en": true, "es": true, "fr": true, "de": true,
	"it": true, "pt": true, "nl": true, "ja": true, "zh": true,
	"ko": true, "ru": true, "ar": true, "hi": true,
}

// modelSizes are the accepted quality/latency tiers for transcription.
var modelSizes = map[string]bool{
	"tiny": true, "base": true, "small": true, "medium": true, "large": true,
}

// Submitter schedules a job's background pipeline run.
// Implemented by jobs.Runner.
type Submitter interface {
	Submit(job *jobs.Job) error
}

// Handler provides HTTP API handlers
type Handler struct {
	store  jobs.Store
	runner Submitter
	layout *artifacts.Layout
	search *search.Service
	clips  *clips.Cache
	cfg    *config.Config
}

// NewHandler creates a new API handler
func NewHandler(store jobs.Store, runner Submitter, layout *artifacts.Layout, searchSvc *search.Service, clipCache *clips.Cache, cfg *config.Config) *Handler {
	return &Handler{
		store:  store,
		runner: runner,
		layout: layout,
		search: searchSvc,
		clips:  clipCache,
		cfg:    cfg,
	}
}

// response helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// pathMode validates the {mode} path segment.
func pathMode(r *http.Request) (jobs.Mode, bool) {
	mode := jobs.Mode(r.PathValue("mode"))
	return mode, mode.Valid()
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// CreateJob handles POST /{mode}/videos
// Stores the upload, creates the job row, and schedules the pipeline run.
// Responds immediately; processing happens in the background.
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	mode, ok := pathMode(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !artifacts.IsVideoExt(ext) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported file extension: %s", ext))
		return
	}

	job := &jobs.Job{
		ID:         uuid.NewString(),
		Mode:       mode,
		SourceName: header.Filename,
		Stage:      jobs.StageUploaded,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	if mode == jobs.ModeAudio {
		job.Language = r.FormValue("language")
		if job.Language == "" {
			job.Language = "auto"
		}
		if !supportedLanguages[job.Language] {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported language: %s", job.Language))
			return
		}

		job.ModelSize = r.FormValue("model_size")
		if job.ModelSize == "" {
			job.ModelSize = "small"
		}
		if !modelSizes[job.ModelSize] {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported model size: %s", job.ModelSize))
			return
		}
	}

	dest := h.layout.UploadPath(job.ID, ext)
	if err := saveUpload(file, dest); err != nil {
		logger.Error("Upload failed", "job_id", job.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	// The row is committed before the pipeline is spawned, so a status poll
	// for the returned id always finds it.
	if err := h.store.CreateJob(job); err != nil {
		logger.Error("Failed to persist job", "job_id", job.ID, "error", err)
		os.Remove(dest)
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	if err := h.runner.Submit(job); err != nil {
		logger.Error("Failed to schedule pipeline", "job_id", job.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to schedule processing")
		return
	}

	logger.Info("Job created", "job_id", job.ID, "mode", mode, "file", header.Filename)
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

// saveUpload streams the upload to dest, removing the partial file on error.
func saveUpload(src io.Reader, dest string) error {
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create upload: %w", err)
	}

	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("write upload: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return fmt.Errorf("close upload: %w", err)
	}
	return nil
}

// JobStatus handles GET /{mode}/videos/{id}/status
func (h *Handler) JobStatus(w http.ResponseWriter, r *http.Request) {
	mode, ok := pathMode(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	job, err := h.store.GetJob(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read job")
		return
	}
	if job == nil || job.Mode != mode {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":   job.ID,
		"mode":     job.Mode,
		"stage":    job.Stage,
		"progress": job.Progress,
		"ready":    job.Ready(),
		"error":    job.Error,
	})
}

// SearchRequest is the request body for search queries
type SearchRequest struct {
	Query        string  `json:"query"`
	TopK         int     `json:"top_k"`
	ClipDuration float64 `json:"clip_duration"`
}

// Search handles POST /{mode}/videos/{id}/search
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	mode, ok := pathMode(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query must not be empty")
		return
	}
	if req.TopK < 1 {
		req.TopK = 3
	}
	if req.ClipDuration <= 0 {
		req.ClipDuration = h.cfg.DefaultClipDuration
	}

	resp, err := h.search.Query(r.Context(), r.PathValue("id"), mode, req.Query, req.TopK, req.ClipDuration)
	if err != nil {
		h.writeSearchError(w, r.PathValue("id"), err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeSearchError maps façade errors onto HTTP statuses.
func (h *Handler) writeSearchError(w http.ResponseWriter, jobID string, err error) {
	var notReady *search.NotReadyError
	switch {
	case errors.Is(err, search.ErrNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, search.ErrWrongMode):
		writeError(w, http.StatusConflict, "job has a different mode")
	case errors.As(err, &notReady):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "job not ready",
			"stage": string(notReady.Stage),
		})
	default:
		logger.Error("Search failed", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, "search failed")
	}
}

// Clip handles GET /{mode}/videos/{id}/clip?start=&duration=
// Materializes (or reuses) the cached clip and streams it back.
func (h *Handler) Clip(w http.ResponseWriter, r *http.Request) {
	mode, ok := pathMode(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	jobID := r.PathValue("id")

	job, err := h.store.GetJob(jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read job")
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if job.Mode != mode {
		writeError(w, http.StatusConflict, "job has a different mode")
		return
	}

	start, err := strconv.ParseFloat(r.URL.Query().Get("start"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start")
		return
	}
	duration := h.cfg.DefaultClipDuration
	if raw := r.URL.Query().Get("duration"); raw != "" {
		duration, err = strconv.ParseFloat(raw, 64)
		if err != nil || duration <= 0 {
			writeError(w, http.StatusBadRequest, "invalid duration")
			return
		}
	}

	source, err := h.layout.FindSource(jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "source not found")
		return
	}

	clipPath, err := h.clips.GetOrCreate(r.Context(), source, jobID, string(mode), start, duration)
	if err != nil {
		logger.Error("Clip materialization failed", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to cut clip")
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	http.ServeFile(w, r, clipPath)
}
