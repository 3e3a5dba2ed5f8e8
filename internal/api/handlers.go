package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/smallken99/youtube-mp4-downloader/internal/config"
	"github.com/smallken99/youtube-mp4-downloader/internal/downloader"
	"github.com/smallken99/youtube-mp4-downloader/internal/models"
	"github.com/smallken99/youtube-mp4-downloader/internal/progress"
)

// Orchestrator is the download engine as the handlers see it.
type Orchestrator interface {
	Run(ctx context.Context, jobID, videoID string, onProgress downloader.ProgressFunc) (outputPath, displayTitle string, err error)
	Info(ctx context.Context, videoID string) (*models.VideoInfo, error)
}

type Handler struct {
	engine   Orchestrator
	registry *progress.Registry
	cfg      *config.Config
	slots    chan struct{}
	slotWait time.Duration
}

func NewHandler(engine Orchestrator, registry *progress.Registry, cfg *config.Config) *Handler {
	return &Handler{
		engine:   engine,
		registry: registry,
		cfg:      cfg,
		slots:    make(chan struct{}, cfg.MaxConcurrentDownloads),
		slotWait: 10 * time.Second,
	}
}

// Download runs the whole job inside the request: fetch, merge, verify,
// then stream the artifact back and delete it. The request blocks for the
// full download, progress goes out through the job's queue instead.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if strings.TrimSpace(req.VideoID) == "" {
		writeError(w, http.StatusBadRequest, "missing video id", "")
		return
	}

	// Bounded wait for a download slot
	select {
	case h.slots <- struct{}{}:
		defer func() { <-h.slots }()
	case <-time.After(h.slotWait):
		writeError(w, http.StatusServiceUnavailable, "server busy", "")
		return
	case <-r.Context().Done():
		return
	}

	// The job id doubles as the progress subscription key. Registering
	// here means events published before a subscriber attaches are kept.
	jobID := req.VideoID
	h.registry.Register(jobID)

	emitter := progress.NewEmitter(h.registry, jobID)
	outputPath, title, err := h.engine.Run(r.Context(), jobID, req.VideoID, emitter.Hook)
	if err != nil {
		detail := errorDetail(err)
		log.Printf("❌ Job %s failed: %v", jobID, err)
		h.registry.Publish(jobID, progress.Failed(detail))
		cleanupArtifact(outputPath)
		writeError(w, http.StatusInternalServerError, "download failed", detail)
		return
	}
	h.registry.Publish(jobID, progress.Finished())

	defer cleanupArtifact(outputPath)
	sendArtifact(w, r, outputPath, title, jobID)
}

// Progress serves the per-job event stream. It drains the job's queue
// into SSE messages, emits a heartbeat when the queue stays empty past
// the idle timeout, and removes the queue from the registry on every way
// out: terminal event, client disconnect, or write failure.
func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimPrefix(r.URL.Path, "/api/progress/")
	if jobID == "" || strings.Contains(jobID, "/") {
		http.NotFound(w, r)
		return
	}

	events := h.registry.Register(jobID)
	defer h.registry.Remove(jobID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	rc := http.NewResponseController(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-events:
			if err := writeEvent(w, rc, ev); err != nil {
				log.Printf("⚠️ Stream write failed for job %s: %v", jobID, err)
				return
			}
			if ev.Terminal() {
				return
			}
		case <-time.After(h.cfg.StreamTimeout):
			if err := writeEvent(w, rc, progress.Heartbeat()); err != nil {
				log.Printf("⚠️ Stream write failed for job %s: %v", jobID, err)
				return
			}
		}
	}
}

// Info returns title and available qualities for a video.
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	videoID := r.URL.Query().Get("videoId")
	if videoID == "" {
		writeError(w, http.StatusBadRequest, "missing video id", "")
		return
	}

	info, err := h.engine.Info(r.Context(), videoID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "info lookup failed", errorDetail(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(info)
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, ev progress.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return rc.Flush()
}

func writeError(w http.ResponseWriter, code int, msg, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(models.ErrorResponse{Error: msg, Details: details})
}

func errorDetail(err error) string {
	var dlErr *downloader.DownloadError
	if errors.As(err, &dlErr) {
		return dlErr.Detail
	}
	return err.Error()
}
