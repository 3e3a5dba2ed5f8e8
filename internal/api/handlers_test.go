package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/smallken99/youtube-mp4-downloader/internal/config"
	"github.com/smallken99/youtube-mp4-downloader/internal/downloader"
	"github.com/smallken99/youtube-mp4-downloader/internal/models"
	"github.com/smallken99/youtube-mp4-downloader/internal/progress"
)

type stubEngine struct {
	run  func(ctx context.Context, jobID, videoID string, onProgress downloader.ProgressFunc) (string, string, error)
	info func(ctx context.Context, videoID string) (*models.VideoInfo, error)
}

func (s *stubEngine) Run(ctx context.Context, jobID, videoID string, onProgress downloader.ProgressFunc) (string, string, error) {
	return s.run(ctx, jobID, videoID, onProgress)
}

func (s *stubEngine) Info(ctx context.Context, videoID string) (*models.VideoInfo, error) {
	return s.info(ctx, videoID)
}

func testConfig() *config.Config {
	return &config.Config{
		StreamTimeout:          50 * time.Millisecond,
		MaxConcurrentDownloads: 2,
		QueueDepth:             64,
	}
}

func newTestHandler(engine Orchestrator) (*Handler, *progress.Registry) {
	reg := progress.NewRegistry(64)
	h := NewHandler(engine, reg, testConfig())
	return h, reg
}

func decodeError(t *testing.T, body string) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	return resp
}

func TestDownloadMissingVideoID(t *testing.T) {
	h, _ := newTestHandler(&stubEngine{})

	for _, body := range []string{`{}`, `{"videoId":""}`, `{"videoId":"  "}`} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/download", strings.NewReader(body))
		h.Download(rr, req)

		require.Equal(t, http.StatusBadRequest, rr.Code)
		require.Equal(t, "missing video id", decodeError(t, rr.Body.String()).Error)
	}
}

func TestDownloadMalformedBody(t *testing.T) {
	h, _ := newTestHandler(&stubEngine{})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/download", strings.NewReader(`not json`))
	h.Download(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "invalid request body", decodeError(t, rr.Body.String()).Error)
}

func TestDownloadRejectsNonPost(t *testing.T) {
	h, _ := newTestHandler(&stubEngine{})
	rr := httptest.NewRecorder()
	h.Download(rr, httptest.NewRequest(http.MethodGet, "/api/download", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestDownloadSuccessDeliversAndCleansUp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vid1.mp4")

	engine := &stubEngine{
		run: func(ctx context.Context, jobID, videoID string, onProgress downloader.ProgressFunc) (string, string, error) {
			require.Equal(t, "vid1", jobID)
			onProgress(downloader.Update{Status: downloader.StatusDownloading, Downloaded: 3, Total: 3})
			onProgress(downloader.Update{Status: downloader.StatusFinished, Downloaded: 3, Total: 3})
			require.NoError(t, os.WriteFile(path, []byte("vid"), 0644))
			return path, "My Title", nil
		},
	}
	h, reg := newTestHandler(engine)

	// subscribe first so published events are retained for inspection
	events := reg.Register("vid1")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/download", strings.NewReader(`{"videoId":"vid1"}`))
	h.Download(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, `attachment; filename="My Title.mp4"`, rr.Header().Get("Content-Disposition"))
	require.Equal(t, "video/mp4", rr.Header().Get("Content-Type"))
	require.Equal(t, "vid", rr.Body.String())

	// artifact removed after transmission
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))

	// downloading, processing, then exactly one terminal finished event
	require.Equal(t, progress.StatusDownloading, (<-events).Status)
	require.Equal(t, progress.StatusProcessing, (<-events).Status)
	require.Equal(t, progress.StatusFinished, (<-events).Status)
	require.Empty(t, events)
}

func TestDownloadFilenameFallsBackToJobID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vid2.mp4")

	engine := &stubEngine{
		run: func(ctx context.Context, jobID, videoID string, onProgress downloader.ProgressFunc) (string, string, error) {
			require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
			return path, "", nil
		},
	}
	h, _ := newTestHandler(engine)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/download", strings.NewReader(`{"videoId":"vid2"}`))
	h.Download(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, `attachment; filename="vid2.mp4"`, rr.Header().Get("Content-Disposition"))
}

func TestDownloadFailureCleansUpPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vid3.mp4")

	engine := &stubEngine{
		run: func(ctx context.Context, jobID, videoID string, onProgress downloader.ProgressFunc) (string, string, error) {
			// partial artifact left behind by a failed transfer
			require.NoError(t, os.WriteFile(path, []byte("partial"), 0644))
			return path, "", &downloader.DownloadError{
				Detail: "download finished but the output file is missing or empty",
				Err:    downloader.ErrIncompleteArtifact,
			}
		},
	}
	h, reg := newTestHandler(engine)
	events := reg.Register("vid3")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/download", strings.NewReader(`{"videoId":"vid3"}`))
	h.Download(rr, req)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	resp := decodeError(t, rr.Body.String())
	require.Equal(t, "download failed", resp.Error)
	require.Contains(t, resp.Details, "missing or empty")

	// no partial file survives a failure
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))

	ev := <-events
	require.Equal(t, progress.StatusError, ev.Status)
	require.True(t, ev.Terminal())
}

func TestDownloadServerBusy(t *testing.T) {
	engine := &stubEngine{}
	reg := progress.NewRegistry(8)
	cfg := testConfig()
	cfg.MaxConcurrentDownloads = 1
	h := NewHandler(engine, reg, cfg)
	h.slotWait = 20 * time.Millisecond

	// occupy the only slot
	h.slots <- struct{}{}
	defer func() { <-h.slots }()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/download", strings.NewReader(`{"videoId":"vid4"}`))
	h.Download(rr, req)

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Equal(t, "server busy", decodeError(t, rr.Body.String()).Error)
}

func sseStatuses(t *testing.T, body string) []string {
	t.Helper()
	var statuses []string
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &msg))
		statuses = append(statuses, msg["status"].(string))
	}
	return statuses
}

func TestProgressStreamDrainsUntilFinished(t *testing.T) {
	h, reg := newTestHandler(&stubEngine{})

	reg.Register("job1")
	reg.Publish("job1", progress.Downloading(10, 100, 512, 9))
	reg.Publish("job1", progress.Downloading(100, 100, 512, 0))
	reg.Publish("job1", progress.Processing())
	reg.Publish("job1", progress.Finished())

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/progress/job1", nil)
	h.Progress(rr, req)

	require.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
	require.Equal(t,
		[]string{"downloading", "downloading", "processing", "finished"},
		sseStatuses(t, rr.Body.String()))

	// terminal transition removes the queue from the registry
	require.False(t, reg.Has("job1"))
}

func TestProgressStreamEndsOnErrorEvent(t *testing.T) {
	h, reg := newTestHandler(&stubEngine{})

	reg.Register("job2")
	reg.Publish("job2", progress.Failed("upstream refused"))

	rr := httptest.NewRecorder()
	h.Progress(rr, httptest.NewRequest(http.MethodGet, "/api/progress/job2", nil))

	require.Equal(t, []string{"error"}, sseStatuses(t, rr.Body.String()))
	require.False(t, reg.Has("job2"))
}

func TestProgressStreamHeartbeatOnIdle(t *testing.T) {
	h, reg := newTestHandler(&stubEngine{})

	ctx, cancel := context.WithTimeout(context.Background(), 180*time.Millisecond)
	defer cancel()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/progress/idlejob", nil).WithContext(ctx)
	h.Progress(rr, req)

	statuses := sseStatuses(t, rr.Body.String())
	require.NotEmpty(t, statuses)
	for _, s := range statuses {
		require.Equal(t, "heartbeat", s)
	}

	// disconnect releases the registry entry
	require.False(t, reg.Has("idlejob"))
}

func TestProgressStreamRejectsBadPath(t *testing.T) {
	h, _ := newTestHandler(&stubEngine{})

	rr := httptest.NewRecorder()
	h.Progress(rr, httptest.NewRequest(http.MethodGet, "/api/progress/", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestInfo(t *testing.T) {
	engine := &stubEngine{
		info: func(ctx context.Context, videoID string) (*models.VideoInfo, error) {
			require.Equal(t, "abc", videoID)
			return &models.VideoInfo{Title: "A Video", Qualities: []string{"1080p", "720p"}}, nil
		},
	}
	h, _ := newTestHandler(engine)

	rr := httptest.NewRecorder()
	h.Info(rr, httptest.NewRequest(http.MethodGet, "/api/info?videoId=abc", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var info models.VideoInfo
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &info))
	require.Equal(t, "A Video", info.Title)
	require.Equal(t, []string{"1080p", "720p"}, info.Qualities)
}

func TestInfoMissingVideoID(t *testing.T) {
	h, _ := newTestHandler(&stubEngine{})
	rr := httptest.NewRecorder()
	h.Info(rr, httptest.NewRequest(http.MethodGet, "/api/info", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
