package downloader

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kkdai/youtube/v2"
)

// Raw statuses reported through progress callbacks, mirroring what the
// fetch engine emits during a transfer.
const (
	StatusDownloading = "downloading"
	StatusFinished    = "finished"
)

// Update carries one raw progress sample from the engine.
type Update struct {
	Status     string
	Downloaded int64
	Total      int64
	Speed      float64 // bytes/sec
	ETA        float64 // seconds
}

// ProgressFunc receives engine progress samples during a transfer.
// Implementations must not block for long; they run on the transfer path.
type ProgressFunc func(Update)

const (
	watchURL          = "https://www.youtube.com/watch?v=%s"
	primaryMaxHeight  = 1080
	fallbackMaxHeight = 720
	progressInterval  = 500 * time.Millisecond
)

// fetchClient is the slice of the fetch engine the orchestrator drives.
type fetchClient interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetStreamContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error)
}

// Engine drives a download through a primary quality attempt and at most
// one reduced-quality retry, producing the output artifact.
type Engine struct {
	client  fetchClient
	tempDir string
}

func NewEngine(tempDir string) *Engine {
	return &Engine{
		client:  &youtube.Client{HTTPClient: newHTTPClient()},
		tempDir: tempDir,
	}
}

// Run downloads one video into <tempDir>/<jobID>.mp4 and returns the
// output path plus a filesystem-safe display title. The title may be
// empty, the caller falls back to the job id. The output path is returned
// even on failure so the caller can delete partial files: cleanup is
// owned by the caller, not by the engine.
func (e *Engine) Run(ctx context.Context, jobID, videoID string, onProgress ProgressFunc) (string, string, error) {
	if onProgress == nil {
		onProgress = func(Update) {}
	}
	outputPath := filepath.Join(e.tempDir, jobID+".mp4")
	sourceURL := fmt.Sprintf(watchURL, videoID)

	title := ""
	video, err := e.client.GetVideoContext(ctx, sourceURL)
	attemptErr := err
	if err == nil {
		title = DisplayTitle(video.Title)
		log.Printf("⬇️ Job %s: downloading %q", jobID, video.Title)
		attemptErr = e.downloadMerged(ctx, jobID, video, outputPath, onProgress)
	}

	if attemptErr != nil {
		if ctx.Err() != nil {
			return outputPath, title, &DownloadError{Detail: "download cancelled", Err: ctx.Err()}
		}
		log.Printf("🔁 Job %s: primary attempt failed, retrying at reduced quality: %v", jobID, attemptErr)
		if video == nil {
			if video, err = e.client.GetVideoContext(ctx, sourceURL); err != nil {
				return outputPath, title, &DownloadError{Detail: humanizeError(err), Err: err}
			}
			title = DisplayTitle(video.Title)
		}
		if err := e.downloadPremerged(ctx, video, outputPath, onProgress); err != nil {
			if ctx.Err() != nil {
				return outputPath, title, &DownloadError{Detail: "download cancelled", Err: ctx.Err()}
			}
			return outputPath, title, &DownloadError{Detail: humanizeError(err), Err: err}
		}
	}

	if err := VerifyArtifact(outputPath); err != nil {
		return outputPath, title, &DownloadError{Detail: err.Error(), Err: err}
	}
	return outputPath, title, nil
}

// downloadMerged is the primary attempt: best video stream capped at
// 1080p plus best audio, merged into mp4 with ffmpeg.
func (e *Engine) downloadMerged(ctx context.Context, jobID string, video *youtube.Video, outputPath string, onProgress ProgressFunc) error {
	videoFormat := bestVideoFormat(video.Formats, primaryMaxHeight)
	audioFormat := bestAudioFormat(video.Formats)
	if videoFormat == nil || audioFormat == nil {
		return fmt.Errorf("no suitable video/audio format pair")
	}

	videoTemp := filepath.Join(e.tempDir, fmt.Sprintf("v_%s.mp4", jobID))
	audioTemp := filepath.Join(e.tempDir, fmt.Sprintf("a_%s.m4a", jobID))
	defer os.Remove(videoTemp)
	defer os.Remove(audioTemp)

	tracker := newTracker(videoFormat.ContentLength+audioFormat.ContentLength, onProgress)

	var wg sync.WaitGroup
	wg.Add(2)
	var errV, errA error
	go func() {
		defer wg.Done()
		errV = e.downloadStream(ctx, video, videoFormat, videoTemp, tracker)
	}()
	go func() {
		defer wg.Done()
		errA = e.downloadStream(ctx, video, audioFormat, audioTemp, tracker)
	}()
	wg.Wait()

	if errV != nil {
		return errV
	}
	if errA != nil {
		return errA
	}
	tracker.finish()

	cmd := exec.CommandContext(ctx, "ffmpeg", "-y", "-hide_banner", "-loglevel", "error",
		"-i", videoTemp, "-i", audioTemp, "-c", "copy", outputPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg: %s", strings.TrimSpace(string(out)))
	}
	return nil
}

// downloadPremerged is the fallback attempt: a single pre-merged stream
// capped at 720p, no mux step. Progress restarts from zero.
func (e *Engine) downloadPremerged(ctx context.Context, video *youtube.Video, outputPath string, onProgress ProgressFunc) error {
	format := bestPremergedFormat(video.Formats, fallbackMaxHeight)
	if format == nil {
		return fmt.Errorf("no pre-merged format available")
	}
	tracker := newTracker(format.ContentLength, onProgress)
	if err := e.downloadStream(ctx, video, format, outputPath, tracker); err != nil {
		return err
	}
	tracker.finish()
	return nil
}

func (e *Engine) downloadStream(ctx context.Context, v *youtube.Video, f *youtube.Format, path string, t *tracker) error {
	stream, _, err := e.client.GetStreamContext(ctx, v, f)
	if err != nil {
		return err
	}
	defer stream.Close()

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := stream.Read(buf)
		if n > 0 {
			if _, werr := file.Write(buf[:n]); werr != nil {
				return werr
			}
			t.add(n)
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// VerifyArtifact checks that a finished download left a non-empty file.
func VerifyArtifact(path string) error {
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return ErrIncompleteArtifact
	}
	return nil
}

// DisplayTitle derives a filesystem-safe display name: the first 20 runes
// of the title with characters illegal in paths stripped.
func DisplayTitle(title string) string {
	runes := []rune(title)
	if len(runes) > 20 {
		runes = runes[:20]
	}
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(`\/:*?"<>|`, r) {
			return -1
		}
		return r
	}, string(runes))
}

// tracker accumulates transferred bytes across concurrent streams and
// emits throttled progress samples.
type tracker struct {
	mu    sync.Mutex
	emit  ProgressFunc
	total int64
	bytes int64
	start time.Time
	last  time.Time
}

func newTracker(total int64, emit ProgressFunc) *tracker {
	return &tracker{emit: emit, total: total, start: time.Now()}
}

func (t *tracker) add(n int) {
	t.mu.Lock()
	t.bytes += int64(n)
	now := time.Now()
	// completion bypasses the throttle; an unknown total never counts as
	// complete
	done := t.total > 0 && t.bytes >= t.total
	if now.Sub(t.last) < progressInterval && !done {
		t.mu.Unlock()
		return
	}
	t.last = now
	u := t.sample(now)
	t.mu.Unlock()
	t.emit(u)
}

func (t *tracker) finish() {
	t.mu.Lock()
	u := t.sample(time.Now())
	u.Status = StatusFinished
	t.mu.Unlock()
	t.emit(u)
}

func (t *tracker) sample(now time.Time) Update {
	u := Update{Status: StatusDownloading, Downloaded: t.bytes, Total: t.total}
	if elapsed := now.Sub(t.start).Seconds(); elapsed > 0 {
		u.Speed = float64(t.bytes) / elapsed
	}
	if u.Speed > 0 && t.total > t.bytes {
		u.ETA = float64(t.total-t.bytes) / u.Speed
	}
	return u
}
