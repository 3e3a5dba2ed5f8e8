package server

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/smallken99/youtube-mp4-downloader/internal/config"
	"github.com/smallken99/youtube-mp4-downloader/internal/progress"
)

// StartJanitor sweeps stale artifacts and idle progress queues on a
// fixed interval. Artifacts are normally deleted right after delivery;
// this catches files orphaned by crashes and jobs nobody subscribed to.
func StartJanitor(cfg *config.Config, registry *progress.Registry) {
	ticker := time.NewTicker(cfg.JanitorInterval)

	go func() {
		for range ticker.C {
			sweepTempFiles(cfg.TempDir, cfg.MaxArtifactAge)
			if n := registry.Sweep(cfg.MaxArtifactAge); n > 0 {
				log.Printf("🧹 Janitor: evicted %d idle progress queues", n)
			}
		}
	}()
}

// sweepTempFiles removes files older than maxAge. Age-gating keeps
// in-flight downloads safe.
func sweepTempFiles(dir string, maxAge time.Duration) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Printf("❌ Janitor Error: could not read temp dir: %v", err)
		return
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil && !os.IsNotExist(err) {
			log.Printf("❌ Janitor Error: could not remove %s: %v", entry.Name(), err)
		} else {
			log.Println("🧹 Cleaned up stale artifact:", entry.Name())
		}
	}
}
