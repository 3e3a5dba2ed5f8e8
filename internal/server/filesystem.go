package server

import (
	"os"

	"github.com/smallken99/youtube-mp4-downloader/internal/config"
)

// PrepareFilesystem ensures the transient storage directory exists
func PrepareFilesystem(cfg *config.Config) error {
	return os.MkdirAll(cfg.TempDir, 0755)
}
