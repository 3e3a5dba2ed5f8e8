package downloader

import (
	"errors"
	"fmt"
	"strings"
)

// ErrIncompleteArtifact marks a transfer that reported success but left no
// usable file behind. Distinct from transfer errors: it is never retried.
var ErrIncompleteArtifact = errors.New("download finished but the output file is missing or empty")

// DownloadError is the single failure kind surfaced past the engine.
// Detail is a human-readable message safe to return to clients.
type DownloadError struct {
	Detail string
	Err    error
}

func (e *DownloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.Err)
	}
	return e.Detail
}

func (e *DownloadError) Unwrap() error { return e.Err }

// humanizeError maps known engine failures to messages that don't leak
// filesystem paths or internals
func humanizeError(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "permission denied"):
		return "storage permission denied"
	case strings.Contains(msg, "no space left"):
		return "disk space exhausted"
	case strings.Contains(msg, "ffmpeg"):
		return "media processing failed (ffmpeg)"
	case strings.Contains(msg, "cipher") || strings.Contains(msg, "signature"):
		return "upstream restricted access to this video"
	case strings.Contains(msg, "403"):
		return "access forbidden, upstream may be throttling this server"
	default:
		return msg
	}
}
