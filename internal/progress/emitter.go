package progress

import (
	"log"

	"github.com/smallken99/youtube-mp4-downloader/internal/downloader"
)

// Emitter adapts raw fetch-engine callbacks into normalized events for
// one job's queue. It implements downloader.ProgressFunc.
type Emitter struct {
	reg   *Registry
	jobID string
}

func NewEmitter(reg *Registry, jobID string) *Emitter {
	return &Emitter{reg: reg, jobID: jobID}
}

// Hook receives one engine progress sample. A sample for a job unknown to
// the registry is dropped silently. Nothing raised here may abort the
// transfer, so failures are logged and swallowed.
func (e *Emitter) Hook(u downloader.Update) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("⚠️ Progress emit failed for job %s: %v", e.jobID, r)
		}
	}()

	switch u.Status {
	case downloader.StatusDownloading:
		e.reg.Publish(e.jobID, Downloading(u.Downloaded, u.Total, u.Speed, u.ETA))
	case downloader.StatusFinished:
		// Transfer done, merge step still ahead. Job completion is
		// signalled separately by the download handler.
		e.reg.Publish(e.jobID, Processing())
	}
}
