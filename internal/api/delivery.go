package api

import (
	"fmt"
	"log"
	"net/http"
	"os"
)

// sendArtifact streams the output file as an attachment. The display
// name falls back to the job id when no title could be derived; the file
// on disk is never renamed.
func sendArtifact(w http.ResponseWriter, r *http.Request, path, title, jobID string) {
	name := title
	if name == "" {
		name = jobID
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.mp4\"", name))
	w.Header().Set("Content-Type", "video/mp4")
	http.ServeFile(w, r, path)
}

// cleanupArtifact removes a transient file. Tolerates the file being
// absent already; failures are logged and never propagated.
func cleanupArtifact(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("⚠️ Could not remove temp file %s: %v", path, err)
	}
}
