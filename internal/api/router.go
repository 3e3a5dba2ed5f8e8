package api

import (
	"net/http"
)

// NewRouter setup routes and apply global middleware
func NewRouter(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/download", h.Download)
	mux.HandleFunc("/api/progress/", h.Progress)
	mux.HandleFunc("/api/info", h.Info)

	// Wrap everything with our robust CORS logic
	return CORSMiddleware(RequestLogger(mux))
}
