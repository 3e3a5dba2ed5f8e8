package models

// DownloadRequest is the body of POST /api/download
type DownloadRequest struct {
	VideoID string `json:"videoId"`
}

// VideoInfo is the response of GET /api/info
type VideoInfo struct {
	Title     string   `json:"title"`
	Qualities []string `json:"qualities"`
}

// ErrorResponse: every non-2xx JSON body uses this shape
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
