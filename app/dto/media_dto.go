package dto

import "io"

// MediaUploadRequest carries the raw multipart body from the handler to the flow.
type MediaUploadRequest struct {
	ContentType string    `json:"-"`
	Body        io.Reader `json:"-"`
}

// MediaUploadResponse represents a successful media upload.
// URL and Filename are always present; the rest describe the stored artifact.
type MediaUploadResponse struct {
	URL       string `json:"url"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Checksum  string `json:"checksum,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}
