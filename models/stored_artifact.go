package models

import "time"

// StoredArtifact is a persisted, uniquely named upload addressable by PublicURL.
// It is immutable once returned.
type StoredArtifact struct {
	Filename   string    `json:"filename"`
	Extension  string    `json:"extension"`
	SizeBytes  int64     `json:"size_bytes"`
	PublicURL  string    `json:"url"`
	MimeType   string    `json:"mime_type"`
	Checksum   string    `json:"checksum"`
	Width      int       `json:"width,omitempty"`
	Height     int       `json:"height,omitempty"`
	Transcoded bool      `json:"transcoded"`
	CreatedAt  time.Time `json:"created_at"`
}

// MimeTypeForExtension returns the content type served for an artifact extension
func MimeTypeForExtension(ext string) string {
	switch ext {
	case "webp":
		return "image/webp"
	case "gif":
		return "image/gif"
	case "svg":
		return "image/svg+xml"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
