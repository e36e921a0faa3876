package utils

import (
	"time"
)

// Media pipeline limits
const (
	// MaxUploadBytes is the largest payload the upload guard accepts (50 MiB)
	MaxUploadBytes = 50 * 1024 * 1024

	// TransportBodyLimit is the HTTP body ceiling enforced by the server (100 MiB).
	// It sits in front of MaxUploadBytes and is configured independently.
	TransportBodyLimit = 100 * 1024 * 1024

	// MaxImageWidth is the widest raster the transcoder stores; wider images are downscaled
	MaxImageWidth = 1200

	// WebPQuality is the lossy quality used for every transcoded artifact
	WebPQuality = 85

	// MaxImagePixels caps width*height of a raster before it is decoded (50 MP)
	MaxImagePixels = 50_000_000

	// UnknownFilename is the placeholder used when a multipart part carries no filename
	UnknownFilename = "unknown"

	// BinaryContentType is the provisional type indicator for uploads whose type cannot be inferred
	BinaryContentType = "application/octet-stream"
)

// Storage namespace defaults
const (
	// DefaultUploadDir is the flat directory artifacts are written to
	DefaultUploadDir = "uploads"

	// DefaultPublicPrefix is the URL prefix the static file server answers on
	DefaultPublicPrefix = "/uploads"
)

// Transcode worker pool defaults
const (
	DefaultTranscodeQueueSize = 64
	TranscodePoolStopTimeout  = 30 * time.Second
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)
