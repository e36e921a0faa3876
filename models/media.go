package models

// MediaType is the pipeline's own determination of an upload's type.
type MediaType int

const (
	MediaTypeUnknown MediaType = iota
	MediaTypeJPEG
	MediaTypePNG
	MediaTypeGIF
	MediaTypeWEBP
	MediaTypeSVG
	// MediaTypeBinary is the provisional verdict for an accepted indicator that names
	// no known format (the generic binary placeholder or another image/* type).
	// Whether it is really an image is settled by the decoder.
	MediaTypeBinary
)

func (t MediaType) String() string {
	switch t {
	case MediaTypeJPEG:
		return "jpeg"
	case MediaTypePNG:
		return "png"
	case MediaTypeGIF:
		return "gif"
	case MediaTypeWEBP:
		return "webp"
	case MediaTypeSVG:
		return "svg"
	case MediaTypeBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// IsPassthrough reports whether the type is stored byte-for-byte instead of transcoded.
// GIF keeps its animation frames and SVG is not a raster format.
func (t MediaType) IsPassthrough() bool {
	return t == MediaTypeGIF || t == MediaTypeSVG
}

// UploadField is a single file part pulled out of a multipart request.
// Every attribute except Bytes is caller supplied and untrusted.
type UploadField struct {
	Name                string
	DeclaredFilename    string
	DeclaredContentType string
	Bytes               []byte
}

// Size returns the payload length in bytes
func (f *UploadField) Size() int64 {
	if f == nil {
		return 0
	}
	return int64(len(f.Bytes))
}

// Classification is the classifier's verdict for an UploadField.
type Classification struct {
	// TypeIndicator is the declared content type verbatim, the type inferred from
	// the filename, or the generic binary placeholder.
	TypeIndicator string
	MediaType     MediaType
	// InputExtension is the extension guessed from the declared filename.
	InputExtension string
	// OutputExtension is the extension of the artifact that will be stored.
	OutputExtension string
}

// Passthrough reports whether the classified upload skips transcoding
func (c Classification) Passthrough() bool {
	return c.MediaType.IsPassthrough()
}
