package businessflow

import (
	"path/filepath"
	"strings"

	"github.com/amirphl/hylacviet-media/models"
	"github.com/amirphl/hylacviet-media/utils"
)

var mediaTypesByExtension = map[string]models.MediaType{
	".jpg":  models.MediaTypeJPEG,
	".jpeg": models.MediaTypeJPEG,
	".png":  models.MediaTypePNG,
	".gif":  models.MediaTypeGIF,
	".webp": models.MediaTypeWEBP,
	".svg":  models.MediaTypeSVG,
}

var contentTypesByMediaType = map[models.MediaType]string{
	models.MediaTypeJPEG: "image/jpeg",
	models.MediaTypePNG:  "image/png",
	models.MediaTypeGIF:  "image/gif",
	models.MediaTypeWEBP: "image/webp",
	models.MediaTypeSVG:  "image/svg+xml",
}

// ClassifyUpload resolves the type indicator and media type of an upload.
// A declared content type always wins; the filename extension is only a fallback.
// Nothing here looks at the payload bytes: the transcoder's decoder is the only sniffer.
func ClassifyUpload(field *models.UploadField) models.Classification {
	inputExt := strings.ToLower(filepath.Ext(field.DeclaredFilename))

	var indicator string
	if field.DeclaredContentType != "" {
		indicator = field.DeclaredContentType
	} else if mt, ok := mediaTypesByExtension[inputExt]; ok {
		indicator = contentTypesByMediaType[mt]
	} else {
		indicator = utils.BinaryContentType
	}

	mediaType := mediaTypeForIndicator(indicator)
	return models.Classification{
		TypeIndicator:   indicator,
		MediaType:       mediaType,
		InputExtension:  strings.TrimPrefix(inputExt, "."),
		OutputExtension: outputExtension(mediaType),
	}
}

// mediaTypeForIndicator maps a content type onto the closed media type set.
// Parameters such as "; charset=utf-8" are ignored.
func mediaTypeForIndicator(indicator string) models.MediaType {
	base := strings.ToLower(strings.TrimSpace(indicator))
	if i := strings.IndexByte(base, ';'); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	switch base {
	case "image/jpeg", "image/jpg", "image/pjpeg":
		return models.MediaTypeJPEG
	case "image/png":
		return models.MediaTypePNG
	case "image/gif":
		return models.MediaTypeGIF
	case "image/webp":
		return models.MediaTypeWEBP
	case "image/svg+xml":
		return models.MediaTypeSVG
	}
	if base == utils.BinaryContentType || strings.HasPrefix(base, "image/") {
		return models.MediaTypeBinary
	}
	return models.MediaTypeUnknown
}

// outputExtension is decided by the final encoding, never by the input name
func outputExtension(mt models.MediaType) string {
	switch mt {
	case models.MediaTypeGIF:
		return "gif"
	case models.MediaTypeSVG:
		return "svg"
	default:
		return "webp"
	}
}
