package businessflow

import (
	"fmt"

	"github.com/amirphl/hylacviet-media/models"
)

// UploadGuard enforces type and size policy before any expensive work happens.
type UploadGuard struct {
	MaxBytes int64
}

// NewUploadGuard creates a guard accepting payloads in (0, maxBytes]
func NewUploadGuard(maxBytes int64) *UploadGuard {
	return &UploadGuard{MaxBytes: maxBytes}
}

// Check applies the type policy first, then the size policy.
// The type decision trusts the declared or inferred indicator; payload bytes are not inspected.
func (g *UploadGuard) Check(cls models.Classification, size int64) error {
	if cls.MediaType == models.MediaTypeUnknown {
		return NewBusinessErrorf(CodeUnsupportedType, "Only image files are allowed, got: %s", ErrUnsupportedType, cls.TypeIndicator)
	}
	if size > g.MaxBytes {
		return NewBusinessErrorf(CodePayloadTooLarge, "File too large (max %s)", ErrPayloadTooLarge, formatLimit(g.MaxBytes))
	}
	if size <= 0 {
		return NewBusinessError(CodeEmptyPayload, "Empty file", ErrEmptyPayload)
	}
	return nil
}

// formatLimit renders a byte count in the largest unit that divides it exactly.
func formatLimit(n int64) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%dMB", n>>20)
	case n >= 1<<10 && n%(1<<10) == 0:
		return fmt.Sprintf("%dKB", n>>10)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
