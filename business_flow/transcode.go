package businessflow

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/gen2brain/webp"
	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// lanczos3 is a Lanczos kernel with a support radius of three pixels.
var lanczos3 = &xdraw.Kernel{
	Support: 3,
	At: func(t float64) float64 {
		if t < 0 {
			t = -t
		}
		if t == 0 {
			return 1
		}
		if t >= 3 {
			return 0
		}
		x := math.Pi * t
		return 3 * math.Sin(x) * math.Sin(x/3) / (x * x)
	},
}

// TranscodeResult is the outcome of a decode, resize and encode pass.
type TranscodeResult struct {
	Data         []byte
	SourceFormat string
	SourceWidth  int
	SourceHeight int
	Width        int
	Height       int
}

// ImageTranscoder normalizes raster images to WEBP. It holds no mutable state
// and is safe to share between workers.
type ImageTranscoder struct {
	MaxWidth int
	Quality  int
	// MaxPixels bounds width*height of the source; zero disables the check.
	MaxPixels int64
}

// NewImageTranscoder creates a transcoder capping width at maxWidth, encoding at
// quality and refusing sources larger than maxPixels.
func NewImageTranscoder(maxWidth, quality int, maxPixels int64) *ImageTranscoder {
	return &ImageTranscoder{MaxWidth: maxWidth, Quality: quality, MaxPixels: maxPixels}
}

// Transcode is pure CPU work. Callers must run it on the transcode pool, not on a
// request goroutine.
func (t *ImageTranscoder) Transcode(data []byte) (*TranscodeResult, error) {
	// The decoder sniffs the real format; a wrong declared type is corrected here.
	// Dimensions come from the header, before any pixel buffer is allocated.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, NewBusinessError(CodeDecodeError, "Failed to decode image", withCause(ErrDecode, err))
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); t.MaxPixels > 0 && pixels > t.MaxPixels {
		return nil, NewBusinessError(CodeDecodeError, "Failed to decode image", withCause(ErrDecode,
			fmt.Errorf("image is %dx%d, over the %d pixel limit", cfg.Width, cfg.Height, t.MaxPixels)))
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, NewBusinessError(CodeDecodeError, "Failed to decode image", withCause(ErrDecode, err))
	}

	b := src.Bounds()
	out := resizeToWidth(src, t.MaxWidth)

	buf := &bytes.Buffer{}
	if err := webp.Encode(buf, out, webp.Options{Quality: t.Quality}); err != nil {
		return nil, NewBusinessError(CodeEncodeError, "Failed to encode image", withCause(ErrEncode, err))
	}

	ob := out.Bounds()
	return &TranscodeResult{
		Data:         buf.Bytes(),
		SourceFormat: format,
		SourceWidth:  b.Dx(),
		SourceHeight: b.Dy(),
		Width:        ob.Dx(),
		Height:       ob.Dy(),
	}, nil
}

// resizeToWidth downscales src to maxWidth keeping the aspect ratio.
// Images at or below maxWidth are returned untouched.
func resizeToWidth(src image.Image, maxWidth int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxWidth <= 0 || w <= maxWidth {
		return src
	}

	nw, nh := ScaledSize(w, h, maxWidth)
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	lanczos3.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

// ScaledSize returns the dimensions of a w×h image fitted to maxWidth.
// Height is rounded to the nearest pixel and never drops below one.
func ScaledSize(w, h, maxWidth int) (int, int) {
	if maxWidth <= 0 || w <= maxWidth {
		return w, h
	}
	nh := int(math.Round(float64(h) * float64(maxWidth) / float64(w)))
	if nh < 1 {
		nh = 1
	}
	return maxWidth, nh
}
