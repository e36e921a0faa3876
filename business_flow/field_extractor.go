package businessflow

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"strings"

	"github.com/amirphl/hylacviet-media/models"
	"github.com/amirphl/hylacviet-media/utils"
)

// ExtractUploadField walks a multipart body in arrival order and returns the first
// part that has a form name or a real filename. Later parts are never read.
// Only one file per request is supported.
func ExtractUploadField(ctx context.Context, contentType string, body io.Reader) (*models.UploadField, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		return nil, NewBusinessError(CodeNoFileProvided, "No file uploaded", ErrNoFileProvided)
	}

	reader := multipart.NewReader(&contextReader{ctx: ctx, r: body}, params["boundary"])
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		part, err := reader.NextPart()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			// A truncated or malformed stream ends the search the same way EOF does.
			return nil, NewBusinessError(CodeNoFileProvided, "No file uploaded", withCause(ErrNoFileProvided, ignoreEOF(err)))
		}

		name := part.FormName()
		filename := part.FileName()
		if filename == "" {
			filename = utils.UnknownFilename
		}
		if name == "" && filename == utils.UnknownFilename {
			_ = part.Close()
			continue
		}

		data, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, NewBusinessError(CodeInvalidMultipart, "Failed to read upload bytes", withCause(ErrInvalidMultipart, err))
		}

		return &models.UploadField{
			Name:                name,
			DeclaredFilename:    filename,
			DeclaredContentType: strings.TrimSpace(part.Header.Get("Content-Type")),
			Bytes:               data,
		}, nil
	}
}

func ignoreEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// contextReader stops yielding bytes once its context is done, so a dropped
// client aborts the part loop before anything reaches storage.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
