package businessflow

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/amirphl/hylacviet-media/app/dto"
	"github.com/amirphl/hylacviet-media/config"
	"github.com/amirphl/hylacviet-media/models"
	"github.com/amirphl/hylacviet-media/repository"
	"github.com/amirphl/hylacviet-media/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inlinePool runs jobs on the submitting goroutine
type inlinePool struct{}

func (inlinePool) Submit(_ context.Context, fn func()) error {
	fn()
	return nil
}

type rejectingPool struct{ err error }

func (p rejectingPool) Submit(context.Context, func()) error {
	return p.err
}

func newTestFlow(t *testing.T, pool WorkerPool, mutate func(*config.MediaConfig)) (MediaUploadFlow, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultMediaConfig()
	cfg.StorageDir = dir
	if mutate != nil {
		mutate(&cfg)
	}
	repo := repository.NewDiskArtifactRepository(cfg.StorageDir, cfg.PublicPrefix)
	return NewMediaUploadFlow(repo, pool, cfg, utils.DiscardLogger()), cfg.StorageDir
}

func uploadRequest(t *testing.T, parts ...formPart) *dto.MediaUploadRequest {
	t.Helper()
	contentType, body := buildMultipart(t, parts...)
	return &dto.MediaUploadRequest{ContentType: contentType, Body: bytes.NewReader(body)}
}

func storedFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestMediaUploadFlow_UploadMedia(t *testing.T) {
	jpegData := jpegBytes(t, 2000, 1000)
	pngData := pngBytes(t, 400, 300)
	gifData := gifBytes(t, 16, 16)

	tests := []struct {
		name        string
		part        formPart
		ext         string
		transcoded  bool
		width       int
		height      int
		sameAsInput bool
	}{
		{
			name:       "wide jpeg is resized to webp",
			part:       formPart{Field: "file", Filename: "photo.jpg", ContentType: "image/jpeg", Data: jpegData},
			ext:        "webp",
			transcoded: true,
			width:      1200,
			height:     600,
		},
		{
			name:       "small png keeps its dimensions",
			part:       formPart{Field: "file", Filename: "a.png", ContentType: "image/png", Data: pngData},
			ext:        "webp",
			transcoded: true,
			width:      400,
			height:     300,
		},
		{
			name:        "gif is stored unchanged",
			part:        formPart{Field: "file", Filename: "anim.gif", ContentType: "image/gif", Data: gifData},
			ext:         "gif",
			sameAsInput: true,
		},
		{
			name:        "svg is stored unchanged",
			part:        formPart{Field: "file", Filename: "logo.svg", ContentType: "image/svg+xml", Data: []byte(svgDoc)},
			ext:         "svg",
			sameAsInput: true,
		},
		{
			name:       "octet-stream png is decoded by content",
			part:       formPart{Field: "file", Filename: "blob", ContentType: "application/octet-stream", Data: pngData},
			ext:        "webp",
			transcoded: true,
			width:      400,
			height:     300,
		},
		{
			name:       "missing content type falls back to the extension",
			part:       formPart{Field: "file", Filename: "a.PNG", Data: pngData},
			ext:        "webp",
			transcoded: true,
			width:      400,
			height:     300,
		},
		{
			name:       "declared png holding jpeg bytes still decodes",
			part:       formPart{Field: "file", Filename: "a.png", ContentType: "image/png", Data: jpegData},
			ext:        "webp",
			transcoded: true,
			width:      1200,
			height:     600,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow, dir := newTestFlow(t, inlinePool{}, nil)

			resp, err := flow.UploadMedia(context.Background(), uploadRequest(t, tt.part), NewClientMetadata("127.0.0.1", "test"))
			require.NoError(t, err)
			require.NotNil(t, resp)

			assert.True(t, strings.HasSuffix(resp.Filename, "."+tt.ext))
			assert.Len(t, strings.TrimSuffix(resp.Filename, "."+tt.ext), 36)
			assert.Equal(t, "/uploads/"+resp.Filename, resp.URL)

			stored, err := os.ReadFile(filepath.Join(dir, resp.Filename))
			require.NoError(t, err)
			assert.Equal(t, int64(len(stored)), resp.SizeBytes)

			if tt.sameAsInput {
				assert.Equal(t, tt.part.Data, stored)
				assert.Zero(t, resp.Width)
				return
			}
			assert.Equal(t, "image/webp", resp.MimeType)
			assert.Equal(t, tt.width, resp.Width)
			assert.Equal(t, tt.height, resp.Height)

			cfg := decodeWebP(t, stored)
			assert.Equal(t, tt.width, cfg.Width)
			assert.Equal(t, tt.height, cfg.Height)
		})
	}
}

func TestMediaUploadFlow_UploadMedia_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		limit   int64
		parts   []formPart
		code    string
		message string
	}{
		{
			name:    "text file",
			parts:   []formPart{{Field: "file", Filename: "notes.txt", ContentType: "text/plain", Data: []byte("hello")}},
			code:    CodeUnsupportedType,
			message: "Only image files are allowed, got: text/plain",
		},
		{
			name:    "zero bytes",
			parts:   []formPart{{Field: "file", Filename: "a.png", ContentType: "image/png"}},
			code:    CodeEmptyPayload,
			message: "Empty file",
		},
		{
			name:    "over the configured limit",
			limit:   2 * 1024 * 1024,
			parts:   []formPart{{Field: "file", Filename: "a.gif", ContentType: "image/gif", Data: make([]byte, 2*1024*1024+1)}},
			code:    CodePayloadTooLarge,
			message: "File too large (max 2MB)",
		},
		{
			name:    "no named part",
			parts:   []formPart{{Data: []byte("anonymous")}},
			code:    CodeNoFileProvided,
			message: "No file uploaded",
		},
		{
			name:    "declared png with garbage bytes",
			parts:   []formPart{{Field: "file", Filename: "a.png", ContentType: "image/png", Data: []byte("not a png")}},
			code:    CodeDecodeError,
			message: "Failed to decode image: image: unknown format",
		},
		{
			name:    "tiny payload declaring a huge raster",
			parts:   []formPart{{Field: "file", Filename: "a.png", ContentType: "image/png", Data: pngHeaderOnly(40000, 40000)}},
			code:    CodeDecodeError,
			message: "Failed to decode image: image is 40000x40000, over the 50000000 pixel limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow, dir := newTestFlow(t, inlinePool{}, func(cfg *config.MediaConfig) {
				if tt.limit > 0 {
					cfg.MaxUploadBytes = tt.limit
				}
			})

			resp, err := flow.UploadMedia(context.Background(), uploadRequest(t, tt.parts...), nil)
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.Equal(t, tt.code, ErrorCode(err))

			var be *BusinessError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, tt.message, be.PublicMessage())
			assert.Empty(t, storedFiles(t, dir))
		})
	}
}

func TestMediaUploadFlow_ExactlyAtLimit(t *testing.T) {
	const limit = 1024 * 1024
	flow, dir := newTestFlow(t, inlinePool{}, func(cfg *config.MediaConfig) {
		cfg.MaxUploadBytes = limit
	})

	// SVG passes through, so arbitrary bytes of the right size are enough
	data := bytes.Repeat([]byte("a"), limit)
	resp, err := flow.UploadMedia(context.Background(), uploadRequest(t, formPart{Field: "file", Filename: "big.svg", ContentType: "image/svg+xml", Data: data}), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(limit), resp.SizeBytes)
	assert.Len(t, storedFiles(t, dir), 1)
}

func TestMediaUploadFlow_IdenticalUploadsGetDistinctFiles(t *testing.T) {
	flow, dir := newTestFlow(t, inlinePool{}, nil)
	part := formPart{Field: "file", Filename: "logo.svg", ContentType: "image/svg+xml", Data: []byte(svgDoc)}

	const n = 8
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		names = map[string]struct{}{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := flow.UploadMedia(context.Background(), uploadRequest(t, part), nil)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			names[resp.Filename] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, names, n)
	assert.Len(t, storedFiles(t, dir), n)
}

func TestMediaUploadFlow_StorageFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "uploads")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0o644))

	cfg := config.DefaultMediaConfig()
	cfg.StorageDir = blocker
	flow := NewMediaUploadFlow(repository.NewDiskArtifactRepository(blocker, cfg.PublicPrefix), inlinePool{}, cfg, nil)

	_, err := flow.UploadMedia(context.Background(), uploadRequest(t, formPart{Field: "file", Filename: "logo.svg", ContentType: "image/svg+xml", Data: []byte(svgDoc)}), nil)
	require.Error(t, err)
	assert.True(t, IsStorageWriteError(err))
	assert.Equal(t, CodeStorageWrite, ErrorCode(err))
	assert.False(t, IsClientError(err))
}

func TestMediaUploadFlow_PoolRejection(t *testing.T) {
	poolErr := errors.New("pool stopped")
	flow, dir := newTestFlow(t, rejectingPool{err: poolErr}, nil)

	_, err := flow.UploadMedia(context.Background(), uploadRequest(t, formPart{Field: "file", Filename: "a.png", ContentType: "image/png", Data: pngBytes(t, 8, 8)}), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, poolErr)
	assert.Equal(t, "INTERNAL_ERROR", ErrorCode(err))
	assert.Empty(t, storedFiles(t, dir))

	// Passthrough uploads never touch the pool
	_, err = flow.UploadMedia(context.Background(), uploadRequest(t, formPart{Field: "file", Filename: "a.gif", ContentType: "image/gif", Data: gifBytes(t, 4, 4)}), nil)
	require.NoError(t, err)
}

func TestMediaUploadFlow_NilInputs(t *testing.T) {
	flow, _ := newTestFlow(t, inlinePool{}, nil)

	_, err := flow.UploadMedia(context.Background(), nil, nil)
	assert.True(t, IsNoFileProvided(err))

	_, err = flow.UploadMedia(context.Background(), &dto.MediaUploadRequest{ContentType: "multipart/form-data; boundary=x"}, nil)
	assert.True(t, IsNoFileProvided(err))

	_, err = flow.NormalizeField(context.Background(), nil)
	assert.True(t, IsNoFileProvided(err))
}

func TestMediaUploadFlow_NormalizeField(t *testing.T) {
	flow, dir := newTestFlow(t, inlinePool{}, nil)

	artifact, err := flow.NormalizeField(context.Background(), &models.UploadField{
		Name:             "file",
		DeclaredFilename: "photo.jpg",
		Bytes:            jpegBytes(t, 1600, 800),
	})
	require.NoError(t, err)

	assert.True(t, artifact.Transcoded)
	assert.Equal(t, "webp", artifact.Extension)
	assert.Equal(t, 1200, artifact.Width)
	assert.Equal(t, 600, artifact.Height)
	assert.Len(t, artifact.Checksum, 64)
	assert.FileExists(t, filepath.Join(dir, artifact.Filename))
}
