package businessflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirphl/hylacviet-media/app/dto"
	"github.com/amirphl/hylacviet-media/config"
	"github.com/amirphl/hylacviet-media/models"
	"github.com/amirphl/hylacviet-media/repository"
	"github.com/amirphl/hylacviet-media/utils"
)

// Upload lifecycle states, logged as the request moves through the pipeline
const (
	stateReceiving   = "receiving"
	stateClassified  = "classified"
	statePassthrough = "passthrough"
	stateTranscoding = "transcoding"
	statePersisted   = "persisted"
	stateFailed      = "failed"
)

// WorkerPool executes CPU-bound jobs away from request goroutines.
type WorkerPool interface {
	Submit(ctx context.Context, fn func()) error
}

// MediaUploadFlow defines operations for media ingestion.
type MediaUploadFlow interface {
	// UploadMedia extracts the single file part from a multipart body and stores it.
	UploadMedia(ctx context.Context, req *dto.MediaUploadRequest, metadata *ClientMetadata) (*dto.MediaUploadResponse, error)
	// NormalizeField classifies, validates, processes and stores an already extracted field.
	NormalizeField(ctx context.Context, field *models.UploadField) (*models.StoredArtifact, error)
}

// MediaUploadFlowImpl implements MediaUploadFlow.
// Each call owns its buffers end to end; the only shared resource is the storage
// directory, where unique filenames keep concurrent writers apart.
type MediaUploadFlowImpl struct {
	artifactRepo repository.ArtifactRepository
	pool         WorkerPool
	guard        *UploadGuard
	transcoder   *ImageTranscoder
	logger       *slog.Logger
}

// NewMediaUploadFlow creates a new media upload flow instance.
func NewMediaUploadFlow(artifactRepo repository.ArtifactRepository, pool WorkerPool, cfg config.MediaConfig, logger *slog.Logger) MediaUploadFlow {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaUploadFlowImpl{
		artifactRepo: artifactRepo,
		pool:         pool,
		guard:        NewUploadGuard(cfg.MaxUploadBytes),
		transcoder:   NewImageTranscoder(cfg.MaxImageWidth, cfg.WebPQuality, cfg.MaxPixels),
		logger:       logger.With("component", "media_upload_flow"),
	}
}

func (f *MediaUploadFlowImpl) UploadMedia(ctx context.Context, req *dto.MediaUploadRequest, metadata *ClientMetadata) (*dto.MediaUploadResponse, error) {
	log := f.requestLogger(ctx, metadata)
	if req == nil || req.Body == nil {
		observeUpload(CodeNoFileProvided, pathNone)
		return nil, NewBusinessError(CodeNoFileProvided, "No file uploaded", ErrNoFileProvided)
	}

	log.Debug("upload state", "state", stateReceiving)
	field, err := ExtractUploadField(ctx, req.ContentType, req.Body)
	if err != nil {
		f.fail(log, pathNone, err)
		return nil, err
	}
	log.Info("upload field",
		"name", field.Name,
		"filename", field.DeclaredFilename,
		"declared_content_type", field.DeclaredContentType,
		"size_bytes", field.Size(),
	)

	artifact, err := f.normalize(ctx, log, field)
	if err != nil {
		return nil, err
	}

	resp := ToMediaUploadResponse(*artifact)
	return &resp, nil
}

func (f *MediaUploadFlowImpl) NormalizeField(ctx context.Context, field *models.UploadField) (*models.StoredArtifact, error) {
	if field == nil {
		observeUpload(CodeNoFileProvided, pathNone)
		return nil, NewBusinessError(CodeNoFileProvided, "No file uploaded", ErrNoFileProvided)
	}
	return f.normalize(ctx, f.requestLogger(ctx, nil), field)
}

func (f *MediaUploadFlowImpl) normalize(ctx context.Context, log *slog.Logger, field *models.UploadField) (*models.StoredArtifact, error) {
	cls := ClassifyUpload(field)
	log.Debug("upload state",
		"state", stateClassified,
		"type_indicator", cls.TypeIndicator,
		"media_type", cls.MediaType.String(),
		"input_extension", cls.InputExtension,
		"output_extension", cls.OutputExtension,
	)

	if err := f.guard.Check(cls, field.Size()); err != nil {
		f.fail(log, pathNone, err)
		return nil, err
	}

	var (
		payload    = field.Bytes
		path       = pathPassthrough
		transcoded *TranscodeResult
	)
	if cls.Passthrough() {
		log.Debug("upload state", "state", statePassthrough)
	} else {
		path = pathTranscode
		log.Debug("upload state", "state", stateTranscoding)
		result, err := f.transcode(ctx, field.Bytes)
		if err != nil {
			f.fail(log, path, err)
			return nil, err
		}
		transcoded = result
		payload = result.Data
	}

	artifact, err := f.artifactRepo.Save(ctx, cls.OutputExtension, payload)
	if err != nil {
		berr := NewBusinessError(CodeStorageWrite, "Failed to store file", withCause(ErrStorageWrite, err))
		f.fail(log, path, berr)
		return nil, berr
	}
	if transcoded != nil {
		artifact.Width = transcoded.Width
		artifact.Height = transcoded.Height
		artifact.Transcoded = true
	}

	mediaStoredBytesTotal.WithLabelValues(path).Add(float64(artifact.SizeBytes))
	observeUpload("ok", path)
	log.Info("upload state",
		"state", statePersisted,
		"filename", artifact.Filename,
		"url", artifact.PublicURL,
		"size_bytes", artifact.SizeBytes,
		"checksum", artifact.Checksum,
		"path", path,
	)
	return artifact, nil
}

type transcodeOutcome struct {
	result *TranscodeResult
	err    error
}

// transcode hands the decode/resize/encode unit to the worker pool and waits for
// its result on a dedicated channel.
func (f *MediaUploadFlowImpl) transcode(ctx context.Context, data []byte) (*TranscodeResult, error) {
	done := make(chan transcodeOutcome, 1)
	job := func() {
		defer func() {
			if r := recover(); r != nil {
				done <- transcodeOutcome{err: NewBusinessError(CodeDecodeError, "Failed to decode image", withCause(ErrDecode, fmt.Errorf("panic: %v", r)))}
			}
		}()
		start := time.Now()
		result, err := f.transcoder.Transcode(data)
		if err == nil {
			mediaTranscodeDuration.WithLabelValues(result.SourceFormat).Observe(time.Since(start).Seconds())
		}
		done <- transcodeOutcome{result: result, err: err}
	}

	if err := f.pool.Submit(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to schedule transcode: %w", err)
	}

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *MediaUploadFlowImpl) fail(log *slog.Logger, path string, err error) {
	code := ErrorCode(err)
	observeUpload(code, path)

	msg := err.Error()
	if be, ok := err.(*BusinessError); ok {
		msg = be.PublicMessage()
	}
	if IsClientError(err) {
		log.Warn("upload state", "state", stateFailed, "code", code, "reason", msg)
		return
	}
	log.Error("upload state", "state", stateFailed, "code", code, "reason", msg)
}

func (f *MediaUploadFlowImpl) requestLogger(ctx context.Context, metadata *ClientMetadata) *slog.Logger {
	log := f.logger
	if requestID := utils.RequestIDFromContext(ctx); requestID != "" {
		log = log.With("request_id", requestID)
	}
	if metadata != nil {
		log = log.With("ip", metadata.IPAddress, "admin_id", metadata.AdminID)
	}
	return log
}
