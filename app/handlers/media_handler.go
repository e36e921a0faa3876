// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"bytes"
	"context"
	"errors"

	"github.com/amirphl/hylacviet-media/app/dto"
	businessflow "github.com/amirphl/hylacviet-media/business_flow"
	"github.com/amirphl/hylacviet-media/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

// MediaHandlerInterface defines the contract for media handlers.
type MediaHandlerInterface interface {
	Upload(c fiber.Ctx) error
}

// MediaHandler handles media upload requests.
type MediaHandler struct {
	flow businessflow.MediaUploadFlow
}

// NewMediaHandler creates a new media handler.
func NewMediaHandler(flow businessflow.MediaUploadFlow) *MediaHandler {
	return &MediaHandler{flow: flow}
}

func (h *MediaHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *MediaHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Upload accepts a single image, normalizes it and stores it under the uploads directory.
// @Summary Upload image
// @Description Upload one image (jpg/png/gif/webp/svg or any decodable raster, <=50MB). Rasters are resized to at most 1200px wide and re-encoded as WEBP; GIF and SVG are stored as-is.
// @Tags Media
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Image file (<=50MB)"
// @Success 200 {object} dto.APIResponse{data=dto.MediaUploadResponse} "Upload successful"
// @Failure 400 {object} dto.APIResponse "No file, unsupported type, empty or oversized file"
// @Failure 401 {object} dto.APIResponse "Missing or invalid token"
// @Failure 500 {object} dto.APIResponse "Decode, encode or storage failure"
// @Router /api/upload [post]
func (h *MediaHandler) Upload(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, c.Path())
	defer cancel()

	req := &dto.MediaUploadRequest{
		ContentType: c.Get(fiber.HeaderContentType),
		Body:        bytes.NewReader(c.Body()),
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get(fiber.HeaderUserAgent))
	metadata.SetRequestID(requestid.FromContext(c))
	if adminID, ok := c.Locals("admin_id").(string); ok {
		metadata.SetAdminID(adminID)
	}

	result, err := h.flow.UploadMedia(ctx, req, metadata)
	if err != nil {
		var be *businessflow.BusinessError
		if errors.As(err, &be) {
			if businessflow.IsClientError(err) {
				return h.ErrorResponse(c, fiber.StatusBadRequest, be.PublicMessage(), be.Code, nil)
			}
			return h.ErrorResponse(c, fiber.StatusInternalServerError, be.PublicMessage(), be.Code, nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to process upload", "INTERNAL_ERROR", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "", result)
}

// createRequestContext detaches the pipeline from fasthttp's pooled request
// context. The pipeline has no deadline of its own; server timeouts bound it.
func (h *MediaHandler) createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = context.WithValue(ctx, utils.RequestIDKey, requestid.FromContext(c))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get(fiber.HeaderUserAgent))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	if adminID, ok := c.Locals("admin_id").(string); ok && adminID != "" {
		ctx = context.WithValue(ctx, utils.AdminIDKey, adminID)
	}
	return ctx, cancel
}
