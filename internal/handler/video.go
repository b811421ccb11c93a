package handler

import (
	"errors"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/reelforge/api/internal/middleware"
	"github.com/reelforge/api/internal/model"
	"github.com/reelforge/api/internal/service"
	"github.com/reelforge/api/pkg/response"
)

const defaultHistoryLimit = 50

type VideoHandler struct {
	service   *service.VideoService
	validator *validator.Validate
}

func NewVideoHandler(svc *service.VideoService, v *validator.Validate) *VideoHandler {
	return &VideoHandler{
		service:   svc,
		validator: v,
	}
}

// Submit handles POST /api/videos
// @Summary      Submit video idea
// @Description  Charge the tier price, write the script and start scene image generation
// @Tags         Videos
// @Accept       json
// @Produce      json
// @Param        request body model.VideoSubmitRequest true "Video submit request"
// @Success      202 {object} model.VideoSubmitResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      402 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      502 {object} response.ErrorResponse
// @Failure      503 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/videos [post]
func (h *VideoHandler) Submit(c *fiber.Ctx) error {
	var req model.VideoSubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Submit(c.UserContext(), middleware.GetUserID(c), &req)
	if err != nil {
		return serviceError(c, err)
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/videos/:jobId/status
// @Summary      Poll video job
// @Description  Advance the pipeline as far as finished work allows and return progress
// @Tags         Videos
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.VideoStatusResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      403 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      503 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/videos/{jobId}/status [get]
func (h *VideoHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.Advance(c.UserContext(), middleware.GetUserID(c), jobID)
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, result)
}

// Get handles GET /api/videos/:jobId
// @Summary      Get video job
// @Description  Return the stored job record without advancing it
// @Tags         Videos
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.VideoJob
// @Failure      401 {object} response.ErrorResponse
// @Failure      403 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/videos/{jobId} [get]
func (h *VideoHandler) Get(c *fiber.Ctx) error {
	result, err := h.service.Get(c.UserContext(), middleware.GetUserID(c), c.Params("jobId"))
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, result)
}

// List handles GET /api/videos
// @Summary      List video jobs
// @Description  Return the caller's jobs, most recent first
// @Tags         Videos
// @Produce      json
// @Param        limit query int false "Maximum number of jobs" default(50)
// @Success      200 {object} model.VideoListResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      503 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/videos [get]
func (h *VideoHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultHistoryLimit)
	if limit <= 0 || limit > 200 {
		limit = defaultHistoryLimit
	}

	result, err := h.service.List(c.UserContext(), middleware.GetUserID(c), limit)
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, result)
}

// Cancel handles POST /api/videos/:jobId/cancel
// @Summary      Cancel video job
// @Description  Stop a running job and return its credits
// @Tags         Videos
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.VideoStatusResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      403 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/videos/{jobId}/cancel [post]
func (h *VideoHandler) Cancel(c *fiber.Ctx) error {
	result, err := h.service.Cancel(c.UserContext(), middleware.GetUserID(c), c.Params("jobId"))
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, result)
}

// Download handles GET /api/videos/:jobId/download
// @Summary      Download finished video
// @Description  Return a link to the final video, presigned when it has been archived
// @Tags         Videos
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.VideoDownloadResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      403 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/videos/{jobId}/download [get]
func (h *VideoHandler) Download(c *fiber.Ctx) error {
	result, err := h.service.Download(c.UserContext(), middleware.GetUserID(c), c.Params("jobId"))
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, result)
}

// serviceError maps pipeline errors onto the response envelope
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrUnknownTier):
		return response.ValidationError(c, "Unknown tier", nil)
	case errors.Is(err, service.ErrInsufficientCredits):
		return response.PaymentRequired(c, "Not enough credits for this tier", nil)
	case errors.Is(err, service.ErrScriptGeneration):
		return response.BadGateway(c, response.CodeScriptFailed, "Script generation failed. Your credits have been refunded.")
	case errors.Is(err, service.ErrFanOut):
		return response.BadGateway(c, response.CodeFanOutFailed, "Scene generation could not be started. Your credits have been refunded.")
	case errors.Is(err, service.ErrForbidden):
		return response.Forbidden(c, "Job belongs to another account")
	case errors.Is(err, service.ErrJobNotFound):
		return response.NotFound(c, "Job not found")
	case errors.Is(err, service.ErrJobFinished):
		return response.Conflict(c, response.CodeJobFinished, "Job has already finished")
	case errors.Is(err, service.ErrJobBusy):
		return response.Conflict(c, response.CodeJobBusy, "Job is being updated, try again")
	case errors.Is(err, service.ErrJobNotCompleted):
		return response.Conflict(c, response.CodeNotReady, "Video is not ready yet")
	case errors.Is(err, service.ErrPersistence):
		log.Printf("[Handler] persistence error on %s %s: %v", c.Method(), c.Path(), err)
		return response.Unavailable(c, "Storage temporarily unavailable, please retry")
	default:
		log.Printf("[Handler] unexpected error on %s %s: %v", c.Method(), c.Path(), err)
		return response.ServiceError(c, "Internal error")
	}
}

func formatValidationErrors(err error) interface{} {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		fields := make(map[string]string)
		for _, e := range validationErrors {
			fields[e.Field()] = e.Tag()
		}
		return fields
	}
	return nil
}
