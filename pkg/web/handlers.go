// Package web provides HTTP handlers and REST API endpoints for run management.
package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/runline/runline/pkg/models"
	"github.com/runline/runline/pkg/persistence"
	"github.com/runline/runline/pkg/services"
)

// userIDHeader carries the caller identity. Authentication happens upstream;
// the API trusts the header as-is.
const userIDHeader = "X-User-ID"

type APIHandlers struct {
	engine      *services.Engine
	attachments services.AttachmentStore
	validator   *validator.Validate
}

func NewAPIHandlers(
	engine *services.Engine,
	attachments services.AttachmentStore,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		engine:      engine,
		attachments: attachments,
		validator:   validator,
	}
}

func (h *APIHandlers) SubmitRun(c fiber.Ctx) error {
	userID := c.Get(userIDHeader)
	if userID == "" {
		return unauthorized(c, "X-User-ID header is required")
	}

	var req SubmitRunRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	runID, err := h.engine.Submit(c.Context(), services.SubmitRequest{
		FormID:      req.FormID,
		Title:       req.Title,
		Data:        req.FormData,
		SubmitterID: userID,
	})
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(SubmitRunResponse{RunID: runID})
}

func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	detail, err := h.engine.GetRun(c.Context(), id)
	if err != nil {
		if persistence.IsRunNotFound(err) {
			return notFound(c, "Run not found")
		}

		return internalError(c, err)
	}

	return c.JSON(detail)
}

func (h *APIHandlers) ListRuns(c fiber.Ctx) error {
	opts, err := h.parseListRunsOptions(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	runs, err := h.engine.ListRuns(c.Context(), *opts)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"runs":  runs,
		"count": len(runs),
	})
}

// parseListRunsOptions parses and validates query parameters for listing runs.
func (h *APIHandlers) parseListRunsOptions(c fiber.Ctx) (*persistence.ListRunsOptions, error) {
	opts := &persistence.ListRunsOptions{}

	opts.FlowID = c.Query("flow_id")

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.RunStatus(statusStr)
		if !models.ValidRunStatus(status) {
			return nil, errors.New("unknown status " + statusStr)
		}

		opts.Status = &status
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		opts.Limit = limit
	}

	return opts, nil
}

func (h *APIHandlers) CancelRun(c fiber.Ctx) error {
	userID := c.Get(userIDHeader)
	if userID == "" {
		return unauthorized(c, "X-User-ID header is required")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	err := h.engine.CancelRun(c.Context(), id, userID)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{"status": string(models.RunStatusCancelled)})
}

func (h *APIHandlers) StartStep(c fiber.Ctx) error {
	userID := c.Get(userIDHeader)
	if userID == "" {
		return unauthorized(c, "X-User-ID header is required")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Step ID is required")
	}

	err := h.engine.StartStep(c.Context(), id, userID)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{"status": string(models.RunStepStatusInProgress)})
}

func (h *APIHandlers) CompleteStep(c fiber.Ctx) error {
	userID := c.Get(userIDHeader)
	if userID == "" {
		return unauthorized(c, "X-User-ID header is required")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Step ID is required")
	}

	var req CompleteStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	var attachmentPath string

	if len(req.Attachment) > 0 {
		path, err := h.attachments.Store(c.Context(), req.AttachmentName, req.Attachment)
		if err != nil {
			return internalError(c, err)
		}

		attachmentPath = path
	}

	result, err := h.engine.CompleteStep(c.Context(), services.CompleteStepRequest{
		StepID:         id,
		Comment:        req.Comment,
		AttachmentPath: attachmentPath,
		Decision:       req.Decision,
	}, userID)
	if err != nil {
		// A paused run still records the completion, so the file stays. Any
		// other rejection leaves the step untouched and the upload is undone.
		if attachmentPath != "" && !services.IsBranchError(err) {
			_ = h.attachments.Remove(c.Context(), attachmentPath)
		}

		return handleEngineError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) MyTasks(c fiber.Ctx) error {
	userID := c.Get(userIDHeader)
	if userID == "" {
		return unauthorized(c, "X-User-ID header is required")
	}

	steps, err := h.engine.MyActiveTasks(c.Context(), userID)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"tasks": steps,
		"count": len(steps),
	})
}

func (h *APIHandlers) MyHistory(c fiber.Ctx) error {
	userID := c.Get(userIDHeader)
	if userID == "" {
		return unauthorized(c, "X-User-ID header is required")
	}

	limit := 0

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "Invalid limit: "+err.Error())
		}

		limit = parsed
	}

	steps, err := h.engine.MyHistory(c.Context(), userID, limit)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"tasks": steps,
		"count": len(steps),
	})
}

func (h *APIHandlers) GetFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	flow, err := h.engine.GetFlow(c.Context(), id)
	if err != nil {
		if persistence.IsFlowNotFound(err) {
			return notFound(c, "Flow not found")
		}

		return internalError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) GetForm(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Form ID is required")
	}

	form, err := h.engine.GetForm(c.Context(), id)
	if err != nil {
		if persistence.IsFormNotFound(err) {
			return notFound(c, "Form not found")
		}

		return internalError(c, err)
	}

	return c.JSON(form)
}

func (h *APIHandlers) GetStepMapping(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	mapping, err := h.engine.StepMapping(c.Context(), id, c.Query("form_id"))
	if err != nil {
		if persistence.IsFlowNotFound(err) {
			return notFound(c, "Flow not found")
		}

		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"steps": mapping,
		"count": len(mapping),
	})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.engine.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Runline API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Runline API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
