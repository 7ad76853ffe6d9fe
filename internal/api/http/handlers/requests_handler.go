package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/assist-service/internal/api/dto"
	"github.com/spec-kit/assist-service/internal/auth"
	"github.com/spec-kit/assist-service/internal/domain"
	"github.com/spec-kit/assist-service/internal/service"
	apperrors "github.com/spec-kit/assist-service/pkg/util/errorutil"
)

// RequestsHandler manages assistance request endpoints.
type RequestsHandler struct {
	service *service.RequestService
}

// NewRequestsHandler constructs handler.
func NewRequestsHandler(requestService *service.RequestService) *RequestsHandler {
	return &RequestsHandler{service: requestService}
}

// Create POST /requests.
func (h *RequestsHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateRequestRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Kind == "" {
		return apperrors.NewValidationError("kind required", nil)
	}

	request, err := h.service.Create(c.Context(), principal, req.Kind, req.Payload)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": requestSummary(request)})
}

// ListActive GET /requests.
func (h *RequestsHandler) ListActive(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	filter := parseActiveQuery(c)
	requests, err := h.service.ListActive(c.Context(), principal, filter)
	if err != nil {
		return err
	}
	items := make([]dto.RequestSummary, 0, len(requests))
	for i := range requests {
		items = append(items, requestSummary(&requests[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /requests/:id.
func (h *RequestsHandler) Get(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	request, comments, err := h.service.Get(c.Context(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": requestDetail(request, comments)})
}

// UpdateSubStatus PATCH /requests/:id/sub-status.
func (h *RequestsHandler) UpdateSubStatus(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.UpdateSubStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	request, err := h.service.UpdateSubStatus(c.Context(), principal, c.Params("id"), req.SubStatus)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": requestSummary(request)})
}

// Close POST /requests/:id/close.
func (h *RequestsHandler) Close(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	request, err := h.service.Close(c.Context(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": requestSummary(request)})
}

// Reopen POST /requests/:id/reopen. Elevated role only.
func (h *RequestsHandler) Reopen(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	request, err := h.service.Reopen(c.Context(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": requestSummary(request)})
}

// SetStatus PATCH /requests/:id/status (legacy enum-based path).
func (h *RequestsHandler) SetStatus(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.SetStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	request, err := h.service.LegacySetStatus(c.Context(), principal, c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": requestSummary(request)})
}

// AddComment POST /requests/:id/comments.
func (h *RequestsHandler) AddComment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.AddCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Content) == "" {
		return apperrors.NewValidationError("content required", nil)
	}

	comment, err := h.service.AddComment(c.Context(), principal, c.Params("id"), req.Content)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": commentResponse(comment)})
}

func parseActiveQuery(c *fiber.Ctx) service.ListActiveFilter {
	filter := service.ListActiveFilter{}
	if kindStr := c.Query("kind"); kindStr != "" {
		kind := domain.RequestKind(strings.ToUpper(strings.TrimSpace(kindStr)))
		filter.Kind = &kind
	}
	if requester := c.Query("requester_id"); requester != "" {
		filter.RequesterID = &requester
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func requestSummary(request *domain.AssistanceRequest) dto.RequestSummary {
	return dto.RequestSummary{
		ID:             request.ID,
		Kind:           request.Kind,
		RequesterID:    request.RequesterID,
		Status:         request.Status,
		SubStatus:      request.SubStatus,
		CommentCount:   request.CommentCount,
		CreatedAt:      request.CreatedAt,
		UpdatedAt:      request.UpdatedAt,
		NextFollowUpAt: request.NextFollowUpAt,
		ClosedAt:       request.ClosedAt,
	}
}

func requestDetail(request *domain.AssistanceRequest, comments []domain.RequestComment) dto.RequestDetailResponse {
	thread := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		thread = append(thread, commentResponse(&comments[i]))
	}
	return dto.RequestDetailResponse{
		ID:             request.ID,
		Kind:           request.Kind,
		RequesterID:    request.RequesterID,
		Status:         request.Status,
		SubStatus:      request.SubStatus,
		Payload:        request.Payload,
		CommentCount:   request.CommentCount,
		CreatedAt:      request.CreatedAt,
		UpdatedAt:      request.UpdatedAt,
		LastFollowUpAt: request.LastFollowUpAt,
		NextFollowUpAt: request.NextFollowUpAt,
		ClosedAt:       request.ClosedAt,
		ClosedBy:       request.ClosedBy,
		ReopenedAt:     request.ReopenedAt,
		ReopenedBy:     request.ReopenedBy,
		ResolvedAt:     request.ResolvedAt,
		Comments:       thread,
	}
}

func commentResponse(comment *domain.RequestComment) dto.CommentResponse {
	return dto.CommentResponse{
		ID:        comment.ID,
		AuthorID:  comment.AuthorID,
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt,
	}
}
