package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/assist-service/internal/api/dto"
	"github.com/spec-kit/assist-service/internal/auth"
	"github.com/spec-kit/assist-service/internal/service"
	apperrors "github.com/spec-kit/assist-service/pkg/util/errorutil"
)

// HistoryHandler exposes role-scoped closed-request history views.
type HistoryHandler struct {
	history *service.HistoryService
}

// NewHistoryHandler constructs handler.
func NewHistoryHandler(historyService *service.HistoryService) *HistoryHandler {
	return &HistoryHandler{history: historyService}
}

// MyHistory GET /history/mine.
func (h *HistoryHandler) MyHistory(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	requests, err := h.history.MyHistory(c.Context(), principal)
	if err != nil {
		return err
	}
	items := make([]dto.RequestSummary, 0, len(requests))
	for i := range requests {
		items = append(items, requestSummary(&requests[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// AllHistory GET /history/all. Elevated role only.
func (h *HistoryHandler) AllHistory(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	requests, err := h.history.AllHistory(c.Context(), principal)
	if err != nil {
		return err
	}
	items := make([]dto.RequestSummary, 0, len(requests))
	for i := range requests {
		items = append(items, requestSummary(&requests[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}
