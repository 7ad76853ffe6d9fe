package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/assist-service/internal/api/dto"
	"github.com/spec-kit/assist-service/internal/scheduler"
)

// FollowUpsHandler lets an external trigger run a follow-up scan.
type FollowUpsHandler struct {
	scanner *scheduler.FollowUpScanner
}

// NewFollowUpsHandler constructs handler.
func NewFollowUpsHandler(scanner *scheduler.FollowUpScanner) *FollowUpsHandler {
	return &FollowUpsHandler{scanner: scanner}
}

// RunScan POST /admin/follow-ups/scan.
func (h *FollowUpsHandler) RunScan(c *fiber.Ctx) error {
	result, err := h.scanner.RunScan(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ScanResponse{
		Notified: result.Notified,
		Failed:   result.Failed,
		Skipped:  result.Skipped,
	}})
}
