package service

import (
	"github.com/spec-kit/assist-service/internal/domain"
	apperrors "github.com/spec-kit/assist-service/pkg/util/errorutil"
)

// Action identifies an operation subject to authorization.
type Action string

const (
	ActionSubStatusUpdate Action = "request:sub_status"
	ActionClose           Action = "request:close"
	ActionLegacySetStatus Action = "request:legacy_status"
	ActionReopen          Action = "request:reopen"
	ActionCommentAdd      Action = "request:comment"
	ActionHistoryAll      Action = "history:all"
)

// Authorize decides whether principal may perform action on request.
//
// Ownership actions require the principal to be the requester. Reopening a
// closed request and reading the global history require an elevated role.
// Commenting requires authentication only; requests carry contact and location
// data in their payload, so this is a known policy gap kept from the source
// behavior rather than silently tightened.
func Authorize(principal domain.Principal, action Action, request *domain.AssistanceRequest) error {
	if principal.ID == "" {
		return apperrors.NewUnauthorized("authentication required")
	}

	switch action {
	case ActionSubStatusUpdate, ActionClose, ActionLegacySetStatus:
		if request == nil || request.RequesterID != principal.ID {
			return apperrors.NewForbidden("only the requester may modify this request")
		}
	case ActionReopen:
		if !principal.Role.Elevated() {
			return apperrors.NewForbidden("elevated role required to reopen")
		}
	case ActionHistoryAll:
		if !principal.Role.Elevated() {
			return apperrors.NewForbidden("elevated role required")
		}
	case ActionCommentAdd:
		// any authenticated user
	default:
		return apperrors.NewForbidden("unknown action")
	}
	return nil
}
