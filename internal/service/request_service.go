package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/assist-service/internal/domain"
	"github.com/spec-kit/assist-service/internal/events"
	"github.com/spec-kit/assist-service/internal/repository"
	apperrors "github.com/spec-kit/assist-service/pkg/util/errorutil"
)

// RequestService coordinates the assistance request lifecycle.
type RequestService struct {
	requests   repository.RequestRepository
	comments   repository.CommentRepository
	dispatcher events.Dispatcher
	interval   time.Duration
	now        func() time.Time
}

// RequestDependencies bundles collaborators for the request service.
type RequestDependencies struct {
	RequestRepo repository.RequestRepository
	CommentRepo repository.CommentRepository
	Dispatcher  events.Dispatcher
	// FollowUpInterval is the duration added to now for the next reminder
	// deadline on create, sub-status update and reopen.
	FollowUpInterval time.Duration
	// Now overrides the clock; defaults to time.Now.
	Now func() time.Time
}

// ListActiveFilter describes listing filters for the active feed.
type ListActiveFilter struct {
	Kind        *domain.RequestKind
	RequesterID *string
	Limit       int
	Offset      int
}

// NewRequestService constructs the service.
func NewRequestService(deps RequestDependencies) *RequestService {
	interval := deps.FollowUpInterval
	if interval <= 0 {
		interval = time.Hour
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &RequestService{
		requests:   deps.RequestRepo,
		comments:   deps.CommentRepo,
		dispatcher: deps.Dispatcher,
		interval:   interval,
		now:        now,
	}
}

// Create opens a new assistance request for the principal with the reminder
// deadline one interval out.
func (s *RequestService) Create(ctx context.Context, principal domain.Principal, kind domain.RequestKind, payload map[string]any) (*domain.AssistanceRequest, error) {
	if principal.ID == "" {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if !domain.IsValidKind(kind) {
		return nil, apperrors.NewValidationError("unknown request kind", map[string]any{"kind": kind})
	}

	next := s.now().Add(s.interval)
	request := &domain.AssistanceRequest{
		Kind:           kind,
		RequesterID:    principal.ID,
		Status:         domain.RequestStatusActive,
		Payload:        payload,
		CommentCount:   0,
		NextFollowUpAt: &next,
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:      events.EventRequestCreated,
		RequestID: request.ID,
		ActorID:   principal.ID,
		Payload: events.RequestCreatedPayload{
			Kind:        request.Kind,
			RequesterID: request.RequesterID,
		},
	})
	return request, nil
}

// Get fetches a request and its comment thread.
func (s *RequestService) Get(ctx context.Context, principal domain.Principal, requestID string) (*domain.AssistanceRequest, []domain.RequestComment, error) {
	if principal.ID == "" {
		return nil, nil, apperrors.NewUnauthorized("authentication required")
	}
	request, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	comments, err := s.comments.ListByRequest(ctx, request.ID)
	if err != nil {
		return nil, nil, err
	}
	return request, comments, nil
}

// ListActive returns the live feed of active requests.
func (s *RequestService) ListActive(ctx context.Context, principal domain.Principal, filter ListActiveFilter) ([]domain.AssistanceRequest, error) {
	if principal.ID == "" {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return s.requests.ListWithFilter(ctx, repository.RequestFilter{
		RequesterID: filter.RequesterID,
		Kind:        filter.Kind,
		Statuses:    []domain.RequestStatus{domain.RequestStatusActive},
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	})
}

// UpdateSubStatus records the requester's self-reported progress and resets the
// reminder deadline. The source imposes no constraint on the current primary
// status, so a closed request keeps accepting sub-status updates; that quirk is
// reproduced here.
func (s *RequestService) UpdateSubStatus(ctx context.Context, principal domain.Principal, requestID string, subStatus domain.RequestSubStatus) (*domain.AssistanceRequest, error) {
	if !domain.IsValidSubStatus(subStatus) {
		return nil, apperrors.NewValidationError("unknown sub-status", map[string]any{"sub_status": subStatus})
	}
	request, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(principal, ActionSubStatusUpdate, request); err != nil {
		return nil, err
	}

	now := s.now()
	next := now.Add(s.interval)
	prevStatus := request.Status
	request.SubStatus = &subStatus
	request.LastFollowUpAt = &now
	request.NextFollowUpAt = &next
	if err := s.update(ctx, request, prevStatus); err != nil {
		return nil, err
	}
	return request, nil
}

// Close resolves the request and clears the reminder deadline. Closing an
// already closed request succeeds again without conflict, as in the source.
func (s *RequestService) Close(ctx context.Context, principal domain.Principal, requestID string) (*domain.AssistanceRequest, error) {
	request, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(principal, ActionClose, request); err != nil {
		return nil, err
	}

	now := s.now()
	actor := principal.ID
	prevStatus := request.Status
	request.Status = domain.RequestStatusResolved
	request.ClosedAt = &now
	request.ClosedBy = &actor
	request.NextFollowUpAt = nil
	if err := s.update(ctx, request, prevStatus); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:      events.EventRequestStatusChanged,
		RequestID: request.ID,
		ActorID:   principal.ID,
		Payload: events.RequestStatusChangedPayload{
			OldStatus: prevStatus,
			NewStatus: request.Status,
			Via:       "close",
		},
	})
	return request, nil
}

// Reopen reactivates a closed request and restores the reminder deadline.
// ClosedAt/ClosedBy keep their prior values; only the reopened pair records the
// reactivation.
func (s *RequestService) Reopen(ctx context.Context, principal domain.Principal, requestID string) (*domain.AssistanceRequest, error) {
	request, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(principal, ActionReopen, request); err != nil {
		return nil, err
	}

	now := s.now()
	actor := principal.ID
	next := now.Add(s.interval)
	prevStatus := request.Status
	request.Status = domain.RequestStatusActive
	request.ReopenedAt = &now
	request.ReopenedBy = &actor
	request.NextFollowUpAt = &next
	if err := s.update(ctx, request, prevStatus); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:      events.EventRequestReopened,
		RequestID: request.ID,
		ActorID:   principal.ID,
		Payload:   events.RequestReopenedPayload{ReopenedBy: actor},
	})
	return request, nil
}

// LegacySetStatus is the enum-based status path. It never touches ClosedAt or
// NextFollowUpAt, so a request resolved through here stays invisible to the
// ClosedAt-based history views while appearing resolved in the global feed.
// The divergence is deliberate and matches the source.
func (s *RequestService) LegacySetStatus(ctx context.Context, principal domain.Principal, requestID string, status domain.RequestStatus) (*domain.AssistanceRequest, error) {
	if !domain.IsValidStatus(status) {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": status})
	}
	request, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(principal, ActionLegacySetStatus, request); err != nil {
		return nil, err
	}

	prevStatus := request.Status
	request.Status = status
	if status == domain.RequestStatusResolved {
		now := s.now()
		request.ResolvedAt = &now
	}
	if err := s.update(ctx, request, prevStatus); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:      events.EventRequestStatusChanged,
		RequestID: request.ID,
		ActorID:   principal.ID,
		Payload: events.RequestStatusChangedPayload{
			OldStatus: prevStatus,
			NewStatus: status,
			Via:       "legacy_set_status",
		},
	})
	return request, nil
}

// AddComment appends a comment and bumps the denormalized count atomically.
func (s *RequestService) AddComment(ctx context.Context, principal domain.Principal, requestID, content string) (*domain.RequestComment, error) {
	if err := Authorize(principal, ActionCommentAdd, nil); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("content required", nil)
	}

	comment := &domain.RequestComment{
		RequestID: requestID,
		AuthorID:  principal.ID,
		Content:   content,
	}
	newCount, err := s.comments.Create(ctx, comment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("request", map[string]any{"id": requestID})
		}
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:      events.EventRequestCommentAdded,
		RequestID: requestID,
		ActorID:   principal.ID,
		Payload: events.RequestCommentAddedPayload{
			CommentID:    comment.ID,
			AuthorID:     comment.AuthorID,
			CommentCount: newCount,
		},
	})
	return comment, nil
}

func (s *RequestService) getRequest(ctx context.Context, requestID string) (*domain.AssistanceRequest, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("request", map[string]any{"id": requestID})
		}
		return nil, err
	}
	return request, nil
}

func (s *RequestService) update(ctx context.Context, request *domain.AssistanceRequest, expected domain.RequestStatus) error {
	if err := s.requests.Update(ctx, request, expected); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewConflict("request changed concurrently", map[string]any{"id": request.ID})
		}
		return err
	}
	return nil
}

func (s *RequestService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
