package service

import (
	"context"
	"time"

	"github.com/spec-kit/assist-service/internal/domain"
	"github.com/spec-kit/assist-service/internal/repository"
	apperrors "github.com/spec-kit/assist-service/pkg/util/errorutil"
)

const historyPageSize = 100

// HistoryService applies the role-scoped, time-decaying visibility rule for
// closed requests. It never touches the live active feed.
//
// Because reopening keeps ClosedAt set, a request that was closed and later
// reopened still shows up in closed-history views; this matches the source.
type HistoryService struct {
	requests repository.RequestRepository
	window   time.Duration
	now      func() time.Time
}

// HistoryDependencies bundles collaborators for the history service.
type HistoryDependencies struct {
	RequestRepo repository.RequestRepository
	// VisibilityWindow bounds how long a member keeps seeing their own closed
	// requests.
	VisibilityWindow time.Duration
	// Now overrides the clock; defaults to time.Now.
	Now func() time.Time
}

// NewHistoryService constructs the service.
func NewHistoryService(deps HistoryDependencies) *HistoryService {
	window := deps.VisibilityWindow
	if window <= 0 {
		window = 10 * time.Minute
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &HistoryService{requests: deps.RequestRepo, window: window, now: now}
}

// MyHistory returns closed requests visible to the principal, newest first.
// Elevated roles see every closed request with no time bound; members see only
// their own requests closed within the visibility window.
func (s *HistoryService) MyHistory(ctx context.Context, principal domain.Principal) ([]domain.AssistanceRequest, error) {
	if principal.ID == "" {
		return nil, apperrors.NewUnauthorized("authentication required")
	}

	closed := true
	filter := repository.RequestFilter{
		Closed: &closed,
		Limit:  historyPageSize,
	}
	if !principal.Role.Elevated() {
		requesterID := principal.ID
		cutoff := s.now().Add(-s.window)
		filter.RequesterID = &requesterID
		filter.ClosedAfter = &cutoff
	}
	return s.requests.ListWithFilter(ctx, filter)
}

// AllHistory returns the global feed of resolved requests for elevated roles.
// It filters on the enum status first and then on ClosedAt being set, with no
// time window.
func (s *HistoryService) AllHistory(ctx context.Context, principal domain.Principal) ([]domain.AssistanceRequest, error) {
	if err := Authorize(principal, ActionHistoryAll, nil); err != nil {
		return nil, err
	}

	closed := true
	return s.requests.ListWithFilter(ctx, repository.RequestFilter{
		Statuses: []domain.RequestStatus{domain.RequestStatusResolved},
		Closed:   &closed,
		Limit:    historyPageSize,
	})
}
