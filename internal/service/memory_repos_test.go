package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/assist-service/internal/domain"
	"github.com/spec-kit/assist-service/internal/repository"
)

// memStore is an in-memory stand-in for the Postgres-backed repositories. It
// serializes writes the way a transactional document store would and applies
// the same compare-and-swap rule as the real Update.
type memStore struct {
	mu       sync.Mutex
	seq      int
	requests map[string]*domain.AssistanceRequest
	comments []domain.RequestComment

	// failCommentInsert simulates the comment insert failing after the count
	// bump would have happened; the fake rolls back like the real transaction.
	failCommentInsert bool
}

func newMemStore() *memStore {
	return &memStore{requests: make(map[string]*domain.AssistanceRequest)}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func cloneRequest(r *domain.AssistanceRequest) *domain.AssistanceRequest {
	copied := *r
	return &copied
}

func (m *memStore) Create(ctx context.Context, request *domain.AssistanceRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	request.ID = m.nextID("req")
	request.CreatedAt = time.Now()
	request.UpdatedAt = request.CreatedAt
	m.requests[request.ID] = cloneRequest(request)
	return nil
}

func (m *memStore) Update(ctx context.Context, request *domain.AssistanceRequest, expectedStatus domain.RequestStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.requests[request.ID]
	if !ok || stored.Status != expectedStatus {
		return pgx.ErrNoRows
	}
	request.UpdatedAt = time.Now()
	request.CreatedAt = stored.CreatedAt
	request.CommentCount = stored.CommentCount
	m.requests[request.ID] = cloneRequest(request)
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id string) (*domain.AssistanceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.requests[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneRequest(stored), nil
}

func (m *memStore) ListWithFilter(ctx context.Context, filter repository.RequestFilter) ([]domain.AssistanceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []domain.AssistanceRequest
	for _, stored := range m.requests {
		if filter.RequesterID != nil && stored.RequesterID != *filter.RequesterID {
			continue
		}
		if filter.Kind != nil && stored.Kind != *filter.Kind {
			continue
		}
		if len(filter.Statuses) > 0 && !statusIn(stored.Status, filter.Statuses) {
			continue
		}
		if filter.Closed != nil {
			if *filter.Closed && stored.ClosedAt == nil {
				continue
			}
			if !*filter.Closed && stored.ClosedAt != nil {
				continue
			}
		}
		if filter.ClosedAfter != nil {
			if stored.ClosedAt == nil || stored.ClosedAt.Before(*filter.ClosedAfter) {
				continue
			}
		}
		result = append(result, *cloneRequest(stored))
	}
	if filter.Closed != nil && *filter.Closed {
		sort.Slice(result, func(i, j int) bool {
			return result[i].ClosedAt.After(*result[j].ClosedAt)
		})
	}
	return result, nil
}

func (m *memStore) ListDueFollowUps(ctx context.Context, now time.Time) ([]domain.AssistanceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []domain.AssistanceRequest
	for _, stored := range m.requests {
		if stored.Status != domain.RequestStatusActive || stored.NextFollowUpAt == nil {
			continue
		}
		if stored.NextFollowUpAt.After(now) {
			continue
		}
		result = append(result, *cloneRequest(stored))
	}
	return result, nil
}

func statusIn(status domain.RequestStatus, statuses []domain.RequestStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// memCommentRepo shares the request map so the count bump and the comment
// append behave like one transaction.
type memCommentRepo struct {
	store *memStore
}

func (m *memCommentRepo) Create(ctx context.Context, comment *domain.RequestComment) (int, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	request, ok := m.store.requests[comment.RequestID]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	if m.store.failCommentInsert {
		return 0, fmt.Errorf("insert comment: connection reset")
	}
	request.CommentCount++
	comment.ID = m.store.nextID("cmt")
	comment.CreatedAt = time.Now()
	m.store.comments = append(m.store.comments, *comment)
	return request.CommentCount, nil
}

func (m *memCommentRepo) ListByRequest(ctx context.Context, requestID string) ([]domain.RequestComment, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var result []domain.RequestComment
	for _, comment := range m.store.comments {
		if comment.RequestID == requestID {
			result = append(result, comment)
		}
	}
	return result, nil
}

func (m *memStore) commentCountFor(requestID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, comment := range m.comments {
		if comment.RequestID == requestID {
			count++
		}
	}
	return count
}

// fakeClock is a controllable clock for deadline assertions.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
