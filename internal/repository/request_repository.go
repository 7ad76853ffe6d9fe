package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/assist-service/internal/domain"
)

// RequestFilter captures listing parameters for assistance requests.
type RequestFilter struct {
	RequesterID *string
	Kind        *domain.RequestKind
	Statuses    []domain.RequestStatus
	// Closed filters on closed_at being set (true) or unset (false).
	Closed *bool
	// ClosedAfter keeps only requests closed at or after the given instant.
	ClosedAfter *time.Time
	// DueBefore keeps only requests whose follow-up deadline is set and has
	// passed the given instant.
	DueBefore *time.Time
	Limit     int
	Offset    int
}

// RequestRepository encapsulates assistance request persistence.
type RequestRepository interface {
	Create(ctx context.Context, request *domain.AssistanceRequest) error
	// Update persists all mutable fields. The write only applies while the
	// stored status still equals expectedStatus; pgx.ErrNoRows signals either
	// a missing row or a lost race.
	Update(ctx context.Context, request *domain.AssistanceRequest, expectedStatus domain.RequestStatus) error
	GetByID(ctx context.Context, id string) (*domain.AssistanceRequest, error)
	ListWithFilter(ctx context.Context, filter RequestFilter) ([]domain.AssistanceRequest, error)
	// ListDueFollowUps returns active requests whose follow-up deadline is set
	// and not after now.
	ListDueFollowUps(ctx context.Context, now time.Time) ([]domain.AssistanceRequest, error)
}

type requestRepository struct {
	pool *pgxpool.Pool
}

// NewRequestRepository instantiates repository.
func NewRequestRepository(pool *pgxpool.Pool) RequestRepository {
	return &requestRepository{pool: pool}
}

const requestColumns = `id, kind, requester_id, status, sub_status, payload, comment_count,
               created_at, updated_at, last_follow_up_at, next_follow_up_at,
               closed_at, closed_by, reopened_at, reopened_by, resolved_at`

func (r *requestRepository) Create(ctx context.Context, request *domain.AssistanceRequest) error {
	const query = `
        INSERT INTO assist_requests (kind, requester_id, status, sub_status, payload, comment_count, next_follow_up_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		request.Kind,
		request.RequesterID,
		request.Status,
		request.SubStatus,
		request.Payload,
		request.CommentCount,
		request.NextFollowUpAt,
	).Scan(&request.ID, &request.CreatedAt, &request.UpdatedAt)
}

func (r *requestRepository) Update(ctx context.Context, request *domain.AssistanceRequest, expectedStatus domain.RequestStatus) error {
	const query = `
        UPDATE assist_requests SET status=$1, sub_status=$2, payload=$3,
            last_follow_up_at=$4, next_follow_up_at=$5,
            closed_at=$6, closed_by=$7, reopened_at=$8, reopened_by=$9,
            resolved_at=$10, updated_at=NOW()
        WHERE id=$11 AND status=$12`
	cmd, err := r.pool.Exec(ctx, query,
		request.Status,
		request.SubStatus,
		request.Payload,
		request.LastFollowUpAt,
		request.NextFollowUpAt,
		request.ClosedAt,
		request.ClosedBy,
		request.ReopenedAt,
		request.ReopenedBy,
		request.ResolvedAt,
		request.ID,
		expectedStatus,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *requestRepository) GetByID(ctx context.Context, id string) (*domain.AssistanceRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM assist_requests WHERE id=$1`, requestColumns)
	var request domain.AssistanceRequest
	if err := scanRequest(r.pool.QueryRow(ctx, query, id), &request); err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *requestRepository) ListWithFilter(ctx context.Context, filter RequestFilter) ([]domain.AssistanceRequest, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		clauses = append(clauses, fmt.Sprintf("requester_id=$%d", len(args)))
	}
	if filter.Kind != nil {
		args = append(args, *filter.Kind)
		clauses = append(clauses, fmt.Sprintf("kind=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Closed != nil {
		if *filter.Closed {
			clauses = append(clauses, "closed_at IS NOT NULL")
		} else {
			clauses = append(clauses, "closed_at IS NULL")
		}
	}
	if filter.ClosedAfter != nil {
		args = append(args, *filter.ClosedAfter)
		clauses = append(clauses, fmt.Sprintf("closed_at >= $%d", len(args)))
	}
	if filter.DueBefore != nil {
		args = append(args, *filter.DueBefore)
		clauses = append(clauses, fmt.Sprintf("next_follow_up_at IS NOT NULL AND next_follow_up_at <= $%d", len(args)))
	}

	orderBy := "updated_at DESC"
	if filter.Closed != nil && *filter.Closed {
		orderBy = "closed_at DESC"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM assist_requests WHERE %s ORDER BY %s LIMIT %d OFFSET %d`,
		requestColumns, strings.Join(clauses, " AND "), orderBy, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

func (r *requestRepository) ListDueFollowUps(ctx context.Context, now time.Time) ([]domain.AssistanceRequest, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM assist_requests
        WHERE status=$1 AND next_follow_up_at IS NOT NULL AND next_follow_up_at <= $2
        ORDER BY next_follow_up_at ASC`, requestColumns)
	rows, err := r.pool.Query(ctx, query, domain.RequestStatusActive, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner, request *domain.AssistanceRequest) error {
	return row.Scan(
		&request.ID,
		&request.Kind,
		&request.RequesterID,
		&request.Status,
		&request.SubStatus,
		&request.Payload,
		&request.CommentCount,
		&request.CreatedAt,
		&request.UpdatedAt,
		&request.LastFollowUpAt,
		&request.NextFollowUpAt,
		&request.ClosedAt,
		&request.ClosedBy,
		&request.ReopenedAt,
		&request.ReopenedBy,
		&request.ResolvedAt,
	)
}

func scanRequests(rows pgx.Rows) ([]domain.AssistanceRequest, error) {
	var result []domain.AssistanceRequest
	for rows.Next() {
		var request domain.AssistanceRequest
		if err := scanRequest(rows, &request); err != nil {
			return nil, err
		}
		result = append(result, request)
	}
	return result, rows.Err()
}
