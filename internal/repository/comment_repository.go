package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/assist-service/internal/domain"
)

// CommentRepository manages request comments and the denormalized count.
type CommentRepository interface {
	// Create appends the comment and increments the parent request's
	// comment_count in one transaction. pgx.ErrNoRows signals a missing
	// request; nothing is written in that case.
	Create(ctx context.Context, comment *domain.RequestComment) (newCount int, err error)
	ListByRequest(ctx context.Context, requestID string) ([]domain.RequestComment, error)
}

type commentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository builds repository.
func NewCommentRepository(pool *pgxpool.Pool) CommentRepository {
	return &commentRepository{pool: pool}
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.RequestComment) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const bump = `
        UPDATE assist_requests SET comment_count=comment_count+1, updated_at=NOW()
        WHERE id=$1
        RETURNING comment_count`
	var newCount int
	if err := tx.QueryRow(ctx, bump, comment.RequestID).Scan(&newCount); err != nil {
		return 0, err
	}

	const insert = `
        INSERT INTO request_comments (request_id, author_id, content)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	if err := tx.QueryRow(ctx, insert,
		comment.RequestID,
		comment.AuthorID,
		comment.Content,
	).Scan(&comment.ID, &comment.CreatedAt); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return newCount, nil
}

func (r *commentRepository) ListByRequest(ctx context.Context, requestID string) ([]domain.RequestComment, error) {
	const query = `
        SELECT id, request_id, author_id, content, created_at
        FROM request_comments WHERE request_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.RequestComment
	for rows.Next() {
		var comment domain.RequestComment
		if err := rows.Scan(
			&comment.ID,
			&comment.RequestID,
			&comment.AuthorID,
			&comment.Content,
			&comment.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, comment)
	}
	return result, rows.Err()
}
