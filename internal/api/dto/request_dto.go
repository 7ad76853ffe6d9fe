package dto

import (
	"time"

	"github.com/spec-kit/assist-service/internal/domain"
)

// CreateRequestRequest payload.
type CreateRequestRequest struct {
	Kind    domain.RequestKind `json:"kind"`
	Payload map[string]any     `json:"payload"`
}

// UpdateSubStatusRequest payload.
type UpdateSubStatusRequest struct {
	SubStatus domain.RequestSubStatus `json:"sub_status"`
}

// SetStatusRequest payload for the legacy status path.
type SetStatusRequest struct {
	Status domain.RequestStatus `json:"status"`
}

// AddCommentRequest payload.
type AddCommentRequest struct {
	Content string `json:"content"`
}

// RequestSummary response.
type RequestSummary struct {
	ID             string                   `json:"id"`
	Kind           domain.RequestKind       `json:"kind"`
	RequesterID    string                   `json:"requester_id"`
	Status         domain.RequestStatus     `json:"status"`
	SubStatus      *domain.RequestSubStatus `json:"sub_status,omitempty"`
	CommentCount   int                      `json:"comment_count"`
	CreatedAt      time.Time                `json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
	NextFollowUpAt *time.Time               `json:"next_follow_up_at,omitempty"`
	ClosedAt       *time.Time               `json:"closed_at,omitempty"`
}

// RequestDetailResponse provides full request info with its comment thread.
type RequestDetailResponse struct {
	ID             string                   `json:"id"`
	Kind           domain.RequestKind       `json:"kind"`
	RequesterID    string                   `json:"requester_id"`
	Status         domain.RequestStatus     `json:"status"`
	SubStatus      *domain.RequestSubStatus `json:"sub_status,omitempty"`
	Payload        map[string]any           `json:"payload"`
	CommentCount   int                      `json:"comment_count"`
	CreatedAt      time.Time                `json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
	LastFollowUpAt *time.Time               `json:"last_follow_up_at,omitempty"`
	NextFollowUpAt *time.Time               `json:"next_follow_up_at,omitempty"`
	ClosedAt       *time.Time               `json:"closed_at,omitempty"`
	ClosedBy       *string                  `json:"closed_by,omitempty"`
	ReopenedAt     *time.Time               `json:"reopened_at,omitempty"`
	ReopenedBy     *string                  `json:"reopened_by,omitempty"`
	ResolvedAt     *time.Time               `json:"resolved_at,omitempty"`
	Comments       []CommentResponse        `json:"comments"`
}

// CommentResponse represents a thread comment.
type CommentResponse struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ScanResponse reports one follow-up scan outcome.
type ScanResponse struct {
	Notified int  `json:"notified"`
	Failed   int  `json:"failed"`
	Skipped  bool `json:"skipped"`
}
