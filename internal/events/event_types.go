package events

import (
	"time"

	"github.com/spec-kit/assist-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventRequestCreated       EventType = "request_created"
	EventRequestStatusChanged EventType = "request_status_changed"
	EventRequestReopened      EventType = "request_reopened"
	EventRequestCommentAdded  EventType = "request_comment_added"
	EventFollowUpDue          EventType = "follow_up_due"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	RequestID string      `json:"request_id"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// RequestCreatedPayload payload.
type RequestCreatedPayload struct {
	Kind        domain.RequestKind `json:"kind"`
	RequesterID string             `json:"requester_id"`
}

// RequestStatusChangedPayload payload.
type RequestStatusChangedPayload struct {
	OldStatus domain.RequestStatus `json:"old_status"`
	NewStatus domain.RequestStatus `json:"new_status"`
	Via       string               `json:"via,omitempty"`
}

// RequestReopenedPayload payload.
type RequestReopenedPayload struct {
	ReopenedBy string `json:"reopened_by"`
}

// RequestCommentAddedPayload payload.
type RequestCommentAddedPayload struct {
	CommentID    string `json:"comment_id"`
	AuthorID     string `json:"author_id"`
	CommentCount int    `json:"comment_count"`
}

// FollowUpDuePayload payload.
type FollowUpDuePayload struct {
	RequesterID    string             `json:"requester_id"`
	Kind           domain.RequestKind `json:"kind"`
	NextFollowUpAt time.Time          `json:"next_follow_up_at"`
}
