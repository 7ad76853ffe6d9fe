package domain

import "time"

// RequestComment is an append-only comment on an assistance request.
// Comments are never edited or deleted by this engine.
type RequestComment struct {
	ID        string
	RequestID string
	AuthorID  string
	Content   string
	CreatedAt time.Time
}
