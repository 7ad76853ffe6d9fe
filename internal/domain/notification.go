package domain

import "time"

// NotificationType labels outgoing notification events.
type NotificationType string

const (
	NotificationFollowUpDue NotificationType = "FOLLOW_UP_DUE"
)

// Notification is the event handed to the notification sink. Delivery
// (push, email, in-app) is the sink's concern.
type Notification struct {
	ID        string
	UserID    string
	Type      NotificationType
	Title     string
	Message   string
	RelatedID string
	CreatedAt time.Time
}
