package domain

import "time"

// RequestKind distinguishes the two assistance domains sharing this engine.
type RequestKind string

const (
	RequestKindDeerRecovery    RequestKind = "DEER_RECOVERY"
	RequestKindVehicleRecovery RequestKind = "VEHICLE_RECOVERY"
)

// RequestStatus enumerates primary lifecycle states for assistance requests.
type RequestStatus string

const (
	RequestStatusActive    RequestStatus = "ACTIVE"
	RequestStatusResolved  RequestStatus = "RESOLVED"
	RequestStatusCancelled RequestStatus = "CANCELLED"
)

// RequestSubStatus is the requester's self-reported progress state.
type RequestSubStatus string

const (
	SubStatusStillWaiting RequestSubStatus = "STILL_WAITING"
	SubStatusInProgress   RequestSubStatus = "IN_PROGRESS"
)

// AssistanceRequest is the aggregate for member help requests.
//
// ClosedAt/ClosedBy and ReopenedAt/ReopenedBy are set as pairs. Reopening does
// not clear ClosedAt/ClosedBy; the pair records the most recent close.
// ResolvedAt belongs to the legacy status path and is independent of ClosedAt.
type AssistanceRequest struct {
	ID             string
	Kind           RequestKind
	RequesterID    string
	Status         RequestStatus
	SubStatus      *RequestSubStatus
	Payload        map[string]any
	CommentCount   int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastFollowUpAt *time.Time
	NextFollowUpAt *time.Time
	ClosedAt       *time.Time
	ClosedBy       *string
	ReopenedAt     *time.Time
	ReopenedBy     *string
	ResolvedAt     *time.Time
}

// IsValidStatus reports whether s is a known primary status.
func IsValidStatus(s RequestStatus) bool {
	switch s {
	case RequestStatusActive, RequestStatusResolved, RequestStatusCancelled:
		return true
	}
	return false
}

// IsValidSubStatus reports whether s is a known sub-status.
func IsValidSubStatus(s RequestSubStatus) bool {
	return s == SubStatusStillWaiting || s == SubStatusInProgress
}

// IsValidKind reports whether k is a supported request kind.
func IsValidKind(k RequestKind) bool {
	return k == RequestKindDeerRecovery || k == RequestKindVehicleRecovery
}
