package domain

import (
	"context"
	"time"
)

// Follow request states. Accepted and declined are terminal.
const (
	RequestPending  = "pending"
	RequestAccepted = "accepted"
	RequestDeclined = "declined"
)

// Answers to a follow request.
const (
	ActionAccept  = "accept"
	ActionDecline = "decline"
)

// Outcomes of a follow attempt.
const (
	OutcomeFollowed  = "followed"
	OutcomeRequested = "requested"
)

// FollowRequest is created when a user tries to follow a private profile.
// The store allows at most one pending request per (FromID, ToID) pair.
type FollowRequest struct {
	ID     string `json:"id" gorm:"primaryKey;type:uuid"`
	FromID string `json:"from_id" gorm:"type:uuid;not null;index"`
	ToID   string `json:"to_id" gorm:"type:uuid;not null;index"`
	Status string `json:"status" gorm:"size:16;not null;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsPending reports whether the request still awaits an answer.
func (r *FollowRequest) IsPending() bool {
	return r.Status == RequestPending
}

// FollowOutcome is the result of a follow attempt. Request is set when the
// target is private and a request was sent instead.
type FollowOutcome struct {
	Status  string         `json:"status"`
	Request *FollowRequest `json:"request,omitempty"`
}

// BulkResult summarizes an implicit accept of all pending requests.
type BulkResult struct {
	Accepted int           `json:"accepted"`
	Failed   []BulkFailure `json:"failed,omitempty"`
}

// BulkFailure names a request that could not be accepted.
type BulkFailure struct {
	RequestID string `json:"request_id"`
	Reason    string `json:"reason"`
}

// FollowRequestStore persists FollowRequests.
type FollowRequestStore interface {
	ByID(ctx context.Context, id string) (*FollowRequest, error)
	// Pending returns the pending request from -> to, or an ENOTFOUND error.
	Pending(ctx context.Context, fromID, toID string) (*FollowRequest, error)
	// Create fails with errs.ErrDuplicateRequest if a pending request exists.
	Create(ctx context.Context, req *FollowRequest) error
	// Resolve stores the new status of a pending request. It fails with
	// errs.ErrInvalidState if the stored request was answered meanwhile.
	Resolve(ctx context.Context, req *FollowRequest) error
	// PendingTo lists the pending requests sent to toID, newest first. A zero
	// page limit returns all of them.
	PendingTo(ctx context.Context, toID string, page PageRequest) ([]FollowRequest, error)
	// PendingTargets returns the ids of all users with pending requests.
	PendingTargets(ctx context.Context) ([]string, error)
}

// FollowService is the set of methods to change the follow graph.
type FollowService interface {
	Follow(ctx context.Context, fromID, toID string) (*FollowOutcome, error)
	Unfollow(ctx context.Context, fromID, toID string) error
}

// FollowRequestService is the set of methods to answer follow requests.
type FollowRequestService interface {
	Respond(ctx context.Context, requestID, responderID, action string) (*FollowRequest, error)
	BulkAcceptOnPublicize(ctx context.Context, toID string) (*BulkResult, error)
	Pending(ctx context.Context, userID string, page PageRequest) (*Page[FollowRequest], error)
}
