package crud

import (
	"context"
	"errors"
	"time"

	"sociapi/domain"
	"sociapi/errs"
	"sociapi/logging"
	"sociapi/metrics"
)

// FollowRequestService manages FollowRequests: pending -> accepted or
// pending -> declined, each exactly once.
// It implements the domain.FollowRequestService interface.
type FollowRequestService struct {
	requestValidator
}

// requestValidator runs the preconditions of answering a request.
// On success, it passes the request on to requestMachine.
type requestValidator struct {
	requestMachine
}

// requestMachine performs the transitions of FollowRequests.
type requestMachine struct {
	profiles domain.ProfileStore
	graph    domain.GraphStore
	requests domain.FollowRequestStore
	cache    domain.ProfileCache
	events   domain.EventPublisher
}

// NewFollowRequestService returns an instance of FollowRequestService.
func NewFollowRequestService(stores Stores, cache domain.ProfileCache, events domain.EventPublisher) *FollowRequestService {
	return &FollowRequestService{
		requestValidator{
			requestMachine{
				profiles: stores.Profiles,
				graph:    stores.Graph,
				requests: stores.Requests,
				cache:    cache,
				events:   events,
			},
		},
	}
}

// Ensure the FollowRequestService struct properly implements the domain.FollowRequestService interface.
// If it does not, then this expression becomes invalid and won't compile.
var _ domain.FollowRequestService = &FollowRequestService{}

// respondOp carries the data of one answer through the validators.
type respondOp struct {
	requestID   string
	responderID string
	action      string
	req         *domain.FollowRequest
}

// Respond accepts or declines the request on behalf of its recipient.
func (rv *requestValidator) Respond(ctx context.Context, requestID, responderID, action string) (*domain.FollowRequest, error) {
	op := &respondOp{requestID: requestID, responderID: responderID, action: action}
	err := runRespondValFns(ctx, op,
		rv.actionValid,
		rv.requestExists,
		rv.responderIsRecipient,
		rv.requestPending)
	if err != nil {
		return nil, err
	}
	if op.action == domain.ActionAccept {
		err = rv.requestMachine.accept(ctx, op.req)
	} else {
		err = rv.requestMachine.decline(ctx, op.req)
	}
	if err != nil {
		return nil, err
	}
	return op.req, nil
}

// Pending lists the requests waiting for userID's answer, newest first.
// Only private profiles receive requests.
func (rv *requestValidator) Pending(ctx context.Context, userID string, page domain.PageRequest) (*domain.Page[domain.FollowRequest], error) {
	profile, err := rv.profiles.ByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !profile.IsPrivate {
		return nil, errs.Errorf(errs.EINVALID, "Only private accounts have pending follow requests.")
	}
	page = page.Normalize(domain.DefaultPageSize)
	reqs, err := rv.requests.PendingTo(ctx, userID, page.Probe())
	if err != nil {
		return nil, err
	}
	return domain.NewPage(reqs, page.Limit, func(r domain.FollowRequest) string { return r.ID }), nil
}

// runRespondValFns runs any number of functions of type respondValFn on the passed in respondOp.
// If none of them returns an error, it returns nil. Otherwise, it returns the respective error.
func runRespondValFns(ctx context.Context, op *respondOp, fns ...respondValFn) error {
	for _, fn := range fns {
		if err := fn(ctx, op); err != nil {
			return err
		}
	}
	return nil
}

// A respondValFn is any function that takes in a pointer to a respondOp and returns an error.
type respondValFn func(ctx context.Context, op *respondOp) error

func (rv *requestValidator) actionValid(ctx context.Context, op *respondOp) error {
	if op.action != domain.ActionAccept && op.action != domain.ActionDecline {
		return errs.Errorf(errs.EINVALID, "The action must be accept or decline.")
	}
	return nil
}

func (rv *requestValidator) requestExists(ctx context.Context, op *respondOp) error {
	req, err := rv.requests.ByID(ctx, op.requestID)
	if err != nil {
		return notFoundAs(err, errs.NotFound("Follow request"))
	}
	op.req = req
	return nil
}

// responderIsRecipient makes sure only the requested user answers.
func (rv *requestValidator) responderIsRecipient(ctx context.Context, op *respondOp) error {
	if op.req.ToID != op.responderID {
		return errs.Errorf(errs.EFORBIDDEN, "You can only answer follow requests sent to you.")
	}
	return nil
}

func (rv *requestValidator) requestPending(ctx context.Context, op *respondOp) error {
	if !op.req.IsPending() {
		return errs.ErrInvalidState
	}
	return nil
}

// BulkAcceptOnPublicize accepts every pending request sent to toID. Each
// request is accepted on its own; a failure is recorded and the remaining
// requests are still processed. Requests that failed stay pending, so a
// later run picks them up again.
func (rm *requestMachine) BulkAcceptOnPublicize(ctx context.Context, toID string) (*domain.BulkResult, error) {
	reqs, err := rm.requests.PendingTo(ctx, toID, domain.PageRequest{})
	if err != nil {
		return nil, err
	}
	result := &domain.BulkResult{}
	for i := range reqs {
		req := &reqs[i]
		if err := rm.accept(ctx, req); err != nil {
			logging.Ctx(ctx).Warn().Err(err).
				Str("request_id", req.ID).
				Str("from", req.FromID).
				Str("to", req.ToID).
				Msg("bulk accept of follow request failed")
			result.Failed = append(result.Failed, domain.BulkFailure{
				RequestID: req.ID,
				Reason:    errs.ErrorMessage(err),
			})
			continue
		}
		result.Accepted++
	}
	metrics.BulkAccept(result.Accepted, len(result.Failed))
	if len(reqs) > 0 {
		logging.Ctx(ctx).Info().
			Str("user_id", toID).
			Int("accepted", result.Accepted).
			Int("failed", len(result.Failed)).
			Msg("accepted pending follow requests")
	}
	return result, nil
}

// create stores a new pending request from -> to.
func (rm *requestMachine) create(ctx context.Context, fromID, toID string) (*domain.FollowRequest, error) {
	_, err := rm.requests.Pending(ctx, fromID, toID)
	if err == nil {
		return nil, errs.ErrDuplicateRequest
	}
	if errs.ErrorCode(err) != errs.ENOTFOUND {
		return nil, err
	}
	req := &domain.FollowRequest{
		ID:     domain.NewID(),
		FromID: fromID,
		ToID:   toID,
		Status: domain.RequestPending,
	}
	if err := rm.requests.Create(ctx, req); err != nil {
		return nil, err
	}
	rm.publish(ctx, domain.EventFollowRequested, req)
	return req, nil
}

// accept establishes the edge of req and marks it accepted, in one unit.
// An edge that already exists is left as it is.
func (rm *requestMachine) accept(ctx context.Context, req *domain.FollowRequest) error {
	var follower, followee *domain.Profile
	err := retryOnConflict(ctx, func() error {
		var err error
		if follower, err = rm.profiles.ByUserID(ctx, req.FromID); err != nil {
			return notFoundAs(err, errs.Errorf(errs.ENOTFOUND, "The requesting user does not exist anymore."))
		}
		if followee, err = rm.profiles.ByUserID(ctx, req.ToID); err != nil {
			return err
		}
		if followee.HasBlocked(req.FromID) || follower.HasBlocked(req.ToID) {
			return errs.ErrBlocked
		}
		link(follower, followee)
		req.Status = domain.RequestAccepted
		return rm.graph.SaveEdge(ctx, follower, followee, req)
	})
	if err != nil {
		req.Status = domain.RequestPending
		if errors.Is(err, errs.ErrBlocked) {
			// A block settles the request for good.
			if derr := rm.decline(ctx, req); derr != nil && !errors.Is(derr, errs.ErrInvalidState) {
				logging.Ctx(ctx).Warn().Err(derr).Str("request_id", req.ID).Msg("declining request between blocked users failed")
			}
		}
		return err
	}
	rm.cache.Set(ctx, follower)
	rm.cache.Set(ctx, followee)
	rm.publish(ctx, domain.EventFollowAccepted, req)
	return nil
}

func (rm *requestMachine) decline(ctx context.Context, req *domain.FollowRequest) error {
	req.Status = domain.RequestDeclined
	if err := rm.requests.Resolve(ctx, req); err != nil {
		req.Status = domain.RequestPending
		return err
	}
	rm.publish(ctx, domain.EventFollowDeclined, req)
	return nil
}

// declineBetween declines the pending requests between a and b, in both
// directions.
func (rm *requestMachine) declineBetween(ctx context.Context, a, b string) error {
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		req, err := rm.requests.Pending(ctx, pair[0], pair[1])
		if errs.ErrorCode(err) == errs.ENOTFOUND {
			continue
		}
		if err != nil {
			return err
		}
		if err := rm.decline(ctx, req); err != nil && !errors.Is(err, errs.ErrInvalidState) {
			return err
		}
	}
	return nil
}

func (rm *requestMachine) publish(ctx context.Context, eventType string, req *domain.FollowRequest) {
	rm.events.Publish(ctx, domain.Event{
		Type:      eventType,
		From:      req.FromID,
		To:        req.ToID,
		RequestID: req.ID,
		At:        time.Now().UTC(),
	})
}
