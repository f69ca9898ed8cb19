package crud

import (
	"context"
	"time"

	"sociapi/domain"
	"sociapi/errs"
	"sociapi/logging"
	"sociapi/metrics"
)

// FollowService manages the follow graph.
// It implements the domain.FollowService interface.
type FollowService struct {
	followValidator
}

// followValidator runs the preconditions of follow graph changes, in the
// documented order, before anything is written. On success, it passes the
// loaded profiles on to followGraph.
type followValidator struct {
	followGraph
}

// followGraph writes follow graph changes. It assumes the preconditions
// have been checked. Both profiles of an edge are always saved as one unit.
type followGraph struct {
	profiles domain.ProfileStore
	graph    domain.GraphStore
	cache    domain.ProfileCache
	events   domain.EventPublisher
	requests *FollowRequestService
}

// NewFollowService returns an instance of FollowService. Follows of private
// profiles are handed to requests.
func NewFollowService(stores Stores, cache domain.ProfileCache, events domain.EventPublisher, requests *FollowRequestService) *FollowService {
	return &FollowService{
		followValidator{
			followGraph{
				profiles: stores.Profiles,
				graph:    stores.Graph,
				cache:    cache,
				events:   events,
				requests: requests,
			},
		},
	}
}

// Ensure the FollowService struct properly implements the domain.FollowService interface.
// If it does not, then this expression becomes invalid and won't compile.
var _ domain.FollowService = &FollowService{}

// followOp carries the data of one follow or unfollow through the validators.
type followOp struct {
	fromID string
	toID   string
	from   *domain.Profile
	to     *domain.Profile
}

// Follow makes fromID follow toID. For a private target a follow request is
// sent instead and the outcome says so.
func (fv *followValidator) Follow(ctx context.Context, fromID, toID string) (*domain.FollowOutcome, error) {
	op := &followOp{fromID: fromID, toID: toID}
	err := runFollowValFns(ctx, op,
		fv.notSelf,
		fv.targetExists,
		fv.sourceExists,
		fv.notAlreadyFollowing,
		fv.notBlocked)
	if err != nil {
		metrics.FollowOp("follow", errs.ErrorCode(err))
		return nil, err
	}
	outcome, err := fv.followGraph.follow(ctx, op)
	if err != nil {
		metrics.FollowOp("follow", errs.ErrorCode(err))
		return nil, err
	}
	metrics.FollowOp("follow", outcome.Status)
	return outcome, nil
}

// Unfollow removes the edge fromID -> toID. Pending follow requests are
// left alone.
func (fv *followValidator) Unfollow(ctx context.Context, fromID, toID string) error {
	op := &followOp{fromID: fromID, toID: toID}
	err := runFollowValFns(ctx, op,
		fv.notSelf,
		fv.targetExists,
		fv.sourceExists,
		fv.isFollowing)
	if err == nil {
		err = fv.followGraph.unfollow(ctx, op)
	}
	if err != nil {
		metrics.FollowOp("unfollow", errs.ErrorCode(err))
		return err
	}
	metrics.FollowOp("unfollow", "ok")
	return nil
}

// runFollowValFns runs any number of functions of type followValFn on the passed in followOp.
// If none of them returns an error, it returns nil. Otherwise, it returns the respective error.
func runFollowValFns(ctx context.Context, op *followOp, fns ...followValFn) error {
	for _, fn := range fns {
		if err := fn(ctx, op); err != nil {
			return err
		}
	}
	return nil
}

// A followValFn is any function that takes in a pointer to a followOp and returns an error.
type followValFn func(ctx context.Context, op *followOp) error

// notSelf makes sure that nobody follows or unfollows themselves.
func (fv *followValidator) notSelf(ctx context.Context, op *followOp) error {
	if op.fromID == "" || op.toID == "" {
		return errs.Errorf(errs.EINVALID, "A user id is required.")
	}
	if op.fromID == op.toID {
		return errs.ErrSelfFollow
	}
	return nil
}

// targetExists loads the profile of the user to be followed.
func (fv *followValidator) targetExists(ctx context.Context, op *followOp) error {
	to, err := fv.profiles.ByUserID(ctx, op.toID)
	if err != nil {
		return notFoundAs(err, errs.Errorf(errs.ENOTFOUND, "The user to be followed does not exist."))
	}
	op.to = to
	return nil
}

// sourceExists loads the profile of the acting user.
func (fv *followValidator) sourceExists(ctx context.Context, op *followOp) error {
	from, err := fv.profiles.ByUserID(ctx, op.fromID)
	if err != nil {
		return notFoundAs(err, errs.NotFound("Your profile"))
	}
	op.from = from
	return nil
}

// notAlreadyFollowing makes sure that the edge does not exist yet.
func (fv *followValidator) notAlreadyFollowing(ctx context.Context, op *followOp) error {
	if op.from.IsFollowing(op.toID) {
		return errs.ErrAlreadyFollowing
	}
	return nil
}

// notBlocked makes sure that neither side blocked the other.
func (fv *followValidator) notBlocked(ctx context.Context, op *followOp) error {
	if op.to.HasBlocked(op.fromID) || op.from.HasBlocked(op.toID) {
		return errs.ErrBlocked
	}
	return nil
}

// isFollowing makes sure there is an edge to remove. Either half of the
// edge counts, so that a half-written edge can still be removed.
func (fv *followValidator) isFollowing(ctx context.Context, op *followOp) error {
	if !op.from.IsFollowing(op.toID) && !op.to.HasFollower(op.fromID) {
		return errs.ErrNotFollowing
	}
	return nil
}

// follow creates the edge for a public target, or a follow request for a
// private one.
func (fg *followGraph) follow(ctx context.Context, op *followOp) (*domain.FollowOutcome, error) {
	if op.to.IsPrivate {
		req, err := fg.requests.create(ctx, op.fromID, op.toID)
		if err != nil {
			return nil, err
		}
		return &domain.FollowOutcome{Status: domain.OutcomeRequested, Request: req}, nil
	}

	link(op.from, op.to)
	if err := fg.graph.SaveEdge(ctx, op.from, op.to, nil); err != nil {
		return nil, err
	}
	fg.cache.Set(ctx, op.from)
	fg.cache.Set(ctx, op.to)
	fg.publish(ctx, domain.EventFollowCreated, op.fromID, op.toID, "")
	logging.Ctx(ctx).Debug().Str("from", op.fromID).Str("to", op.toID).Msg("follow created")
	return &domain.FollowOutcome{Status: domain.OutcomeFollowed}, nil
}

func (fg *followGraph) unfollow(ctx context.Context, op *followOp) error {
	unlink(op.from, op.to)
	if err := fg.graph.SaveEdge(ctx, op.from, op.to, nil); err != nil {
		return err
	}
	fg.cache.Set(ctx, op.from)
	fg.cache.Set(ctx, op.to)
	fg.publish(ctx, domain.EventFollowRemoved, op.fromID, op.toID, "")
	return nil
}

func (fg *followGraph) publish(ctx context.Context, eventType, from, to, requestID string) {
	fg.events.Publish(ctx, domain.Event{
		Type:      eventType,
		From:      from,
		To:        to,
		RequestID: requestID,
		At:        time.Now().UTC(),
	})
}

// link adds the edge follower -> followee to both profiles. Existing halves
// of the edge are kept as they are.
func link(follower, followee *domain.Profile) {
	follower.AddFollowing(followee.UserID)
	followee.AddFollower(follower.UserID)
}

// unlink removes the edge follower -> followee from both profiles.
func unlink(follower, followee *domain.Profile) {
	follower.RemoveFollowing(followee.UserID)
	followee.RemoveFollower(follower.UserID)
}
