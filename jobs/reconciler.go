// Package jobs runs periodic maintenance of the follow graph.
package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"sociapi/domain"
	"sociapi/logging"
)

// DefaultSchedule runs the reconciler every fifteen minutes.
const DefaultSchedule = "@every 15m"

// BulkAccepter accepts every pending request sent to a user.
type BulkAccepter interface {
	BulkAcceptOnPublicize(ctx context.Context, toID string) (*domain.BulkResult, error)
}

// Reconciler accepts requests left pending on public profiles. They remain
// when a profile went public and the bulk accept that followed was cut short.
type Reconciler struct {
	requests domain.FollowRequestStore
	profiles domain.ProfileStore
	bulk     BulkAccepter
	schedule string
}

// NewReconciler returns a Reconciler running on schedule, a cron spec or
// one of the @every / @hourly descriptors.
func NewReconciler(requests domain.FollowRequestStore, profiles domain.ProfileStore, bulk BulkAccepter, schedule string) (*Reconciler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", schedule, err)
	}
	return &Reconciler{requests: requests, profiles: profiles, bulk: bulk, schedule: schedule}, nil
}

// RunOnce reconciles every user with pending requests and returns how many
// requests it accepted.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	targets, err := r.requests.PendingTargets(ctx)
	if err != nil {
		return 0, err
	}
	accepted := 0
	for _, userID := range targets {
		if err := ctx.Err(); err != nil {
			return accepted, err
		}
		p, err := r.profiles.ByUserID(ctx, userID)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("reconcile: loading profile failed")
			continue
		}
		if p.IsPrivate {
			continue
		}
		res, err := r.bulk.BulkAcceptOnPublicize(ctx, userID)
		if err != nil {
			logging.Ctx(ctx).Error().Err(err).Str("user_id", userID).Msg("reconcile: bulk accept failed")
			continue
		}
		accepted += res.Accepted
	}
	return accepted, nil
}

// Serve runs the reconciler on its schedule until ctx is done. It
// satisfies suture.Service.
func (r *Reconciler) Serve(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(r.schedule, func() {
		n, err := r.RunOnce(ctx)
		if err != nil {
			logging.Error().Err(err).Msg("reconcile run failed")
			return
		}
		logging.Info().Int("accepted", n).Msg("reconcile run finished")
	})
	if err != nil {
		return err
	}
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

func (r *Reconciler) String() string { return "follow-request-reconciler" }
