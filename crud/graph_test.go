package crud

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"sociapi/domain"
	"sociapi/errs"
)

// TestRandomGraphOperations runs seeded random sequences of graph changes
// and checks the profiles and requests stay consistent after every step.
func TestRandomGraphOperations(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			runRandomGraph(t, rand.New(rand.NewSource(seed)), 300)
		})
	}
}

func runRandomGraph(t *testing.T, rnd *rand.Rand, steps int) {
	ctx := context.Background()
	f := newFixture(t)
	users := make([]string, 6)
	for i := range users {
		users[i] = f.user(t, fmt.Sprintf("user%d", i), i%2 == 0)
	}
	pick := func() (string, string) {
		return users[rnd.Intn(len(users))], users[rnd.Intn(len(users))]
	}

	for step := 0; step < steps; step++ {
		a, b := pick()
		var op string
		var err error
		switch rnd.Intn(7) {
		case 0, 1:
			op = "follow"
			_, err = f.svc.Follow.Follow(ctx, a, b)
		case 2:
			op = "unfollow"
			err = f.svc.Follow.Unfollow(ctx, a, b)
		case 3:
			op = "respond"
			pending, perr := f.st.FollowRequests().PendingTo(ctx, a, domain.PageRequest{})
			if perr != nil {
				t.Fatalf("PendingTo: %v", perr)
			}
			if len(pending) == 0 {
				continue
			}
			action := domain.ActionAccept
			if rnd.Intn(2) == 0 {
				action = domain.ActionDecline
			}
			_, err = f.svc.FollowRequest.Respond(ctx, pending[rnd.Intn(len(pending))].ID, a, action)
		case 4:
			op = "privacy"
			private := rnd.Intn(2) == 0
			_, err = f.svc.Profile.Update(ctx, a, &domain.ProfileUpdate{IsPrivate: &private})
		case 5:
			op = "block"
			_, err = f.svc.Profile.Block(ctx, a, b)
		case 6:
			op = "unblock"
			_, err = f.svc.Profile.Unblock(ctx, a, b)
		}
		if errs.ErrorCode(err) == errs.EINTERNAL {
			t.Fatalf("step %d %s(%s, %s): %v", step, op, a, b, err)
		}
		checkAllProfiles(t, f, users)
		if t.Failed() {
			t.Fatalf("inconsistent after step %d %s(%s, %s)", step, op, a, b)
		}
	}
}

// checkAllProfiles checks every profile on its own, the symmetry of the
// edges, and that blocks and pending requests agree with the edges.
func checkAllProfiles(t *testing.T, f *fixture, users []string) {
	t.Helper()
	ctx := context.Background()
	profiles := make(map[string]*domain.Profile, len(users))
	for _, id := range users {
		profiles[id] = f.profile(t, id)
		checkGraph(t, profiles[id])
	}
	for _, id := range users {
		p := profiles[id]
		for _, followee := range p.Following {
			if !profiles[followee].HasFollower(id) {
				t.Errorf("%s follows %s, but is not among its followers", id, followee)
			}
		}
		for _, follower := range p.Followers {
			if !profiles[follower].IsFollowing(id) {
				t.Errorf("%s lists follower %s, who does not follow it", id, follower)
			}
		}
		for _, blocked := range p.BlockedUsers {
			if p.HasFollower(blocked) || p.IsFollowing(blocked) {
				t.Errorf("%s blocked %s but an edge remains", id, blocked)
			}
		}
		pending, err := f.st.FollowRequests().PendingTo(ctx, id, domain.PageRequest{})
		if err != nil {
			t.Fatalf("PendingTo: %v", err)
		}
		for _, req := range pending {
			from := profiles[req.FromID]
			switch {
			case !p.IsPrivate:
				t.Errorf("public %s has a pending request from %s", id, req.FromID)
			case from.IsFollowing(id):
				t.Errorf("pending request %s -> %s next to an edge", req.FromID, id)
			case p.HasBlocked(req.FromID) || from.HasBlocked(id):
				t.Errorf("pending request %s -> %s between blocked users", req.FromID, id)
			}
		}
	}
}
