package crud

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"sociapi/domain"
	"sociapi/errs"
)

func TestFollowPublicProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice", false)
	b := f.user(t, "bob", false)

	out, err := f.svc.Follow.Follow(ctx, b, a)
	if err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if out.Status != domain.OutcomeFollowed || out.Request != nil {
		t.Fatalf("outcome = %+v, want followed without request", out)
	}

	pa, pb := f.profile(t, a), f.profile(t, b)
	checkGraph(t, pa)
	checkGraph(t, pb)
	if !sameStrings(pa.Followers, []string{b}) || pa.FollowersCount != 1 {
		t.Errorf("alice followers = %v (%d), want [bob]", pa.Followers, pa.FollowersCount)
	}
	if !sameStrings(pb.Following, []string{a}) || pb.FollowingCount != 1 {
		t.Errorf("bob following = %v (%d), want [alice]", pb.Following, pb.FollowingCount)
	}
	if got := f.events.types(); !sameStrings(got, []string{domain.EventFollowCreated}) {
		t.Errorf("events = %v", got)
	}
}

func TestFollowPreconditions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice", false)
	b := f.user(t, "bob", false)
	if _, err := f.svc.Follow.Follow(ctx, b, a); err != nil {
		t.Fatalf("Follow: %v", err)
	}

	tests := []struct {
		name     string
		from, to string
		code     string
		err      error
	}{
		{"self", a, a, errs.ESELF, errs.ErrSelfFollow},
		{"missing target", a, domain.NewID(), errs.ENOTFOUND, nil},
		{"missing source", domain.NewID(), a, errs.ENOTFOUND, nil},
		{"already following", b, a, errs.ECONFLICT, errs.ErrAlreadyFollowing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Follow.Follow(ctx, tt.from, tt.to)
			if errs.ErrorCode(err) != tt.code {
				t.Fatalf("err = %v, want code %s", err, tt.code)
			}
			if tt.err != nil && !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
		})
	}
	// Nothing changed.
	if pa := f.profile(t, a); pa.FollowersCount != 1 {
		t.Errorf("alice followers_count = %d, want 1", pa.FollowersCount)
	}
}

func TestSelfFollowWinsOverMissingProfile(t *testing.T) {
	f := newFixture(t)
	id := domain.NewID()
	_, err := f.svc.Follow.Follow(context.Background(), id, id)
	if !errors.Is(err, errs.ErrSelfFollow) {
		t.Fatalf("err = %v, want ErrSelfFollow", err)
	}
}

func TestFollowThenUnfollowRestoresProfiles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice", false)
	b := f.user(t, "bob", false)
	before := f.profile(t, a)

	if _, err := f.svc.Follow.Follow(ctx, b, a); err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if err := f.svc.Follow.Unfollow(ctx, b, a); err != nil {
		t.Fatalf("Unfollow: %v", err)
	}

	pa, pb := f.profile(t, a), f.profile(t, b)
	checkGraph(t, pa)
	checkGraph(t, pb)
	if len(pa.Followers) != len(before.Followers) || pa.FollowersCount != before.FollowersCount {
		t.Errorf("alice after unfollow = %v (%d)", pa.Followers, pa.FollowersCount)
	}
	if len(pb.Following) != 0 || pb.FollowingCount != 0 {
		t.Errorf("bob after unfollow = %v (%d)", pb.Following, pb.FollowingCount)
	}

	err := f.svc.Follow.Unfollow(ctx, b, a)
	if !errors.Is(err, errs.ErrNotFollowing) {
		t.Fatalf("second Unfollow err = %v, want ErrNotFollowing", err)
	}
	if pa := f.profile(t, a); pa.FollowersCount != 0 {
		t.Errorf("followers_count went to %d", pa.FollowersCount)
	}
	want := []string{domain.EventFollowCreated, domain.EventFollowRemoved}
	if got := f.events.types(); !sameStrings(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestUnfollowKeepsPendingRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.user(t, "carol", true)
	d := f.user(t, "dave", false)

	out, err := f.svc.Follow.Follow(ctx, d, c)
	if err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if err := f.svc.Follow.Unfollow(ctx, d, c); !errors.Is(err, errs.ErrNotFollowing) {
		t.Fatalf("Unfollow err = %v, want ErrNotFollowing", err)
	}
	req, err := f.st.FollowRequests().ByID(ctx, out.Request.ID)
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if !req.IsPending() {
		t.Errorf("request status = %s, want pending", req.Status)
	}
}

func TestBlockedUserCannotFollow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice", false)
	b := f.user(t, "bob", false)
	if _, err := f.svc.Profile.Block(ctx, a, b); err != nil {
		t.Fatalf("Block: %v", err)
	}
	_, err := f.svc.Follow.Follow(ctx, b, a)
	if !errors.Is(err, errs.ErrBlocked) {
		t.Fatalf("err = %v, want ErrBlocked", err)
	}
}

// Concurrent follows of one profile must never lose an edge: every follow
// that reports success is present afterwards, and counters match the lists.
func TestConcurrentFollowsKeepCountsConsistent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	target := f.user(t, "target", false)
	const n = 20
	followers := make([]string, n)
	for i := range followers {
		followers[i] = f.user(t, fmt.Sprintf("user%02d", i), false)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := map[string]bool{}
	for _, id := range followers {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.svc.Follow.Follow(ctx, id, target)
			if err == nil {
				mu.Lock()
				succeeded[id] = true
				mu.Unlock()
				return
			}
			if !errors.Is(err, errs.ErrConcurrentUpdate) {
				t.Errorf("Follow(%s): %v", id, err)
			}
		}(id)
	}
	wg.Wait()

	pt := f.profile(t, target)
	checkGraph(t, pt)
	if pt.FollowersCount != len(succeeded) {
		t.Fatalf("followers_count = %d, %d follows succeeded", pt.FollowersCount, len(succeeded))
	}
	for _, id := range followers {
		pf := f.profile(t, id)
		checkGraph(t, pf)
		if pf.IsFollowing(target) != succeeded[id] || pt.HasFollower(id) != succeeded[id] {
			t.Errorf("edge %s -> target half written", id)
		}
	}
}
