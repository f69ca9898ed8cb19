package crud

import (
	"context"
	"sync"
	"testing"
	"time"

	"sociapi/auth"
	"sociapi/database/memstore"
	"sociapi/domain"
)

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) Publish(_ context.Context, e domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	st     *memstore.Store
	svc    *Services
	events *recorder
}

func storesOf(st *memstore.Store) Stores {
	return Stores{
		Users:    st.Users(),
		Profiles: st.Profiles(),
		Graph:    st.Profiles(),
		Requests: st.FollowRequests(),
		Posts:    st.Posts(),
		Comments: st.Comments(),
		Hashtags: st.Hashtags(),
		OAuths:   st.OAuths(),
	}
}

// newFixture builds all services on an empty memory store. cfgs run before
// the service constructors.
func newFixture(t *testing.T, cfgs ...ServicesConfig) *fixture {
	t.Helper()
	st := memstore.New()
	return newFixtureWith(t, st, storesOf(st), cfgs...)
}

func newFixtureWith(t *testing.T, st *memstore.Store, stores Stores, cfgs ...ServicesConfig) *fixture {
	t.Helper()
	rec := &recorder{}
	tokens := auth.NewTokens("access-secret", "refresh-secret", 15*time.Minute, time.Hour)
	all := append([]ServicesConfig{WithEvents(rec)}, cfgs...)
	all = append(all,
		WithUser(tokens, "pepper", "hmac-key"),
		WithFollow(),
		WithProfile(),
		WithPost(),
		WithComment())
	svc, err := NewServices(stores, all...)
	if err != nil {
		t.Fatalf("NewServices: %v", err)
	}
	return &fixture{st: st, svc: svc, events: rec}
}

// user creates an account without going through registration.
func (f *fixture) user(t *testing.T, name string, private bool) string {
	t.Helper()
	u := &domain.User{ID: domain.NewID(), Username: name, Email: name + "@example.com", Role: domain.RoleUser}
	p := &domain.Profile{ID: domain.NewID(), UserID: u.ID, IsPrivate: private}
	if err := f.st.Users().Create(context.Background(), u, p); err != nil {
		t.Fatalf("creating user %s: %v", name, err)
	}
	return u.ID
}

func (f *fixture) profile(t *testing.T, userID string) *domain.Profile {
	t.Helper()
	p, err := f.st.Profiles().ByUserID(context.Background(), userID)
	if err != nil {
		t.Fatalf("loading profile %s: %v", userID, err)
	}
	return p
}

func (f *fixture) post(t *testing.T, userID, content string) *domain.Post {
	t.Helper()
	post, err := f.svc.Post.Create(context.Background(), userID, &domain.NewPost{Content: content})
	if err != nil {
		t.Fatalf("creating post: %v", err)
	}
	return post
}

// checkGraph fails the test if a profile's counters or lists are inconsistent.
func checkGraph(t *testing.T, p *domain.Profile) {
	t.Helper()
	if p.FollowersCount != len(p.Followers) {
		t.Errorf("profile %s: followers_count %d, %d followers", p.UserID, p.FollowersCount, len(p.Followers))
	}
	if p.FollowingCount != len(p.Following) {
		t.Errorf("profile %s: following_count %d, %d followed", p.UserID, p.FollowingCount, len(p.Following))
	}
	for name, list := range map[string][]string{"followers": p.Followers, "following": p.Following} {
		seen := make(map[string]bool)
		for _, id := range list {
			if id == p.UserID {
				t.Errorf("profile %s: contains itself in %s", p.UserID, name)
			}
			if seen[id] {
				t.Errorf("profile %s: %s contains %s twice", p.UserID, name, id)
			}
			seen[id] = true
		}
	}
}

func sameStrings(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
