package domain

import (
	"testing"

	"github.com/lib/pq"
)

func TestCanView(t *testing.T) {
	public := &Profile{UserID: "owner"}
	private := &Profile{UserID: "owner", IsPrivate: true, Followers: pq.StringArray{"fan"}}

	tests := []struct {
		name    string
		profile *Profile
		viewer  string
		want    bool
	}{
		{"public anonymous", public, "", true},
		{"public stranger", public, "stranger", true},
		{"private anonymous", private, "", false},
		{"private owner", private, "owner", true},
		{"private follower", private, "fan", true},
		{"private stranger", private, "stranger", false},
		{"missing profile", nil, "owner", false},
	}
	for _, tt := range tests {
		if got := CanView(tt.profile, tt.viewer); got != tt.want {
			t.Errorf("%s: CanView = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestViewForHidesPrivateLists(t *testing.T) {
	p := &Profile{
		UserID:       "owner",
		IsPrivate:    true,
		Followers:    pq.StringArray{"fan"},
		Following:    pq.StringArray{"idol"},
		SavedPosts:   pq.StringArray{"post"},
		BlockedUsers: pq.StringArray{"troll"},
	}
	p.FollowersCount, p.FollowingCount = 1, 1

	stranger := p.ViewFor("stranger")
	if len(stranger.Followers) != 0 || len(stranger.Following) != 0 {
		t.Fatalf("stranger sees follow lists: %+v", stranger)
	}
	if stranger.FollowersCount != 1 || stranger.FollowingCount != 1 {
		t.Fatal("counts should stay visible")
	}
	if stranger.SavedPosts != nil || stranger.BlockedUsers != nil {
		t.Fatal("stranger sees saved posts or blocked users")
	}

	fan := p.ViewFor("fan")
	if len(fan.Followers) != 1 {
		t.Fatal("follower should see the follow lists")
	}
	if fan.SavedPosts != nil {
		t.Fatal("follower sees saved posts")
	}

	owner := p.ViewFor("owner")
	if len(owner.SavedPosts) != 1 || len(owner.BlockedUsers) != 1 {
		t.Fatal("owner should see everything")
	}
	if p.Followers[0] != "fan" {
		t.Fatal("ViewFor modified the original")
	}
}
