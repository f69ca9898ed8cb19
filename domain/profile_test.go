package domain

import (
	"testing"

	"github.com/lib/pq"
)

func TestEdgeListsKeepCounts(t *testing.T) {
	p := &Profile{UserID: "a"}

	if !p.AddFollower("b") {
		t.Fatal("first add should change the list")
	}
	if p.AddFollower("b") {
		t.Fatal("second add should be a no-op")
	}
	if p.FollowersCount != 1 || len(p.Followers) != 1 {
		t.Fatalf("followers = %v, count = %d", p.Followers, p.FollowersCount)
	}

	if !p.RemoveFollower("b") {
		t.Fatal("remove should change the list")
	}
	if p.RemoveFollower("b") {
		t.Fatal("second remove should be a no-op")
	}
	if p.FollowersCount != 0 {
		t.Fatalf("count went to %d", p.FollowersCount)
	}

	p.AddFollowing("c")
	p.AddFollowing("d")
	p.RemoveFollowing("c")
	if p.FollowingCount != 1 || !p.IsFollowing("d") || p.IsFollowing("c") {
		t.Fatalf("following = %v, count = %d", p.Following, p.FollowingCount)
	}
}

func TestRemoveHealsDuplicates(t *testing.T) {
	p := &Profile{Followers: pq.StringArray{"b", "b", "c"}, FollowersCount: 3}
	p.RemoveFollower("b")
	if p.FollowersCount != 1 || p.Followers[0] != "c" {
		t.Fatalf("followers = %v, count = %d", p.Followers, p.FollowersCount)
	}
}

func TestCloneIsDeep(t *testing.T) {
	p := &Profile{Followers: pq.StringArray{"b"}}
	c := p.Clone()
	c.AddFollower("x")
	c.Followers[0] = "changed"
	if len(p.Followers) != 1 || p.Followers[0] != "b" {
		t.Fatalf("original modified: %v", p.Followers)
	}
}

func TestNewPage(t *testing.T) {
	items := []Post{{ID: "5"}, {ID: "4"}, {ID: "3"}}

	page := NewPage(items, 2, PostID)
	if len(page.Items) != 2 || page.NextCursor == nil || *page.NextCursor != "4" {
		t.Fatalf("page = %+v", page)
	}

	last := NewPage(items[:2], 2, PostID)
	if last.NextCursor != nil {
		t.Fatalf("exhausted page should have no cursor, got %q", *last.NextCursor)
	}

	empty := NewPage[Post](nil, 2, PostID)
	if empty.Items == nil || len(empty.Items) != 0 {
		t.Fatal("empty page should encode an empty list")
	}
}

func TestPageRequestNormalize(t *testing.T) {
	if got := (PageRequest{}).Normalize(15).Limit; got != 15 {
		t.Fatalf("default limit = %d", got)
	}
	if got := (PageRequest{Limit: 1000}).Normalize(15).Limit; got != MaxPageSize {
		t.Fatalf("clamped limit = %d", got)
	}
	if got := (PageRequest{Limit: 5}).Probe().Limit; got != 6 {
		t.Fatalf("probe limit = %d", got)
	}
}
