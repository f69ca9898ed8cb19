package domain

import (
	"context"
	"time"

	"github.com/lib/pq"
)

// Profile is the social record of a User. It exclusively owns the two
// sides of the follow graph the user takes part in: Followers holds the
// ids of the users following this one, Following the ids this user follows.
// The counters always equal the length of their list.
type Profile struct {
	ID        string `json:"id" gorm:"primaryKey;type:uuid"`
	UserID    string `json:"user_id" gorm:"uniqueIndex;type:uuid;not null"`
	IsPrivate bool   `json:"is_private" gorm:"not null;default:false"`

	Followers      pq.StringArray `json:"followers" gorm:"type:text[];not null;default:'{}'"`
	Following      pq.StringArray `json:"following" gorm:"type:text[];not null;default:'{}'"`
	FollowersCount int            `json:"followers_count" gorm:"not null;default:0"`
	FollowingCount int            `json:"following_count" gorm:"not null;default:0"`
	SavedPosts     pq.StringArray `json:"saved_posts,omitempty" gorm:"type:text[];not null;default:'{}'"`
	BlockedUsers   pq.StringArray `json:"blocked_users,omitempty" gorm:"type:text[];not null;default:'{}'"`

	Name        string         `json:"name" gorm:"size:50"`
	Bio         string         `json:"bio" gorm:"size:160"`
	Location    string         `json:"location" gorm:"size:100"`
	Avatar      string         `json:"avatar"`
	Interests   pq.StringArray `json:"interests" gorm:"type:text[];not null;default:'{}'"`
	Gender      string         `json:"gender,omitempty" gorm:"size:8"`
	DateOfBirth *time.Time     `json:"date_of_birth,omitempty"`

	// Version is bumped on every save and checked by the stores, so that two
	// concurrent writers of the same profile cannot both succeed.
	Version int64 `json:"-" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfileUpdate holds the fields a user may change on their own profile.
// Nil fields are left untouched.
type ProfileUpdate struct {
	Name        *string    `json:"name" validate:"omitempty,max=50"`
	Bio         *string    `json:"bio" validate:"omitempty,max=160"`
	Location    *string    `json:"location" validate:"omitempty,max=100"`
	IsPrivate   *bool      `json:"is_private"`
	Interests   []string   `json:"interests" validate:"omitempty,max=20,dive,min=1,max=50"`
	Gender      *string    `json:"gender" validate:"omitempty,oneof=male female other"`
	DateOfBirth *time.Time `json:"date_of_birth"`
}

// ProfileStore persists Profiles. Update fails with errs.ErrConcurrentUpdate
// when the stored version no longer matches p.Version.
type ProfileStore interface {
	ByUserID(ctx context.Context, userID string) (*Profile, error)
	Update(ctx context.Context, p *Profile) error
}

// GraphStore persists a change of the follow graph as one unit.
type GraphStore interface {
	// SaveEdge stores both profiles of an edge and, when non-nil, resolves
	// the follow request whose answer caused the change, failing with
	// errs.ErrInvalidState if it is no longer pending.
	SaveEdge(ctx context.Context, follower, followee *Profile, req *FollowRequest) error
}

// ProfileCache sits in front of a ProfileStore.
type ProfileCache interface {
	Get(ctx context.Context, userID string) (*Profile, error)
	Set(ctx context.Context, p *Profile)
	Invalidate(ctx context.Context, userID string)
}

// ProfileService is the set of methods to read and change Profiles.
type ProfileService interface {
	Get(ctx context.Context, viewerID, userID string) (*Profile, error)
	Update(ctx context.Context, userID string, upd *ProfileUpdate) (*Profile, error)
	UpdateAvatar(ctx context.Context, userID string, upload *Upload) (*Profile, error)
	Block(ctx context.Context, userID, targetID string) (*Profile, error)
	Unblock(ctx context.Context, userID, targetID string) (*Profile, error)
	Followers(ctx context.Context, viewerID, userID string, page PageRequest) (*Page[string], error)
	Following(ctx context.Context, viewerID, userID string, page PageRequest) (*Page[string], error)
}

// IsFollowing reports whether the profile's owner follows userID.
func (p *Profile) IsFollowing(userID string) bool {
	return contains(p.Following, userID)
}

// HasFollower reports whether userID follows the profile's owner.
func (p *Profile) HasFollower(userID string) bool {
	return contains(p.Followers, userID)
}

// HasBlocked reports whether the profile's owner blocked userID.
func (p *Profile) HasBlocked(userID string) bool {
	return contains(p.BlockedUsers, userID)
}

// HasSaved reports whether postID is among the saved posts.
func (p *Profile) HasSaved(postID string) bool {
	return contains(p.SavedPosts, postID)
}

// AddFollower adds userID to the followers and reports whether the list changed.
func (p *Profile) AddFollower(userID string) bool {
	var added bool
	p.Followers, added = appendUnique(p.Followers, userID)
	p.FollowersCount = len(p.Followers)
	return added
}

// RemoveFollower removes userID from the followers and reports whether the list changed.
func (p *Profile) RemoveFollower(userID string) bool {
	var removed bool
	p.Followers, removed = remove(p.Followers, userID)
	p.FollowersCount = len(p.Followers)
	return removed
}

// AddFollowing adds userID to the followed users and reports whether the list changed.
func (p *Profile) AddFollowing(userID string) bool {
	var added bool
	p.Following, added = appendUnique(p.Following, userID)
	p.FollowingCount = len(p.Following)
	return added
}

// RemoveFollowing removes userID from the followed users and reports whether the list changed.
func (p *Profile) RemoveFollowing(userID string) bool {
	var removed bool
	p.Following, removed = remove(p.Following, userID)
	p.FollowingCount = len(p.Following)
	return removed
}

func (p *Profile) Block(userID string) bool {
	var added bool
	p.BlockedUsers, added = appendUnique(p.BlockedUsers, userID)
	return added
}

func (p *Profile) Unblock(userID string) bool {
	var removed bool
	p.BlockedUsers, removed = remove(p.BlockedUsers, userID)
	return removed
}

func (p *Profile) SavePost(postID string) bool {
	var added bool
	p.SavedPosts, added = appendUnique(p.SavedPosts, postID)
	return added
}

func (p *Profile) UnsavePost(postID string) bool {
	var removed bool
	p.SavedPosts, removed = remove(p.SavedPosts, postID)
	return removed
}

// Clone returns a deep copy of p.
func (p *Profile) Clone() *Profile {
	c := *p
	c.Followers = cloneStrings(p.Followers)
	c.Following = cloneStrings(p.Following)
	c.SavedPosts = cloneStrings(p.SavedPosts)
	c.BlockedUsers = cloneStrings(p.BlockedUsers)
	c.Interests = cloneStrings(p.Interests)
	if p.DateOfBirth != nil {
		dob := *p.DateOfBirth
		c.DateOfBirth = &dob
	}
	return &c
}

// ViewFor returns the copy of p that viewerID is allowed to see. Saved
// posts and blocked users are only shown to the owner; the follower lists
// of a private profile only to the owner and its followers.
func (p *Profile) ViewFor(viewerID string) *Profile {
	c := p.Clone()
	if viewerID == p.UserID {
		return c
	}
	c.SavedPosts = nil
	c.BlockedUsers = nil
	if !CanView(p, viewerID) {
		c.Followers = pq.StringArray{}
		c.Following = pq.StringArray{}
		c.Interests = pq.StringArray{}
		c.DateOfBirth = nil
	}
	return c
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func appendUnique(list pq.StringArray, s string) (pq.StringArray, bool) {
	if contains(list, s) {
		return list, false
	}
	return append(list, s), true
}

// remove drops every occurrence of s, so a list that was corrupted by a
// duplicate heals on the next removal.
func remove(list pq.StringArray, s string) (pq.StringArray, bool) {
	out := make(pq.StringArray, 0, len(list))
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out, len(out) != len(list)
}

func cloneStrings(list pq.StringArray) pq.StringArray {
	if list == nil {
		return nil
	}
	out := make(pq.StringArray, len(list))
	copy(out, list)
	return out
}
