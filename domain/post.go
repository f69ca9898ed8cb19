package domain

import (
	"context"
	"time"

	"github.com/lib/pq"
)

// Post is a piece of content owned by a user. Whether others may see it is
// decided by the owner's profile.
type Post struct {
	ID       string         `json:"id" gorm:"primaryKey;type:uuid"`
	UserID   string         `json:"user_id" gorm:"type:uuid;not null;index"`
	Content  string         `json:"content" gorm:"size:2200"`
	Media    []Media        `json:"media" gorm:"serializer:json"`
	Hashtags pq.StringArray `json:"hashtags" gorm:"type:text[];not null;default:'{}'"`
	Tags     pq.StringArray `json:"tags" gorm:"type:text[];not null;default:'{}'"`
	Location string         `json:"location,omitempty" gorm:"size:100"`

	Likes         pq.StringArray `json:"likes" gorm:"type:text[];not null;default:'{}'"`
	LikesCount    int            `json:"likes_count" gorm:"not null;default:0"`
	CommentsCount int            `json:"comments_count" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LikedBy reports whether userID likes the post.
func (p *Post) LikedBy(userID string) bool {
	return contains(p.Likes, userID)
}

// NewPost holds the data of a post to be created.
type NewPost struct {
	Content  string    `json:"content" validate:"max=2200"`
	Hashtags []string  `json:"hashtags" validate:"max=30,dive,max=100"`
	Tags     []string  `json:"tags" validate:"max=20,dive,uuid"`
	Location string    `json:"location" validate:"max=100"`
	Uploads  []*Upload `json:"-" validate:"max=10"`
}

// PostUpdate holds the fields an owner may change on a post.
type PostUpdate struct {
	Content  *string  `json:"content" validate:"omitempty,max=2200"`
	Hashtags []string `json:"hashtags" validate:"omitempty,max=30,dive,max=100"`
	Location *string  `json:"location" validate:"omitempty,max=100"`
}

// PostStore persists Posts. Like and Unlike report whether the like set changed.
type PostStore interface {
	ByID(ctx context.Context, id string) (*Post, error)
	ByIDs(ctx context.Context, ids []string) ([]Post, error)
	Create(ctx context.Context, post *Post) error
	Update(ctx context.Context, post *Post) error
	Delete(ctx context.Context, id string) error
	// ByUsers lists the posts of the given users, newest first.
	ByUsers(ctx context.Context, userIDs []string, page PageRequest) ([]Post, error)
	// ByHashtag lists the posts carrying tag, newest first.
	ByHashtag(ctx context.Context, tag string, page PageRequest) ([]Post, error)
	Like(ctx context.Context, postID, userID string) (bool, error)
	Unlike(ctx context.Context, postID, userID string) (bool, error)
	AddComments(ctx context.Context, postID string, delta int) error
}

// PostService is the set of methods to work with Posts.
type PostService interface {
	Create(ctx context.Context, userID string, np *NewPost) (*Post, error)
	Get(ctx context.Context, viewerID, postID string) (*Post, error)
	ByUser(ctx context.Context, viewerID, userID string, page PageRequest) (*Page[Post], error)
	Feed(ctx context.Context, viewerID string, page PageRequest) (*Page[Post], error)
	ByHashtag(ctx context.Context, viewerID, tag string, page PageRequest) (*Page[Post], error)
	Saved(ctx context.Context, viewerID string) ([]Post, error)
	Trending(ctx context.Context, limit int) ([]Hashtag, error)
	Edit(ctx context.Context, viewerID, postID string, upd *PostUpdate) (*Post, error)
	Delete(ctx context.Context, viewerID, postID string) error
	Like(ctx context.Context, viewerID, postID string) (*Post, error)
	Unlike(ctx context.Context, viewerID, postID string) (*Post, error)
	Save(ctx context.Context, viewerID, postID string) error
	Unsave(ctx context.Context, viewerID, postID string) error
}

// PostID returns the id of p, for pagination.
func PostID(p Post) string { return p.ID }
