package domain

import (
	"context"
	"time"

	"github.com/lib/pq"
)

// CommentPageSize is the page size of comment and reply listings.
const CommentPageSize = 15

// Comment is a comment on a post. Replies point to their top-level
// comment through ParentID.
type Comment struct {
	ID       string  `json:"id" gorm:"primaryKey;type:uuid"`
	PostID   string  `json:"post_id" gorm:"type:uuid;not null;index"`
	UserID   string  `json:"user_id" gorm:"type:uuid;not null;index"`
	Content  string  `json:"content" gorm:"size:500;not null"`
	ParentID *string `json:"parent_id" gorm:"type:uuid;index"`

	Likes      pq.StringArray `json:"likes" gorm:"type:text[];not null;default:'{}'"`
	LikesCount int            `json:"likes_count" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsReply reports whether the comment answers another comment.
func (c *Comment) IsReply() bool {
	return c.ParentID != nil
}

// CommentStore persists Comments.
type CommentStore interface {
	ByID(ctx context.Context, id string) (*Comment, error)
	Create(ctx context.Context, c *Comment) error
	Update(ctx context.Context, c *Comment) error
	// Delete removes the comment and all replies below it, at any depth,
	// and returns how many rows went.
	Delete(ctx context.Context, id string) (int, error)
	DeleteByPost(ctx context.Context, postID string) error
	// TopLevel lists the comments of a post without parent, newest first.
	TopLevel(ctx context.Context, postID string, page PageRequest) ([]Comment, error)
	// Replies lists the replies of a comment, oldest first.
	Replies(ctx context.Context, parentID string, page PageRequest) ([]Comment, error)
	Like(ctx context.Context, commentID, userID string) (bool, error)
	Unlike(ctx context.Context, commentID, userID string) (bool, error)
}

// CommentService is the set of methods to work with Comments.
type CommentService interface {
	Create(ctx context.Context, viewerID, postID, content string, parentID *string) (*Comment, error)
	ByPost(ctx context.Context, viewerID, postID string, page PageRequest) (*Page[Comment], error)
	Replies(ctx context.Context, viewerID, commentID string, page PageRequest) (*Page[Comment], error)
	Edit(ctx context.Context, viewerID, commentID, content string) (*Comment, error)
	Delete(ctx context.Context, viewerID, commentID string) error
	Like(ctx context.Context, viewerID, commentID string) (*Comment, error)
	Unlike(ctx context.Context, viewerID, commentID string) (*Comment, error)
}

// CommentID returns the id of c, for pagination.
func CommentID(c Comment) string { return c.ID }
