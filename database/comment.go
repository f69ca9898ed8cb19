package database

import (
	"context"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"sociapi/domain"
)

// commentGorm runs CRUD operations on the comments table.
type commentGorm struct {
	db *gorm.DB
}

var _ domain.CommentStore = &commentGorm{}

func (cg *commentGorm) ByID(ctx context.Context, id string) (*domain.Comment, error) {
	var c domain.Comment
	if err := cg.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, translate(err, "Comment")
	}
	return &c, nil
}

func (cg *commentGorm) Create(ctx context.Context, c *domain.Comment) error {
	if c.ID == "" {
		c.ID = domain.NewID()
	}
	if c.Likes == nil {
		c.Likes = pq.StringArray{}
	}
	return cg.db.WithContext(ctx).Create(c).Error
}

func (cg *commentGorm) Update(ctx context.Context, c *domain.Comment) error {
	res := cg.db.WithContext(ctx).Model(c).Select("content", "updated_at").Updates(c)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "Comment")
	}
	return nil
}

// Delete removes a comment together with its replies.
func (cg *commentGorm) Delete(ctx context.Context, id string) (int, error) {
	res := cg.db.WithContext(ctx).Exec(`
		WITH RECURSIVE thread AS (
			SELECT id FROM comments WHERE id = ?
			UNION ALL
			SELECT c.id FROM comments c JOIN thread t ON c.parent_id = t.id
		)
		DELETE FROM comments WHERE id IN (SELECT id FROM thread)`, id)
	return int(res.RowsAffected), res.Error
}

func (cg *commentGorm) DeleteByPost(ctx context.Context, postID string) error {
	return cg.db.WithContext(ctx).Delete(&domain.Comment{}, "post_id = ?", postID).Error
}

func (cg *commentGorm) TopLevel(ctx context.Context, postID string, page domain.PageRequest) ([]domain.Comment, error) {
	comments := []domain.Comment{}
	db := cg.db.WithContext(ctx).Where("post_id = ? AND parent_id IS NULL", postID)
	err := paginate(db, page, true).Find(&comments).Error
	return comments, err
}

func (cg *commentGorm) Replies(ctx context.Context, parentID string, page domain.PageRequest) ([]domain.Comment, error) {
	comments := []domain.Comment{}
	db := cg.db.WithContext(ctx).Where("parent_id = ?", parentID)
	err := paginate(db, page, false).Find(&comments).Error
	return comments, err
}

func (cg *commentGorm) Like(ctx context.Context, commentID, userID string) (bool, error) {
	return addLike(cg.db.WithContext(ctx), &domain.Comment{}, commentID, userID, "Comment")
}

func (cg *commentGorm) Unlike(ctx context.Context, commentID, userID string) (bool, error) {
	return removeLike(cg.db.WithContext(ctx), &domain.Comment{}, commentID, userID, "Comment")
}
