package database

import (
	"context"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"sociapi/domain"
)

// postGorm runs CRUD operations on the posts table.
type postGorm struct {
	db *gorm.DB
}

var _ domain.PostStore = &postGorm{}

// ByID retrieves a Post database record by ID.
func (pg *postGorm) ByID(ctx context.Context, id string) (*domain.Post, error) {
	var post domain.Post
	if err := pg.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
		return nil, translate(err, "Post")
	}
	return &post, nil
}

// ByIDs retrieves the existing posts among ids, newest first.
func (pg *postGorm) ByIDs(ctx context.Context, ids []string) ([]domain.Post, error) {
	posts := []domain.Post{}
	if len(ids) == 0 {
		return posts, nil
	}
	err := pg.db.WithContext(ctx).Where("id IN ?", ids).Order("id desc").Find(&posts).Error
	return posts, err
}

// Create stores the data from the Post object in a new database record.
func (pg *postGorm) Create(ctx context.Context, post *domain.Post) error {
	if post.ID == "" {
		post.ID = domain.NewID()
	}
	fillPostArrays(post)
	return pg.db.WithContext(ctx).Create(post).Error
}

// Update saves the editable columns of a post.
func (pg *postGorm) Update(ctx context.Context, post *domain.Post) error {
	fillPostArrays(post)
	res := pg.db.WithContext(ctx).Model(post).
		Select("content", "hashtags", "location", "updated_at").
		Updates(post)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "Post")
	}
	return nil
}

// Delete permanently deletes a post.
func (pg *postGorm) Delete(ctx context.Context, id string) error {
	return pg.db.WithContext(ctx).Delete(&domain.Post{}, "id = ?", id).Error
}

func (pg *postGorm) ByUsers(ctx context.Context, userIDs []string, page domain.PageRequest) ([]domain.Post, error) {
	posts := []domain.Post{}
	if len(userIDs) == 0 {
		return posts, nil
	}
	db := pg.db.WithContext(ctx).Where("user_id IN ?", userIDs)
	err := paginate(db, page, true).Find(&posts).Error
	return posts, err
}

func (pg *postGorm) ByHashtag(ctx context.Context, tag string, page domain.PageRequest) ([]domain.Post, error) {
	posts := []domain.Post{}
	db := pg.db.WithContext(ctx).Where("? = ANY(hashtags)", tag)
	err := paginate(db, page, true).Find(&posts).Error
	return posts, err
}

func (pg *postGorm) Like(ctx context.Context, postID, userID string) (bool, error) {
	return addLike(pg.db.WithContext(ctx), &domain.Post{}, postID, userID, "Post")
}

func (pg *postGorm) Unlike(ctx context.Context, postID, userID string) (bool, error) {
	return removeLike(pg.db.WithContext(ctx), &domain.Post{}, postID, userID, "Post")
}

// AddComments moves the comment counter by delta, never below zero.
func (pg *postGorm) AddComments(ctx context.Context, postID string, delta int) error {
	res := pg.db.WithContext(ctx).Model(&domain.Post{}).
		Where("id = ?", postID).
		Update("comments_count", gorm.Expr("GREATEST(comments_count + ?, 0)", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "Post")
	}
	return nil
}

func fillPostArrays(p *domain.Post) {
	for _, list := range []*pq.StringArray{&p.Hashtags, &p.Tags, &p.Likes} {
		if *list == nil {
			*list = pq.StringArray{}
		}
	}
}
