package database

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sociapi/domain"
)

type hashtagGorm struct {
	db *gorm.DB
}

var _ domain.HashtagStore = &hashtagGorm{}

// Use upserts the tags, counting one use for each.
func (hg *hashtagGorm) Use(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	tags := make([]domain.Hashtag, len(names))
	for i, name := range names {
		tags[i] = domain.Hashtag{Name: name, UsageCount: 1}
	}
	return hg.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"usage_count": gorm.Expr("hashtags.usage_count + 1"),
		}),
	}).Create(&tags).Error
}

func (hg *hashtagGorm) Release(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	return hg.db.WithContext(ctx).Model(&domain.Hashtag{}).
		Where("name IN ? AND usage_count > 0", names).
		Update("usage_count", gorm.Expr("usage_count - 1")).Error
}

func (hg *hashtagGorm) Trending(ctx context.Context, limit int) ([]domain.Hashtag, error) {
	tags := []domain.Hashtag{}
	db := hg.db.WithContext(ctx).Where("usage_count > 0").Order("usage_count desc, name")
	if limit > 0 {
		db = db.Limit(limit)
	}
	err := db.Find(&tags).Error
	return tags, err
}
