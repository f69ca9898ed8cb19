package database

import (
	"gorm.io/gorm"
)

// addLike appends userID to the likes of a post or comment unless it is
// already there. It reports whether the set changed.
func addLike(db *gorm.DB, model interface{}, id, userID, entity string) (bool, error) {
	res := db.Model(model).
		Where("id = ? AND NOT (? = ANY(likes))", id, userID).
		Updates(map[string]interface{}{
			"likes":       gorm.Expr("array_append(likes, ?)", userID),
			"likes_count": gorm.Expr("likes_count + 1"),
		})
	return likeChanged(db, model, id, entity, res)
}

// removeLike is the reverse of addLike.
func removeLike(db *gorm.DB, model interface{}, id, userID, entity string) (bool, error) {
	res := db.Model(model).
		Where("id = ? AND ? = ANY(likes)", id, userID).
		Updates(map[string]interface{}{
			"likes":       gorm.Expr("array_remove(likes, ?)", userID),
			"likes_count": gorm.Expr("GREATEST(likes_count - 1, 0)"),
		})
	return likeChanged(db, model, id, entity, res)
}

func likeChanged(db *gorm.DB, model interface{}, id, entity string, res *gorm.DB) (bool, error) {
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	var n int64
	if err := db.Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	if n == 0 {
		return false, translate(gorm.ErrRecordNotFound, entity)
	}
	return false, nil
}
