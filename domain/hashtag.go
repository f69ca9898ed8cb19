package domain

import "context"

// Hashtag counts how many posts used a tag.
type Hashtag struct {
	Name       string `json:"name" gorm:"primaryKey;size:100"`
	UsageCount int    `json:"usage_count" gorm:"not null;default:0"`
}

// HashtagStore persists Hashtags.
type HashtagStore interface {
	// Use creates missing tags and increments the usage count of all of them.
	Use(ctx context.Context, names []string) error
	// Release counts one use less for each tag, never going below zero.
	Release(ctx context.Context, names []string) error
	// Trending lists the tags in use, most used first.
	Trending(ctx context.Context, limit int) ([]Hashtag, error)
}
