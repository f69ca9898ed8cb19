package domain

import (
	"context"
	"io"
)

// Media types of post attachments.
const (
	MediaImage = "image"
	MediaVideo = "video"
)

// Media is an attachment of a post. URL is relative to the uploads root.
type Media struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// Upload is an incoming file. File must support seeking so that its content
// can be sniffed before it is stored.
type Upload struct {
	Filename string
	File     io.ReadSeeker
}

// MediaStore stores uploaded files.
type MediaStore interface {
	// SavePostMedia stores the attachments of a post and returns them in order.
	SavePostMedia(ctx context.Context, postID string, uploads []*Upload) ([]Media, error)
	// SaveAvatar stores the avatar of a user and returns its url.
	SaveAvatar(ctx context.Context, userID string, upload *Upload) (string, error)
	DeletePostMedia(ctx context.Context, postID string) error
}
