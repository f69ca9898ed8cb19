// Package auth issues and verifies the bearer tokens of the API and carries
// the authenticated user id through request contexts.
package auth

import "context"

const (
	viewerKey privateKey = "viewer"
)

type privateKey string

// SetViewer returns a copy of ctx carrying the id of the authenticated user.
func SetViewer(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, viewerKey, userID)
}

// ViewerID returns the id of the authenticated user, or "" for anonymous requests.
func ViewerID(ctx context.Context) string {
	if temp := ctx.Value(viewerKey); temp != nil {
		if id, ok := temp.(string); ok {
			return id
		}
	}
	return ""
}
