package crud

import (
	"context"

	"sociapi/domain"
	"sociapi/errs"
)

// AccessGateway authorizes operations on content by looking at the profile
// of the content's owner.
type AccessGateway struct {
	profiles domain.ProfileCache
}

// NewAccessGateway returns an AccessGateway reading owner profiles from profiles.
func NewAccessGateway(profiles domain.ProfileCache) *AccessGateway {
	return &AccessGateway{profiles: profiles}
}

// RequireView returns the owner's profile if viewerID may see the owner's
// content, and ErrPrivateContent otherwise. Owners that blocked the viewer
// are treated as invisible.
func (g *AccessGateway) RequireView(ctx context.Context, ownerID, viewerID string) (*domain.Profile, error) {
	owner, err := g.profiles.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if viewerID != "" && owner.HasBlocked(viewerID) {
		return nil, errs.ErrBlocked
	}
	if !domain.CanView(owner, viewerID) {
		return nil, errs.ErrPrivateContent
	}
	return owner, nil
}

// Visible reports whether viewerID may see the content of ownerID. Lookup
// failures count as not visible.
func (g *AccessGateway) Visible(ctx context.Context, ownerID, viewerID string) bool {
	_, err := g.RequireView(ctx, ownerID, viewerID)
	return err == nil
}

// RequireOwner returns denied unless viewerID owns the content. Seeing a
// piece of content never implies the right to change it.
func RequireOwner(ownerID, viewerID string, denied error) error {
	if viewerID == "" || ownerID != viewerID {
		return denied
	}
	return nil
}
