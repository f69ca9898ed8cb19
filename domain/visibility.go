package domain

// CanView decides whether viewerID may see the content of the profile's
// owner. An empty viewerID is an anonymous viewer.
func CanView(target *Profile, viewerID string) bool {
	if target == nil {
		return false
	}
	if !target.IsPrivate {
		return true
	}
	if viewerID == "" {
		return false
	}
	if viewerID == target.UserID {
		return true
	}
	return target.HasFollower(viewerID)
}
