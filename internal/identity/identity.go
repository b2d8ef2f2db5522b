// Package identity reads the current authenticated user. Sign-in itself is
// delegated to an external provider; this service only validates the bearer
// tokens that provider issues.
package identity

import "context"

// User is the opaque identity attached to sessions and persisted results.
type User struct {
	ID          string `json:"userId"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
}

// Name returns the display name, falling back like the web client does.
func (u *User) Name() string {
	if u == nil || u.DisplayName == "" {
		return "Anonymous"
	}
	return u.DisplayName
}

type userKey struct{}

// IntoContext stores the authenticated user on the request context.
func IntoContext(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// FromContext returns the authenticated user, or nil for anonymous requests.
func FromContext(ctx context.Context) *User {
	user, _ := ctx.Value(userKey{}).(*User)
	return user
}
