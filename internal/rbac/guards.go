package rbac

import (
	"errors"

	"notes-api/internal/auth"
)

var (
	// ErrUnauthenticated means the request context is anonymous.
	ErrUnauthenticated = errors.New("you must be signed in")
	// ErrForbidden means the caller is signed in but does not own the resource.
	ErrForbidden = errors.New("you don't have permission to modify this note")
)

// RequireUser returns the caller's user id, or ErrUnauthenticated for an
// anonymous context.
func RequireUser(claims *auth.Claims) (string, error) {
	if uid := claims.UserID(); uid != "" {
		return uid, nil
	}
	return "", ErrUnauthenticated
}

// RequireAuthor allows only the author of a resource to modify it.
// Ownership is the sole authorization rule; there are no roles.
func RequireAuthor(claims *auth.Claims, authorID string) (string, error) {
	uid, err := RequireUser(claims)
	if err != nil {
		return "", err
	}
	if authorID == "" || uid != authorID {
		return "", ErrForbidden
	}
	return uid, nil
}
