package graph

import (
	"context"
	"net/http"
	"time"

	"notes-api/internal/auth"
	"notes-api/internal/models"
)

// Context is what resolvers see for one request. It is built once, before
// gating, and never mutated afterwards.
type Context struct {
	// Claims is nil for an anonymous request.
	Claims *auth.Claims
	// Models is the process-wide data access handle, shared by reference.
	Models models.Store
}

func (c *Context) Authenticated() bool {
	return c != nil && c.Claims != nil
}

// Authenticator verifies a raw authorization header value.
// *auth.Manager implements it.
type Authenticator interface {
	Authenticate(header string, now time.Time) (*auth.Claims, error)
}

// Builder constructs a Context per request.
type Builder struct {
	authn  Authenticator
	models models.Store
	clock  func() time.Time
}

func NewBuilder(authn Authenticator, store models.Store) *Builder {
	return &Builder{authn: authn, models: store, clock: time.Now}
}

// Build reads the authorization header and verifies it.
// No header yields an anonymous Context. A credential that fails
// verification returns an error wrapping auth.ErrSessionInvalid and
// no Context.
func (b *Builder) Build(r *http.Request) (*Context, error) {
	claims, err := b.authn.Authenticate(r.Header.Get(auth.AuthorizationHeader), b.clock())
	if err != nil {
		return nil, err
	}
	return &Context{Claims: claims, Models: b.models}, nil
}

type ctxKey struct{}

// WithContext attaches rc for resolvers.
func WithContext(ctx context.Context, rc *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, rc)
}

// FromContext returns the Context attached by WithContext.
func FromContext(ctx context.Context) (*Context, bool) {
	rc, ok := ctx.Value(ctxKey{}).(*Context)
	return rc, ok && rc != nil
}
