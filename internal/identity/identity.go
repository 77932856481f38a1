// Package identity exposes the viewer capability the booking flow consumes:
// whether identity has loaded, whether the viewer is signed in, who they are
// and which roles they hold. Backends are swappable behind Provider.
package identity

import (
	"context"
	"errors"
	"net/http"
)

var ErrInvalidToken = errors.New("invalid token")

type Role string

const (
	RoleClient  Role = "client"
	RoleBuilder Role = "builder"
	RoleAdmin   Role = "admin"
)

type Viewer struct {
	Loaded   bool   `json:"loaded"`
	SignedIn bool   `json:"signed_in"`
	UserID   string `json:"user_id,omitempty"`
	Roles    []Role `json:"roles,omitempty"`
}

// Anonymous is a loaded identity with nobody signed in.
func Anonymous() Viewer {
	return Viewer{Loaded: true}
}

func (v Viewer) IsAuthenticated() bool {
	return v.Loaded && v.SignedIn && v.UserID != ""
}

// Provider resolves the viewer for an incoming request. A request without
// credentials resolves to Anonymous with a nil error; bad credentials resolve
// to Anonymous with ErrInvalidToken.
type Provider interface {
	Resolve(r *http.Request) (Viewer, error)
}

type AnonymousProvider struct{}

func (AnonymousProvider) Resolve(*http.Request) (Viewer, error) {
	return Anonymous(), nil
}

type ctxKey struct{}

func WithViewer(ctx context.Context, v Viewer) context.Context {
	return context.WithValue(ctx, ctxKey{}, v)
}

// FromContext returns the viewer stored on ctx. Without one, identity is
// reported as not loaded.
func FromContext(ctx context.Context) Viewer {
	v, ok := ctx.Value(ctxKey{}).(Viewer)
	if !ok {
		return Viewer{}
	}
	return v
}
