// Package actor carries the pre-authenticated caller identity through
// request and job contexts. Authentication itself happens upstream.
package actor

import "context"

type contextKey struct{}

const (
	RoleAdmin  = "admin"
	RoleClient = "client"
	RoleSystem = "system"
)

// Actor identifies who triggered an operation.
type Actor struct {
	ID   string
	Role string
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// System returns the identity used by scheduled jobs.
func System() Actor {
	return Actor{ID: "scheduler", Role: RoleSystem}
}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(contextKey{}).(Actor)
	return a, ok
}
