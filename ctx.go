package identity

import (
	"context"
)

var principalCtxKey = &contextKey{"principal"}

type contextKey struct {
	name string
}

// WithPrincipal sets the verified Principal in the given context
func WithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, principal)
}

// PrincipalFromContext finds the Principal in the context.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	if ctx == nil {
		return nil, false
	}
	raw, ok := ctx.Value(principalCtxKey).(*Principal)
	return raw, ok && raw != nil
}

// actorFromContext names the caller recorded on activity events.
func actorFromContext(ctx context.Context) ActorRef {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return SystemActor
	}
	id := p.UserID
	if id == "" {
		id = p.Subject
	}
	return ActorRef{ID: id, Type: string(p.Role)}
}
