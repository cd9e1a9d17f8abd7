package auth

import "context"

type ctxKey int

const principalKey ctxKey = iota

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the authenticated principal, or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}

// IsAdminFromContext reports whether the caller has admin privileges.
func IsAdminFromContext(ctx context.Context) bool {
	p := PrincipalFromContext(ctx)
	return p != nil && p.IsAdmin
}
