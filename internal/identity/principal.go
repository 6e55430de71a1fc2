// Package identity carries the authenticated caller through a request.
package identity

import (
	"context"
	"errors"
)

// ObjectIdentifierClaimType is the well-known claim type holding the caller's
// directory object id.
const ObjectIdentifierClaimType = "http://schemas.microsoft.com/identity/claims/objectidentifier"

var ErrMissingIdentityClaim = errors.New("missing object identifier claim")

type Claim struct {
	Type  string
	Value string
}

// Principal is the verified caller attached by the authentication middleware.
type Principal struct {
	AuthenticationType string
	Claims             []Claim
}

// FindFirst returns the first claim of the given type.
func (p *Principal) FindFirst(claimType string) (Claim, bool) {
	if p == nil {
		return Claim{}, false
	}
	for _, c := range p.Claims {
		if c.Type == claimType {
			return c, true
		}
	}
	return Claim{}, false
}

// ObjectID returns the caller's user id.
func ObjectID(p *Principal) (string, error) {
	claim, ok := p.FindFirst(ObjectIdentifierClaimType)
	if !ok || claim.Value == "" {
		return "", ErrMissingIdentityClaim
	}
	return claim.Value, nil
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal, or nil for anonymous requests.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
