package identity_test

import (
	"context"
	"errors"
	"testing"

	"github.com/astro-web3/teams-gate/internal/identity"
)

func TestObjectID_FirstMatchingClaim(t *testing.T) {
	p := &identity.Principal{Claims: []identity.Claim{
		{Type: "name", Value: "Ada"},
		{Type: identity.ObjectIdentifierClaimType, Value: "oid-1"},
		{Type: identity.ObjectIdentifierClaimType, Value: "oid-2"},
	}}

	got, err := identity.ObjectID(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "oid-1" {
		t.Errorf("expected first claim value oid-1, got %s", got)
	}
}

func TestObjectID_Missing(t *testing.T) {
	tests := []struct {
		name string
		p    *identity.Principal
	}{
		{name: "nil principal", p: nil},
		{name: "no claims", p: &identity.Principal{}},
		{name: "other claims only", p: &identity.Principal{Claims: []identity.Claim{{Type: "oid", Value: "x"}}}},
		{name: "empty value", p: &identity.Principal{Claims: []identity.Claim{{Type: identity.ObjectIdentifierClaimType}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := identity.ObjectID(tt.p)
			if !errors.Is(err, identity.ErrMissingIdentityClaim) {
				t.Errorf("expected ErrMissingIdentityClaim, got %v", err)
			}
		})
	}
}

func TestContextRoundTrip(t *testing.T) {
	if identity.FromContext(context.Background()) != nil {
		t.Fatal("expected nil principal on empty context")
	}

	p := &identity.Principal{AuthenticationType: "jwt"}
	ctx := identity.WithPrincipal(context.Background(), p)
	if identity.FromContext(ctx) != p {
		t.Error("expected the stored principal back")
	}
}
