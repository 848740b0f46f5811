package auth

import (
	"context"
	"testing"
)

func TestPrincipalContextRoundTrip(t *testing.T) {
	ctx := ContextWithPrincipal(context.Background(), NewPrincipal("u1", "alice", true))
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		t.Fatalf("expected principal in context")
	}
	if p.UserID != "u1" || !p.IsSuperuser || !p.IsAuthenticated() {
		t.Fatalf("unexpected principal: %+v", p)
	}
}

func TestPrincipalFromEmptyContext(t *testing.T) {
	p, ok := PrincipalFromContext(context.Background())
	if ok {
		t.Fatalf("expected no principal")
	}
	if p.IsAuthenticated() {
		t.Fatalf("anonymous principal must not be authenticated")
	}
}

func TestNewPrincipalBlankID(t *testing.T) {
	if NewPrincipal("  ", "x", false).IsAuthenticated() {
		t.Fatalf("blank user id must not authenticate")
	}
}

func TestTokenContext(t *testing.T) {
	ctx := ContextWithToken(context.Background(), "abc")
	if tok, ok := TokenFromContext(ctx); !ok || tok != "abc" {
		t.Fatalf("unexpected token %q %v", tok, ok)
	}
	if _, ok := TokenFromContext(ContextWithToken(context.Background(), "")); ok {
		t.Fatalf("empty token must not be stored")
	}
}
