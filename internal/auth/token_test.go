package auth

import (
	"testing"
	"time"
)

func TestIssueThenVerifyRoundTrips(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)

	token, err := issuer.Issue("127.0.0.1:4000", "alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	username, peerAddr, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if username != "alice" || peerAddr != "127.0.0.1:4000" {
		t.Fatalf("Verify = (%q, %q), want (alice, 127.0.0.1:4000)", username, peerAddr)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issuer := NewIssuer("test-secret", -time.Minute)
	token, err := issuer.Issue("127.0.0.1:4000", "alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, _, err := issuer.Verify(token); err != ErrInvalidToken {
		t.Fatalf("Verify on expired token = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsTokenFromDifferentSecret(t *testing.T) {
	issuer := NewIssuer("secret-a", time.Hour)
	other := NewIssuer("secret-b", time.Hour)

	token, err := issuer.Issue("127.0.0.1:4000", "alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, _, err := other.Verify(token); err != ErrInvalidToken {
		t.Fatalf("Verify with wrong secret = %v, want ErrInvalidToken", err)
	}
}
