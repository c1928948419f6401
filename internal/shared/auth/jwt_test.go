package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	s, err := NewSigner("s3cret", "dev")
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	token, err := s.Sign(Claims{Sub: "google:1", Email: "admin@example.com", Admin: true})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := s.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Email != "admin@example.com" || !claims.Admin {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.Exp-claims.Iat != int64(DefaultTTL/time.Second) {
		t.Fatalf("unexpected ttl: %d", claims.Exp-claims.Iat)
	}
}

func TestVerifyRejectsTamperedAndExpired(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	s, _ := NewSigner("s3cret", "dev")
	s.WithClock(func() time.Time { return now })

	token, err := s.Sign(Claims{Sub: "google:1"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	other, _ := NewSigner("other", "dev")
	if _, err := other.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
	if _, err := s.Verify(strings.TrimSuffix(token, token[len(token)-2:])); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for truncated sig, got %v", err)
	}

	now = now.Add(DefaultTTL + time.Minute)
	if _, err := s.Verify(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected expired, got %v", err)
	}
}

func TestNewSignerRequiresSecretInProduction(t *testing.T) {
	if _, err := NewSigner("", "prod"); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected missing secret, got %v", err)
	}
	if _, err := NewSigner("", "dev"); err != nil {
		t.Fatalf("dev should fall back: %v", err)
	}
}
