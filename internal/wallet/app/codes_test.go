package app

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCodeStore_RoundTrip(t *testing.T) {
	codes := NewMemoryCodeStore()
	ctx := context.Background()

	if err := codes.Set(ctx, "member:acct", "4821", time.Minute); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	got, err := codes.Get(ctx, "member:acct")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got != "4821" {
		t.Fatalf("expected 4821, got %q", got)
	}

	if err := codes.Delete(ctx, "member:acct"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if _, err := codes.Get(ctx, "member:acct"); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound, got %v", err)
	}
}

func TestMemoryCodeStore_Expiry(t *testing.T) {
	codes := NewMemoryCodeStore()
	ctx := context.Background()

	if err := codes.Set(ctx, "member:acct", "4821", -time.Second); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if _, err := codes.Get(ctx, "member:acct"); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected expired code to be gone, got %v", err)
	}
}
