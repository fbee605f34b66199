package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStore_SetGet(t *testing.T) {
	s := NewMemory()
	defer s.Close()
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("got %q, want %q", got, "v")
	}
}

func TestMemoryStore_GetMissing(t *testing.T) {
	s := NewMemory()
	defer s.Close()

	_, err := s.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_SetWithTTLExpires(t *testing.T) {
	s := NewMemory()
	defer s.Close()
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("v"), time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	_, err := s.Get(ctx, "k")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired key to be ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_Del(t *testing.T) {
	s := NewMemory()
	defer s.Close()
	ctx := context.Background()

	_ = s.Set(ctx, "k", []byte("v"), 0)
	if err := s.Del(ctx, "k"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted key to be ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_IncrFromZero(t *testing.T) {
	s := NewMemory()
	defer s.Close()
	ctx := context.Background()

	n, err := s.Incr(ctx, "counter", 1)
	if err != nil {
		t.Fatalf("Incr: %v", err)
	}
	if n != 1 {
		t.Fatalf("got %d, want 1", n)
	}

	n, err = s.Incr(ctx, "counter", 4)
	if err != nil {
		t.Fatalf("Incr: %v", err)
	}
	if n != 5 {
		t.Fatalf("got %d, want 5", n)
	}
}

func TestMemoryStore_IncrNegativeDelta(t *testing.T) {
	s := NewMemory()
	defer s.Close()
	ctx := context.Background()

	_, _ = s.Incr(ctx, "counter", 10)
	n, err := s.Incr(ctx, "counter", -3)
	if err != nil {
		t.Fatalf("Incr: %v", err)
	}
	if n != 7 {
		t.Fatalf("got %d, want 7", n)
	}
}

func TestMemoryStore_IncrAfterExpiryResetsToDelta(t *testing.T) {
	s := NewMemory()
	defer s.Close()
	ctx := context.Background()

	_ = s.Set(ctx, "counter", []byte("99"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	n, err := s.Incr(ctx, "counter", 1)
	if err != nil {
		t.Fatalf("Incr: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected expired counter to reset, got %d", n)
	}
}

func TestMemoryStore_Expire(t *testing.T) {
	s := NewMemory()
	defer s.Close()
	ctx := context.Background()

	_ = s.Set(ctx, "k", []byte("v"), 0)
	if err := s.Expire(ctx, "k", time.Millisecond); err != nil {
		t.Fatalf("Expire: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected key to expire after Expire(), got %v", err)
	}
}

func TestMemoryStore_ExpireOnMissingKeyIsNoop(t *testing.T) {
	s := NewMemory()
	defer s.Close()

	if err := s.Expire(context.Background(), "missing", time.Second); err != nil {
		t.Fatalf("Expire on missing key should be a no-op, got %v", err)
	}
}

func TestMemoryStore_SetNX(t *testing.T) {
	s := NewMemory()
	defer s.Close()
	ctx := context.Background()

	ok, err := s.SetNX(ctx, "k", []byte("first"), time.Minute)
	if err != nil {
		t.Fatalf("SetNX: %v", err)
	}
	if !ok {
		t.Fatal("expected first SetNX to succeed")
	}

	ok, err = s.SetNX(ctx, "k", []byte("second"), time.Minute)
	if err != nil {
		t.Fatalf("SetNX: %v", err)
	}
	if ok {
		t.Fatal("expected second SetNX on live key to fail")
	}

	got, _ := s.Get(ctx, "k")
	if string(got) != "first" {
		t.Fatalf("expected original value preserved, got %q", got)
	}
}

func TestMemoryStore_SetNXAfterExpirySucceeds(t *testing.T) {
	s := NewMemory()
	defer s.Close()
	ctx := context.Background()

	_, _ = s.SetNX(ctx, "k", []byte("first"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	ok, err := s.SetNX(ctx, "k", []byte("second"), time.Minute)
	if err != nil {
		t.Fatalf("SetNX: %v", err)
	}
	if !ok {
		t.Fatal("expected SetNX to succeed once the previous entry expired")
	}
}
