package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemory_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	m := NewMemory(time.Minute)
	m.now = func() time.Time { return now }

	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("empty cache: err = %v", err)
	}
	if err := m.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	now = now.Add(30 * time.Second)
	got, err := m.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	now = now.Add(time.Minute)
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expired entry: err = %v", err)
	}
}

func TestKey(t *testing.T) {
	a := Key("calc:", []byte(`{"initPayload":{}}`))
	b := Key("calc:", []byte(`{"initPayload":{}}`))
	c := Key("calc:", []byte(`{"initPayload":{"x":1}}`))
	if a != b || a == c {
		t.Fatalf("keys: %s %s %s", a, b, c)
	}
	if len(a) != len("calc:")+64 {
		t.Fatalf("unexpected key length %d", len(a))
	}
}

func TestNoop(t *testing.T) {
	var c Cache = Noop{}
	_ = c.Set(context.Background(), "k", []byte("v"))
	if _, err := c.Get(context.Background(), "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("err = %v", err)
	}
}
