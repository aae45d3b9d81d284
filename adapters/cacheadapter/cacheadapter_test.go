package cacheadapter

import (
	"context"
	"errors"
	"testing"
)

func TestNoopCache_AlwaysMisses(t *testing.T) {
	c := NewNoop()
	ctx := context.Background()

	if _, err := c.Get(ctx, "key"); !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss, got %v", err)
	}
	if err := c.Set(ctx, "key", "value", 0); err != nil {
		t.Errorf("Set should be a no-op, got %v", err)
	}
	got, err := c.MGet(ctx, []string{"a", "b"})
	if err != nil || len(got) != 0 {
		t.Errorf("MGet should return empty, got %v, %v", got, err)
	}
}

func TestNoopCache_HealthCheckAlwaysOK(t *testing.T) {
	status, _, msg := NewNoop().HealthCheck(context.Background())
	if status != StatusOK {
		t.Errorf("expected StatusOK, got %v", status)
	}
	if msg != nil {
		t.Errorf("expected nil message, got %v", *msg)
	}
}
