package snowflake

import (
	"errors"
	"testing"
	"time"
)

func TestNewGeneratorRejectsNodeOutOfRange(t *testing.T) {
	for _, node := range []int64{-1, MaxNodeID + 1} {
		if _, err := NewGenerator(node); !errors.Is(err, ErrNodeIDRange) {
			t.Fatalf("node %d: expected range error, got %v", node, err)
		}
	}
}

func TestGeneratedIDsDecompose(t *testing.T) {
	gen, err := NewGenerator(7)
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	before := time.Now().Add(-time.Second)
	a, b := gen.Generate(), gen.Generate()
	if b <= a {
		t.Fatalf("ids must increase: %d then %d", a, b)
	}
	parts := Decompose(a)
	if parts.Node != 7 {
		t.Fatalf("unexpected node: %d", parts.Node)
	}
	if parts.Time.Before(before) || parts.Time.After(time.Now().Add(time.Second)) {
		t.Fatalf("unexpected time: %v", parts.Time)
	}
}

func TestNodeIDFromEnv(t *testing.T) {
	t.Setenv(EnvNodeID, "")
	if id, err := NodeIDFromEnv(); err != nil || id != 0 {
		t.Fatalf("unset: %d %v", id, err)
	}

	t.Setenv(EnvNodeID, "12")
	if id, err := NodeIDFromEnv(); err != nil || id != 12 {
		t.Fatalf("valid: %d %v", id, err)
	}

	t.Setenv(EnvNodeID, "twelve")
	if _, err := NodeIDFromEnv(); err == nil {
		t.Fatalf("expected error for non-integer node id")
	}

	t.Setenv(EnvNodeID, "4096")
	if _, err := NewGeneratorFromEnv(); !errors.Is(err, ErrNodeIDRange) {
		t.Fatalf("expected range error, got %v", err)
	}
}
