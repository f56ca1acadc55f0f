package spec

import (
	"testing"
	"time"
)

func TestResolveDefaults(t *testing.T) {
	limits := Resolve(Defaults{}, 0)

	if limits.WallTimeSeconds != DefaultWallTimeSeconds {
		t.Fatalf("wall time default = %d", limits.WallTimeSeconds)
	}
	if limits.MemoryMB != DefaultMemoryMB {
		t.Fatalf("memory default = %d", limits.MemoryMB)
	}
	if limits.CodeSizeKB != DefaultCodeSizeKB {
		t.Fatalf("code size default = %d", limits.CodeSizeKB)
	}
}

func TestResolveTimeoutOverrideClamped(t *testing.T) {
	limits := Resolve(Defaults{WallTimeSeconds: 30}, 120)
	if limits.WallTimeSeconds != MaxWallTimeSeconds {
		t.Fatalf("override not clamped: %d", limits.WallTimeSeconds)
	}

	limits = Resolve(Defaults{WallTimeSeconds: 30}, 5)
	if limits.WallTimeSeconds != 5 {
		t.Fatalf("override not applied: %d", limits.WallTimeSeconds)
	}

	limits = Resolve(Defaults{WallTimeSeconds: 30}, 0)
	if limits.WallTimeSeconds != 30 {
		t.Fatalf("zero override must keep default, got %d", limits.WallTimeSeconds)
	}

	limits = Resolve(Defaults{WallTimeSeconds: 30}, -3)
	if limits.WallTimeSeconds != 30 {
		t.Fatalf("negative override must keep default, got %d", limits.WallTimeSeconds)
	}
}

func TestWallTimeDuration(t *testing.T) {
	limits := ResourceLimits{WallTimeSeconds: 7}
	if limits.WallTime() != 7*time.Second {
		t.Fatalf("wall time = %s", limits.WallTime())
	}
}
