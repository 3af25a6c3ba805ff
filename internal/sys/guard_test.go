package sys

import "testing"

func TestGuardRunsOnlyIfNotDisarmed(t *testing.T) {
	ran := false
	g := NewGuard(func() { ran = true })
	g.Run()
	if !ran {
		t.Fatal("expected guard to run")
	}
}

func TestGuardDisarmPreventsRun(t *testing.T) {
	ran := false
	g := NewGuard(func() { ran = true })
	g.Disarm()
	g.Run()
	if ran {
		t.Fatal("disarmed guard must not run")
	}
}

func TestGuardRunIsIdempotent(t *testing.T) {
	count := 0
	g := NewGuard(func() { count++ })
	g.Run()
	g.Run()
	if count != 1 {
		t.Fatalf("expected guard to run exactly once, ran %d times", count)
	}
}
