package ratelimit

import (
	"testing"
	"time"
)

func TestAdmitWithinWindow(t *testing.T) {
	l := New(Config{RequestsPerWin: 3, Window: time.Minute, PerIPConcurrent: 10, ViolationsToBan: 100})
	now := time.Now()

	for i := 0; i < 3; i++ {
		if v := l.Admit("1.2.3.4", now); v != Admitted {
			t.Fatalf("request %d: got %v, want Admitted", i, v)
		}
	}
	if v := l.Admit("1.2.3.4", now); v != DeniedWindowExceeded {
		t.Fatalf("4th request: got %v, want DeniedWindowExceeded", v)
	}
}

func TestAdmitEscalatesToBan(t *testing.T) {
	l := New(Config{RequestsPerWin: 1, Window: time.Minute, PerIPConcurrent: 100, ViolationsToBan: 2, BanDuration: time.Hour})
	now := time.Now()

	l.Admit("5.6.7.8", now)
	l.Admit("5.6.7.8", now)
	v := l.Admit("5.6.7.8", now)
	if v != DeniedWindowExceeded {
		t.Fatalf("2nd violation: got %v, want DeniedWindowExceeded", v)
	}
	if v := l.Admit("5.6.7.8", now); v != DeniedBanned {
		t.Fatalf("after ban threshold: got %v, want DeniedBanned", v)
	}
}

func TestAdmitPerIPConcurrentCeiling(t *testing.T) {
	l := New(Config{RequestsPerWin: 1000, Window: time.Minute, PerIPConcurrent: 2, ViolationsToBan: 1000})
	now := time.Now()

	l.Admit("9.9.9.9", now)
	l.Admit("9.9.9.9", now)
	if v := l.Admit("9.9.9.9", now); v != DeniedTooManyConcurrent {
		t.Fatalf("3rd concurrent: got %v, want DeniedTooManyConcurrent", v)
	}
}

func TestReleaseFreesConcurrentSlot(t *testing.T) {
	l := New(Config{RequestsPerWin: 1000, Window: time.Minute, PerIPConcurrent: 1, ViolationsToBan: 1000})
	now := time.Now()

	l.Admit("10.0.0.1", now)
	if v := l.Admit("10.0.0.1", now); v != DeniedTooManyConcurrent {
		t.Fatalf("got %v, want DeniedTooManyConcurrent", v)
	}
	l.Release("10.0.0.1")
	if v := l.Admit("10.0.0.1", now); v != Admitted {
		t.Fatalf("after release: got %v, want Admitted", v)
	}
}

func TestDevelopmentModeBypassesLimits(t *testing.T) {
	l := New(Config{RequestsPerWin: 1, Window: time.Minute, DevelopmentMode: true})
	now := time.Now()
	for i := 0; i < 10; i++ {
		if v := l.Admit("11.0.0.1", now); v != Admitted {
			t.Fatalf("request %d under development mode: got %v, want Admitted", i, v)
		}
	}
}

func TestSweepReclaimsIdleSlot(t *testing.T) {
	l := New(Config{RequestsPerWin: 1000, Window: time.Second, ViolationsToBan: 1000})
	now := time.Now()
	l.Admit("12.0.0.1", now)
	l.Release("12.0.0.1")

	l.Sweep(now.Add(5 * time.Second))

	idx := l.hash("12.0.0.1")
	if l.table[idx].occupied {
		t.Fatalf("slot for 12.0.0.1 should have been reclaimed by Sweep")
	}
}
