package bufpool

import "testing"

func TestAcquireReleaseRoundTrip(t *testing.T) {
	p := New(2, 64)

	b1, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if len(b1) != 64 {
		t.Fatalf("len(b1) = %d, want 64", len(b1))
	}

	b2, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if _, err := p.Acquire(); err != ErrResourceExhausted {
		t.Fatalf("Acquire on exhausted pool: got %v, want ErrResourceExhausted", err)
	}

	p.Release(b1)
	b3, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire after Release: %v", err)
	}

	p.Release(b2)
	p.Release(b3)

	if got := p.InUse(); got != 0 {
		t.Fatalf("InUse() = %d, want 0", got)
	}
	if got := p.Total(); got != 2 {
		t.Fatalf("Total() = %d, want 2", got)
	}
}

func TestReleaseWrongSizeIgnored(t *testing.T) {
	p := New(1, 64)
	b, _ := p.Acquire()
	_ = b

	p.Release(make([]byte, 32))
	if got := p.InUse(); got != 1 {
		t.Fatalf("InUse() after mis-sized Release = %d, want 1 (release should be a no-op)", got)
	}
}
