package worker

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1) // 100 rps, burst 1
	ctx := context.Background()

	if err := limiter.Wait(ctx, "staff@shs.example.org"); err != nil {
		t.Errorf("wait failed: %v", err)
	}

	// Different domain should also work
	if err := limiter.Wait(ctx, "intake@county.example.gov"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
}

func TestLimiter_WaitCanceled(t *testing.T) {
	limiter := NewLimiter(0.01, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx, "a@example.com"); err != nil {
		t.Fatalf("first wait failed: %v", err)
	}
	// Next token is 100s away, well past the deadline
	if err := limiter.Wait(ctx, "b@example.com"); err == nil {
		t.Errorf("expected wait beyond deadline to fail")
	}
}

// admitted reports whether a send to address gets a slot without waiting
func admitted(l *Limiter, address string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	return l.Wait(ctx, address) == nil
}

func TestLimiter_RateLimit(t *testing.T) {
	// 1 rps, burst 1
	limiter := NewLimiter(1, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "one@example.com"); err != nil {
		t.Errorf("first wait failed: %v", err)
	}

	// Same domain, different mailbox: token already consumed
	if admitted(limiter, "two@EXAMPLE.com") {
		t.Errorf("expected send to be throttled (exhausted tokens)")
	}

	if !admitted(limiter, "one@other.com") {
		t.Errorf("expected send for other domain")
	}
}

func TestLimiter_ZeroRateIsUnlimited(t *testing.T) {
	limiter := NewLimiter(0, 1)
	for i := 0; i < 10; i++ {
		if !admitted(limiter, "staff@example.com") {
			t.Fatalf("send %d throttled with unlimited rate", i)
		}
	}
}

func TestLimiter_SetDomainRate(t *testing.T) {
	limiter := NewLimiter(10, 10) // fast default
	domain := "slow.com"

	limiter.SetDomainRate(domain, 0.1, 1) // very slow

	if !admitted(limiter, "staff@"+domain) {
		t.Errorf("first send should pass")
	}

	if admitted(limiter, "staff@"+domain) {
		t.Errorf("second send should fail")
	}

	if !admitted(limiter, "staff@fast.com") {
		t.Errorf("other domain should pass")
	}
}

func TestLimiter_SetDomainRateUnlimited(t *testing.T) {
	limiter := NewLimiter(0.01, 1)
	limiter.SetDomainRate(" Internal.Example.org ", 0, 1)

	for i := 0; i < 5; i++ {
		if !admitted(limiter, "staff@internal.example.org") {
			t.Fatalf("send %d throttled on unlimited domain", i)
		}
	}
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"staff@Example.COM", "example.com"},
		{"Intake Staff <staff@shs.org>", "shs.org"},
		{"http://example.com/foo", "example.com"},
		{"https://api.openai.com:443/v1", "api.openai.com"},
	}
	for _, tt := range tests {
		got, err := extractDomain(tt.in)
		if err != nil {
			t.Fatalf("extractDomain(%q) failed: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("extractDomain(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"::invalid", "staff@", "no-domain"} {
		if _, err := extractDomain(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
