package resilience

import (
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func TestWithDefaultsFillsInvalidFields(t *testing.T) {
	cfg := Config{
		RetryInitialBackoff: 500 * time.Millisecond,
		RetryMaxBackoff:     100 * time.Millisecond,
		RetryMultiplier:     0.5,
		AttemptTimeout:      -time.Second,
		BreakerFailureRatio: 3,
	}.withDefaults()

	def := DefaultConfig()
	if cfg.RetryMaxAttempts != def.RetryMaxAttempts {
		t.Fatalf("RetryMaxAttempts = %d, want %d", cfg.RetryMaxAttempts, def.RetryMaxAttempts)
	}
	if cfg.RetryMaxBackoff != cfg.RetryInitialBackoff {
		t.Fatalf("max backoff must not be below initial, got %v", cfg.RetryMaxBackoff)
	}
	if cfg.RetryMultiplier != def.RetryMultiplier {
		t.Fatalf("RetryMultiplier = %v", cfg.RetryMultiplier)
	}
	if cfg.AttemptTimeout != 0 {
		t.Fatalf("negative attempt timeout must be cleared, got %v", cfg.AttemptTimeout)
	}
	if cfg.BreakerFailureRatio != def.BreakerFailureRatio {
		t.Fatalf("BreakerFailureRatio = %v", cfg.BreakerFailureRatio)
	}
	if cfg.BreakerEnabled {
		t.Fatalf("withDefaults must not enable the breaker")
	}
}

func TestBackoffGrowsUntilCap(t *testing.T) {
	cfg := DefaultConfig()
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 400 * time.Millisecond}
	for i, w := range want {
		if got := cfg.backoff(i + 1); got != w {
			t.Fatalf("backoff(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestShouldTripNeedsMinimumRequests(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.shouldTrip(gobreaker.Counts{Requests: 5, TotalFailures: 5}) {
		t.Fatalf("must not trip below minimum request count")
	}
	if !cfg.shouldTrip(gobreaker.Counts{Requests: 10, TotalFailures: 5}) {
		t.Fatalf("expected trip at failure ratio")
	}
	if cfg.shouldTrip(gobreaker.Counts{Requests: 10, TotalFailures: 4}) {
		t.Fatalf("must not trip below failure ratio")
	}
}
