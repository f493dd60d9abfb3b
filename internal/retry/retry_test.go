package retry

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"
)

func TestClassifyTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"econnrefused", syscall.ECONNREFUSED, true},
		{"wrapped econnrefused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"eacces", syscall.EACCES, false},
		{"enoent", syscall.ENOENT, false},
		{"bare timeout", errors.New("request timeout"), true},
		{"connection reset", errors.New("connection reset by peer"), true},
		{"429 preamble", errors.New("http status 429 too many requests"), true},
		{"401", errors.New("401 unauthorized"), false},
		{"403", errors.New("403 forbidden"), false},
		{"validation_error", errors.New("validation_error: missing field"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Fatalf("Classify(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestDelayWithinJitterBounds(t *testing.T) {
	base := 10 * time.Millisecond
	max := 1 * time.Second
	for n := 0; n < 6; n++ {
		target := base << n
		if target > max {
			target = max
		}
		lo := time.Duration(float64(target) * 0.75)
		hi := time.Duration(float64(target) * 1.25)
		for i := 0; i < 20; i++ {
			d := Delay(n, base, max)
			if d < lo || d > hi {
				t.Fatalf("attempt %d: delay %v out of bounds [%v, %v]", n, d, lo, hi)
			}
		}
	}
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	cfg := Config{MaxRetries: 3, BaseDelay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond, TotalBudget: time.Second}
	attempts := 0
	start := time.Now()
	err := cfg.Do(context.Background(), "connect", func(ctx context.Context) error {
		attempts++
		if attempts == 1 {
			return syscall.ECONNREFUSED
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Fatalf("elapsed %v too long for a single short retry", elapsed)
	}
}

func TestDoSurfacesNonTransientImmediately(t *testing.T) {
	cfg := Config{MaxRetries: 3, BaseDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, TotalBudget: time.Second}
	attempts := 0
	wantErr := errors.New("validation_error: bad args")
	err := cfg.Do(context.Background(), "call", func(ctx context.Context) error {
		attempts++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Do() error = %v, want %v", err, wantErr)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (no retry for non-transient)", attempts)
	}
}

func TestDoExhaustsRetriesAndSurfacesLastError(t *testing.T) {
	cfg := Config{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, TotalBudget: time.Second}
	attempts := 0
	err := cfg.Do(context.Background(), "connect", func(ctx context.Context) error {
		attempts++
		return syscall.ECONNREFUSED
	})
	if !errors.Is(err, syscall.ECONNREFUSED) {
		t.Fatalf("Do() error = %v", err)
	}
	if attempts != 3 { // initial + 2 retries
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestDoStopsWhenBudgetExhausted(t *testing.T) {
	cfg := Config{MaxRetries: 5, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, TotalBudget: 500 * time.Millisecond}
	attempts := 0
	err := cfg.Do(context.Background(), "connect", func(ctx context.Context) error {
		attempts++
		if attempts == 1 {
			time.Sleep(600 * time.Millisecond) // consumes the whole budget inside fn itself
		}
		return syscall.ECONNREFUSED
	})
	if !errors.Is(err, syscall.ECONNREFUSED) {
		t.Fatalf("Do() error = %v", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (budget already exhausted before a retry could fit)", attempts)
	}
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("MCP_MAX_RETRIES", "")
	t.Setenv("MCP_RETRY_DELAY", "")
	t.Setenv("MCP_TIMEOUT", "")
	cfg := FromEnv()
	if cfg.MaxRetries != 3 {
		t.Fatalf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.BaseDelay != time.Second {
		t.Fatalf("BaseDelay = %v, want 1s", cfg.BaseDelay)
	}
	if cfg.TotalBudget != 1800*time.Second {
		t.Fatalf("TotalBudget = %v, want 1800s", cfg.TotalBudget)
	}
	if cfg.MaxDelay != 10*time.Second {
		t.Fatalf("MaxDelay = %v, want 10s (clamped)", cfg.MaxDelay)
	}
}

func TestFromEnvInvalidFallsBackToDefault(t *testing.T) {
	t.Setenv("MCP_MAX_RETRIES", "not-a-number")
	t.Setenv("MCP_MAX_RETRIES", "-1")
	cfg := FromEnv()
	if cfg.MaxRetries != 3 {
		t.Fatalf("MaxRetries = %d, want default 3 for invalid input", cfg.MaxRetries)
	}
}
