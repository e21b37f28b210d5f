package util

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestRetry(t *testing.T) {
	attempts := 0
	targetAttempts := 3

	err := Retry(context.Background(), nil, "test", 5, 0, func(context.Context) error {
		attempts++
		if attempts < targetAttempts {
			return errors.New("transient error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Retry returned unexpected error: %v", err)
	}
	if attempts != targetAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, targetAttempts)
	}
}

func TestRetryAllFail(t *testing.T) {
	attempts := 0
	maxAttempts := 3

	err := Retry(context.Background(), nil, "test", maxAttempts, 0, func(context.Context) error {
		attempts++
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("Retry should return error when all attempts fail")
	}
	if attempts != maxAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, maxAttempts)
	}
}

func TestRetryPermanent(t *testing.T) {
	sentinel := errors.New("bad request")
	attempts := 0

	err := Retry(context.Background(), nil, "test", 5, 0, func(context.Context) error {
		attempts++
		return Permanent(sentinel)
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("Retry error = %v, want %v", err, sentinel)
	}
	if attempts != 1 {
		t.Errorf("Retry called fn %d times after permanent error, want 1", attempts)
	}
}

func TestRateLimiterBurst(t *testing.T) {
	rl := NewRateLimiter(60, 2)
	current := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	rl.now = func() time.Time { return current }
	rl.lastTime = current

	if !rl.Allow() || !rl.Allow() {
		t.Fatal("expected burst of 2 tokens")
	}
	if rl.Allow() {
		t.Fatal("expected third call to be limited")
	}

	current = current.Add(time.Second)
	if !rl.Allow() {
		t.Fatal("expected a token after one second at 60/min")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0, 1)
	for i := 0; i < 10; i++ {
		if !rl.Allow() {
			t.Fatalf("disabled limiter refused call %d", i)
		}
	}
}

func TestDayHelpers(t *testing.T) {
	d, err := ParseDay("2015-04-04")
	if err != nil {
		t.Fatalf("ParseDay: %v", err)
	}
	if !IsWeekend(d) {
		t.Errorf("%s should be a weekend", FormatDay(d))
	}

	et := time.FixedZone("ET", -4*3600)
	got := Day(time.Date(2015, 4, 6, 23, 0, 0, 0, et))
	if FormatDay(got) != "2015-04-06" || got.Location() != time.UTC {
		t.Errorf("Day = %v, want 2015-04-06 UTC", got)
	}

	days := Weekdays(d, d.AddDate(0, 0, 7))
	if len(days) != 5 {
		t.Errorf("Weekdays returned %d days, want 5", len(days))
	}

	if _, err := ParseDay("04/03/2015"); err == nil {
		t.Error("ParseDay accepted a non ISO date")
	}
}

func TestNewLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerTo(&buf, "debug", "text")
	log.Debug("hello", "k", 1)
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("text handler output = %q", buf.String())
	}

	buf.Reset()
	log = NewLoggerTo(&buf, "warn", "json")
	log.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info record emitted at warn level: %q", buf.String())
	}

	if ParseLevel("bogus") != slog.LevelInfo {
		t.Error("unknown level should default to info")
	}
}
