package utils

import (
	"context"
	"testing"
	"time"
)

func TestAnyToInt(t *testing.T) {
	cases := []struct {
		in   any
		want int
		ok   bool
	}{
		{1080, 1080, true},
		{float64(1920), 1920, true},
		{int64(30), 30, true},
		{" 33 ", 33, true},
		{"abc", 0, false},
		{nil, 0, false},
		{true, 0, false},
	}
	for _, c := range cases {
		got, ok := AnyToInt(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("AnyToInt(%#v) = %d, %v; want %d, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestAnyToBool(t *testing.T) {
	cases := []struct {
		in   any
		want bool
		ok   bool
	}{
		{true, true, true},
		{false, false, true},
		{"true", true, true},
		{"OFF", false, true},
		{float64(1), true, true},
		{0, false, true},
		{"maybe", false, false},
		{nil, false, false},
	}
	for _, c := range cases {
		got, ok := AnyToBool(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("AnyToBool(%#v) = %v, %v; want %v, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 100); got != "short" {
		t.Errorf("unexpected %q", got)
	}
	if got := Truncate("abcdef", 3); got != "abc" {
		t.Errorf("unexpected %q", got)
	}
	if got := Truncate("✓✓✓✓", 2); got != "✓✓" {
		t.Errorf("truncate must not split runes, got %q", got)
	}
	if got := Truncate("abc", 0); got != "" {
		t.Errorf("unexpected %q", got)
	}
}

func TestSleepHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := Sleep(ctx, time.Minute); err == nil {
		t.Fatal("expected context error")
	}
	if time.Since(start) > time.Second {
		t.Fatal("sleep ignored cancellation")
	}
	if err := Sleep(context.Background(), 0); err != nil {
		t.Fatalf("zero sleep: %v", err)
	}
}
