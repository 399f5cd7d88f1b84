package jwt

import (
	"errors"
	"testing"
	"time"
)

func TestParseDurationSpec(t *testing.T) {
	cases := map[string]time.Duration{
		"7d":  7 * 24 * time.Hour,
		"30d": 30 * 24 * time.Hour,
		"12h": 12 * time.Hour,
		"15m": 15 * time.Minute,
		" 1h": time.Hour,
	}
	for spec, want := range cases {
		got, err := ParseDurationSpec(spec)
		if err != nil {
			t.Fatalf("%q: unexpected error %v", spec, err)
		}
		if got != want {
			t.Fatalf("%q: got %v want %v", spec, got, want)
		}
	}
}

func TestParseDurationSpecRejectsUnknownUnit(t *testing.T) {
	for _, spec := range []string{"10s", "2w", "5y"} {
		if _, err := ParseDurationSpec(spec); !errors.Is(err, ErrUnknownDurationUnit) {
			t.Fatalf("%q: expected ErrUnknownDurationUnit, got %v", spec, err)
		}
	}
}

func TestParseDurationSpecRejectsMalformed(t *testing.T) {
	for _, spec := range []string{"", "d", "0d", "-1h", "abc", "1.5h"} {
		if _, err := ParseDurationSpec(spec); err == nil {
			t.Fatalf("%q: expected error", spec)
		}
	}
}

func TestParseDurationSpecRejectsOverflow(t *testing.T) {
	for _, spec := range []string{"200000d", "106752d", "2562048h", "153722868m", "99999999999999d"} {
		if d, err := ParseDurationSpec(spec); err == nil {
			t.Fatalf("%q: expected error, got %v", spec, d)
		}
	}
	d, err := ParseDurationSpec("106751d")
	if err != nil || d != 106751*24*time.Hour {
		t.Fatalf("106751d: got %v %v", d, err)
	}
}

func TestComputeExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	got, err := ComputeExpiry("2d", now)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !got.Equal(now.Add(48 * time.Hour)) {
		t.Fatalf("unexpected expiry %v", got)
	}
	if _, err := ComputeExpiry("3x", now); err == nil {
		t.Fatal("expected unknown unit error")
	}
}
