package marketdata

import (
	"errors"
	"testing"
	"time"
)

// TestParseInterval maps interval strings to multiplier/timespan pairs
func TestParseInterval(t *testing.T) {
	cases := []struct {
		interval   string
		multiplier int
		timespan   string
	}{
		{"1d", 1, "day"},
		{"4h", 4, "hour"},
		{"30m", 30, "minute"},
		{"1w", 1, "week"},
	}
	for _, c := range cases {
		multiplier, timespan, err := parseInterval(c.interval)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", c.interval, err)
			continue
		}
		if multiplier != c.multiplier || timespan != c.timespan {
			t.Errorf("%s: got %d/%s, want %d/%s", c.interval, multiplier, timespan, c.multiplier, c.timespan)
		}
	}

	for _, bad := range []string{"", "d", "0d", "-5m", "10x"} {
		if _, _, err := parseInterval(bad); err == nil {
			t.Errorf("expected error for interval %q", bad)
		}
	}
}

// TestParsePeriod maps lookback strings to date ranges
func TestParsePeriod(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	start, end, err := parsePeriod("60d", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !end.Equal(now) {
		t.Errorf("end = %s, want %s", end, now)
	}
	if want := now.AddDate(0, 0, -60); !start.Equal(want) {
		t.Errorf("start = %s, want %s", start, want)
	}

	start, _, err = parsePeriod("6mo", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := now.AddDate(0, -6, 0); !start.Equal(want) {
		t.Errorf("6mo start = %s, want %s", start, want)
	}

	start, _, err = parsePeriod("1y", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := now.AddDate(-1, 0, 0); !start.Equal(want) {
		t.Errorf("1y start = %s, want %s", start, want)
	}

	start, end, err = parsePeriod("2024-01-02/2024-03-01", now)
	if err != nil {
		t.Fatalf("unexpected error for explicit range: %v", err)
	}
	if start.Format("2006-01-02") != "2024-01-02" || end.Format("2006-01-02") != "2024-03-01" {
		t.Errorf("explicit range parsed as %s/%s", start, end)
	}

	for _, bad := range []string{"", "d", "0d", "5x", "2024-03-01/2024-01-02"} {
		if _, _, err := parsePeriod(bad, now); err == nil {
			t.Errorf("expected error for period %q", bad)
		}
	}
}

// TestProviderErrorCategory preserves the category through wrapping
func TestProviderErrorCategory(t *testing.T) {
	inner := errors.New("connection refused")
	err := NewProviderError(ErrorNetwork, "AAPL", "1d", inner)

	if CategoryOf(err) != ErrorNetwork {
		t.Errorf("category = %s, want %s", CategoryOf(err), ErrorNetwork)
	}
	if !errors.Is(err, inner) {
		t.Error("expected the wrapped error to unwrap")
	}
	if CategoryOf(errors.New("plain")) != ErrorUnknown {
		t.Error("expected unknown category for a plain error")
	}
}
