package util

import (
	"strconv"
	"testing"
	"time"
	_ "time/tzdata"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestParseClock(t *testing.T) {
	cases := map[string]time.Duration{
		"09:30":    9*time.Hour + 30*time.Minute,
		"16:00":    16 * time.Hour,
		"00:00:15": 15 * time.Second,
	}
	for in, want := range cases {
		got, err := ParseClock(in)
		if err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if got != want {
			t.Fatalf("%s: got %v want %v", in, got, want)
		}
	}
	for _, bad := range []string{"", "9", "24:00", "12:61", "ab:cd"} {
		if _, err := ParseClock(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestSessionIsOpen(t *testing.T) {
	s, err := NewSession("America/New_York", "09:30", "16:00", nil)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	ny := s.Location()

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before open", time.Date(2024, 3, 13, 9, 29, 59, 0, ny), false},
		{"at open", time.Date(2024, 3, 13, 9, 30, 0, 0, ny), true},
		{"midday", time.Date(2024, 3, 13, 12, 0, 0, 0, ny), true},
		{"at close", time.Date(2024, 3, 13, 16, 0, 0, 0, ny), true},
		{"after close", time.Date(2024, 3, 13, 16, 0, 1, 0, ny), false},
		{"saturday", time.Date(2024, 3, 16, 12, 0, 0, 0, ny), false},
		{"sunday", time.Date(2024, 3, 17, 12, 0, 0, 0, ny), false},
		// 14:45 UTC is 10:45 in New York during daylight time
		{"utc input", time.Date(2024, 7, 10, 14, 45, 0, 0, time.UTC), true},
	}
	for _, tc := range cases {
		if got := s.IsOpen(tc.at); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestSessionDayKey(t *testing.T) {
	s, err := NewSession("America/New_York", "09:30", "16:00", []string{"Monday", "tue"})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	// 02:00 UTC on the 12th is still the 11th in New York
	at := time.Date(2024, 3, 12, 2, 0, 0, 0, time.UTC)
	if got := s.DayKey(at); got != "2024-03-11" {
		t.Fatalf("unexpected day key %s", got)
	}
	if s.IsOpen(time.Date(2024, 3, 13, 12, 0, 0, 0, s.Location())) {
		t.Fatalf("wednesday should be closed for a mon/tue session")
	}
}

func TestNewSessionRejectsInvertedWindow(t *testing.T) {
	if _, err := NewSession("UTC", "16:00", "09:30", nil); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := NewSession("UTC", "09:30", "16:00", []string{"funday"}); err == nil {
		t.Fatalf("expected weekday error")
	}
}
