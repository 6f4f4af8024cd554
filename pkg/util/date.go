package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// ParseClock parses "HH:MM" or "HH:MM:SS" into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	limits := []int{23, 59, 59}
	units := []time.Duration{time.Hour, time.Minute, time.Second}
	var d time.Duration
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] {
			return 0, fmt.Errorf("invalid clock %q", s)
		}
		d += time.Duration(n) * units[i]
	}
	return d, nil
}

// Session is a recurring trading window in a fixed time zone. Both ends are
// inclusive.
type Session struct {
	loc      *time.Location
	open     time.Duration
	close    time.Duration
	weekdays map[time.Weekday]bool
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// NewSession builds a Session. Weekdays are three-letter names; empty means Mon-Fri.
func NewSession(tz, open, close string, weekdays []string) (*Session, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", tz, err)
	}
	o, err := ParseClock(open)
	if err != nil {
		return nil, err
	}
	c, err := ParseClock(close)
	if err != nil {
		return nil, err
	}
	if c <= o {
		return nil, fmt.Errorf("session close %s must be after open %s", close, open)
	}
	if len(weekdays) == 0 {
		weekdays = []string{"mon", "tue", "wed", "thu", "fri"}
	}
	days := make(map[time.Weekday]bool, len(weekdays))
	for _, w := range weekdays {
		key := strings.ToLower(strings.TrimSpace(w))
		if len(key) > 3 {
			key = key[:3]
		}
		d, ok := weekdayNames[key]
		if !ok {
			return nil, fmt.Errorf("invalid weekday %q", w)
		}
		days[d] = true
	}
	return &Session{loc: loc, open: o, close: c, weekdays: days}, nil
}

func (s *Session) Location() *time.Location { return s.loc }

// IsOpen reports whether t falls inside the window.
func (s *Session) IsOpen(t time.Time) bool {
	local := t.In(s.loc)
	if !s.weekdays[local.Weekday()] {
		return false
	}
	h, m, sec := local.Clock()
	tod := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(sec)*time.Second + time.Duration(local.Nanosecond())
	return tod >= s.open && tod <= s.close
}

// DayKey is the trading day of t in the session's zone, as YYYY-MM-DD.
func (s *Session) DayKey(t time.Time) string {
	return t.In(s.loc).Format("2006-01-02")
}
