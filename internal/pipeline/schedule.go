package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule is a parsed five-field cron expression:
// minute hour day-of-month month day-of-week. Each field accepts "*",
// a number, an "a-b" range, a "*/n" or "a-b/n" step, or a comma list of those.
type Schedule struct {
	fields [5]map[int]bool
}

var fieldBounds = [5][2]int{
	{0, 59}, // minute
	{0, 23}, // hour
	{1, 31}, // day of month
	{1, 12}, // month
	{0, 6},  // day of week, Sunday = 0
}

// ParseSchedule parses expr into a Schedule.
func ParseSchedule(expr string) (Schedule, error) {
	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return Schedule{}, fmt.Errorf("pipeline: cron %q: want 5 fields, got %d", expr, len(parts))
	}
	var s Schedule
	for i, part := range parts {
		set, err := parseField(part, fieldBounds[i][0], fieldBounds[i][1])
		if err != nil {
			return Schedule{}, fmt.Errorf("pipeline: cron %q field %d: %w", expr, i+1, err)
		}
		s.fields[i] = set
	}
	return s, nil
}

// parseField returns the set of values a field matches, or nil for "*".
func parseField(field string, lo, hi int) (map[int]bool, error) {
	if field == "*" {
		return nil, nil
	}
	set := make(map[int]bool)
	for _, term := range strings.Split(field, ",") {
		rng, step := term, 1
		if base, s, ok := strings.Cut(term, "/"); ok {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("bad step %q", term)
			}
			rng, step = base, n
		}

		from, to := lo, hi
		if rng != "*" {
			a, b, isRange := strings.Cut(rng, "-")
			var err error
			if from, err = strconv.Atoi(a); err != nil {
				return nil, fmt.Errorf("bad value %q", term)
			}
			to = from
			if isRange {
				if to, err = strconv.Atoi(b); err != nil {
					return nil, fmt.Errorf("bad range %q", term)
				}
			}
		}
		if from < lo || to > hi || from > to {
			return nil, fmt.Errorf("%q outside %d-%d", term, lo, hi)
		}
		for v := from; v <= to; v += step {
			set[v] = true
		}
	}
	return set, nil
}

func (s Schedule) matches(t time.Time) bool {
	vals := [5]int{t.Minute(), t.Hour(), t.Day(), int(t.Month()), int(t.Weekday())}
	for i, set := range s.fields {
		if set != nil && !set[vals[i]] {
			return false
		}
	}
	return true
}

// Next returns the first whole minute after t that the schedule matches,
// looking at most a year ahead.
func (s Schedule) Next(t time.Time) (time.Time, error) {
	candidate := t.Truncate(time.Minute).Add(time.Minute)
	limit := t.AddDate(1, 0, 1)
	for ; candidate.Before(limit); candidate = candidate.Add(time.Minute) {
		if s.matches(candidate) {
			return candidate, nil
		}
	}
	return time.Time{}, fmt.Errorf("pipeline: cron schedule never fires within a year")
}
