// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dates resolves user-supplied date inputs into the inclusive UTC
// window used for message filtering, and parses Graph API timestamps.
package dates

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrParse indicates a date input that could not be interpreted.
var ErrParse = errors.New("could not parse date value")

// Accepted layouts for explicit date inputs, tried in order.
var inputLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"2006/01/02",
	"02.01.2006",
}

// Graph timestamps are RFC 3339, usually with fractional seconds
// ("2025-01-01T09:00:00.123Z").
var graphLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
}

// ParseGraphTime parses a Graph API timestamp. The zero time and false are
// returned for empty or malformed values; callers treat that as "no
// timestamp" rather than an error.
func ParseGraphTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range graphLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// keywordDate resolves relative keywords. The second return reports whether
// the keyword names a span that should extend to today when no explicit end
// date was given ("last week" means last-week-until-now, not a single day).
func keywordDate(value string, today time.Time) (time.Time, bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "today":
		return today, false, nil
	case "yesterday":
		return today.AddDate(0, 0, -1), false, nil
	case "last week":
		return today.AddDate(0, 0, -7), true, nil
	case "last month":
		return today.AddDate(0, 0, -30), true, nil
	}
	return time.Time{}, false, fmt.Errorf("%w: %q", ErrParse, value)
}

// parseDate resolves a single date input, keyword or explicit.
func parseDate(value string, today time.Time) (time.Time, bool, error) {
	if d, span, err := keywordDate(value, today); err == nil {
		return d, span, nil
	}
	for _, layout := range inputLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC().Truncate(24 * time.Hour), false, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("%w: %q", ErrParse, value)
}

// ResolveRange converts CLI-style start/end inputs into an inclusive UTC
// datetime window. Either input may be empty: a missing start means today, a
// missing end means the start day itself (or today, if the start was a
// spanning keyword like "last week"). The end of the window is clamped to
// the final second of its day so the range is inclusive on both sides.
func ResolveRange(startValue, endValue string, now time.Time) (time.Time, time.Time, error) {
	today := now.UTC().Truncate(24 * time.Hour)

	start := today
	spanToToday := false
	if startValue != "" {
		var err error
		start, spanToToday, err = parseDate(startValue, today)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}

	end := start
	switch {
	case endValue != "":
		var err error
		end, _, err = parseDate(endValue, today)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	case spanToToday:
		end = today
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end date precedes start date", ErrParse)
	}

	endOfDay := end.AddDate(0, 0, 1).Add(-time.Second)
	return start, endOfDay, nil
}

// Fragment derives the date portion of an output filename: a single date
// when the window is one day, else "start_end".
func Fragment(start, end time.Time) string {
	s := start.UTC().Format("2006-01-02")
	e := end.UTC().Format("2006-01-02")
	if s == e {
		return s
	}
	return s + "_" + e
}

// RangeLabel is the human-readable date range shown in rendered headers.
func RangeLabel(start, end time.Time) string {
	s := start.UTC().Format("2006-01-02")
	e := end.UTC().Format("2006-01-02")
	if s == e {
		return s
	}
	return s + " to " + e
}
