// Package timeparse parses the timestamp formats that appear in ledger
// files and message Date headers, normalizing every result to a single
// location so ordering comparisons are meaningful.
package timeparse

import (
	"fmt"
	"strings"
	"time"
)

// zoned layouts carry their own offset; the parsed instant is converted to
// the target location.
var zonedLayouts = []string{
	"Mon, 2 Jan 2006 15:04:05 -0700", // RFC 2822 with numeric zone
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC3339, // 2006-01-02T15:04:05Z and offset forms
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15Z07:00",
}

// naive layouts carry no zone; they are interpreted in the target location.
// Historical ledger files were written in several of these.
var naiveLayouts = []string{
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02T15:04:05",
	"02/01/2006 15:04:05",
	"2006-01-02",
	"2006/01/02",
}

// Parse converts a timestamp string in any accepted format into a time in
// loc. A trailing " (UTC)" comment, as produced by some mail agents, is
// stripped before parsing.
func Parse(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s := strings.TrimSpace(value)
	if strings.HasSuffix(s, " (UTC)") {
		s = strings.TrimSuffix(s, " (UTC)")
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(loc), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("timeparse: %q does not match any known format", value)
}

// Location resolves a timezone name, falling back to UTC on failure.
func Location(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
