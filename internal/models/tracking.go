package models

import (
	"fmt"
	"regexp"
	"strconv"
)

// TrackingPrefix is the human-facing prefix of every tracking id.
const TrackingPrefix = "PEN"

var trackingPattern = regexp.MustCompile(`^PEN-(\d{4})-(\d{3,})$`)

// BuildTrackingID formats a tracking id, e.g. PEN-2026-001. The sequence is
// zero-padded to three digits and grows naturally past 999.
func BuildTrackingID(year, sequence int) string {
	return fmt.Sprintf("%s-%d-%03d", TrackingPrefix, year, sequence)
}

// ValidTrackingID reports whether s is a well-formed tracking id.
func ValidTrackingID(s string) bool {
	return trackingPattern.MatchString(s)
}

// ParseTrackingID extracts the year and sequence from a tracking id.
func ParseTrackingID(s string) (year, sequence int, ok bool) {
	m := trackingPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	year, _ = strconv.Atoi(m[1])
	sequence, _ = strconv.Atoi(m[2])
	return year, sequence, true
}

// NextTrackingSequence scans existing tracking ids and returns the next
// sequence for the given year. Ids for other years or with a foreign format
// are ignored. Starts at 1 when the year has no complaints yet.
func NextTrackingSequence(existing []string, year int) int {
	max := 0
	for _, id := range existing {
		y, seq, ok := ParseTrackingID(id)
		if !ok || y != year {
			continue
		}
		if seq > max {
			max = seq
		}
	}
	return max + 1
}
