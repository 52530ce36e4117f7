package ingestion

import (
	"errors"
	"strings"
	"time"
)

// ErrUnparseableDate indicates a meeting date that matched no supported format.
var ErrUnparseableDate = errors.New("unparseable date")

// meetingDateLayouts lists the accepted date formats in priority order.
// ISO 8601 variants come first; ambiguous slash/dash forms are last-resort
// fallbacks for legacy feeds. First successful parse wins.
var meetingDateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"02-01-2006",
	"02/01/2006",
}

// ParseMeetingDate parses a raw date string from meetingInfo.date into a UTC
// calendar date. Failure is a record-level validation error.
func ParseMeetingDate(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, ErrUnparseableDate
	}

	for _, layout := range meetingDateLayouts {
		t, err := time.Parse(layout, trimmed)
		if err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, ErrUnparseableDate
}
