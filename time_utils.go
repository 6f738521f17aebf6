package notecal

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Accepted shapes: YYYY-MM-DD[ T]HH:MM[:SS][+HH:MM|+HHMM|Z], or a bare
// YYYY-MM-DD date.
var dateTextPattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})(?:[T ](\d{2}):(\d{2})(?::(\d{2}))?)?(Z|[+-]\d{2}:?\d{2})?$`)

// ParseDateText resolves free-form date-time text to a UTC instant.
//
// Resolution order: an explicit UTC offset or trailing Z parses as an
// absolute instant regardless of tz; otherwise a declared, recognized IANA
// zone interprets the wall clock via ZonedTimeToUTC (a DST gap fails the
// field); a declared but unrecognized zone fails the field; with no zone the
// wall clock is interpreted as device-local time.
func ParseDateText(value, tz string) (time.Time, error) {
	m := dateTextPattern.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return time.Time{}, newError("parse.datetext", "unrecognized date text: "+value, ErrInvalidDateText)
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	hour, minute, second := 0, 0, 0
	if m[4] != "" {
		hour, _ = strconv.Atoi(m[4])
		minute, _ = strconv.Atoi(m[5])
		if m[6] != "" {
			second, _ = strconv.Atoi(m[6])
		}
	}
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || second > 60 {
		return time.Time{}, newError("parse.datetext", "out-of-range component: "+value, ErrInvalidDateText)
	}

	if m[7] != "" {
		offset, err := parseUTCOffset(m[7])
		if err != nil {
			return time.Time{}, err
		}
		return time.Date(year, time.Month(month), day, hour, minute, second, 0, offset).UTC(), nil
	}

	if tz != "" {
		if !isValidZone(tz) {
			return time.Time{}, newError("parse.datetext", "unrecognized zone "+tz, ErrUnknownTimeZone)
		}
		return ZonedTimeToUTC(year, time.Month(month), day, hour, minute, second, tz, PreferEarlier)
	}

	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.Local).UTC(), nil
}

func parseUTCOffset(s string) (*time.Location, error) {
	if s == "Z" {
		return time.UTC, nil
	}

	sign := 1
	if s[0] == '-' {
		sign = -1
	}
	rest := strings.ReplaceAll(s[1:], ":", "")
	if len(rest) != 4 {
		return nil, newError("parse.offset", "malformed offset: "+s, ErrInvalidDateText)
	}

	hours, err := strconv.Atoi(rest[:2])
	if err != nil {
		return nil, newError("parse.offset", "malformed offset: "+s, ErrInvalidDateText)
	}
	minutes, err := strconv.Atoi(rest[2:])
	if err != nil {
		return nil, newError("parse.offset", "malformed offset: "+s, ErrInvalidDateText)
	}

	return time.FixedZone(s, sign*(hours*3600+minutes*60)), nil
}

// icsDateTimeToText rewrites the three iCalendar DTSTART/DTEND value shapes
// into the date-text form understood by ParseDateText. isDate reports the
// bare 8-digit date form, which implies an all-day event.
func icsDateTimeToText(value string) (text string, isDate bool, ok bool) {
	value = strings.TrimSpace(value)

	switch {
	case len(value) == 8 && allDigits(value):
		return value[:4] + "-" + value[4:6] + "-" + value[6:8], true, true
	case len(value) == 16 && value[8] == 'T' && value[15] == 'Z' && allDigits(value[:8]) && allDigits(value[9:15]):
		return value[:4] + "-" + value[4:6] + "-" + value[6:8] + "T" +
			value[9:11] + ":" + value[11:13] + ":" + value[13:15] + "Z", false, true
	case len(value) == 15 && value[8] == 'T' && allDigits(value[:8]) && allDigits(value[9:]):
		return value[:4] + "-" + value[4:6] + "-" + value[6:8] + "T" +
			value[9:11] + ":" + value[11:13] + ":" + value[13:15], false, true
	}

	return "", false, false
}

func allDigits(s string) bool {
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return len(s) > 0
}

// formatDateTimeUTC renders an instant with an explicit +00:00 offset, the
// round-trip-safe form emitted by the serializer.
func formatDateTimeUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05+00:00")
}

// formatICSDateTimeUTC renders the compact iCalendar UTC form.
func formatICSDateTimeUTC(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

func formatICSDate(t time.Time) string {
	return t.UTC().Format("20060102")
}
