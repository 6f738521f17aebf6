package notecal

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	maxTitleLen       = 500
	maxLocationLen    = 1000
	maxDescriptionLen = 10000
)

// Colors are emitted only when they match the strict hex form; anything
// else is dropped rather than passed through verbatim.
var hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{3,6}$`)

// SerializeEvent renders an event back into fenced-block text. Field order
// is fixed: changing it breaks diff-stability for hand-edited notes and for
// byte-identical re-import detection.
func SerializeEvent(ev Event) string {
	var b strings.Builder
	b.WriteString("```mycalendar-event\n")

	writeField(&b, "title", sanitizeSingleLine(ev.Title, maxTitleLen))
	writeField(&b, "start", formatDateTimeUTC(ev.StartUTC))
	if ev.EndUTC != nil {
		end := *ev.EndUTC
		// All-day ends are stored inclusive; emit the exclusive form so a
		// re-parse normalizes back to the same instant.
		if ev.IsAllDay() {
			end = end.Add(time.Millisecond)
		}
		writeField(&b, "end", formatDateTimeUTC(end))
	}
	if ev.TZ != "" {
		writeField(&b, "tz", sanitizeSingleLine(ev.TZ, 0))
	}
	if hexColorPattern.MatchString(ev.Color) {
		writeField(&b, "color", ev.Color)
	}
	if ev.Location != "" {
		writeField(&b, "location", sanitizeSingleLine(ev.Location, maxLocationLen))
	}
	if ev.Description != "" {
		writeField(&b, "description", sanitizeMultiLine(ev.Description, maxDescriptionLen))
	}

	if len(ev.Alarms) > 0 {
		b.WriteString("\n")
		for _, a := range ev.Alarms {
			if data, err := json.Marshal(a); err == nil {
				writeField(&b, "valarm", sanitizeSingleLine(string(data), 0))
			}
		}
	}

	if ev.Repeat != RepeatNone || ev.AllDay != nil {
		b.WriteString("\n")
	}
	if ev.Repeat != RepeatNone {
		writeField(&b, "repeat", string(ev.Repeat))
		interval := ev.RepeatInterval
		if interval < 1 {
			interval = 1
		}
		writeField(&b, "repeat_interval", strconv.Itoa(interval))
		if ev.RepeatUntilUTC != nil {
			writeField(&b, "repeat_until", formatDateTimeUTC(*ev.RepeatUntilUTC))
		}
		if len(ev.ByWeekdays) > 0 {
			codes := make([]string, 0, len(ev.ByWeekdays))
			for _, wd := range ev.ByWeekdays {
				codes = append(codes, wd.Code())
			}
			writeField(&b, "byweekday", strings.Join(codes, ","))
		}
		if ev.ByMonthDay >= 1 && ev.ByMonthDay <= 31 {
			writeField(&b, "bymonthday", strconv.Itoa(ev.ByMonthDay))
		}
	}
	if ev.AllDay != nil {
		writeField(&b, "all_day", strconv.FormatBool(*ev.AllDay))
	}

	if ev.UID != "" {
		b.WriteString("\n")
		writeField(&b, "uid", sanitizeSingleLine(ev.UID, 0))
		if ev.RecurrenceID != "" {
			writeField(&b, "recurrence_id", sanitizeSingleLine(ev.RecurrenceID, 0))
		}
	}

	b.WriteString("```\n")
	return b.String()
}

func writeField(b *strings.Builder, key, value string) {
	b.WriteString(key)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\n")
}

// sanitizeSingleLine neutralizes backticks (so values cannot break out of
// the fence), collapses newlines to spaces and truncates. maxLen 0 means
// unbounded.
func sanitizeSingleLine(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "`", "'")
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return truncateRunes(s, maxLen)
}

// sanitizeMultiLine keeps newlines but still neutralizes backticks.
func sanitizeMultiLine(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "`", "'")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return truncateRunes(s, maxLen)
}

func truncateRunes(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}

// SerializeAlarmNote renders the fenced block body of a materialized alarm
// note.
func SerializeAlarmNote(title, uid, recurrenceID string, when time.Time) string {
	var b strings.Builder
	b.WriteString("```mycalendar-alarm\n")
	writeField(&b, "title", sanitizeSingleLine(title, maxTitleLen))
	writeField(&b, "uid", sanitizeSingleLine(uid, 0))
	writeField(&b, "recurrence_id", sanitizeSingleLine(recurrenceID, 0))
	writeField(&b, "when", formatDateTimeUTC(when))
	b.WriteString("```\n")
	return b.String()
}

// escapeICSText applies RFC 5545 text escaping. Backslash goes first so
// already-escaped characters are not escaped twice.
func escapeICSText(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, ";", `\;`)
	s = strings.ReplaceAll(s, ",", `\,`)
	s = strings.ReplaceAll(s, "\r\n", `\n`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}

// BuildICSDocument renders concrete occurrences as an iCalendar document.
// Each VEVENT carries the occurrence id as its UID, which keeps exported
// instances unique even for recurring events. stamp becomes DTSTAMP and is
// passed in by the caller so output stays deterministic under test.
func BuildICSDocument(occs []Occurrence, stamp time.Time) string {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\n")
	b.WriteString("VERSION:2.0\n")
	b.WriteString("PRODID:-//notecal//calendar export//EN\n")

	for _, occ := range occs {
		b.WriteString("BEGIN:VEVENT\n")
		b.WriteString("UID:" + occ.OccurrenceID + "\n")
		b.WriteString("DTSTAMP:" + formatICSDateTimeUTC(stamp) + "\n")

		if occ.IsAllDay() {
			b.WriteString("DTSTART;VALUE=DATE:" + formatICSDate(occ.Start) + "\n")
			// Inclusive stored end back to the exclusive DATE convention.
			b.WriteString("DTEND;VALUE=DATE:" + formatICSDate(occ.End.Add(time.Millisecond)) + "\n")
		} else {
			b.WriteString("DTSTART:" + formatICSDateTimeUTC(occ.Start) + "\n")
			if !occ.End.Equal(occ.Start) {
				b.WriteString("DTEND:" + formatICSDateTimeUTC(occ.End) + "\n")
			}
		}

		b.WriteString("SUMMARY:" + escapeICSText(occ.Title) + "\n")
		if occ.Location != "" {
			b.WriteString("LOCATION:" + escapeICSText(occ.Location) + "\n")
		}
		if occ.Description != "" {
			b.WriteString("DESCRIPTION:" + escapeICSText(occ.Description) + "\n")
		}
		if hexColorPattern.MatchString(occ.Color) {
			b.WriteString("X-COLOR:" + occ.Color + "\n")
		}

		for _, a := range occ.Alarms {
			b.WriteString("BEGIN:VALARM\n")
			if a.Related == "END" {
				b.WriteString("TRIGGER;RELATED=END:" + a.Trigger + "\n")
			} else {
				b.WriteString("TRIGGER:" + a.Trigger + "\n")
			}
			action := a.Action
			if action == "" {
				action = "DISPLAY"
			}
			b.WriteString("ACTION:" + action + "\n")
			if a.Description != "" {
				b.WriteString("DESCRIPTION:" + escapeICSText(a.Description) + "\n")
			}
			b.WriteString("END:VALARM\n")
		}

		b.WriteString("END:VEVENT\n")
	}

	b.WriteString("END:VCALENDAR\n")
	return b.String()
}
