package notecal

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Field is one key:value line from an event source, in encounter order.
// Both the fenced-block parser and the ICS parser reduce their input to an
// ordered field list interpreted by buildEvent.
type Field struct {
	Key   string
	Value string
}

var (
	eventBlockPattern = regexp.MustCompile("(?m)^[ \t]*```mycalendar-event[ \t]*\r?\n((?s:.*?))^[ \t]*```[ \t]*\r?$")
	alarmBlockPattern = regexp.MustCompile("(?m)^[ \t]*```mycalendar-alarm[ \t]*\r?\n((?s:.*?))^[ \t]*```[ \t]*\r?$")
	fieldLinePattern  = regexp.MustCompile(`^\s*([A-Za-z0-9_]+)\s*:\s*(.*)$`)
)

// ParseEvents extracts every fenced mycalendar-event block from a note body
// and returns the events that parse successfully. Malformed blocks, unknown
// keys and unparsable fields are skipped silently; a block whose start cannot
// be resolved contributes no event at all. Hand-edited notes must never
// break rendering, so this function has no error return.
func ParseEvents(sourceID, titleFallback, body string) []Event {
	var events []Event
	for _, block := range eventBlockPattern.FindAllStringSubmatch(body, -1) {
		fields := parseFieldLines(block[1])
		if ev, ok := buildEvent(sourceID, titleFallback, fields); ok {
			events = append(events, ev)
		}
	}
	return events
}

// ParseAlarmNotes extracts previously materialized alarm blocks from a note.
func ParseAlarmNotes(note Note) []AlarmNote {
	var alarms []AlarmNote
	for _, block := range alarmBlockPattern.FindAllStringSubmatch(note.Body, -1) {
		alarm := AlarmNote{NoteID: note.ID}
		whenOK := false
		for _, f := range parseFieldLines(block[1]) {
			switch strings.ToLower(f.Key) {
			case "title":
				alarm.Title = f.Value
			case "uid":
				alarm.UID = f.Value
			case "recurrence_id":
				alarm.RecurrenceID = f.Value
			case "when":
				if t, err := ParseDateText(f.Value, ""); err == nil {
					alarm.When = t
					whenOK = true
				}
			}
		}
		if whenOK {
			alarms = append(alarms, alarm)
		}
	}
	return alarms
}

func parseFieldLines(block string) []Field {
	var fields []Field
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimRight(line, "\r")
		m := fieldLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		fields = append(fields, Field{Key: strings.ToLower(m[1]), Value: strings.TrimSpace(m[2])})
	}
	return fields
}

// buildEvent interprets an ordered field list as a single event. Fields are
// processed in line order, so a tz declared after a date field does not
// affect that field's interpretation; this single-pass behavior is load
// bearing for hand-written notes and covered by tests.
func buildEvent(sourceID, titleFallback string, fields []Field) (Event, bool) {
	ev := Event{
		ID:             sourceID,
		Repeat:         RepeatNone,
		RepeatInterval: 1,
	}

	tzSeen := ""
	var start *time.Time

	for _, f := range fields {
		switch f.Key {
		case "title":
			ev.Title = f.Value
		case "tz":
			tzSeen = f.Value
			ev.TZ = f.Value
		case "start":
			if t, err := ParseDateText(f.Value, tzSeen); err == nil {
				tt := t
				start = &tt
			} else {
				start = nil
			}
		case "end":
			if t, err := ParseDateText(f.Value, tzSeen); err == nil {
				tt := t
				ev.EndUTC = &tt
			} else {
				ev.EndUTC = nil
			}
		case "repeat_until":
			if t, err := ParseDateText(f.Value, tzSeen); err == nil {
				tt := t
				ev.RepeatUntilUTC = &tt
			} else {
				ev.RepeatUntilUTC = nil
			}
		case "repeat":
			ev.Repeat = parseRepeatFrequency(f.Value)
		case "repeat_interval":
			ev.RepeatInterval = parseRepeatInterval(f.Value)
		case "byweekday":
			ev.ByWeekdays = parseWeekdayList(f.Value)
		case "bymonthday":
			if n, err := strconv.Atoi(f.Value); err == nil && n >= 1 && n <= 31 {
				ev.ByMonthDay = n
			}
		case "all_day":
			if b, ok := parseTolerantBool(f.Value); ok {
				bb := b
				ev.AllDay = &bb
			}
		case "color":
			ev.Color = f.Value
		case "location":
			ev.Location = f.Value
		case "description":
			ev.Description = f.Value
		case "uid":
			ev.UID = f.Value
		case "recurrence_id":
			ev.RecurrenceID = f.Value
		case "valarm":
			var a Alarm
			if err := json.Unmarshal([]byte(f.Value), &a); err == nil && strings.TrimSpace(a.Trigger) != "" {
				ev.Alarms = append(ev.Alarms, a)
			}
		}
	}

	if start == nil {
		return Event{}, false
	}
	ev.StartUTC = *start

	if ev.Title == "" {
		ev.Title = titleFallback
	}

	normalizeAllDayEnd(&ev)

	return ev, true
}

// normalizeAllDayEnd converts an exclusive all-day end to an inclusive one.
// An absent or non-sensical end falls back to start plus a day minus 1ms.
func normalizeAllDayEnd(ev *Event) {
	if !ev.IsAllDay() {
		return
	}

	if ev.EndUTC != nil && ev.EndUTC.After(ev.StartUTC) {
		end := ev.EndUTC.Add(-time.Millisecond)
		ev.EndUTC = &end
		return
	}

	end := ev.StartUTC.Add(24*time.Hour - time.Millisecond)
	ev.EndUTC = &end
}

func parseRepeatFrequency(s string) RepeatFrequency {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily":
		return RepeatDaily
	case "weekly":
		return RepeatWeekly
	case "monthly":
		return RepeatMonthly
	case "yearly":
		return RepeatYearly
	default:
		return RepeatNone
	}
}

func parseRepeatInterval(s string) int {
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && n >= 1 {
		return n
	}
	return 1
}

// parseWeekdayList parses comma-separated two-letter weekday codes.
// Unrecognized tokens are dropped; duplicates and order are preserved; an
// empty result is nil, never an empty slice.
func parseWeekdayList(s string) []Weekday {
	var days []Weekday
	for _, token := range strings.Split(s, ",") {
		if wd, ok := ParseWeekdayCode(token); ok {
			days = append(days, wd)
		}
	}
	return days
}

func parseTolerantBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true, true
	case "false", "0", "no":
		return false, true
	default:
		return false, false
	}
}
