// Package notecal turns free-text notes containing fenced event blocks (or
// iCalendar documents) into a normalized recurring-event model, and expands
// that model into concrete occurrences within an arbitrary time window for
// display, alarm scheduling and ICS export.
package notecal

import (
	"fmt"
	"strings"
	"time"
)

// RepeatFrequency is the recurrence frequency of an event.
type RepeatFrequency string

const (
	RepeatNone    RepeatFrequency = "none"
	RepeatDaily   RepeatFrequency = "daily"
	RepeatWeekly  RepeatFrequency = "weekly"
	RepeatMonthly RepeatFrequency = "monthly"
	RepeatYearly  RepeatFrequency = "yearly"
)

// Weekday numbers days Monday=0 through Sunday=6, matching the two-letter
// codes used in event blocks and RRULE BYDAY values.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayCodes = [7]string{"MO", "TU", "WE", "TH", "FR", "SA", "SU"}

// Code returns the two-letter weekday code, e.g. "MO" for Monday.
func (w Weekday) Code() string {
	if w < 0 || w > 6 {
		return ""
	}
	return weekdayCodes[w]
}

// ParseWeekdayCode maps a two-letter code like "WE" to a Weekday.
func ParseWeekdayCode(code string) (Weekday, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for i, c := range weekdayCodes {
		if c == code {
			return Weekday(i), true
		}
	}
	return 0, false
}

// TimeWeekday converts to the standard library's Sunday-based weekday.
func (w Weekday) TimeWeekday() time.Weekday {
	return time.Weekday((int(w) + 1) % 7)
}

// FromTimeWeekday converts a standard library weekday to the Monday-based numbering.
func FromTimeWeekday(wd time.Weekday) Weekday {
	return Weekday((int(wd) + 6) % 7)
}

// Alarm describes a single VALARM-style trigger attached to an event.
// Trigger is either a signed ISO-8601 duration relative to the occurrence
// start or end (per Related), or an absolute date-time.
type Alarm struct {
	Trigger     string `json:"trigger"`
	Related     string `json:"related,omitempty"`
	Action      string `json:"action,omitempty"`
	Description string `json:"description,omitempty"`
	Summary     string `json:"summary,omitempty"`
	Repeat      int    `json:"repeat,omitempty"`
	Duration    string `json:"duration,omitempty"`
}

// Event is the canonical in-memory representation produced by both the
// fenced-block parser and the ICS parser. StartUTC is always present and in
// UTC on any event that survives parsing; every other field is optional.
type Event struct {
	ID          string
	Title       string
	Description string
	Location    string
	Color       string

	StartUTC time.Time
	EndUTC   *time.Time
	TZ       string

	Repeat         RepeatFrequency
	RepeatInterval int
	RepeatUntilUTC *time.Time
	ByWeekdays     []Weekday
	ByMonthDay     int

	AllDay *bool

	UID          string
	RecurrenceID string

	Alarms []Alarm
}

// Duration returns the event span; zero when no end is set.
func (e *Event) Duration() time.Duration {
	if e.EndUTC == nil {
		return 0
	}
	return e.EndUTC.Sub(e.StartUTC)
}

// Identity returns the (uid, recurrence_id) pair used to match events across
// re-imports, and whether the event has a stable identity at all. An event
// with no UID is always treated as new.
func (e *Event) Identity() (string, bool) {
	uid := strings.TrimSpace(e.UID)
	if uid == "" {
		return "", false
	}
	return uid + "|" + strings.TrimSpace(e.RecurrenceID), true
}

// IsAllDay reports whether the all-day flag is set and true.
func (e *Event) IsAllDay() bool {
	return e.AllDay != nil && *e.AllDay
}

// Occurrence is one concrete time instance of a (possibly recurring) event,
// computed on demand for a query window and never persisted.
type Occurrence struct {
	Event
	OccurrenceID string
	Start        time.Time
	End          time.Time
}

func occurrenceID(eventID string, start time.Time) string {
	return fmt.Sprintf("%s#%d", eventID, start.UnixMilli())
}

// Note is the collaborator record the core consumes; the host owns storage.
type Note struct {
	ID       string
	Title    string
	Body     string
	ParentID string
}

// Folder is a flat folder record, consumed only to resolve a target folder
// for newly created notes.
type Folder struct {
	ID       string
	Title    string
	ParentID string
}

// AlarmNote is a previously materialized alarm note, recognized by its
// fenced mycalendar-alarm block.
type AlarmNote struct {
	NoteID       string
	Title        string
	UID          string
	RecurrenceID string
	When         time.Time
}
