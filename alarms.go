package notecal

import (
	"strings"
	"time"
)

// AlarmRef identifies a previously materialized alarm in external storage.
type AlarmRef struct {
	ID           string
	UID          string
	RecurrenceID string
}

// AlarmInstance is one computed absolute alarm instant for an occurrence.
type AlarmInstance struct {
	Occurrence Occurrence
	Alarm      Alarm
	When       time.Time
}

// AlarmPlan is a materialization plan: instants to create and ids of prior
// alarms superseded by this regeneration. Executing the plan against storage
// is the caller's concern.
type AlarmPlan struct {
	Create   []AlarmInstance
	Obsolete []string
}

// BuildAlarmPlan expands an event over [now, now+rangeDays] and computes the
// absolute instant of every (occurrence, alarm) pair. An absolute trigger is
// used directly; a signed duration offsets the occurrence start
// (RELATED=START, the default) or end. Instants outside the window are
// discarded. Obsolete lists every existing alarm matching the event's
// (uid, recurrence_id) identity; an event with no UID supersedes nothing.
func BuildAlarmPlan(ev Event, existing []AlarmRef, now time.Time, rangeDays int) AlarmPlan {
	plan := AlarmPlan{}

	windowEnd := now.AddDate(0, 0, rangeDays)
	if len(ev.Alarms) > 0 {
		for _, occ := range Expand(ev, now, windowEnd) {
			for _, alarm := range ev.Alarms {
				when, ok := resolveAlarmInstant(alarm, occ)
				if !ok || when.Before(now) || when.After(windowEnd) {
					continue
				}
				plan.Create = append(plan.Create, AlarmInstance{
					Occurrence: occ,
					Alarm:      alarm,
					When:       when,
				})
			}
		}
	}

	uid := strings.TrimSpace(ev.UID)
	if uid == "" {
		return plan
	}
	recID := strings.TrimSpace(ev.RecurrenceID)
	for _, ref := range existing {
		if strings.TrimSpace(ref.UID) == uid && strings.TrimSpace(ref.RecurrenceID) == recID {
			plan.Obsolete = append(plan.Obsolete, ref.ID)
		}
	}

	return plan
}

func resolveAlarmInstant(alarm Alarm, occ Occurrence) (time.Time, bool) {
	trigger := strings.TrimSpace(alarm.Trigger)

	if offset, ok := ParseSignedDuration(trigger); ok {
		base := occ.Start
		if strings.EqualFold(alarm.Related, "END") {
			base = occ.End
		}
		return base.Add(offset), true
	}

	// Not a duration: try the absolute forms, the compact iCalendar one
	// first since VALARM triggers usually come from ICS sources.
	if text, _, ok := icsDateTimeToText(trigger); ok {
		if t, err := ParseDateText(text, ""); err == nil {
			return t, true
		}
	}
	if t, err := ParseDateText(trigger, ""); err == nil {
		return t, true
	}

	return time.Time{}, false
}
