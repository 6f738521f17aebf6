package notecal

import (
	"sort"
	"time"
)

// maxExpandIterations bounds every recurrence loop; combined with forward
// seeking it keeps per-query cost proportional to the window, never to
// calendar history.
const maxExpandIterations = 10000

// Expand enumerates the concrete occurrences of an event whose spans
// intersect the UTC window [from, to]. Results are sorted by start instant,
// ties broken by occurrence id. The function is total: an inverted window or
// an event in a degraded state yields an empty slice, never an error.
//
// Daily recurrence is pure UTC arithmetic. Weekly, monthly and yearly
// recurrence reproduce the start's wall-clock time in the event's own zone
// (UTC when none is declared), so occurrences track DST transitions; an
// occurrence landing in a DST gap is skipped.
func Expand(ev Event, from, to time.Time) []Occurrence {
	if to.Before(from) {
		return nil
	}

	var occs []Occurrence
	switch ev.Repeat {
	case RepeatDaily:
		occs = expandDaily(ev, from, to)
	case RepeatWeekly:
		occs = expandWeekly(ev, from, to)
	case RepeatMonthly:
		occs = expandMonthly(ev, from, to)
	case RepeatYearly:
		occs = expandYearly(ev, from, to)
	default:
		occs = expandSingle(ev, from, to)
	}

	sort.Slice(occs, func(i, j int) bool {
		if !occs[i].Start.Equal(occs[j].Start) {
			return occs[i].Start.Before(occs[j].Start)
		}
		return occs[i].OccurrenceID < occs[j].OccurrenceID
	})

	return occs
}

func makeOccurrence(ev Event, start time.Time) Occurrence {
	return Occurrence{
		Event:        ev,
		OccurrenceID: occurrenceID(ev.ID, start),
		Start:        start,
		End:          start.Add(ev.Duration()),
	}
}

// spanIntersects reports whether [start, start+duration] touches [from, to].
// Bounds are inclusive on both sides.
func spanIntersects(start time.Time, duration time.Duration, from, to time.Time) bool {
	end := start.Add(duration)
	if end.Before(start) {
		end = start
	}
	return !start.After(to) && !end.Before(from)
}

// withinUntil checks the inclusive recurrence hard stop on occurrence starts.
func withinUntil(ev Event, start time.Time) bool {
	return ev.RepeatUntilUTC == nil || !start.After(*ev.RepeatUntilUTC)
}

func expandSingle(ev Event, from, to time.Time) []Occurrence {
	if !spanIntersects(ev.StartUTC, ev.Duration(), from, to) {
		return nil
	}
	return []Occurrence{makeOccurrence(ev, ev.StartUTC)}
}

func expandDaily(ev Event, from, to time.Time) []Occurrence {
	interval := ev.RepeatInterval
	if interval < 1 {
		interval = 1
	}
	step := time.Duration(interval) * 24 * time.Hour
	dur := ev.Duration()

	// Seek to the first k whose span could reach the window start.
	var k int64
	if earliest := from.Add(-dur); earliest.After(ev.StartUTC) {
		k = int64(earliest.Sub(ev.StartUTC) / step)
		if k > 0 {
			k--
		}
	}

	var occs []Occurrence
	for i := 0; i < maxExpandIterations; i++ {
		start := ev.StartUTC.Add(time.Duration(k) * step)
		if start.After(to) || !withinUntil(ev, start) {
			break
		}
		if spanIntersects(start, dur, from, to) {
			occs = append(occs, makeOccurrence(ev, start))
		}
		k++
	}
	return occs
}

// civilDate carries pure calendar day arithmetic with no zone semantics.
type civilDate struct {
	year  int
	month time.Month
	day   int
}

func (d civilDate) addDays(n int) civilDate {
	t := time.Date(d.year, d.month, d.day, 12, 0, 0, 0, time.UTC).AddDate(0, 0, n)
	y, m, dd := t.Date()
	return civilDate{y, m, dd}
}

func (d civilDate) weekday() Weekday {
	t := time.Date(d.year, d.month, d.day, 12, 0, 0, 0, time.UTC)
	return FromTimeWeekday(t.Weekday())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 12, 0, 0, 0, time.UTC).Day()
}

func expandWeekly(ev Event, from, to time.Time) []Occurrence {
	_, zoneName := loadZoneOrUTC(ev.TZ)
	dur := ev.Duration()

	parts, err := PartsInZone(ev.StartUTC, zoneName)
	if err != nil {
		return nil
	}

	startDate := civilDate{parts.Year, parts.Month, parts.Day}
	weekdays := ev.ByWeekdays
	if len(weekdays) == 0 {
		weekdays = []Weekday{startDate.weekday()}
	}

	// Weeks are Monday-based buckets anchored on the start date's week.
	weekStart := startDate.addDays(-int(startDate.weekday()))
	interval := ev.RepeatInterval
	if interval < 1 {
		interval = 1
	}

	// Seek near the window start, backed off by the event duration so a
	// long-running occurrence whose span still reaches the window is not
	// skipped; the per-occurrence filters below keep correctness, the seek
	// only keeps the loop short.
	bucket := 0
	if earliest := from.Add(-dur); earliest.After(ev.StartUTC) {
		weeks := int(earliest.Sub(ev.StartUTC).Hours() / (24 * 7))
		bucket = weeks/interval - 1
		if bucket < 0 {
			bucket = 0
		}
	}

	var occs []Occurrence
	for i := 0; i < maxExpandIterations; i++ {
		weekAnchor := weekStart.addDays(bucket * interval * 7)

		// The bucket's Monday, taken as a UTC date, trails any occurrence in
		// the bucket by at most ~2 days of zone skew.
		anchorUTC := time.Date(weekAnchor.year, weekAnchor.month, weekAnchor.day, 0, 0, 0, 0, time.UTC)
		if anchorUTC.Add(-48*time.Hour).After(to) {
			break
		}
		if ev.RepeatUntilUTC != nil && anchorUTC.Add(-48*time.Hour).After(*ev.RepeatUntilUTC) {
			break
		}

		for _, wd := range weekdays {
			day := weekAnchor.addDays(int(wd))
			start, err := ZonedTimeToUTC(day.year, day.month, day.day,
				parts.Hour, parts.Minute, parts.Second, zoneName, PreferEarlier)
			if err != nil {
				continue
			}
			if start.Before(ev.StartUTC) || !withinUntil(ev, start) {
				continue
			}
			if spanIntersects(start, dur, from, to) {
				occs = append(occs, makeOccurrence(ev, start))
			}
		}

		bucket++
	}
	return occs
}

func expandMonthly(ev Event, from, to time.Time) []Occurrence {
	_, zoneName := loadZoneOrUTC(ev.TZ)
	dur := ev.Duration()

	parts, err := PartsInZone(ev.StartUTC, zoneName)
	if err != nil {
		return nil
	}

	targetDay := parts.Day
	if ev.ByMonthDay >= 1 && ev.ByMonthDay <= 31 {
		targetDay = ev.ByMonthDay
	}

	interval := ev.RepeatInterval
	if interval < 1 {
		interval = 1
	}

	toParts, err := PartsInZone(to, zoneName)
	if err != nil {
		return nil
	}

	// Forward seek in whole months. Dividing by 31 days underestimates the
	// elapsed months, so the seek can only land before the window; the
	// per-occurrence filters below discard the extras.
	step := 0
	if earliest := from.Add(-dur); earliest.After(ev.StartUTC) {
		months := int(earliest.Sub(ev.StartUTC).Hours() / (24 * 31))
		step = months/interval - 1
		if step < 0 {
			step = 0
		}
	}

	var occs []Occurrence
	for i := 0; i < maxExpandIterations; i++ {
		total := (int(parts.Month) - 1) + step*interval
		year := parts.Year + total/12
		month := time.Month(total%12 + 1)

		if year > toParts.Year || (year == toParts.Year && month > toParts.Month) {
			break
		}

		// A month too short for the target day yields no occurrence at all;
		// the date is never clamped or rolled into the following month.
		if targetDay <= daysInMonth(year, month) {
			start, err := ZonedTimeToUTC(year, month, targetDay,
				parts.Hour, parts.Minute, parts.Second, zoneName, PreferEarlier)
			if err == nil && !start.Before(ev.StartUTC) && withinUntil(ev, start) {
				if start.After(to) {
					break
				}
				if spanIntersects(start, dur, from, to) {
					occs = append(occs, makeOccurrence(ev, start))
				}
			}
			if err == nil && ev.RepeatUntilUTC != nil && start.After(*ev.RepeatUntilUTC) {
				break
			}
		}

		step++
	}
	return occs
}

func expandYearly(ev Event, from, to time.Time) []Occurrence {
	_, zoneName := loadZoneOrUTC(ev.TZ)
	dur := ev.Duration()

	parts, err := PartsInZone(ev.StartUTC, zoneName)
	if err != nil {
		return nil
	}

	interval := ev.RepeatInterval
	if interval < 1 {
		interval = 1
	}

	toParts, err := PartsInZone(to, zoneName)
	if err != nil {
		return nil
	}

	step := 0
	if fromParts, err := PartsInZone(from.Add(-dur), zoneName); err == nil && fromParts.Year > parts.Year {
		step = (fromParts.Year-parts.Year)/interval - 1
		if step < 0 {
			step = 0
		}
	}

	var occs []Occurrence
	for i := 0; i < maxExpandIterations; i++ {
		year := parts.Year + step*interval
		if year > toParts.Year {
			break
		}

		// Feb 29 in a non-leap year has no valid date and is skipped; a
		// naive constructor would roll it into March.
		if parts.Day <= daysInMonth(year, parts.Month) {
			start, err := ZonedTimeToUTC(year, parts.Month, parts.Day,
				parts.Hour, parts.Minute, parts.Second, zoneName, PreferEarlier)
			if err == nil && !start.Before(ev.StartUTC) && withinUntil(ev, start) {
				if start.After(to) {
					break
				}
				if spanIntersects(start, dur, from, to) {
					occs = append(occs, makeOccurrence(ev, start))
				}
			}
			if err == nil && ev.RepeatUntilUTC != nil && start.After(*ev.RepeatUntilUTC) {
				break
			}
		}

		step++
	}
	return occs
}
