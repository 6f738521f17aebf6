package notecal

import (
	"sort"
	"time"
)

// Prefer selects which instant wins when a local wall-clock time is
// ambiguous (occurs twice during a DST fall-back transition).
type Prefer int

const (
	PreferEarlier Prefer = iota
	PreferLater
)

// DateParts is a local wall-clock date-time tuple with no zone attached.
type DateParts struct {
	Year   int
	Month  time.Month
	Day    int
	Hour   int
	Minute int
	Second int
}

// ZonedTimeToUTC converts a local wall-clock tuple in the named IANA zone to
// a UTC instant.
//
// The first-guess instant treats the local fields as UTC; the zone's offset
// at that instant is applied and re-checked, a fixed point that converges for
// all real-world zones. Candidate instants at +/-1h and +/-2h around the
// result are then probed: every candidate that maps back to the same wall
// clock is kept, and when the time is ambiguous (DST fold) the earliest or
// latest candidate wins per prefer. A wall clock with no candidate at all
// falls inside a DST gap and returns ErrNonexistentLocalTime.
func ZonedTimeToUTC(year int, month time.Month, day, hour, minute, second int, tz string, prefer Prefer) (time.Time, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, newError("timezone.convert", "unrecognized zone "+tz, ErrUnknownTimeZone)
	}

	guess := time.Date(year, month, day, hour, minute, second, 0, time.UTC)

	_, off1 := guess.In(loc).Zone()
	adjusted := guess.Add(-time.Duration(off1) * time.Second)
	_, off2 := adjusted.In(loc).Zone()
	if off2 != off1 {
		adjusted = guess.Add(-time.Duration(off2) * time.Second)
	}

	want := DateParts{year, month, day, hour, minute, second}
	probes := []time.Duration{-2 * time.Hour, -time.Hour, 0, time.Hour, 2 * time.Hour}

	var matches []time.Time
	for _, p := range probes {
		candidate := adjusted.Add(p)
		if partsIn(candidate, loc) == want {
			matches = append(matches, candidate)
		}
	}

	if len(matches) == 0 {
		return time.Time{}, newError("timezone.convert", "wall clock does not exist in "+tz, ErrNonexistentLocalTime)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Before(matches[j]) })
	if prefer == PreferLater {
		return matches[len(matches)-1].UTC(), nil
	}
	return matches[0].UTC(), nil
}

// PartsInZone returns the wall-clock fields of a UTC instant in the named
// zone. Extraction is purely numeric; no locale-formatted text is involved.
func PartsInZone(t time.Time, tz string) (DateParts, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return DateParts{}, newError("timezone.parts", "unrecognized zone "+tz, ErrUnknownTimeZone)
	}
	return partsIn(t, loc), nil
}

func partsIn(t time.Time, loc *time.Location) DateParts {
	local := t.In(loc)
	y, m, d := local.Date()
	hh, mm, ss := local.Clock()
	return DateParts{y, m, d, hh, mm, ss}
}

// loadZoneOrUTC resolves a possibly empty zone name, falling back to UTC.
// Recurring events without a declared zone are a tolerated degraded case.
func loadZoneOrUTC(tz string) (*time.Location, string) {
	if tz == "" {
		return time.UTC, "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC, "UTC"
	}
	return loc, tz
}

func isValidZone(tz string) bool {
	_, err := time.LoadLocation(tz)
	return err == nil
}
