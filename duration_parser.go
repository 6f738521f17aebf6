package notecal

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Matches [+-]P[nW][nD][T[nH][nM][nS]], case-insensitive. A bare P or PT is
// a valid zero duration; anything trailing the grammar fails the whole parse.
var signedDurationPattern = regexp.MustCompile(`(?i)^([+-])?P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseSignedDuration parses an ISO-8601-like duration as used by alarm
// triggers. The sign applies to the whole value. It reports false for any
// input not matching the grammar; duration parsing runs against untrusted
// content and must never fail loudly.
func ParseSignedDuration(s string) (time.Duration, bool) {
	m := signedDurationPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}

	var total time.Duration
	units := []struct {
		group int
		unit  time.Duration
	}{
		{2, 7 * 24 * time.Hour},
		{3, 24 * time.Hour},
		{4, time.Hour},
		{5, time.Minute},
		{6, time.Second},
	}

	for _, u := range units {
		if m[u.group] == "" {
			continue
		}
		n, err := strconv.Atoi(m[u.group])
		if err != nil {
			return 0, false
		}
		total += time.Duration(n) * u.unit
	}

	if m[1] == "-" {
		total = -total
	}
	return total, true
}
