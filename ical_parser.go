package notecal

import (
	"bufio"
	"encoding/json"
	"strconv"
	"strings"
)

// RawEvent is an event record lifted out of iCalendar or plain key:value
// import text. Fields keeps the encounter order so the single-pass
// interpretation in buildEvent (tz seen so far, duplicate handling) applies
// to imported events exactly as it does to fenced note blocks.
type RawEvent struct {
	Fields []Field
	Alarms []Alarm
}

// Events interprets raw records into normalized events; records with no
// resolvable start are dropped.
func (r RawEvent) toEvent(sourceID, titleFallback string) (Event, bool) {
	ev, ok := buildEvent(sourceID, titleFallback, r.Fields)
	if !ok {
		return Event{}, false
	}
	ev.Alarms = append(ev.Alarms, r.Alarms...)
	return ev, true
}

// EventsFromRaw normalizes a batch of raw import records.
func EventsFromRaw(raws []RawEvent, sourceID, titleFallback string) []Event {
	var events []Event
	for _, r := range raws {
		if ev, ok := r.toEvent(sourceID, titleFallback); ok {
			events = append(events, ev)
		}
	}
	return events
}

// ParseImportText parses calendar import text, auto-detecting iCalendar
// versus the plain key:value interchange format.
func ParseImportText(text string) []RawEvent {
	if strings.Contains(text, "BEGIN:VCALENDAR") || strings.Contains(text, "BEGIN:VEVENT") {
		return ParseICS(text)
	}
	return parsePlainImport(text)
}

// ParseICS parses an RFC5545-flavored iCalendar document into raw event
// records. Malformed lines are skipped; the parser never fails.
func ParseICS(text string) []RawEvent {
	p := &icsParser{scanner: bufio.NewScanner(strings.NewReader(text))}
	p.parse()
	return p.events
}

type icsParser struct {
	scanner *bufio.Scanner
	events  []RawEvent

	cur        *RawEvent
	curTZSet   bool
	curAllDay  bool
	curAlarm   *Alarm
	inEvent    bool
	inAlarm    bool
	skipVAlarm bool
}

func (p *icsParser) parse() {
	var buffered string

	for {
		var line string
		if buffered != "" {
			line = buffered
			buffered = ""
		} else if p.scanner.Scan() {
			line = p.scanner.Text()
		} else {
			break
		}

		// RFC 5545 folding: a following line starting with one space or tab
		// continues the current logical line with that one character removed.
		for p.scanner.Scan() {
			next := p.scanner.Text()
			if len(next) > 0 && (next[0] == ' ' || next[0] == '\t') {
				line += strings.TrimRight(next[1:], "\r")
			} else {
				buffered = next
				break
			}
		}

		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		p.parseLine(line)
	}
}

func (p *icsParser) parseLine(line string) {
	colon := strings.Index(line, ":")
	if colon == -1 {
		return
	}

	name, params := parsePropertyName(line[:colon])
	value := line[colon+1:]

	switch name {
	case "BEGIN":
		p.handleBegin(strings.ToUpper(value))
	case "END":
		p.handleEnd(strings.ToUpper(value))
	default:
		p.handleProperty(name, value, params)
	}
}

func parsePropertyName(propertyPart string) (string, map[string]string) {
	parts := strings.Split(propertyPart, ";")
	name := strings.ToUpper(strings.TrimSpace(parts[0]))
	params := make(map[string]string)

	for i := 1; i < len(parts); i++ {
		kv := strings.SplitN(parts[i], "=", 2)
		if len(kv) == 2 {
			params[strings.ToUpper(kv[0])] = strings.Trim(kv[1], "\"")
		}
	}

	return name, params
}

func (p *icsParser) handleBegin(component string) {
	switch component {
	case "VEVENT":
		p.inEvent = true
		p.cur = &RawEvent{}
		p.curTZSet = false
		p.curAllDay = false
	case "VALARM":
		if p.inEvent {
			p.inAlarm = true
			p.curAlarm = &Alarm{}
		} else {
			p.skipVAlarm = true
		}
	}
}

func (p *icsParser) handleEnd(component string) {
	switch component {
	case "VEVENT":
		if p.inEvent && p.cur != nil {
			p.events = append(p.events, *p.cur)
		}
		p.cur = nil
		p.inEvent = false
	case "VALARM":
		if p.inAlarm && p.curAlarm != nil {
			// An alarm with no trigger is unusable and dropped here.
			if strings.TrimSpace(p.curAlarm.Trigger) != "" {
				p.cur.Alarms = append(p.cur.Alarms, *p.curAlarm)
			}
		}
		p.curAlarm = nil
		p.inAlarm = false
		p.skipVAlarm = false
	}
}

func (p *icsParser) handleProperty(name, value string, params map[string]string) {
	if p.skipVAlarm {
		return
	}
	if p.inAlarm && p.curAlarm != nil {
		p.handleAlarmProperty(name, value, params)
		return
	}
	if !p.inEvent || p.cur == nil {
		return
	}

	switch name {
	case "SUMMARY":
		p.addField("title", unescapeICSText(value))
	case "DESCRIPTION":
		p.addField("description", unescapeICSText(value))
	case "LOCATION":
		p.addField("location", unescapeICSText(value))
	case "UID":
		p.addField("uid", value)
	case "X-COLOR":
		p.addField("color", value)
	case "DTSTART":
		p.handleDateTime("start", value, params)
	case "DTEND":
		p.handleDateTime("end", value, params)
	case "RRULE":
		p.handleRRule(value)
	case "RECURRENCE-ID":
		p.handleRecurrenceID(value, params)
	}
}

func (p *icsParser) addField(key, value string) {
	p.cur.Fields = append(p.cur.Fields, Field{Key: key, Value: value})
}

// handleDateTime emits tz and all_day side-effect fields ahead of the date
// field itself so the single-pass interpreter sees them first. The first
// TZID seen wins when DTSTART and DTEND disagree.
func (p *icsParser) handleDateTime(key, value string, params map[string]string) {
	text, isDate, ok := icsDateTimeToText(value)
	if !ok {
		return
	}

	if tzid := params["TZID"]; tzid != "" && !p.curTZSet {
		p.addField("tz", tzid)
		p.curTZSet = true
	}

	if (isDate || params["VALUE"] == "DATE") && !p.curAllDay {
		p.addField("all_day", "true")
		p.curAllDay = true
	}

	p.addField(key, text)
}

func (p *icsParser) handleRRule(value string) {
	for _, part := range strings.Split(value, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}

		switch strings.ToUpper(strings.TrimSpace(kv[0])) {
		case "FREQ":
			if freq := rruleFreqToRepeat(kv[1]); freq != "" {
				p.addField("repeat", freq)
			}
		case "INTERVAL":
			if n, err := strconv.Atoi(kv[1]); err == nil && n > 0 {
				p.addField("repeat_interval", strconv.Itoa(n))
			}
		case "UNTIL":
			if text, _, ok := icsDateTimeToText(kv[1]); ok {
				p.addField("repeat_until", text)
			}
		case "BYDAY":
			p.addField("byweekday", kv[1])
		case "BYMONTHDAY":
			p.addField("bymonthday", kv[1])
		}
	}
}

func rruleFreqToRepeat(freq string) string {
	switch strings.ToUpper(strings.TrimSpace(freq)) {
	case "DAILY":
		return "daily"
	case "WEEKLY":
		return "weekly"
	case "MONTHLY":
		return "monthly"
	case "YEARLY":
		return "yearly"
	default:
		// Unrecognized frequency: the event is treated as non-recurring.
		return ""
	}
}

// handleRecurrenceID stores the three-way encoding used as key material for
// matching recurrence exceptions: DATE:<raw> for VALUE=DATE, <tzid>:<raw>
// when a TZID parameter is present, and the raw value otherwise.
func (p *icsParser) handleRecurrenceID(value string, params map[string]string) {
	switch {
	case params["VALUE"] == "DATE":
		p.addField("recurrence_id", "DATE:"+value)
	case params["TZID"] != "":
		if !p.curTZSet {
			p.addField("tz", params["TZID"])
			p.curTZSet = true
		}
		p.addField("recurrence_id", params["TZID"]+":"+value)
	default:
		p.addField("recurrence_id", value)
	}
}

func (p *icsParser) handleAlarmProperty(name, value string, params map[string]string) {
	switch name {
	case "TRIGGER":
		p.curAlarm.Trigger = value
		if related := strings.ToUpper(params["RELATED"]); related == "END" {
			p.curAlarm.Related = "END"
		} else {
			p.curAlarm.Related = "START"
		}
	case "ACTION":
		p.curAlarm.Action = value
	case "DESCRIPTION":
		p.curAlarm.Description = unescapeICSText(value)
	case "SUMMARY":
		p.curAlarm.Summary = unescapeICSText(value)
	case "REPEAT":
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			p.curAlarm.Repeat = n
		}
	case "DURATION":
		p.curAlarm.Duration = value
	}
}

// unescapeICSText reverses RFC 5545 text escaping. The escaped backslash is
// substituted through a placeholder first so a literal `\\n` in source text
// does not turn into a newline.
func unescapeICSText(s string) string {
	const placeholder = "\x00"
	s = strings.ReplaceAll(s, `\\`, placeholder)
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.ReplaceAll(s, `\N`, "\n")
	s = strings.ReplaceAll(s, `\,`, ",")
	s = strings.ReplaceAll(s, `\;`, ";")
	return strings.ReplaceAll(s, placeholder, `\`)
}

// parsePlainImport reads the simpler key:value interchange format: a blank
// line or a line of exactly `---` flushes the current event, a `#` starts an
// inline comment only when preceded by whitespace, and `valarm:` lines carry
// one JSON-encoded alarm each.
func parsePlainImport(text string) []RawEvent {
	var events []RawEvent
	var cur RawEvent

	flush := func() {
		if len(cur.Fields) > 0 || len(cur.Alarms) > 0 {
			events = append(events, cur)
		}
		cur = RawEvent{}
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		raw := strings.TrimRight(scanner.Text(), "\r")
		line := stripInlineComment(raw)

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || trimmed == "---" {
			// A line that is blank only because a comment was stripped is
			// a comment, not a separator.
			if trimmed == "---" || strings.TrimSpace(raw) == "" {
				flush()
			}
			continue
		}

		m := fieldLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key := strings.ToLower(m[1])
		value := strings.TrimSpace(m[2])

		if key == "valarm" {
			var a Alarm
			if err := json.Unmarshal([]byte(value), &a); err == nil && strings.TrimSpace(a.Trigger) != "" {
				cur.Alarms = append(cur.Alarms, a)
			}
			continue
		}

		cur.Fields = append(cur.Fields, Field{Key: key, Value: value})
	}
	flush()

	return events
}

// stripInlineComment cuts the line at a `#` preceded by whitespace. A `#`
// with no preceding whitespace (URLs, hashtags) is literal content.
func stripInlineComment(line string) string {
	for i := 1; i < len(line); i++ {
		if line[i] == '#' && (line[i-1] == ' ' || line[i-1] == '\t') {
			return line[:i]
		}
	}
	return line
}
