package notecal

import (
	"reflect"
	"testing"
	"time"
)

func TestBuildAlarmPlanDurationTriggers(t *testing.T) {
	end := mustUTC(t, "2025-06-10T11:00:00Z")
	ev := Event{
		ID:       "n1",
		Title:    "Dentist",
		StartUTC: mustUTC(t, "2025-06-10T10:00:00Z"),
		EndUTC:   &end,
		Alarms: []Alarm{
			{Trigger: "-PT15M"},
			{Trigger: "-PT15M", Related: "END"},
		},
	}

	now := mustUTC(t, "2025-06-01T00:00:00Z")
	plan := BuildAlarmPlan(ev, nil, now, 14)

	if len(plan.Create) != 2 {
		t.Fatalf("got %d instants, want 2", len(plan.Create))
	}
	if !plan.Create[0].When.Equal(mustUTC(t, "2025-06-10T09:45:00Z")) {
		t.Errorf("start-relative instant = %v", plan.Create[0].When)
	}
	if !plan.Create[1].When.Equal(mustUTC(t, "2025-06-10T10:45:00Z")) {
		t.Errorf("end-relative instant = %v", plan.Create[1].When)
	}
	if len(plan.Obsolete) != 0 {
		t.Errorf("Obsolete = %v, want none for event without UID", plan.Obsolete)
	}
}

func TestBuildAlarmPlanAbsoluteTrigger(t *testing.T) {
	ev := Event{
		ID:       "n1",
		StartUTC: mustUTC(t, "2025-06-10T10:00:00Z"),
		Alarms:   []Alarm{{Trigger: "20250610T093000Z"}},
	}

	plan := BuildAlarmPlan(ev, nil, mustUTC(t, "2025-06-01T00:00:00Z"), 14)

	if len(plan.Create) != 1 {
		t.Fatalf("got %d instants, want 1", len(plan.Create))
	}
	if !plan.Create[0].When.Equal(mustUTC(t, "2025-06-10T09:30:00Z")) {
		t.Errorf("When = %v", plan.Create[0].When)
	}
}

func TestBuildAlarmPlanWindowFiltering(t *testing.T) {
	ev := Event{
		ID:             "n1",
		StartUTC:       mustUTC(t, "2025-06-01T10:00:00Z"),
		Repeat:         RepeatDaily,
		RepeatInterval: 1,
		Alarms:         []Alarm{{Trigger: "-PT30M"}},
	}

	// 09:30 of June 5 is in the past relative to now; the occurrence on
	// June 5 still expands but its alarm instant is discarded.
	now := mustUTC(t, "2025-06-05T09:45:00Z")
	plan := BuildAlarmPlan(ev, nil, now, 3)

	// The June 8 occurrence starts after the window end and never expands,
	// so only two instants remain.
	want := []time.Time{
		mustUTC(t, "2025-06-06T09:30:00Z"),
		mustUTC(t, "2025-06-07T09:30:00Z"),
	}
	if len(plan.Create) != len(want) {
		t.Fatalf("got %d instants, want %d: %+v", len(plan.Create), len(want), plan.Create)
	}
	for i, inst := range plan.Create {
		if !inst.When.Equal(want[i]) {
			t.Errorf("instant %d = %v, want %v", i, inst.When, want[i])
		}
	}
}

func TestBuildAlarmPlanObsoleteMatching(t *testing.T) {
	ev := Event{
		ID:           "n1",
		StartUTC:     mustUTC(t, "2025-06-10T10:00:00Z"),
		UID:          " uid-1 ",
		RecurrenceID: "20250610T100000Z",
		Alarms:       []Alarm{{Trigger: "-PT5M"}},
	}
	existing := []AlarmRef{
		{ID: "a1", UID: "uid-1", RecurrenceID: "20250610T100000Z"},
		{ID: "a2", UID: "uid-1", RecurrenceID: ""},
		{ID: "a3", UID: "other", RecurrenceID: "20250610T100000Z"},
		{ID: "a4", UID: "uid-1 ", RecurrenceID: " 20250610T100000Z"},
	}

	plan := BuildAlarmPlan(ev, existing, mustUTC(t, "2025-06-01T00:00:00Z"), 14)

	if !reflect.DeepEqual(plan.Obsolete, []string{"a1", "a4"}) {
		t.Errorf("Obsolete = %v, want [a1 a4]", plan.Obsolete)
	}
}

func TestBuildAlarmPlanInvalidTriggerSkipped(t *testing.T) {
	ev := Event{
		ID:       "n1",
		StartUTC: mustUTC(t, "2025-06-10T10:00:00Z"),
		Alarms:   []Alarm{{Trigger: "sometime soon"}, {Trigger: "-PT5M"}},
	}

	plan := BuildAlarmPlan(ev, nil, mustUTC(t, "2025-06-01T00:00:00Z"), 14)

	if len(plan.Create) != 1 {
		t.Fatalf("got %d instants, want 1", len(plan.Create))
	}
	if plan.Create[0].Alarm.Trigger != "-PT5M" {
		t.Errorf("surviving trigger = %q", plan.Create[0].Alarm.Trigger)
	}
}

func TestBuildAlarmPlanNoAlarms(t *testing.T) {
	ev := Event{
		ID:       "n1",
		StartUTC: mustUTC(t, "2025-06-10T10:00:00Z"),
		UID:      "uid-1",
	}
	existing := []AlarmRef{{ID: "a1", UID: "uid-1"}}

	plan := BuildAlarmPlan(ev, existing, mustUTC(t, "2025-06-01T00:00:00Z"), 14)

	if len(plan.Create) != 0 {
		t.Errorf("Create = %+v, want none", plan.Create)
	}
	// Prior alarms are still superseded so regeneration can clean up.
	if !reflect.DeepEqual(plan.Obsolete, []string{"a1"}) {
		t.Errorf("Obsolete = %v, want [a1]", plan.Obsolete)
	}
}

func TestResolveAlarmInstantDateText(t *testing.T) {
	occ := Occurrence{Start: mustUTC(t, "2025-06-10T10:00:00Z")}

	when, ok := resolveAlarmInstant(Alarm{Trigger: "2025-06-10T09:00:00Z"}, occ)
	if !ok {
		t.Fatal("trigger in date-text form not resolved")
	}
	if !when.Equal(mustUTC(t, "2025-06-10T09:00:00Z")) {
		t.Errorf("When = %v", when)
	}
}
