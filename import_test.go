package notecal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

// memStore is an in-memory note store used across importer and cache tests.
type memStore struct {
	mu      sync.Mutex
	notes   map[string]Note
	folders []Folder
	nextID  int

	failCreate bool
	deletes    []string
}

func newMemStore() *memStore {
	return &memStore{notes: make(map[string]Note)}
}

func (s *memStore) add(note Note) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := fmt.Sprintf("note-%d", s.nextID)
	note.ID = id
	s.notes[id] = note
	return id
}

func (s *memStore) sorted() []Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Note, 0, len(s.notes))
	for _, n := range s.notes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memStore) ListNotes(ctx context.Context, page, limit int) ([]Note, bool, error) {
	all := s.sorted()
	from := page * limit
	if from >= len(all) {
		return nil, false, nil
	}
	to := from + limit
	if to > len(all) {
		to = len(all)
	}
	return all[from:to], to < len(all), nil
}

func (s *memStore) CreateNote(ctx context.Context, note Note) (string, error) {
	s.mu.Lock()
	fail := s.failCreate
	s.mu.Unlock()
	if fail {
		return "", errors.New("store unavailable")
	}
	return s.add(note), nil
}

func (s *memStore) UpdateNote(ctx context.Context, note Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notes[note.ID]; !ok {
		return ErrNotFound
	}
	s.notes[note.ID] = note
	return nil
}

func (s *memStore) DeleteNote(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notes[id]; !ok {
		return ErrNotFound
	}
	delete(s.notes, id)
	s.deletes = append(s.deletes, id)
	return nil
}

func (s *memStore) ListFolders(ctx context.Context) ([]Folder, error) {
	return s.folders, nil
}

const importICS = "BEGIN:VCALENDAR\n" +
	"BEGIN:VEVENT\n" +
	"UID:ev-1\n" +
	"SUMMARY:Standup\n" +
	"DTSTART:20250610T090000Z\n" +
	"END:VEVENT\n" +
	"BEGIN:VEVENT\n" +
	"UID:ev-2\n" +
	"SUMMARY:Retro\n" +
	"DTSTART:20250613T150000Z\n" +
	"END:VEVENT\n" +
	"END:VCALENDAR\n"

func TestImportTextCreates(t *testing.T) {
	store := newMemStore()
	imp := NewImporter(store, store, store)

	summary := imp.ImportText(context.Background(), importICS, "")

	if summary.Created != 2 || summary.Updated != 0 || summary.Skipped != 0 || summary.Errors != 0 {
		t.Fatalf("summary = %+v", summary)
	}

	notes := store.sorted()
	if len(notes) != 2 {
		t.Fatalf("store holds %d notes, want 2", len(notes))
	}
	events := ParseEvents(notes[0].ID, "", notes[0].Body)
	if len(events) != 1 || events[0].UID != "ev-1" || events[0].Title != "Standup" {
		t.Errorf("stored body does not parse back: %+v", events)
	}
}

func TestImportTextIdempotent(t *testing.T) {
	store := newMemStore()
	imp := NewImporter(store, store, store)
	ctx := context.Background()

	imp.ImportText(ctx, importICS, "")
	summary := imp.ImportText(ctx, importICS, "")

	if summary.Created != 0 || summary.Updated != 0 || summary.Skipped != 2 {
		t.Fatalf("second import summary = %+v, want all skipped", summary)
	}
	if got := len(store.sorted()); got != 2 {
		t.Errorf("store holds %d notes after re-import, want 2", got)
	}
}

func TestImportTextUpdatesChangedEvent(t *testing.T) {
	store := newMemStore()
	imp := NewImporter(store, store, store)
	ctx := context.Background()

	imp.ImportText(ctx, importICS, "")

	changed := strings.Replace(importICS, "SUMMARY:Standup", "SUMMARY:Standup (moved)", 1)
	summary := imp.ImportText(ctx, changed, "")

	if summary.Updated != 1 || summary.Skipped != 1 || summary.Created != 0 {
		t.Fatalf("summary = %+v, want 1 updated 1 skipped", summary)
	}

	var titles []string
	for _, n := range store.sorted() {
		for _, ev := range ParseEvents(n.ID, "", n.Body) {
			titles = append(titles, ev.Title)
		}
	}
	sort.Strings(titles)
	if !strings.Contains(strings.Join(titles, "|"), "Standup (moved)") {
		t.Errorf("updated title missing: %v", titles)
	}
}

func TestImportTextAssignsUID(t *testing.T) {
	store := newMemStore()
	imp := NewImporter(store, store, store, WithUIDGenerator(func() string { return "generated-uid" }))

	text := "title: No identity\nstart: 2025-06-10T09:00:00Z\n"
	summary := imp.ImportText(context.Background(), text, "")

	if summary.Created != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	notes := store.sorted()
	events := ParseEvents(notes[0].ID, "", notes[0].Body)
	if len(events) != 1 || events[0].UID != "generated-uid" {
		t.Errorf("stored event = %+v, want generated uid", events)
	}
}

func TestImportTextReportsErrors(t *testing.T) {
	store := newMemStore()
	store.failCreate = true

	var statuses []ItemStatus
	imp := NewImporter(store, store, store, WithStatusFunc(func(st ItemStatus) {
		statuses = append(statuses, st)
	}))

	summary := imp.ImportText(context.Background(), importICS, "")

	if summary.Errors != 2 || summary.Created != 0 {
		t.Fatalf("summary = %+v, want 2 errors", summary)
	}
	if len(summary.Messages) != 2 {
		t.Errorf("Messages = %v", summary.Messages)
	}
	for _, st := range statuses {
		if st.Action != "error" || st.Err == nil {
			t.Errorf("status = %+v, want error action", st)
		}
	}
}

func TestImportTextFolderResolution(t *testing.T) {
	store := newMemStore()
	store.folders = []Folder{{ID: "f1", Title: "Calendar"}, {ID: "f2", Title: "Archive"}}
	imp := NewImporter(store, store, store)

	imp.ImportText(context.Background(), importICS, "Calendar")

	for _, n := range store.sorted() {
		if n.ParentID != "f1" {
			t.Errorf("note %s ParentID = %q, want f1", n.ID, n.ParentID)
		}
	}
}

func TestMaterializeAlarms(t *testing.T) {
	store := newMemStore()
	now := mustUTC(t, "2025-06-09T00:00:00Z")
	imp := NewImporter(store, store, store, WithNow(func() time.Time { return now }))

	ev := Event{
		ID:       "n1",
		Title:    "Dentist",
		StartUTC: mustUTC(t, "2025-06-10T10:00:00Z"),
		UID:      "ev-1",
		Alarms:   []Alarm{{Trigger: "-PT15M"}},
	}

	// A stale alarm note for the same identity must be replaced.
	staleID := store.add(Note{
		Title: "Dentist",
		Body:  SerializeAlarmNote("Dentist", "ev-1", "", mustUTC(t, "2025-06-03T09:45:00Z")),
	})
	// An alarm note for another event must survive.
	otherID := store.add(Note{
		Title: "Other",
		Body:  SerializeAlarmNote("Other", "ev-9", "", mustUTC(t, "2025-06-12T08:00:00Z")),
	})

	summary := imp.MaterializeAlarms(context.Background(), ev, 7, "")

	if summary.Created != 1 || summary.Errors != 0 {
		t.Fatalf("summary = %+v", summary)
	}

	store.mu.Lock()
	_, staleAlive := store.notes[staleID]
	_, otherAlive := store.notes[otherID]
	store.mu.Unlock()
	if staleAlive {
		t.Error("stale alarm note was not deleted")
	}
	if !otherAlive {
		t.Error("unrelated alarm note was deleted")
	}

	var found bool
	for _, n := range store.sorted() {
		for _, an := range ParseAlarmNotes(n) {
			if an.UID == "ev-1" && an.When.Equal(mustUTC(t, "2025-06-10T09:45:00Z")) {
				found = true
			}
		}
	}
	if !found {
		t.Error("materialized alarm note not found")
	}
}
