package notecal

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

const notePageSize = 100

// NoteSource lists note records, paginated.
type NoteSource interface {
	ListNotes(ctx context.Context, page, limit int) (notes []Note, hasMore bool, err error)
}

// NoteSink mutates note storage.
type NoteSink interface {
	CreateNote(ctx context.Context, note Note) (string, error)
	UpdateNote(ctx context.Context, note Note) error
	DeleteNote(ctx context.Context, id string) error
}

// FolderSource lists folder records as a flat list.
type FolderSource interface {
	ListFolders(ctx context.Context) ([]Folder, error)
}

// ItemStatus reports the outcome of one imported item to an optional
// callback.
type ItemStatus struct {
	UID    string
	Title  string
	Action string // created, updated, skipped, error
	Err    error
}

// ImportSummary aggregates an import run. It is always returned; individual
// item failures never abort the remaining items.
type ImportSummary struct {
	Created  int
	Updated  int
	Skipped  int
	Errors   int
	Messages []string
}

// StatusFunc receives per-item import outcomes.
type StatusFunc func(ItemStatus)

// Importer imports calendar text into a note store and materializes alarm
// notes, matching existing notes by (uid, recurrence_id) identity.
type Importer struct {
	source  NoteSource
	sink    NoteSink
	folders FolderSource
	logger  Logger
	status  StatusFunc
	now     func() time.Time
	newUID  func() string
}

type ImporterOption func(*Importer)

func WithLogger(logger Logger) ImporterOption {
	return func(i *Importer) {
		i.logger = logger
	}
}

func WithStatusFunc(fn StatusFunc) ImporterOption {
	return func(i *Importer) {
		i.status = fn
	}
}

// WithNow injects the clock used for alarm materialization windows.
func WithNow(now func() time.Time) ImporterOption {
	return func(i *Importer) {
		i.now = now
	}
}

// WithUIDGenerator injects the generator used when an imported event has no
// UID of its own.
func WithUIDGenerator(fn func() string) ImporterOption {
	return func(i *Importer) {
		i.newUID = fn
	}
}

func NewImporter(source NoteSource, sink NoteSink, folders FolderSource, opts ...ImporterOption) *Importer {
	imp := &Importer{
		source:  source,
		sink:    sink,
		folders: folders,
		logger:  &noopLogger{},
		now:     time.Now,
		newUID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(imp)
	}
	return imp
}

func (imp *Importer) report(st ItemStatus) {
	if imp.status != nil {
		imp.status(st)
	}
}

// ImportText imports iCalendar or plain interchange text. Existing notes are
// matched by identity; a byte-identical serialized body is a no-op, so
// importing the same document twice creates nothing new on the second pass.
func (imp *Importer) ImportText(ctx context.Context, text, folderTitle string) ImportSummary {
	summary := ImportSummary{}

	events := EventsFromRaw(ParseImportText(text), "", "Imported event")
	imp.logger.Info("importing %d events", len(events))

	existing, err := imp.indexExistingEvents(ctx)
	if err != nil {
		summary.Errors++
		summary.Messages = append(summary.Messages, err.Error())
		return summary
	}

	parentID := imp.resolveFolder(ctx, folderTitle)

	for i := range events {
		ev := events[i]
		if strings.TrimSpace(ev.UID) == "" {
			ev.UID = imp.newUID()
		}

		body := SerializeEvent(ev)
		identity, _ := ev.Identity()

		if note, ok := existing[identity]; ok {
			if note.Body == body {
				summary.Skipped++
				imp.report(ItemStatus{UID: ev.UID, Title: ev.Title, Action: "skipped"})
				continue
			}
			note.Title = ev.Title
			note.Body = body
			if err := imp.sink.UpdateNote(ctx, note); err != nil {
				summary.Errors++
				summary.Messages = append(summary.Messages, err.Error())
				imp.report(ItemStatus{UID: ev.UID, Title: ev.Title, Action: "error", Err: err})
				continue
			}
			summary.Updated++
			imp.report(ItemStatus{UID: ev.UID, Title: ev.Title, Action: "updated"})
			continue
		}

		note := Note{Title: ev.Title, Body: body, ParentID: parentID}
		if _, err := imp.sink.CreateNote(ctx, note); err != nil {
			summary.Errors++
			summary.Messages = append(summary.Messages, err.Error())
			imp.report(ItemStatus{UID: ev.UID, Title: ev.Title, Action: "error", Err: err})
			continue
		}
		summary.Created++
		imp.report(ItemStatus{UID: ev.UID, Title: ev.Title, Action: "created"})
	}

	imp.logger.Info("import done: %d created, %d updated, %d skipped, %d errors",
		summary.Created, summary.Updated, summary.Skipped, summary.Errors)
	return summary
}

// indexExistingEvents maps identity keys to the note carrying that event.
// Events without a UID have no identity and are never matched.
func (imp *Importer) indexExistingEvents(ctx context.Context) (map[string]Note, error) {
	index := make(map[string]Note)

	notes, err := imp.listAllNotes(ctx)
	if err != nil {
		return nil, err
	}
	for _, note := range notes {
		for _, ev := range ParseEvents(note.ID, note.Title, note.Body) {
			if identity, ok := ev.Identity(); ok {
				index[identity] = note
			}
		}
	}
	return index, nil
}

func (imp *Importer) listAllNotes(ctx context.Context) ([]Note, error) {
	var all []Note
	page := 0
	for {
		notes, hasMore, err := imp.source.ListNotes(ctx, page, notePageSize)
		if err != nil {
			return nil, wrapError("import.list", err)
		}
		all = append(all, notes...)
		if !hasMore {
			return all, nil
		}
		page++
	}
}

func (imp *Importer) resolveFolder(ctx context.Context, title string) string {
	if title == "" || imp.folders == nil {
		return ""
	}
	folders, err := imp.folders.ListFolders(ctx)
	if err != nil {
		imp.logger.Warn("folder lookup failed: %v", err)
		return ""
	}
	for _, f := range folders {
		if f.Title == title {
			return f.ID
		}
	}
	return ""
}

// MaterializeAlarms regenerates the alarm notes for an event: prior alarm
// notes matching the event's identity are deleted and fresh ones created for
// every alarm instant within the look-ahead window. Per-item failures are
// counted and reported, never propagated.
func (imp *Importer) MaterializeAlarms(ctx context.Context, ev Event, rangeDays int, folderTitle string) ImportSummary {
	summary := ImportSummary{}

	notes, err := imp.listAllNotes(ctx)
	if err != nil {
		summary.Errors++
		summary.Messages = append(summary.Messages, err.Error())
		return summary
	}

	var existing []AlarmRef
	for _, note := range notes {
		for _, an := range ParseAlarmNotes(note) {
			existing = append(existing, AlarmRef{ID: an.NoteID, UID: an.UID, RecurrenceID: an.RecurrenceID})
		}
	}

	if ev.Repeat != RepeatNone && ev.TZ == "" {
		imp.logger.Warn("recurring event %q has no time zone, expanding in UTC", ev.Title)
	}

	plan := BuildAlarmPlan(ev, existing, imp.now(), rangeDays)
	imp.logger.Debug("alarm plan for %q: %d create, %d obsolete", ev.Title, len(plan.Create), len(plan.Obsolete))

	for _, id := range plan.Obsolete {
		if err := imp.sink.DeleteNote(ctx, id); err != nil {
			summary.Errors++
			summary.Messages = append(summary.Messages, err.Error())
			imp.report(ItemStatus{UID: ev.UID, Title: ev.Title, Action: "error", Err: err})
			continue
		}
	}

	parentID := imp.resolveFolder(ctx, folderTitle)
	for _, inst := range plan.Create {
		body := SerializeAlarmNote(ev.Title, ev.UID, ev.RecurrenceID, inst.When)
		note := Note{Title: ev.Title, Body: body, ParentID: parentID}
		if _, err := imp.sink.CreateNote(ctx, note); err != nil {
			summary.Errors++
			summary.Messages = append(summary.Messages, err.Error())
			imp.report(ItemStatus{UID: ev.UID, Title: ev.Title, Action: "error", Err: err})
			continue
		}
		summary.Created++
		imp.report(ItemStatus{UID: ev.UID, Title: ev.Title, Action: "created"})
	}

	return summary
}
