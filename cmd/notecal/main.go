package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	notecal "github.com/notecal/go-note-calendar"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "notecal: %v\n", err)
		os.Exit(1)
	}

	logger := notecal.NewStandardLogger(os.Stderr, logLevelFromName(cfg.LogLevel))
	ctx := context.Background()
	store := newDirStore(cfg.NotesDir)

	switch flag.Arg(0) {
	case "agenda":
		err = runAgenda(ctx, cfg, store)
	case "export":
		err = runExport(ctx, cfg, store)
	case "import":
		err = runImport(ctx, cfg, store, logger, flag.Arg(1))
	case "alarms":
		err = runAlarms(ctx, cfg, store, logger)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "notecal: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: notecal [-config file] agenda | export | import <file.ics> | alarms")
}

func logLevelFromName(name string) notecal.LogLevel {
	switch name {
	case "debug":
		return notecal.LogLevelDebug
	case "info":
		return notecal.LogLevelInfo
	case "error":
		return notecal.LogLevelError
	case "none":
		return notecal.LogLevelNone
	default:
		return notecal.LogLevelWarn
	}
}

func loadEvents(ctx context.Context, cfg Config, store *dirStore) ([]notecal.Event, error) {
	cache := notecal.NewEventCache()
	if err := cache.Rebuild(ctx, store); err != nil {
		return nil, err
	}

	events := cache.All()
	if cfg.DefaultTZ != "" {
		for i := range events {
			if events[i].TZ == "" {
				events[i].TZ = cfg.DefaultTZ
			}
		}
	}
	return events, nil
}

func runAgenda(ctx context.Context, cfg Config, store *dirStore) error {
	events, err := loadEvents(ctx, cfg, store)
	if err != nil {
		return err
	}

	from := time.Now().UTC()
	to := from.AddDate(0, 0, cfg.WindowDays)

	var occs []notecal.Occurrence
	for _, ev := range events {
		occs = append(occs, notecal.Expand(ev, from, to)...)
	}
	sortOccurrences(occs)

	for _, occ := range occs {
		fmt.Printf("%s  %s\n", occ.Start.Format("2006-01-02 15:04"), occ.Title)
	}
	return nil
}

func runExport(ctx context.Context, cfg Config, store *dirStore) error {
	events, err := loadEvents(ctx, cfg, store)
	if err != nil {
		return err
	}

	from := time.Now().UTC()
	to := from.AddDate(0, 0, cfg.WindowDays)

	var occs []notecal.Occurrence
	for _, ev := range events {
		occs = append(occs, notecal.Expand(ev, from, to)...)
	}
	sortOccurrences(occs)

	fmt.Print(notecal.BuildICSDocument(occs, time.Now().UTC()))
	return nil
}

func runImport(ctx context.Context, cfg Config, store *dirStore, logger notecal.Logger, path string) error {
	if path == "" {
		return fmt.Errorf("import requires a file argument")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	imp := notecal.NewImporter(store, store, store,
		notecal.WithLogger(logger),
		notecal.WithStatusFunc(func(st notecal.ItemStatus) {
			if st.Err != nil {
				fmt.Fprintf(os.Stderr, "  %s %q: %v\n", st.Action, st.Title, st.Err)
			}
		}),
	)

	summary := imp.ImportText(ctx, string(data), cfg.FolderTitle)
	fmt.Printf("created %d, updated %d, skipped %d, errors %d\n",
		summary.Created, summary.Updated, summary.Skipped, summary.Errors)
	return nil
}

func runAlarms(ctx context.Context, cfg Config, store *dirStore, logger notecal.Logger) error {
	events, err := loadEvents(ctx, cfg, store)
	if err != nil {
		return err
	}

	imp := notecal.NewImporter(store, store, store, notecal.WithLogger(logger))

	total := notecal.ImportSummary{}
	for _, ev := range events {
		if len(ev.Alarms) == 0 {
			continue
		}
		summary := imp.MaterializeAlarms(ctx, ev, cfg.AlarmRangeDays, cfg.FolderTitle)
		total.Created += summary.Created
		total.Errors += summary.Errors
	}

	fmt.Printf("materialized %d alarms, %d errors\n", total.Created, total.Errors)
	return nil
}

func sortOccurrences(occs []notecal.Occurrence) {
	sort.Slice(occs, func(i, j int) bool {
		if !occs[i].Start.Equal(occs[j].Start) {
			return occs[i].Start.Before(occs[j].Start)
		}
		return occs[i].OccurrenceID < occs[j].OccurrenceID
	})
}
