package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	notecal "github.com/notecal/go-note-calendar"
)

// dirStore backs the collaborator interfaces with a directory of markdown
// files: one note per file, the file name (without extension) as the note id
// and title.
type dirStore struct {
	dir string
}

func newDirStore(dir string) *dirStore {
	return &dirStore{dir: dir}
}

func (s *dirStore) ListNotes(_ context.Context, page, limit int) ([]notecal.Note, bool, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, false, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		names = append(names, e.Name())
	}

	start := page * limit
	if start >= len(names) {
		return nil, false, nil
	}
	end := start + limit
	if end > len(names) {
		end = len(names)
	}

	var notes []notecal.Note
	for _, name := range names[start:end] {
		body, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return nil, false, err
		}
		id := strings.TrimSuffix(name, ".md")
		notes = append(notes, notecal.Note{ID: id, Title: id, Body: string(body)})
	}

	return notes, end < len(names), nil
}

func (s *dirStore) CreateNote(_ context.Context, note notecal.Note) (string, error) {
	id := sanitizeFileName(note.Title)
	path := filepath.Join(s.dir, id+".md")
	for i := 2; ; i++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		id = fmt.Sprintf("%s-%d", sanitizeFileName(note.Title), i)
		path = filepath.Join(s.dir, id+".md")
	}
	if err := os.WriteFile(path, []byte(note.Body), 0o644); err != nil {
		return "", err
	}
	return id, nil
}

func (s *dirStore) UpdateNote(_ context.Context, note notecal.Note) error {
	path := filepath.Join(s.dir, note.ID+".md")
	return os.WriteFile(path, []byte(note.Body), 0o644)
}

func (s *dirStore) DeleteNote(_ context.Context, id string) error {
	return os.Remove(filepath.Join(s.dir, id+".md"))
}

func (s *dirStore) ListFolders(_ context.Context) ([]notecal.Folder, error) {
	// A flat directory has no folder hierarchy.
	return nil, nil
}

func sanitizeFileName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" {
		name = "event"
	}
	return name
}
