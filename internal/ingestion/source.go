// Package ingestion loads the keys a run is driven by from local files.
package ingestion

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tealeg/xlsx/v2"
)

// PauseFlag is the file name that, when present next to a key source,
// stops generation before any key is loaded.
const PauseFlag = "pause_generation"

// DefaultColumn is the header preferred when reading tabular sources.
const DefaultColumn = "Keyword"

// Sentinel errors returned by Load.
var (
	ErrNoKeys = errors.New("ingestion: key source produced no keys")
	ErrPaused = errors.New("ingestion: generation paused by flag file")
)

// Mode selects how text files are split into keys.
type Mode int

const (
	// ModeLines takes every non-blank line of a text file as a key.
	ModeLines Mode = iota
	// ModeDocuments takes a whole text or HTML file as one key.
	ModeDocuments
)

// Source describes where keys come from. Paths are read in order and their
// keys concatenated; a directory contributes its supported files sorted by
// name.
type Source struct {
	Paths  []string
	Column string // tabular column; default DefaultColumn, then the first column
	Mode   Mode
}

// Load reads every path and returns the keys in order. It returns ErrPaused
// when a pause flag exists beside any path and ErrNoKeys when nothing was read.
func (s Source) Load() ([]string, error) {
	if len(s.Paths) == 0 {
		return nil, ErrNoKeys
	}
	for _, p := range s.Paths {
		if Paused(p) {
			return nil, ErrPaused
		}
	}

	var keys []string
	for _, p := range s.Paths {
		files, err := expand(p)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			got, err := s.loadFile(f)
			if err != nil {
				return nil, err
			}
			keys = append(keys, got...)
		}
	}

	if len(keys) == 0 {
		return nil, ErrNoKeys
	}
	return keys, nil
}

// Paused reports whether the pause flag file sits in path's directory, or in
// path itself when it is a directory.
func Paused(path string) bool {
	dir := path
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		dir = filepath.Dir(path)
	}
	_, err := os.Stat(filepath.Join(dir, PauseFlag))
	return err == nil
}

var supported = []string{".csv", ".json", ".txt", ".xlsx", ".html", ".htm"}

func expand(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("key source not found: %w", err)
		}
		return nil, fmt.Errorf("failed to stat key source: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key directory %s: %w", path, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !slices.Contains(supported, strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		files = append(files, filepath.Join(path, e.Name()))
	}
	slices.Sort(files)
	return files, nil
}

func (s Source) loadFile(path string) ([]string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return s.loadCSV(path)
	case ".json":
		return s.loadJSON(path)
	case ".xlsx":
		return s.loadXLSX(path)
	case ".txt":
		return s.loadText(path)
	case ".html", ".htm":
		return loadHTML(path)
	default:
		return nil, fmt.Errorf("unsupported key source %s (want one of %s)", path, strings.Join(supported, ", "))
	}
}

func (s Source) loadCSV(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		rows = append(rows, row)
	}
	return s.column(path, rows)
}

func (s Source) loadXLSX(path string) ([]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if len(f.Sheets) == 0 {
		return nil, nil
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return s.column(path, rows)
}

// column picks the key column from rows whose first row is a header.
func (s Source) column(path string, rows [][]string) ([]string, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	header := rows[0]
	idx := 0
	want := s.Column
	if want == "" {
		want = DefaultColumn
	}
	found := slices.IndexFunc(header, func(h string) bool {
		return strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")), want)
	})
	switch {
	case found >= 0:
		idx = found
	case s.Column != "":
		return nil, fmt.Errorf("column %q not found in %s", s.Column, path)
	}

	var keys []string
	for _, row := range rows[1:] {
		if idx >= len(row) {
			continue
		}
		if key := strings.TrimSpace(row[idx]); key != "" {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// loadJSON accepts an array of strings, or an array of objects keyed by the
// configured column.
func (s Source) loadJSON(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var items []any
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse %s: expected a JSON array: %w", path, err)
	}

	column := s.Column
	if column == "" {
		column = DefaultColumn
	}
	var keys []string
	for i, item := range items {
		var key string
		switch v := item.(type) {
		case string:
			key = v
		case map[string]any:
			str, ok := v[column].(string)
			if !ok {
				return nil, fmt.Errorf("%s: element %d has no string %q field", path, i, column)
			}
			key = str
		default:
			return nil, fmt.Errorf("%s: element %d is not a string or object", path, i)
		}
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s Source) loadText(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	text := CleanText(string(data))
	if s.Mode == ModeDocuments {
		if text == "" {
			return nil, nil
		}
		return []string{text}, nil
	}

	var keys []string
	for _, line := range strings.Split(text, "\n") {
		if line != "" {
			keys = append(keys, line)
		}
	}
	return keys, nil
}

func loadHTML(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	text, err := HTMLText(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if text == "" {
		return nil, nil
	}
	return []string{text}, nil
}
