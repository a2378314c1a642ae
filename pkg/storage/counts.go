package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
)

// UserColumn is the header of the first column
const UserColumn = "User"

// CountTable is the historical count table, one row per user and one column
// per run date
type CountTable struct {
	path  string
	dates []string
	users []int64
	cells map[int64]map[string]int
	mu    sync.RWMutex
}

// NewCountTable creates an empty table that will be saved to path
func NewCountTable(path string) *CountTable {
	return &CountTable{
		path:  path,
		cells: make(map[int64]map[string]int),
	}
}

// LoadCountTable reads the table at path. A missing file yields an empty
// table.
func LoadCountTable(path string) (*CountTable, error) {
	t := NewCountTable(path)

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open count table: %w", err)
	}
	defer f.Close()

	if err := t.read(f); err != nil {
		return nil, fmt.Errorf("failed to read count table %s: %w", path, err)
	}
	return t, nil
}

func (t *CountTable) read(r io.Reader) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(header) == 0 || header[0] != UserColumn {
		return fmt.Errorf("first column must be %q", UserColumn)
	}
	t.dates = append(t.dates, header[1:]...)

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		userID, err := strconv.ParseInt(record[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user id %q: %w", record[0], err)
		}
		row := t.row(userID)

		for i, cell := range record[1:] {
			if i >= len(t.dates) || cell == "" {
				continue
			}
			n, err := parseCount(cell)
			if err != nil {
				return fmt.Errorf("user %d, %s: %w", userID, t.dates[i], err)
			}
			row[t.dates[i]] = n
		}
	}
}

// parseCount accepts integers and the float rendering older tables use for
// columns that had missing values
func parseCount(cell string) (int, error) {
	if n, err := strconv.Atoi(cell); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid count %q", cell)
	}
	return int(f), nil
}

// row returns the cells of a user, adding the user if needed. Callers hold
// the lock or own the table exclusively.
func (t *CountTable) row(userID int64) map[string]int {
	row, ok := t.cells[userID]
	if !ok {
		row = make(map[string]int)
		t.cells[userID] = row
		t.users = append(t.users, userID)
	}
	return row
}

// Merge writes counts under date. An existing column for date is replaced:
// users absent from counts lose their value for that date.
func (t *CountTable) Merge(date string, counts map[int64]int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	exists := false
	for _, d := range t.dates {
		if d == date {
			exists = true
			break
		}
	}
	if exists {
		for _, row := range t.cells {
			delete(row, date)
		}
	} else {
		t.dates = append(t.dates, date)
	}

	newUsers := make([]int64, 0)
	for userID := range counts {
		if _, ok := t.cells[userID]; !ok {
			newUsers = append(newUsers, userID)
		}
	}
	sort.Slice(newUsers, func(i, j int) bool { return newUsers[i] < newUsers[j] })
	for _, userID := range newUsers {
		t.row(userID)
	}

	for userID, n := range counts {
		t.cells[userID][date] = n
	}
}

// Get returns the count recorded for a user on date
func (t *CountTable) Get(userID int64, date string) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	row, ok := t.cells[userID]
	if !ok {
		return 0, false
	}
	n, ok := row[date]
	return n, ok
}

// Dates returns the date columns in file order
func (t *CountTable) Dates() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.dates...)
}

// Users returns the user ids in file order
func (t *CountTable) Users() []int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]int64(nil), t.users...)
}

// Path returns the file the table is saved to
func (t *CountTable) Path() string {
	return t.path
}

// Write renders the table as CSV
func (t *CountTable) Write(w io.Writer) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	writer := csv.NewWriter(w)
	if err := writer.Write(append([]string{UserColumn}, t.dates...)); err != nil {
		return err
	}

	record := make([]string, len(t.dates)+1)
	for _, userID := range t.users {
		record[0] = strconv.FormatInt(userID, 10)
		row := t.cells[userID]
		for i, d := range t.dates {
			if n, ok := row[d]; ok {
				record[i+1] = strconv.Itoa(n)
			} else {
				record[i+1] = ""
			}
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// Save writes the table to its path. The file is replaced atomically so an
// interrupted save never leaves a truncated table.
func (t *CountTable) Save() error {
	if dir := filepath.Dir(t.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	tempFile := t.path + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	err = t.Write(out)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write count table: %w", err)
	}

	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, t.path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}
