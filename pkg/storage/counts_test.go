package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadCountTableMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tweet_count.csv")

	table, err := LoadCountTable(path)
	if err != nil {
		t.Fatalf("Failed to load missing table: %v", err)
	}
	if len(table.Dates()) != 0 || len(table.Users()) != 0 {
		t.Error("Expected an empty table")
	}
	if table.Path() != path {
		t.Errorf("Expected path %s, got %s", path, table.Path())
	}
}

func TestCountTableMergeAndSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "tweet_count.csv")

	table := NewCountTable(path)
	table.Merge("2024-05-01", map[int64]int{12: 40, 15: 0})
	table.Merge("2024-05-02", map[int64]int{12: 3, 20: 7})

	if err := table.Save(); err != nil {
		t.Fatalf("Failed to save table: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read saved table: %v", err)
	}

	expected := "User,2024-05-01,2024-05-02\n" +
		"12,40,3\n" +
		"15,0,\n" +
		"20,,7\n"
	if string(content) != expected {
		t.Errorf("Unexpected table content:\n%s\nwant:\n%s", content, expected)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("Expected temporary file to be removed")
	}
}

func TestCountTableRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tweet_count.csv")

	table := NewCountTable(path)
	table.Merge("2024-05-01", map[int64]int{1: 5, 2: 0})
	if err := table.Save(); err != nil {
		t.Fatalf("Failed to save table: %v", err)
	}

	loaded, err := LoadCountTable(path)
	if err != nil {
		t.Fatalf("Failed to load table: %v", err)
	}

	if !reflect.DeepEqual(loaded.Users(), []int64{1, 2}) {
		t.Errorf("Unexpected users: %v", loaded.Users())
	}
	if n, ok := loaded.Get(1, "2024-05-01"); !ok || n != 5 {
		t.Errorf("Expected 5 for user 1, got %d (%v)", n, ok)
	}
	if n, ok := loaded.Get(2, "2024-05-01"); !ok || n != 0 {
		t.Errorf("Expected 0 for user 2, got %d (%v)", n, ok)
	}
}

func TestCountTableSameDayOverwrites(t *testing.T) {
	table := NewCountTable("unused.csv")
	table.Merge("2024-05-01", map[int64]int{1: 5, 2: 9})
	table.Merge("2024-05-01", map[int64]int{1: 0})

	if got := table.Dates(); !reflect.DeepEqual(got, []string{"2024-05-01"}) {
		t.Errorf("Expected a single date column, got %v", got)
	}
	if n, _ := table.Get(1, "2024-05-01"); n != 0 {
		t.Errorf("Expected overwritten count 0, got %d", n)
	}
	if _, ok := table.Get(2, "2024-05-01"); ok {
		t.Error("Expected user 2 to have no value after the column was replaced")
	}
}

func TestCountTableReadsFloatCells(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tweet_count.csv")
	data := "User,2020-03-01,2020-03-02\n7,12.0,\n8,,4.0\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}

	table, err := LoadCountTable(path)
	if err != nil {
		t.Fatalf("Failed to load table: %v", err)
	}

	if n, ok := table.Get(7, "2020-03-01"); !ok || n != 12 {
		t.Errorf("Expected 12, got %d (%v)", n, ok)
	}
	if _, ok := table.Get(7, "2020-03-02"); ok {
		t.Error("Expected empty cell to stay empty")
	}

	var buf bytes.Buffer
	if err := table.Write(&buf); err != nil {
		t.Fatalf("Failed to write table: %v", err)
	}
	if buf.String() != "User,2020-03-01,2020-03-02\n7,12,\n8,,4\n" {
		t.Errorf("Unexpected rendering:\n%s", buf.String())
	}
}

func TestLoadCountTableRejectsBadHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tweet_count.csv")
	if err := os.WriteFile(path, []byte("id,2020-03-01\n1,2\n"), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}

	if _, err := LoadCountTable(path); err == nil {
		t.Error("Expected an error for a table without a User column")
	}
}
