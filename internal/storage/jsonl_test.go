package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"liquidityPilot/internal/model"
)

func TestJsonlJournalAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.jsonl")
	journal := NewJsonlJournal(path)
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	first := []model.JournalRecord{{Time: ts, UserID: 7, Operation: model.OpOpen, PoolID: "0xpool", Handle: "12", TxIDs: []string{"0xa"}}}
	second := []model.JournalRecord{{Time: ts, UserID: 7, Operation: model.OpClose, Handle: "12", Error: "reverted"}}
	if err := journal.PutJournal(context.Background(), first); err != nil {
		t.Fatalf("put first: %v", err)
	}
	if err := journal.PutJournal(context.Background(), second); err != nil {
		t.Fatalf("put second: %v", err)
	}
	if err := journal.PutJournal(context.Background(), nil); err != nil {
		t.Fatalf("put empty: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	var got []model.JournalRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var record model.JournalRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		got = append(got, record)
	}
	want := append(first, second...)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("records mismatch: %+v", got)
	}
}

func TestOpenProfilesRejectsUnknownDriver(t *testing.T) {
	if _, err := OpenProfiles(context.Background(), "mongo", "", ""); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}

func TestOpenProfilesSQLite(t *testing.T) {
	store, err := OpenProfiles(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "bot.db"), "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
