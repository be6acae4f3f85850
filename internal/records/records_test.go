package records

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"wisher/internal/logging"
	"wisher/internal/retry"
)

var today = time.Date(2026, time.October, 18, 8, 0, 0, 0, time.Local)

var testTabs = Tabs{Birthdays: "Birthday list", Wishes: "Wishes", SentLog: "Sent message"}

func openTestWorkbook(t *testing.T) *SQLiteWorkbook {
	t.Helper()
	book, err := OpenSQLite(filepath.Join(t.TempDir(), "workbook.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() { book.Close() })
	return book
}

func newTestStore(t *testing.T, book Workbook) *Store {
	t.Helper()
	policy := retry.Policy{
		Interval: 5 * time.Second,
		Clock:    retry.NewManualClock(today),
		Log:      logging.Discard(),
	}
	return NewStore(book, testTabs, policy, logging.Discard())
}

// countingBook records column rewrites.
type countingBook struct {
	Workbook
	writes int
}

type countingTable struct {
	Table
	book *countingBook
}

func (b *countingBook) Table(ctx context.Context, name string) (Table, error) {
	t, err := b.Workbook.Table(ctx, name)
	if err != nil {
		return nil, err
	}
	return &countingTable{Table: t, book: b}, nil
}

func (t *countingTable) WriteColumn(ctx context.Context, col, fromRow int, values []string, clearTo int) error {
	t.book.writes++
	return t.Table.WriteColumn(ctx, col, fromRow, values, clearTo)
}

// flakyBook fails the first n Table calls.
type flakyBook struct {
	Workbook
	failures int
	calls    int
}

func (b *flakyBook) Table(ctx context.Context, name string) (Table, error) {
	b.calls++
	if b.calls <= b.failures {
		return nil, errors.New("503 service unavailable")
	}
	return b.Workbook.Table(ctx, name)
}

func birthdayHeader() []string {
	return []string{"Date of Birth", "Name", "Counrty Code", "WhatsApp Number"}
}

func TestDedupeBirthdaysKeepsFirstOccurrence(t *testing.T) {
	ctx := context.Background()
	book := openTestWorkbook(t)
	book.Import(ctx, testTabs.Birthdays, [][]string{
		birthdayHeader(),
		{"18-10", "Asha", "91", "9876543210"},
		{"01-01", "Ben", "1", "5550000000"},
		{"18-10", "Asha again", "91", "9876543210"},
		{"02-02", "Cara", "44", "7700900123"},
		{"03-03", "Ben twin", "1", " 5550000000 "},
		{"18-10", "Other Asha", "92", "9876543210"},
	})

	store := newTestStore(t, book)
	deleted, err := store.DedupeBirthdays(ctx)
	if err != nil {
		t.Fatalf("DedupeBirthdays failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 deletions, got %d", deleted)
	}

	table, _ := book.Table(ctx, testTabs.Birthdays)
	values, _ := table.Values(ctx)
	var names []string
	for _, rec := range Records(values) {
		names = append(names, rec.Name())
	}
	want := []string{"Asha", "Ben", "Cara", "Other Asha"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("Surviving rows = %v, want %v", names, want)
	}

	again, err := store.DedupeBirthdays(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if again != 0 {
		t.Errorf("Second dedupe deleted %d rows, expected none", again)
	}
}

func TestTodayBirthdaysValidation(t *testing.T) {
	ctx := context.Background()
	book := openTestWorkbook(t)
	book.Import(ctx, testTabs.Birthdays, [][]string{
		{"DOB", "name", "Country Code", "Phone"},
		{"18-10", "Asha", "91", "9876543210"},
		{"18-10-1990", "", "1", "5551234567"},
		{"18-10", "Broken", "44", "77-00"},
		{"19-10", "Tomorrow", "44", "bad"},
	})

	store := newTestStore(t, book)
	entries, skipped, err := store.TodayBirthdays(ctx, today)
	if err != nil {
		t.Fatalf("TodayBirthdays failed: %v", err)
	}
	if skipped != 1 {
		t.Errorf("Expected 1 skipped, got %d", skipped)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if got := entries[0].Line(); got != "18-10-2026 Asha https://wa.me/91 9876543210|" {
		t.Errorf("Unexpected first line %q", got)
	}
	if got := entries[1].Line(); got != "18-10-1990 unavailable https://wa.me/1 5551234567|" {
		t.Errorf("Unexpected second line %q", got)
	}

	count, err := store.CountToday(ctx, today)
	if err != nil || count != 3 {
		t.Errorf("CountToday = %d, %v; want 3", count, err)
	}
}

func TestDedupeWishesRewritesOnlyWithDuplicates(t *testing.T) {
	ctx := context.Background()
	book := openTestWorkbook(t)
	counting := &countingBook{Workbook: book}
	store := newTestStore(t, counting)

	book.Import(ctx, testTabs.Wishes, [][]string{
		{"Wishes"}, {"Happy birthday!"}, {"Many happy returns"},
	})
	wishes, err := store.DedupeWishes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(wishes) != 2 || counting.writes != 0 {
		t.Errorf("Expected 2 wishes and no rewrite, got %v and %d writes", wishes, counting.writes)
	}

	book.Import(ctx, testTabs.Wishes, [][]string{
		{"Wishes"}, {"B"}, {"A"}, {"B"}, {""}, {"C"}, {"A"},
	})
	wishes, err = store.DedupeWishes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(wishes, []string{"B", "A", "C"}) {
		t.Errorf("Unexpected wishes %v", wishes)
	}
	if counting.writes != 1 {
		t.Errorf("Expected one rewrite, got %d", counting.writes)
	}

	table, _ := book.Table(ctx, testTabs.Wishes)
	values, _ := table.Values(ctx)
	if got := Column(values, 1); !reflect.DeepEqual(got, []string{"Wishes", "B", "A", "C"}) {
		t.Errorf("Sheet column after rewrite = %v", got)
	}
}

func TestDedupeWishesLeavesBlankCells(t *testing.T) {
	ctx := context.Background()
	book := openTestWorkbook(t)
	counting := &countingBook{Workbook: book}
	store := newTestStore(t, counting)

	book.Import(ctx, testTabs.Wishes, [][]string{
		{"Wishes"}, {"Happy birthday!"}, {""}, {"Many happy returns"},
	})
	wishes, err := store.DedupeWishes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(wishes, []string{"Happy birthday!", "Many happy returns"}) {
		t.Errorf("Unexpected wishes %v", wishes)
	}
	if counting.writes != 0 {
		t.Errorf("Expected no rewrite without duplicates, got %d writes", counting.writes)
	}
}

func TestDedupeWishesEmptySheet(t *testing.T) {
	ctx := context.Background()
	book := openTestWorkbook(t)
	book.Import(ctx, testTabs.Wishes, [][]string{{"Wishes"}})

	wishes, err := newTestStore(t, book).DedupeWishes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(wishes) != 0 {
		t.Errorf("Expected no wishes, got %v", wishes)
	}
}

func TestAppendSentLogNextFreeRow(t *testing.T) {
	ctx := context.Background()
	book := openTestWorkbook(t)
	book.Import(ctx, testTabs.SentLog, [][]string{
		{"Date-Time", "Date of Birth", "Name", "Country Code", "WhatsApp Number", "Sent Message"},
		{"17-10-2026 09:00:00", "17-10-1990", "Old", "91", "1", "wish"},
	})

	store := newTestStore(t, book)
	rows := [][]string{
		{"18-10-2026 09:15:02", "18-10-1990", "Asha", "91", "9876543210", "Happy birthday!"},
		{"18-10-2026 09:16:40", "18-10-1985", "Ravi", "44", "7700900123", "No chats, contacts or messages found"},
	}
	if err := store.AppendSentLog(ctx, rows); err != nil {
		t.Fatalf("AppendSentLog failed: %v", err)
	}

	table, _ := book.Table(ctx, testTabs.SentLog)
	values, _ := table.Values(ctx)
	if len(values) != 4 {
		t.Fatalf("Expected 4 rows, got %d", len(values))
	}
	if !reflect.DeepEqual(values[2], rows[0]) || !reflect.DeepEqual(values[3], rows[1]) {
		t.Errorf("Appended rows mismatch: %v", values[2:])
	}

	if err := store.AppendSentLog(ctx, nil); err != nil {
		t.Errorf("Empty append should be a no-op, got %v", err)
	}
}

func TestStoreRetriesUntilWorkbookReachable(t *testing.T) {
	ctx := context.Background()
	book := openTestWorkbook(t)
	book.Import(ctx, testTabs.Birthdays, [][]string{birthdayHeader(), {"18-10", "Asha", "91", "1"}})

	flaky := &flakyBook{Workbook: book, failures: 3}
	clock := retry.NewManualClock(today)
	store := NewStore(flaky, testTabs, retry.Policy{Interval: 5 * time.Second, Clock: clock, Log: logging.Discard()}, logging.Discard())

	if _, err := store.CountToday(ctx, today); err != nil {
		t.Fatalf("CountToday failed: %v", err)
	}
	if clock.Slept() != 15*time.Second {
		t.Errorf("Expected three 5s waits, got %v", clock.Slept())
	}
}

func TestMissingTab(t *testing.T) {
	book := openTestWorkbook(t)
	if _, err := book.Table(context.Background(), "Nope"); !errors.Is(err, ErrTabNotFound) {
		t.Errorf("Expected ErrTabNotFound, got %v", err)
	}
}

func TestSQLiteDeleteRowShiftsUp(t *testing.T) {
	ctx := context.Background()
	book := openTestWorkbook(t)
	book.Import(ctx, "T", [][]string{{"h"}, {"a"}, {"b"}, {"c"}})

	table, _ := book.Table(ctx, "T")
	if err := table.DeleteRow(ctx, 2); err != nil {
		t.Fatal(err)
	}
	values, _ := table.Values(ctx)
	if got := Column(values, 1); !reflect.DeepEqual(got, []string{"h", "b", "c"}) {
		t.Errorf("Unexpected column after delete %v", got)
	}
}
