package cmd

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"wisher/internal/config"
	"wisher/internal/selectors"
)

func TestRequiredFiles(t *testing.T) {
	cfg := config.DefaultConfig()

	files := requiredFiles(cfg)
	if len(files) != 2 {
		t.Fatalf("Expected both access keys for the default backends, got %v", files)
	}
	if files[0].Artifact != "spread sheet access key" || files[1].Artifact != "database access key" {
		t.Errorf("Unexpected artifacts: %v", files)
	}

	cfg.Spreadsheet.Backend = "sqlite"
	cfg.Selectors.Backend = "redis"
	if files := requiredFiles(cfg); len(files) != 0 {
		t.Errorf("Expected no access keys for local backends, got %v", files)
	}
}

func TestNewSelectorStore(t *testing.T) {
	cfg := config.DefaultConfig()

	store, err := newSelectorStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*selectors.FirebaseStore); !ok {
		t.Errorf("Expected FirebaseStore, got %T", store)
	}

	cfg.Selectors.Backend = "redis"
	store, err = newSelectorStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*selectors.RedisStore); !ok {
		t.Errorf("Expected RedisStore, got %T", store)
	}

	cfg.Selectors.Backend = "etcd"
	if _, err := newSelectorStore(cfg); err == nil {
		t.Error("Expected an error for an unknown backend")
	}
}

func TestPutSelector(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cfg := config.DefaultConfig()
	cfg.Selectors.Backend = "redis"
	cfg.Selectors.RedisAddr = mr.Addr()
	store, err := newSelectorStore(cfg)
	if err != nil {
		t.Fatal(err)
	}

	if err := putSelector(ctx, store, "Xpath003", "//span[@data-icon='msg-time']"); err != nil {
		t.Fatalf("putSelector failed: %v", err)
	}
	got, err := store.Fetch(ctx, "Xpath003")
	if err != nil || got != "//span[@data-icon='msg-time']" {
		t.Errorf("Fetch = %q, %v", got, err)
	}

	if err := putSelector(ctx, store, "Xpath999", "//x"); err == nil {
		t.Error("Expected an error for an unknown key")
	}
	if err := putSelector(ctx, store, "Xpath001", " "); err == nil {
		t.Error("Expected an error for an empty xpath")
	}

	cfg.Selectors.Backend = "firebase"
	firebase, err := newSelectorStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := putSelector(ctx, firebase, "Xpath001", "//x"); err == nil {
		t.Error("Expected the firebase backend to be read-only")
	}
}

func TestNewWorkbook(t *testing.T) {
	cfg := config.DefaultConfig()

	if _, err := newWorkbook(cfg); err == nil {
		t.Error("Expected an error without a spreadsheet id")
	}

	cfg.Spreadsheet.Backend = "sqlite"
	cfg.Spreadsheet.SQLitePath = filepath.Join(t.TempDir(), "workbook.sqlite")
	book, err := newWorkbook(cfg)
	if err != nil {
		t.Fatalf("newWorkbook failed: %v", err)
	}
	book.Close()

	cfg.Spreadsheet.Backend = "excel"
	if _, err := newWorkbook(cfg); err == nil {
		t.Error("Expected an error for an unknown backend")
	}
}

func TestReadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "birthdays.csv")
	data := "Date of Birth,Name,Counrty Code,WhatsApp Number\n18-10,\"Asha, Jr\",91,9876543210\n01-01,Ben\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	rows, err := readCSV(path)
	if err != nil {
		t.Fatalf("readCSV failed: %v", err)
	}
	want := [][]string{
		{"Date of Birth", "Name", "Counrty Code", "WhatsApp Number"},
		{"18-10", "Asha, Jr", "91", "9876543210"},
		{"01-01", "Ben"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("Got %q, expected %q", rows, want)
	}
}
