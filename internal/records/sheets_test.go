package records

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"google.golang.org/api/option"
)

type fakeSheetsAPI struct {
	mu      sync.Mutex
	batches []string
	updates []string
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case strings.HasSuffix(r.URL.Path, ":batchUpdate"):
		f.batches = append(f.batches, string(body))
		fmt.Fprint(w, `{"spreadsheetId":"sheet-1"}`)
	case strings.Contains(r.URL.Path, "/values/") && r.Method == http.MethodGet:
		fmt.Fprint(w, `{"range":"'Birthday list'!A1:D3","values":[["DOB","Name"],["18-10","Asha"],["19-10",123]]}`)
	case strings.Contains(r.URL.Path, "/values/") && r.Method == http.MethodPut:
		f.updates = append(f.updates, r.URL.Path+" "+string(body))
		fmt.Fprint(w, `{}`)
	case strings.HasSuffix(r.URL.Path, "/spreadsheets/sheet-1"):
		fmt.Fprint(w, `{"sheets":[{"properties":{"title":"Birthday list","sheetId":0}},{"properties":{"title":"Wishes","sheetId":42}}]}`)
	default:
		http.NotFound(w, r)
	}
}

func newFakeSheetsWorkbook(t *testing.T) (*SheetsWorkbook, *fakeSheetsAPI) {
	t.Helper()
	api := &fakeSheetsAPI{}
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	book := NewSheetsWorkbook("sheet-1", "",
		option.WithEndpoint(server.URL+"/"),
		option.WithHTTPClient(server.Client()),
	)
	return book, api
}

func TestSheetsTableValues(t *testing.T) {
	book, _ := newFakeSheetsWorkbook(t)
	ctx := context.Background()

	table, err := book.Table(ctx, "Birthday list")
	if err != nil {
		t.Fatalf("Table failed: %v", err)
	}
	values, err := table.Values(ctx)
	if err != nil {
		t.Fatalf("Values failed: %v", err)
	}
	want := [][]string{{"DOB", "Name"}, {"18-10", "Asha"}, {"19-10", "123"}}
	if !reflect.DeepEqual(values, want) {
		t.Errorf("Values = %v, want %v", values, want)
	}
}

func TestSheetsDeleteRowSendsZeroSheetID(t *testing.T) {
	book, api := newFakeSheetsWorkbook(t)
	ctx := context.Background()

	table, err := book.Table(ctx, "Birthday list")
	if err != nil {
		t.Fatal(err)
	}
	if err := table.DeleteRow(ctx, 3); err != nil {
		t.Fatalf("DeleteRow failed: %v", err)
	}

	if len(api.batches) != 1 {
		t.Fatalf("Expected one batch update, got %d", len(api.batches))
	}
	body := api.batches[0]
	for _, want := range []string{`"sheetId":0`, `"startIndex":2`, `"endIndex":3`, `"dimension":"ROWS"`} {
		if !strings.Contains(body, want) {
			t.Errorf("Batch body %s missing %s", body, want)
		}
	}
}

func TestSheetsAppendRowsStartsAfterData(t *testing.T) {
	book, api := newFakeSheetsWorkbook(t)
	ctx := context.Background()

	table, err := book.Table(ctx, "Birthday list")
	if err != nil {
		t.Fatal(err)
	}
	if err := table.AppendRows(ctx, [][]string{{"a", "b"}, {"c", "d"}}); err != nil {
		t.Fatalf("AppendRows failed: %v", err)
	}
	if len(api.updates) != 1 || !strings.Contains(api.updates[0], "A4:B5") {
		t.Errorf("Expected update of A4:B5, got %v", api.updates)
	}
}

func TestSheetsMissingTab(t *testing.T) {
	book, _ := newFakeSheetsWorkbook(t)
	if _, err := book.Table(context.Background(), "Sent message"); !errors.Is(err, ErrTabNotFound) {
		t.Errorf("Expected ErrTabNotFound, got %v", err)
	}
}

func TestSheetsMissingCredentials(t *testing.T) {
	book := NewSheetsWorkbook("sheet-1", filepath.Join(t.TempDir(), "spread sheet access key.json"))
	if _, err := book.Table(context.Background(), "Wishes"); !errors.Is(err, ErrCredentialsMissing) {
		t.Errorf("Expected ErrCredentialsMissing, got %v", err)
	}
}

func TestColumnLetter(t *testing.T) {
	tests := map[int]string{1: "A", 6: "F", 26: "Z", 27: "AA", 52: "AZ"}
	for col, want := range tests {
		if got := columnLetter(col); got != want {
			t.Errorf("columnLetter(%d) = %q, want %q", col, got, want)
		}
	}
}
