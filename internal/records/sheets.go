package records

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"wisher/internal/retry"
)

// SheetsWorkbook is a Google Sheets spreadsheet accessed with a service
// account key. The API client is created on first use.
type SheetsWorkbook struct {
	spreadsheetID   string
	credentialsFile string
	opts            []option.ClientOption

	mu  sync.Mutex
	svc *sheets.Service
}

func NewSheetsWorkbook(spreadsheetID, credentialsFile string, opts ...option.ClientOption) *SheetsWorkbook {
	return &SheetsWorkbook{
		spreadsheetID:   spreadsheetID,
		credentialsFile: credentialsFile,
		opts:            opts,
	}
}

func (w *SheetsWorkbook) service(ctx context.Context) (*sheets.Service, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.svc != nil {
		return w.svc, nil
	}

	opts := w.opts
	if len(opts) == 0 {
		if _, err := os.Stat(w.credentialsFile); err != nil {
			return nil, retry.Permanent(fmt.Errorf("%w: %s", ErrCredentialsMissing, w.credentialsFile))
		}
		opts = []option.ClientOption{
			option.WithCredentialsFile(w.credentialsFile),
			option.WithScopes(sheets.SpreadsheetsScope),
		}
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}
	w.svc = svc
	return svc, nil
}

func (w *SheetsWorkbook) Table(ctx context.Context, name string) (Table, error) {
	svc, err := w.service(ctx)
	if err != nil {
		return nil, err
	}

	ss, err := svc.Spreadsheets.Get(w.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == name {
			return &sheetsTable{svc: svc, spreadsheetID: w.spreadsheetID, name: name, sheetID: sh.Properties.SheetId}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTabNotFound, name)
}

func (w *SheetsWorkbook) Close() error {
	return nil
}

type sheetsTable struct {
	svc           *sheets.Service
	spreadsheetID string
	name          string
	sheetID       int64
}

func (t *sheetsTable) Name() string {
	return t.name
}

func (t *sheetsTable) a1(rng string) string {
	quoted := "'" + strings.ReplaceAll(t.name, "'", "''") + "'"
	if rng == "" {
		return quoted
	}
	return quoted + "!" + rng
}

func (t *sheetsTable) Values(ctx context.Context) ([][]string, error) {
	resp, err := t.svc.Spreadsheets.Values.Get(t.spreadsheetID, t.a1("")).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", t.name, err)
	}

	out := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		out[i] = make([]string, len(row))
		for j, cell := range row {
			out[i][j] = fmt.Sprint(cell)
		}
	}
	return out, nil
}

func (t *sheetsTable) DeleteRow(ctx context.Context, row int) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    t.sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row - 1),
					EndIndex:   int64(row),
					// SheetId and StartIndex are legitimately zero.
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}
	_, err := t.svc.Spreadsheets.BatchUpdate(t.spreadsheetID, req).Context(ctx).Do()
	return err
}

func (t *sheetsTable) WriteColumn(ctx context.Context, col, fromRow int, values []string, clearTo int) error {
	letter := columnLetter(col)

	if clearTo >= fromRow {
		rng := t.a1(fmt.Sprintf("%s%d:%s%d", letter, fromRow, letter, clearTo))
		if _, err := t.svc.Spreadsheets.Values.Clear(t.spreadsheetID, rng, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
			return fmt.Errorf("clear %s: %w", rng, err)
		}
	}
	if len(values) == 0 {
		return nil
	}

	cells := make([][]interface{}, len(values))
	for i, v := range values {
		cells[i] = []interface{}{v}
	}
	rng := t.a1(fmt.Sprintf("%s%d:%s%d", letter, fromRow, letter, fromRow+len(values)-1))
	_, err := t.svc.Spreadsheets.Values.Update(t.spreadsheetID, rng, &sheets.ValueRange{Values: cells}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

func (t *sheetsTable) AppendRows(ctx context.Context, rows [][]string) error {
	values, err := t.Values(ctx)
	if err != nil {
		return err
	}
	next := len(values) + 1

	cells := make([][]interface{}, len(rows))
	width := 0
	for i, row := range rows {
		cells[i] = make([]interface{}, len(row))
		for j, v := range row {
			cells[i][j] = v
		}
		if len(row) > width {
			width = len(row)
		}
	}
	if width == 0 {
		return nil
	}

	rng := t.a1(fmt.Sprintf("A%d:%s%d", next, columnLetter(width), next+len(rows)-1))
	_, err = t.svc.Spreadsheets.Values.Update(t.spreadsheetID, rng, &sheets.ValueRange{Values: cells}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

// columnLetter converts 1 to "A", 27 to "AA".
func columnLetter(col int) string {
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}
