package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"txdash/internal/core"
)

const defaultSheetName = "Transactions"

var sheetHeader = []any{"id", "dateOfSale", "productTitle", "productDescription", "price", "category", "sold"}

// SheetsSink replaces the contents of one Google Sheets tab with the snapshot.
type SheetsSink struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
}

// NewSheetsSinkFromEnv authenticates with a service account.
// Credentials: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS. Optional tab name: GOOGLE_SHEET_NAME.
func NewSheetsSinkFromEnv(ctx context.Context, spreadsheetID string) (*SheetsSink, error) {
	creds, err := serviceAccountCredentials()
	if err != nil {
		return nil, err
	}
	return NewSheetsSink(ctx, spreadsheetID, os.Getenv("GOOGLE_SHEET_NAME"),
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

func NewSheetsSink(ctx context.Context, spreadsheetID, sheet string, opts ...goption.ClientOption) (*SheetsSink, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(sheet) == "" {
		sheet = defaultSheetName
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &SheetsSink{svc: svc, spreadsheetID: spreadsheetID, sheet: sheet}, nil
}

func serviceAccountCredentials() ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		return []byte(inline), nil
	}
	path := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

func (s *SheetsSink) String() string { return "sheets:" + s.spreadsheetID + "/" + s.sheet }

// Write clears the tab and writes a header row followed by one row per record.
func (s *SheetsSink) Write(ctx context.Context, txs []core.Transaction) error {
	_, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, s.sheet+"!A:G", &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear sheet %s: %w", s.sheet, err)
	}

	rows := make([][]any, 0, len(txs)+1)
	rows = append(rows, sheetHeader)
	for _, t := range txs {
		rows = append(rows, sheetRow(t))
	}

	_, err = s.svc.Spreadsheets.Values.Update(s.spreadsheetID, s.sheet+"!A1", &gsheet.ValueRange{Values: rows}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update sheet %s: %w", s.sheet, err)
	}
	return nil
}

func sheetRow(t core.Transaction) []any {
	return []any{
		t.ID,
		t.DateOfSale.UTC().Format(time.RFC3339),
		t.ProductTitle,
		t.ProductDescription,
		t.Price,
		t.Category,
		t.Sold,
	}
}
