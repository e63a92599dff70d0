package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"caixa-imoveis/config"
	"caixa-imoveis/models"

	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Store keeps one worksheet per region plus the archive worksheet in a single workbook
type Store struct {
	service       *sheets.Service
	spreadsheetID string
	logger        *zap.Logger

	mu       sync.Mutex
	sheetIDs map[string]int64
}

// NewStore creates a Google Sheets store from the service-account credentials in cfg
func NewStore(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*Store, error) {
	spreadsheetID := cfg.Spreadsheet
	if strings.Contains(spreadsheetID, "/d/") {
		spreadsheetID = ExtractSpreadsheetID(spreadsheetID)
	}
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id not configured (set SHEETS_API)")
	}

	credsJSON, err := readCredentials(cfg)
	if err != nil {
		return nil, err
	}
	creds, err := google.CredentialsFromJSON(ctx, credsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	return NewStoreWithOptions(ctx, spreadsheetID, logger, option.WithCredentials(creds))
}

// NewStoreWithOptions creates a store with explicit client options
func NewStoreWithOptions(ctx context.Context, spreadsheetID string, logger *zap.Logger, opts ...option.ClientOption) (*Store, error) {
	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &Store{
		service:       service,
		spreadsheetID: spreadsheetID,
		logger:        logger,
		sheetIDs:      make(map[string]int64),
	}, nil
}

func readCredentials(cfg config.SheetsConfig) ([]byte, error) {
	var credsJSON []byte
	if cfg.CredentialsJSON != "" {
		credsJSON = []byte(cfg.CredentialsJSON)
	} else if cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		credsJSON = data
	} else {
		return nil, fmt.Errorf("credentials not found: GOOGLE_SHEETS_CREDENTIALS is empty and no credentials_file is set")
	}

	var creds map[string]interface{}
	if err := json.Unmarshal(credsJSON, &creds); err != nil {
		return nil, fmt.Errorf("invalid credentials JSON (check if JSON is properly formatted): %w", err)
	}
	if creds["type"] != "service_account" {
		return nil, fmt.Errorf("credentials must be a service account JSON file (type: service_account), got type: %v", creds["type"])
	}
	return credsJSON, nil
}

// ReadAll returns every listing of a worksheet; the first row is the header
func (s *Store) ReadAll(ctx context.Context, table string) ([]models.Listing, error) {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, sheetRange(table, "")).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}

	header := make([]string, len(resp.Values[0]))
	for i, v := range resp.Values[0] {
		header[i] = models.CellString(v)
	}

	listings := make([]models.Listing, 0, len(resp.Values)-1)
	for i, row := range resp.Values[1:] {
		if emptyRow(row) || headerRow(row) {
			continue
		}
		l, err := models.ListingFromRow(header, row)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s row %d: %w", table, i+2, err)
		}
		listings = append(listings, l)
	}
	return listings, nil
}

// Append adds rows after the last filled row, writing the header first on an empty worksheet
func (s *Store) Append(ctx context.Context, table string, rows []models.Listing) error {
	if len(rows) == 0 {
		return nil
	}

	head, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, sheetRange(table, headerRange())).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to read %s header: %w", table, err)
	}

	values := make([][]interface{}, 0, len(rows)+1)
	if len(head.Values) == 0 {
		values = append(values, models.Header())
	}
	for _, l := range rows {
		values = append(values, l.Row())
	}

	_, err = s.service.Spreadsheets.Values.Append(s.spreadsheetID, sheetRange(table, "A1"), &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append to %s: %w", table, err)
	}

	s.logger.Info("appended listings", zap.String("table", table), zap.Int("rows", len(rows)))
	return nil
}

// ReplaceAll rewrites a worksheet with header and rows in a single batch update,
// so readers see either the old table or the new one
func (s *Store) ReplaceAll(ctx context.Context, table string, rows []models.Listing) error {
	sheetID, err := s.sheetID(ctx, table)
	if err != nil {
		return err
	}

	data := make([]*sheets.RowData, 0, len(rows)+1)
	data = append(data, rowData(models.Header()))
	for _, l := range rows {
		data = append(data, rowData(l.Row()))
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{
				// one spare row keeps at least one unfrozen row when the table empties
				UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
					Properties: &sheets.SheetProperties{
						SheetId: sheetID,
						GridProperties: &sheets.GridProperties{
							RowCount:    int64(len(rows) + 2),
							ColumnCount: int64(len(models.Columns)),
						},
						ForceSendFields: []string{"SheetId"},
					},
					Fields: "gridProperties.rowCount,gridProperties.columnCount",
				},
			},
			{
				UpdateCells: &sheets.UpdateCellsRequest{
					Range: &sheets.GridRange{
						SheetId:         sheetID,
						ForceSendFields: []string{"SheetId"},
					},
					Fields: "userEnteredValue",
				},
			},
			{
				UpdateCells: &sheets.UpdateCellsRequest{
					Start: &sheets.GridCoordinate{
						SheetId:         sheetID,
						ForceSendFields: []string{"SheetId", "RowIndex", "ColumnIndex"},
					},
					Rows:   data,
					Fields: "userEnteredValue",
				},
			},
		},
	}

	if _, err := s.service.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to replace %s: %w", table, err)
	}

	s.logger.Info("replaced worksheet", zap.String("table", table), zap.Int("rows", len(rows)))
	return nil
}

// Clear empties a worksheet, header included
func (s *Store) Clear(ctx context.Context, table string) error {
	_, err := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, sheetRange(table, ""), &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}
	return nil
}

// sheetID resolves a worksheet title to its numeric id, refreshing the cache on a miss
func (s *Store) sheetID(ctx context.Context, table string) (int64, error) {
	title := sanitizeSheetName(table)
	s.mu.Lock()
	id, ok := s.sheetIDs[title]
	s.mu.Unlock()
	if ok {
		return id, nil
	}

	if err := s.refreshSheetIDs(ctx); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok = s.sheetIDs[title]
	if !ok {
		return 0, fmt.Errorf("worksheet %q not found (run with -mode setup)", title)
	}
	return id, nil
}

func (s *Store) refreshSheetIDs(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Get(s.spreadsheetID).
		Fields("sheets.properties").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to read spreadsheet metadata: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sh := range resp.Sheets {
		if sh.Properties == nil {
			continue
		}
		s.sheetIDs[sh.Properties.Title] = sh.Properties.SheetId
	}
	return nil
}

func rowData(values []interface{}) *sheets.RowData {
	cells := make([]*sheets.CellData, len(values))
	for i, v := range values {
		cell := &sheets.CellData{}
		switch t := v.(type) {
		case float64:
			n := t
			cell.UserEnteredValue = &sheets.ExtendedValue{NumberValue: &n}
		case string:
			if t != "" {
				str := t
				cell.UserEnteredValue = &sheets.ExtendedValue{StringValue: &str}
			}
		default:
			str := models.CellString(t)
			cell.UserEnteredValue = &sheets.ExtendedValue{StringValue: &str}
		}
		cells[i] = cell
	}
	return &sheets.RowData{Values: cells}
}

func emptyRow(row []interface{}) bool {
	for _, v := range row {
		if models.CellString(v) != "" {
			return false
		}
	}
	return true
}

// headerRow reports a header repeated inside the data, as older archive appends wrote one per batch
func headerRow(row []interface{}) bool {
	return len(row) > 0 && models.CellString(row[0]) == models.Columns[0]
}

// sheetRange builds an A1 range on a quoted worksheet title
func sheetRange(table, cells string) string {
	quoted := "'" + strings.ReplaceAll(sanitizeSheetName(table), "'", "''") + "'"
	if cells == "" {
		return quoted
	}
	return quoted + "!" + cells
}

func headerRange() string {
	return fmt.Sprintf("A1:%s1", columnLetter(len(models.Columns)))
}

// columnLetter converts a 1-based column number to its A1 letters
func columnLetter(n int) string {
	letters := ""
	for n > 0 {
		n--
		letters = string(rune('A'+n%26)) + letters
		n /= 26
	}
	return letters
}

// ExtractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL
func ExtractSpreadsheetID(url string) string {
	// Handle various URL formats:
	// https://docs.google.com/spreadsheets/d/SPREADSHEET_ID/edit
	// https://docs.google.com/spreadsheets/d/SPREADSHEET_ID/edit?usp=sharing
	parts := strings.Split(url, "/d/")
	if len(parts) < 2 {
		return ""
	}

	idPart := parts[1]
	if idx := strings.Index(idPart, "/"); idx != -1 {
		idPart = idPart[:idx]
	}
	if idx := strings.Index(idPart, "?"); idx != -1 {
		idPart = idPart[:idx]
	}

	return strings.TrimSpace(idPart)
}
