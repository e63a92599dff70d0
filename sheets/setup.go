package sheets

import (
	"context"
	"fmt"
	"strings"

	"caixa-imoveis/models"

	"go.uber.org/zap"
	"google.golang.org/api/sheets/v4"
)

// EnsureTables creates the worksheets that are missing from the workbook and writes
// the header row on each new one. It returns the titles it created.
func (s *Store) EnsureTables(ctx context.Context, tables []string) ([]string, error) {
	if err := s.refreshSheetIDs(ctx); err != nil {
		return nil, err
	}

	var missing []string
	s.mu.Lock()
	for _, t := range tables {
		title := sanitizeSheetName(t)
		if _, ok := s.sheetIDs[title]; !ok {
			missing = append(missing, title)
		}
	}
	s.mu.Unlock()
	if len(missing) == 0 {
		return nil, nil
	}

	requests := make([]*sheets.Request, 0, len(missing))
	for _, title := range missing {
		requests = append(requests, &sheets.Request{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{
					Title: title,
					GridProperties: &sheets.GridProperties{
						RowCount:       1000,
						ColumnCount:    int64(len(models.Columns)),
						FrozenRowCount: 1,
					},
				},
			},
		})
	}

	resp, err := s.service.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create worksheets %s: %w", strings.Join(missing, ", "), err)
	}

	s.mu.Lock()
	for _, reply := range resp.Replies {
		if reply.AddSheet != nil && reply.AddSheet.Properties != nil {
			s.sheetIDs[reply.AddSheet.Properties.Title] = reply.AddSheet.Properties.SheetId
		}
	}
	s.mu.Unlock()

	data := make([]*sheets.ValueRange, 0, len(missing))
	for _, title := range missing {
		data = append(data, &sheets.ValueRange{
			Range:  sheetRange(title, "A1"),
			Values: [][]interface{}{models.Header()},
		})
	}
	_, err = s.service.Spreadsheets.Values.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}

	s.logger.Info("created worksheets", zap.Strings("tables", missing))
	return missing, nil
}

// sanitizeSheetName maps a table name to its worksheet title; every lookup goes through it
func sanitizeSheetName(name string) string {
	// Google Sheets sheet names cannot contain: / \ ? * [ ]
	invalidChars := []string{"/", "\\", "?", "*", "[", "]"}
	result := name
	for _, char := range invalidChars {
		result = strings.ReplaceAll(result, char, "_")
	}
	result = strings.TrimSpace(result)
	if result == "" {
		result = "Sheet1"
	}
	return result
}
