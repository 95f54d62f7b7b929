package service

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"clinic-import/internal/models"
)

type ParserService struct{}

func NewParserService() *ParserService {
	return &ParserService{}
}

// ParseFile normalizes a tabular file (.csv, .xlsx or a JSON array of
// objects) into a ParsedTable. The first non-empty line or the object keys
// become the headers; short rows are padded with empty cells; fully empty
// rows are skipped. Failures here are unrecoverable I/O errors, not row
// issues. The legacy binary .xls format is rejected up front: excelize
// reads OOXML only.
func (s *ParserService) ParseFile(filePath string) (*models.ParsedTable, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".csv":
		return s.parseCSV(filePath)
	case ".xlsx":
		return s.parseExcel(filePath)
	case ".xls":
		return nil, fmt.Errorf("legacy .xls files are not supported, save the file as .xlsx")
	case ".json":
		return s.parseJSON(filePath)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(filePath))
	}
}

func (s *ParserService) parseExcel(filePath string) (*models.ParsedTable, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in spreadsheet")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return buildTable(rows)
}

func (s *ParserService) parseCSV(filePath string) (*models.ParsedTable, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // tolerate ragged rows
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	return buildTable(records)
}

func (s *ParserService) parseJSON(filePath string) (*models.ParsedTable, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open JSON file: %w", err)
	}
	defer f.Close()

	// Token-level decoding keeps headers in encounter order, which plain
	// map unmarshaling would scramble.
	dec := json.NewDecoder(f)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil || tok != json.Delim('[') {
		return nil, fmt.Errorf("JSON file must contain an array of objects")
	}

	var headers []string
	seen := make(map[string]bool)
	var rows []models.Row

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to read JSON: %w", err)
		}
		if tok != json.Delim('{') {
			return nil, fmt.Errorf("JSON file must contain an array of objects")
		}

		row := models.Row{}
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("failed to read JSON: %w", err)
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected JSON token %v", keyTok)
			}

			var value interface{}
			if err := dec.Decode(&value); err != nil {
				return nil, fmt.Errorf("failed to read JSON: %w", err)
			}

			if !seen[key] {
				seen[key] = true
				headers = append(headers, key)
			}
			row[key] = stringifyCell(value)
		}
		if _, err := dec.Token(); err != nil { // closing brace
			return nil, fmt.Errorf("failed to read JSON: %w", err)
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("file contains no data rows")
	}

	// Fill keys absent from individual objects.
	for _, row := range rows {
		for _, h := range headers {
			if _, ok := row[h]; !ok {
				row[h] = ""
			}
		}
	}

	return &models.ParsedTable{Headers: headers, Rows: rows, TotalRows: len(rows)}, nil
}

// buildTable turns raw string records into a ParsedTable keyed by header.
func buildTable(records [][]string) (*models.ParsedTable, error) {
	if len(records) < 2 {
		return nil, fmt.Errorf("file must contain a header row and at least one data row")
	}

	headers := make([]string, 0, len(records[0]))
	for _, h := range records[0] {
		headers = append(headers, strings.TrimSpace(h))
	}

	table := &models.ParsedTable{Headers: headers}
	for i := 1; i < len(records); i++ {
		record := records[i]
		if isEmptyRecord(record) {
			continue
		}
		row := make(models.Row, len(headers))
		for j, h := range headers {
			if j < len(record) {
				row[h] = record[j]
			} else {
				row[h] = ""
			}
		}
		table.Rows = append(table.Rows, row)
	}

	if len(table.Rows) == 0 {
		return nil, fmt.Errorf("file contains no data rows")
	}
	table.TotalRows = len(table.Rows)
	return table, nil
}

func isEmptyRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func stringifyCell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		// JSON numbers arrive as float64; keep integers clean.
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%v", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
