package ingest

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/school-system/reportgen/internal/models"
	"github.com/xuri/excelize/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var (
	ErrEmptyFile   = errors.New("the selected file contains no student data")
	ErrNoSheets    = errors.New("no sheets found in the workbook")
	ErrInvalidType = errors.New("please upload a .xlsx file")
)

// ParseError reports an unreadable or empty workbook.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidateUpload accepts .xlsx uploads only. An empty content type is
// judged by extension alone.
func ValidateUpload(filename, contentType string) error {
	if !strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		return &ParseError{Reason: "Invalid File Type", Err: ErrInvalidType}
	}
	ct := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	if ct != "" && ct != xlsxContentType && ct != "application/octet-stream" {
		return &ParseError{Reason: "Invalid File Type", Err: ErrInvalidType}
	}
	return nil
}

// Parse reads the first sheet of a workbook. The first row is the header;
// each following non-blank row becomes one record.
func Parse(r io.Reader) ([]models.StudentRecord, error) {
	xlsx, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &ParseError{Reason: "failed to open workbook", Err: err}
	}
	defer xlsx.Close()

	sheets := xlsx.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseError{Reason: "Empty File", Err: ErrNoSheets}
	}

	rows, err := xlsx.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &ParseError{Reason: "failed to read rows", Err: err}
	}
	if len(rows) < 2 {
		return nil, &ParseError{Reason: "Empty File", Err: ErrEmptyFile}
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}

	var records []models.StudentRecord
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		records = append(records, parseRow(header, row))
	}

	if len(records) == 0 {
		return nil, &ParseError{Reason: "Empty File", Err: ErrEmptyFile}
	}
	return records, nil
}

func parseRow(header, row []string) models.StudentRecord {
	var rec models.StudentRecord
	for i, key := range header {
		if key == "" || i >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[i])
		if cell == "" {
			continue
		}
		if models.IsIdentifierKey(key) {
			rec.Set(key, normalizeIdentifier(cell))
			continue
		}
		if f, err := strconv.ParseFloat(cell, 64); err == nil {
			rec.Set(key, f)
			continue
		}
		rec.Set(key, cell)
	}
	return rec
}

// normalizeIdentifier drops the trailing ".0" spreadsheet apps add to
// whole numbers typed into identifier cells.
func normalizeIdentifier(cell string) string {
	if !strings.HasSuffix(cell, ".0") {
		return cell
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return cell
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
