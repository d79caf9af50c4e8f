package roster

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/zombor/roster-scan/internal/scanning"
)

// ErrUnsupportedFormat is returned for export formats other than csv and xlsx
var ErrUnsupportedFormat = errors.New("unsupported export format")

// SheetName is the single worksheet of the XLSX export
const SheetName = "Contacts"

// utf8BOM lets spreadsheet tools on Korean-locale systems detect UTF-8
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ToCSV renders a record set as UTF-8 CSV with a byte-order mark, a header
// row and one row per record
func ToCSV(records scanning.RecordSet) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)

	w := csv.NewWriter(&buf)
	if err := w.Write(scanning.Fields()); err != nil {
		return nil, fmt.Errorf("writing csv header: %w", err)
	}
	for _, r := range records {
		if err := w.Write(r.Values()); err != nil {
			return nil, fmt.Errorf("writing csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing csv: %w", err)
	}
	return buf.Bytes(), nil
}

// ToXLSX renders a record set as a workbook with one sheet
func ToXLSX(records scanning.RecordSet) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	// Rename the default sheet so the workbook holds exactly one
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("naming sheet: %w", err)
	}

	for col, h := range scanning.Fields() {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellStr(SheetName, cell, h); err != nil {
			return nil, fmt.Errorf("writing header: %w", err)
		}
	}

	for i, r := range records {
		for col, v := range r.Values() {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			// Phone numbers stay text so leading zeros survive
			if err := f.SetCellStr(SheetName, cell, v); err != nil {
				return nil, fmt.Errorf("writing row %d: %w", i, err)
			}
		}
	}

	widths := []struct {
		col   string
		width float64
	}{
		{"A", 18}, // phone
		{"B", 16}, // name
		{"C", 40}, // note
	}
	for _, w := range widths {
		if err := f.SetColWidth(SheetName, w.col, w.col, w.width); err != nil {
			return nil, fmt.Errorf("setting column width %s: %w", w.col, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportFilename names a download after the identity's base name
func ExportFilename(identity string, ext string) string {
	base, _, _ := strings.Cut(identity, ".")
	if base == "" {
		base = "upload"
	}
	return "customer_info_" + base + ext
}
