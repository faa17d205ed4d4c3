package loaders

import (
	"PharmaChat/backend/go/internal/pharmacy_service/rag/interfaces"
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// XlsxLoader reads the first sheet of an Excel (.xlsx) workbook.
type XlsxLoader struct {
	// Sheet selects a sheet by name; empty means the first sheet.
	Sheet string
}

// NewXlsxLoader creates a new XlsxLoader.
func NewXlsxLoader() *XlsxLoader {
	return &XlsxLoader{}
}

// Load returns the rows of the sheet, header included. Rows are padded to the
// header width because excelize drops trailing empty cells.
func (l *XlsxLoader) Load(ctx context.Context, data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := l.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return rows, nil
	}

	width := len(rows[0])
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(row) > 0 && len(row) < width {
			padded := make([]string, width)
			copy(padded, row)
			rows[i] = padded
		}
	}
	return rows, nil
}

// compile-time check to ensure XlsxLoader implements the RowLoader interface
var _ interfaces.RowLoader = (*XlsxLoader)(nil)
