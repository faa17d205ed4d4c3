package loaders

import (
	"PharmaChat/backend/go/internal/pharmacy_service/rag/interfaces"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/normalizer"
	"context"
	"strings"
)

// CSVLoader splits a published sheet export into lines and each line on commas.
// Quoted fields are not interpreted, matching how the sheet is published.
type CSVLoader struct{}

// NewCSVLoader creates a new CSVLoader.
func NewCSVLoader() *CSVLoader {
	return &CSVLoader{}
}

// Load returns one row per line, header included.
func (l *CSVLoader) Load(ctx context.Context, data []byte) ([][]string, error) {
	text := strings.TrimPrefix(string(data), "\ufeff")
	lines := strings.Split(text, "\n")
	rows := make([][]string, 0, len(lines))
	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows = append(rows, normalizer.SplitLine(strings.TrimSuffix(line, "\r")))
	}
	return rows, nil
}

// compile-time check to ensure CSVLoader implements the RowLoader interface
var _ interfaces.RowLoader = (*CSVLoader)(nil)
