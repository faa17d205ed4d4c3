// Package normalizer converts raw catalog rows into catalog entries and the
// labeled text blocks that are embedded for retrieval.
package normalizer

import (
	"PharmaChat/backend/go/internal/models"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/schema"
	"fmt"
	"strings"
)

// FieldCount is the number of columns a catalog row must have:
// itemId, name, genericName, location, stockQuantity, price, expiryDate, usageText.
const FieldCount = 8

// SplitLine splits one raw CSV line on commas. Quoting is not interpreted and
// trailing empty fields are dropped, so a row whose last columns are blank
// counts as short.
func SplitLine(line string) []string {
	fields := strings.Split(line, ",")
	n := len(fields)
	for n > 1 && fields[n-1] == "" {
		n--
	}
	return fields[:n]
}

// Normalize builds a CatalogEntry from a row. Rows with fewer than FieldCount
// fields are rejected; fields past the eighth are ignored.
func Normalize(row []string) (models.CatalogEntry, bool) {
	if len(row) < FieldCount {
		return models.CatalogEntry{}, false
	}
	f := make([]string, FieldCount)
	for i := range f {
		f[i] = strings.TrimSpace(row[i])
	}
	return models.CatalogEntry{
		ItemID:        f[0],
		Name:          f[1],
		GenericName:   f[2],
		Location:      f[3],
		StockQuantity: f[4],
		Price:         f[5],
		ExpiryDate:    f[6],
		UsageText:     f[7],
	}, true
}

// Render produces the fixed-order labeled block for an entry.
func Render(e models.CatalogEntry) string {
	return fmt.Sprintf(
		"Medicine Name: %s\nGeneric Name: %s\nLocation: %s\nStock Available: %s units\nPrice: %s\nExpiry Date: %s\nUsage: %s\n",
		e.Name, e.GenericName, e.Location, e.StockQuantity, e.Price, e.ExpiryDate, e.UsageText,
	)
}

// ToDocument converts an entry into an indexable document keyed by ItemID.
func ToDocument(e models.CatalogEntry) schema.Document {
	return schema.Document{
		ID:   e.ItemID,
		Text: Render(e),
		Attributes: map[string]string{
			schema.AttrMedicineName: e.Name,
			schema.AttrRackLocation: e.Location,
		},
	}
}
