package schema

// 文档属性键。
const (
	AttrMedicineName = "medicine_name"
	AttrRackLocation = "rack_location"
)

// Document is one retrievable text unit: a rendered catalog entry and its vector.
// Re-inserting a Document with an existing ID replaces text, attributes and embedding.
type Document struct {
	// ID is the catalog item id.
	ID string `json:"id"`

	// Text is the labeled block the model sees as context.
	Text string `json:"text"`

	// Attributes carries filterable fields such as medicine_name and rack_location.
	Attributes map[string]string `json:"attributes,omitempty"`

	// Embedding is the vector representation of Text.
	Embedding []float32 `json:"-"`
}

// SearchResult pairs a retrieved document with its similarity score (higher is closer).
type SearchResult struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// Texts returns the document texts of results in order.
func Texts(results []SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Document.Text
	}
	return out
}
