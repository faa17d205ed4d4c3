package pipeline

import (
	"PharmaChat/backend/go/internal/models"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/interfaces"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/loaders"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/normalizer"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/schema"
	"PharmaChat/backend/go/pkg/logger"
	"context"
	"fmt"
)

// IngestionReport summarises one ingestion run.
type IngestionReport struct {
	Rows       int `json:"rows"`       // data rows, header excluded
	Indexed    int `json:"indexed"`    // unique documents upserted
	Skipped    int `json:"skipped"`    // malformed rows
	Duplicates int `json:"duplicates"` // rows that replaced an earlier row with the same id
	Pruned     int `json:"pruned"`
}

// IngestionPipeline fetches a catalog export, normalizes its rows and upserts them.
type IngestionPipeline struct {
	source interfaces.Source
	index  *RetrievalIndex
	prune  bool
	log    *logger.Logger
}

// NewIngestionPipeline creates a new IngestionPipeline. When prune is set,
// documents missing from a successful ingestion are removed from the index.
func NewIngestionPipeline(source interfaces.Source, index *RetrievalIndex, prune bool, log *logger.Logger) *IngestionPipeline {
	return &IngestionPipeline{source: source, index: index, prune: prune, log: log}
}

// Run ingests the catalog at location. Source failures wrap loaders.ErrSourceUnavailable,
// an export without valid rows returns ErrEmptyCatalog and leaves the index untouched.
func (p *IngestionPipeline) Run(ctx context.Context, location string) (IngestionReport, error) {
	var report IngestionReport

	data, err := p.source.Fetch(ctx, location)
	if err != nil {
		return report, err
	}
	loader, err := loaders.LoaderFor(data)
	if err != nil {
		return report, err
	}
	rows, err := loader.Load(ctx, data)
	if err != nil {
		return report, fmt.Errorf("parse catalog: %w", err)
	}

	docs, report := BuildDocuments(rows)
	p.log.WithPayload(map[string]interface{}{
		"rows":       report.Rows,
		"skipped":    report.Skipped,
		"duplicates": report.Duplicates,
	}).Info(fmt.Sprintf("Parsed %d catalog documents from %s", len(docs), location))

	if len(docs) == 0 {
		return report, ErrEmptyCatalog
	}
	if err := p.index.Upsert(ctx, docs); err != nil {
		return report, err
	}
	report.Indexed = len(docs)

	if p.prune {
		keep := make([]string, len(docs))
		for i, d := range docs {
			keep[i] = d.ID
		}
		pruned, err := p.index.Prune(ctx, keep)
		if err != nil {
			// the new catalog is already indexed; stale entries only linger until the next run
			p.log.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Failed to prune stale catalog documents")
		} else {
			report.Pruned = pruned
		}
	}
	return report, nil
}

// BuildDocuments skips the header row, drops malformed rows and rows without an
// item id, and keeps the last row for each duplicated id at its first position.
func BuildDocuments(rows [][]string) ([]schema.Document, IngestionReport) {
	var report IngestionReport
	if len(rows) <= 1 {
		return nil, report
	}

	docs := make([]schema.Document, 0, len(rows)-1)
	pos := make(map[string]int, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) == 1 && row[0] == "" {
			// blank line, typically the trailing newline
			continue
		}
		report.Rows++
		entry, ok := normalizer.Normalize(row)
		if !ok || entry.ItemID == "" {
			report.Skipped++
			continue
		}
		doc := normalizer.ToDocument(entry)
		if i, dup := pos[doc.ID]; dup {
			docs[i] = doc
			report.Duplicates++
			continue
		}
		pos[doc.ID] = len(docs)
		docs = append(docs, doc)
	}
	return docs, report
}
